package repository

import (
	"errors"

	"superr_bounty_backend/internal/model"
	"superr_bounty_backend/internal/util"

	"gorm.io/gorm"
)

type SubjectClassRepository struct {
	DB *gorm.DB
}

func NewSubjectClassRepository(db *gorm.DB) *SubjectClassRepository {
	return &SubjectClassRepository{DB: db}
}

func (r *SubjectClassRepository) Create(class *model.SubjectClass) error {
	return r.DB.Create(class).Error
}

func (r *SubjectClassRepository) FindByID(id string) (*model.SubjectClass, error) {
	var class model.SubjectClass
	err := r.DB.First(&class, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrClassNotFound
	}
	return &class, err
}

func (r *SubjectClassRepository) FindByTeacher(teacherID string) ([]model.SubjectClass, error) {
	var classes []model.SubjectClass
	err := r.DB.Where("teacher_id = ? AND is_active = ?", teacherID, true).
		Order("created_at DESC").
		Find(&classes).Error
	return classes, err
}

func (r *SubjectClassRepository) Update(class *model.SubjectClass) error {
	return r.DB.Save(class).Error
}

// EnrollStudent 把学生加进班级名单，重复报名为空操作。
// 名单在两边各存一份 JSON 列（班级存学生、学生存班级），
// 读改写放在同一个事务里保持两边一致。
func (r *SubjectClassRepository) EnrollStudent(classID, studentID string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var class model.SubjectClass
		if err := tx.First(&class, "id = ?", classID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return util.ErrClassNotFound
			}
			return err
		}
		ids := class.EnrolledStudentIDs()
		for _, id := range ids {
			if id == studentID {
				return nil
			}
		}
		if err := class.SetEnrolledStudentIDs(append(ids, studentID)); err != nil {
			return err
		}
		if err := tx.Model(&class).Update("enrolled_students", class.EnrolledStudents).Error; err != nil {
			return err
		}

		var user model.User
		if err := tx.First(&user, "id = ?", studentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return util.ErrUserNotFound
			}
			return err
		}
		classIDs := user.EnrolledClassIDList()
		for _, id := range classIDs {
			if id == classID {
				return nil
			}
		}
		if err := user.SetEnrolledClassIDList(append(classIDs, classID)); err != nil {
			return err
		}
		return tx.Model(&user).Update("enrolled_class_ids", user.EnrolledClassIDs).Error
	})
}
