package service

import (
	"superr_bounty_backend/internal/model"
	"superr_bounty_backend/internal/repository"
	"superr_bounty_backend/internal/util"
)

type ClassService struct {
	ClassRepo *repository.SubjectClassRepository
	UserRepo  *repository.UserRepository
}

func NewClassService(classRepo *repository.SubjectClassRepository, userRepo *repository.UserRepository) *ClassService {
	return &ClassService{
		ClassRepo: classRepo,
		UserRepo:  userRepo,
	}
}

func (s *ClassService) Create(teacherID string, class *model.SubjectClass) error {
	class.TeacherID = teacherID
	class.IsActive = true
	return s.ClassRepo.Create(class)
}

func (s *ClassService) Get(id string) (*model.SubjectClass, error) {
	return s.ClassRepo.FindByID(id)
}

func (s *ClassService) ListForTeacher(teacherID string) ([]model.SubjectClass, error) {
	return s.ClassRepo.FindByTeacher(teacherID)
}

func (s *ClassService) Enroll(classID, studentID string) error {
	if _, err := s.UserRepo.FindByID(studentID); err != nil {
		return err
	}
	return s.ClassRepo.EnrollStudent(classID, studentID)
}

// Roster 班级名单展开成用户列表
func (s *ClassService) Roster(classID string) ([]model.User, error) {
	class, err := s.ClassRepo.FindByID(classID)
	if err != nil {
		return nil, err
	}
	return s.UserRepo.FindByIDs(class.EnrolledStudentIDs())
}

func (s *ClassService) Update(teacherID string, class *model.SubjectClass) error {
	existing, err := s.ClassRepo.FindByID(class.ID)
	if err != nil {
		return err
	}
	if existing.TeacherID != teacherID {
		return util.ErrPermissionDenied
	}
	class.TeacherID = existing.TeacherID
	return s.ClassRepo.Update(class)
}
