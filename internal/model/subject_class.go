package model

import "encoding/json"

type SubjectClass struct {
	UUIDBase
	Grade             int             `gorm:"not null" json:"grade"`
	Section           string          `gorm:"size:10;not null" json:"section"`
	Subject           string          `gorm:"size:100;not null" json:"subject"`
	TeacherID         string          `gorm:"index;type:varchar(36);not null" json:"teacherId"`
	AcademicYear      string          `gorm:"size:20" json:"academicYear"`
	EnrolledStudents  json.RawMessage `gorm:"type:json" json:"enrolledStudents,omitempty"`
	IsActive          bool            `gorm:"default:true" json:"isActive"`
	Description       string          `gorm:"type:text" json:"description,omitempty"`
}

func (SubjectClass) TableName() string {
	return "subject_classes"
}

func (c *SubjectClass) SetEnrolledStudentIDs(ids []string) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	c.EnrolledStudents = raw
	return nil
}

// EnrolledStudentIDs 解析报名学生列表，空值返回空切片
func (c *SubjectClass) EnrolledStudentIDs() []string {
	if len(c.EnrolledStudents) == 0 {
		return nil
	}
	var ids []string
	if err := json.Unmarshal(c.EnrolledStudents, &ids); err != nil {
		return nil
	}
	return ids
}
