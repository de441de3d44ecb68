package model

import (
	"encoding/json"
	"time"
)

type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
)

type User struct {
	UUIDBase
	Email             string          `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password          string          `gorm:"size:255;not null" json:"-"`
	Name              string          `gorm:"size:255;not null" json:"name"`
	Role              UserRole        `gorm:"size:20;not null;default:'student'" json:"role"`
	ProfilePictureURL string          `gorm:"size:512" json:"profilePictureUrl,omitempty"`
	Bio               string          `gorm:"type:text" json:"bio,omitempty"`
	Grade             int             `gorm:"default:0" json:"grade,omitempty"`
	EnrolledClassIDs  json.RawMessage `gorm:"type:json" json:"enrolledClassIds,omitempty"`
	Subjects          json.RawMessage `gorm:"type:json" json:"subjects,omitempty"`
	LastLogin         *time.Time      `json:"lastLogin,omitempty"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsTeacher() bool {
	return u.Role == Teacher
}

// EnrolledClassIDList 解析已报名班级列表
func (u *User) EnrolledClassIDList() []string {
	if len(u.EnrolledClassIDs) == 0 {
		return nil
	}
	var ids []string
	if err := json.Unmarshal(u.EnrolledClassIDs, &ids); err != nil {
		return nil
	}
	return ids
}

func (u *User) SetEnrolledClassIDList(ids []string) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	u.EnrolledClassIDs = raw
	return nil
}
