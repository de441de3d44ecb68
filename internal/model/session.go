package model

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"time"
)

type PresentationMode string

const (
	InstructorLed PresentationMode = "instructor_led"
	SelfPaced     PresentationMode = "self_paced"
	Timed         PresentationMode = "timed"
	DefaultMode   PresentationMode = "default"
)

type SessionStatus string

const (
	SessionScheduled  SessionStatus = "scheduled"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionCancelled  SessionStatus = "cancelled"
)

type Session struct {
	UUIDBase
	ClassID              string           `gorm:"index;type:varchar(36);not null" json:"classId"`
	Title                string           `gorm:"size:255;not null" json:"title"`
	Description          string           `gorm:"type:text" json:"description,omitempty"`
	StartTime            time.Time        `gorm:"index" json:"startTime"`
	EndTime              time.Time        `json:"endTime"`
	DeckIDs              json.RawMessage  `gorm:"type:json" json:"deckIds"`
	PresentationMode     PresentationMode `gorm:"size:20;default:'instructor_led'" json:"presentationMode"`
	TimedDurationMinutes int              `gorm:"default:0" json:"timedDurationMinutes,omitempty"`
	Status               SessionStatus    `gorm:"size:20;index;default:'scheduled'" json:"status"`
	Code                 string           `gorm:"size:6;index" json:"code"`
}

func (Session) TableName() string {
	return "sessions"
}

// GenerateSessionCode 生成 6 位补零的加入码
func GenerateSessionCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		// crypto/rand 在此平台不可用时退化为时间种子
		return fmt.Sprintf("%06d", time.Now().UnixNano()%1000000)
	}
	return fmt.Sprintf("%06d", n.Int64())
}

func (s *Session) VerifyCode(input string) bool {
	return s.Code != "" && s.Code == input
}

// DeckIDList 解析会话的 deck 顺序列表
func (s *Session) DeckIDList() []string {
	if len(s.DeckIDs) == 0 {
		return nil
	}
	var ids []string
	if err := json.Unmarshal(s.DeckIDs, &ids); err != nil {
		return nil
	}
	return ids
}

func (s *Session) SetDeckIDList(ids []string) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	s.DeckIDs = raw
	return nil
}
