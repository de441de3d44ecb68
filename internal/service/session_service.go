package service

import (
	"time"

	"superr_bounty_backend/internal/model"
	"superr_bounty_backend/internal/repository"
	"superr_bounty_backend/internal/util"
)

type SessionService struct {
	SessionRepo *repository.SessionRepository
	ClassRepo   *repository.SubjectClassRepository
	DeckRepo    *repository.DeckRepository
}

func NewSessionService(sessionRepo *repository.SessionRepository, classRepo *repository.SubjectClassRepository, deckRepo *repository.DeckRepository) *SessionService {
	return &SessionService{
		SessionRepo: sessionRepo,
		ClassRepo:   classRepo,
		DeckRepo:    deckRepo,
	}
}

// Create 建会话。加入码只在创建时生成一次，之后不再改动。
func (s *SessionService) Create(teacherID string, session *model.Session) error {
	class, err := s.ClassRepo.FindByID(session.ClassID)
	if err != nil {
		return err
	}
	if class.TeacherID != teacherID {
		return util.ErrPermissionDenied
	}
	if session.Code == "" {
		session.Code = model.GenerateSessionCode()
	}
	if session.Status == "" {
		session.Status = model.SessionScheduled
	}
	if session.PresentationMode == "" {
		session.PresentationMode = model.InstructorLed
	}
	return s.SessionRepo.Create(session)
}

func (s *SessionService) Get(id string) (*model.Session, error) {
	return s.SessionRepo.FindByID(id)
}

func (s *SessionService) ListByClass(classID string) ([]model.Session, error) {
	return s.SessionRepo.FindByClass(classID)
}

// ListByStatus 按状态列全部会话，教师侧的运营视图
func (s *SessionService) ListByStatus(status model.SessionStatus) ([]model.Session, error) {
	switch status {
	case model.SessionScheduled, model.SessionInProgress, model.SessionCompleted, model.SessionCancelled:
	default:
		return nil, util.ErrInvalidRequest
	}
	return s.SessionRepo.FindByStatus(status)
}

// ListInRange 当前用户可见、开始时间落在 [from, to) 的会话
func (s *SessionService) ListInRange(user *model.User, from, to time.Time) ([]model.Session, error) {
	if !to.After(from) {
		return nil, util.ErrInvalidRequest
	}
	classIDs, err := s.classIDsForUser(user)
	if err != nil {
		return nil, err
	}
	return s.SessionRepo.FindInRange(classIDs, from, to)
}

func (s *SessionService) Update(teacherID string, session *model.Session) error {
	existing, err := s.SessionRepo.FindByID(session.ID)
	if err != nil {
		return err
	}
	if err := s.requireOwner(teacherID, existing); err != nil {
		return err
	}
	// 加入码不可变
	session.Code = existing.Code
	return s.SessionRepo.Update(session)
}

func (s *SessionService) Delete(teacherID, id string) error {
	existing, err := s.SessionRepo.FindByID(id)
	if err != nil {
		return err
	}
	if err := s.requireOwner(teacherID, existing); err != nil {
		return err
	}
	return s.SessionRepo.Delete(id)
}

func (s *SessionService) AddDeck(teacherID, sessionID, deckID string) error {
	session, err := s.SessionRepo.FindByID(sessionID)
	if err != nil {
		return err
	}
	if err := s.requireOwner(teacherID, session); err != nil {
		return err
	}
	if _, err := s.DeckRepo.FindByID(deckID); err != nil {
		return err
	}
	return s.SessionRepo.AddDeck(sessionID, deckID)
}

func (s *SessionService) RemoveDeck(teacherID, sessionID, deckID string) error {
	session, err := s.SessionRepo.FindByID(sessionID)
	if err != nil {
		return err
	}
	if err := s.requireOwner(teacherID, session); err != nil {
		return err
	}
	return s.SessionRepo.RemoveDeck(sessionID, deckID)
}

// VerifyCode 校验会话的加入码
func (s *SessionService) VerifyCode(sessionID, code string) error {
	session, err := s.SessionRepo.FindByID(sessionID)
	if err != nil {
		return err
	}
	if !session.VerifyCode(code) {
		return util.ErrInvalidSessionCode
	}
	return nil
}

// JoinByCode 学生凭加入码找到会话并报进班级
func (s *SessionService) JoinByCode(studentID, code string) (*model.Session, error) {
	session, err := s.SessionRepo.FindByCode(code)
	if err != nil {
		return nil, err
	}
	if err := s.ClassRepo.EnrollStudent(session.ClassID, studentID); err != nil {
		return nil, err
	}
	return session, nil
}

// StartLive 教师把会话置为进行中，直播接入要求这个状态
func (s *SessionService) StartLive(teacherID, sessionID string) (*model.Session, error) {
	session, err := s.SessionRepo.FindByID(sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwner(teacherID, session); err != nil {
		return nil, err
	}
	if session.Status == model.SessionCompleted || session.Status == model.SessionCancelled {
		return nil, util.ErrSessionNotLive
	}
	if err := s.SessionRepo.UpdateStatus(sessionID, model.SessionInProgress); err != nil {
		return nil, err
	}
	session.Status = model.SessionInProgress
	return session, nil
}

func (s *SessionService) EndLive(teacherID, sessionID string) error {
	session, err := s.SessionRepo.FindByID(sessionID)
	if err != nil {
		return err
	}
	if err := s.requireOwner(teacherID, session); err != nil {
		return err
	}
	return s.SessionRepo.UpdateStatus(sessionID, model.SessionCompleted)
}

// SessionBuckets 今天 / 之后 / 之前三栏
type SessionBuckets struct {
	Today    []model.Session `json:"today"`
	Upcoming []model.Session `json:"upcoming"`
	Past     []model.Session `json:"past"`
}

// BucketsForUser 按自然日把用户可见的会话分三栏。
// 教师看自己班级的，学生看已报名班级的。
func (s *SessionService) BucketsForUser(user *model.User, now time.Time) (*SessionBuckets, error) {
	classIDs, err := s.classIDsForUser(user)
	if err != nil {
		return nil, err
	}
	sessions, err := s.SessionRepo.FindByClassIDs(classIDs)
	if err != nil {
		return nil, err
	}
	return BucketSessions(sessions, now), nil
}

// BucketSessions 分栏本体，日界用 now 所在时区的自然日
func BucketSessions(sessions []model.Session, now time.Time) *SessionBuckets {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	buckets := &SessionBuckets{
		Today:    []model.Session{},
		Upcoming: []model.Session{},
		Past:     []model.Session{},
	}
	for _, session := range sessions {
		start := session.StartTime.In(now.Location())
		switch {
		case start.Before(dayStart):
			buckets.Past = append(buckets.Past, session)
		case start.Before(dayEnd):
			buckets.Today = append(buckets.Today, session)
		default:
			buckets.Upcoming = append(buckets.Upcoming, session)
		}
	}
	return buckets
}

func (s *SessionService) classIDsForUser(user *model.User) ([]string, error) {
	if user.IsTeacher() {
		classes, err := s.ClassRepo.FindByTeacher(user.ID)
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(classes))
		for _, class := range classes {
			ids = append(ids, class.ID)
		}
		return ids, nil
	}

	return user.EnrolledClassIDList(), nil
}

func (s *SessionService) requireOwner(teacherID string, session *model.Session) error {
	class, err := s.ClassRepo.FindByID(session.ClassID)
	if err != nil {
		return err
	}
	if class.TeacherID != teacherID {
		return util.ErrPermissionDenied
	}
	return nil
}
