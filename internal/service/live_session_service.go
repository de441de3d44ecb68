package service

import (
	"context"

	"superr_bounty_backend/internal/live"
	"superr_bounty_backend/internal/model"
	"superr_bounty_backend/internal/repository"
	"superr_bounty_backend/internal/util"
)

// LiveSessionService 把仓储层适配成直播运行时要的 Store，
// 并做接入前的状态和权限校验
type LiveSessionService struct {
	SessionRepo *repository.SessionRepository
	ClassRepo   *repository.SubjectClassRepository
	DeckRepo    *repository.DeckRepository
	CardRepo    *repository.CardRepository
	UserRepo    *repository.UserRepository
}

func NewLiveSessionService(
	sessionRepo *repository.SessionRepository,
	classRepo *repository.SubjectClassRepository,
	deckRepo *repository.DeckRepository,
	cardRepo *repository.CardRepository,
	userRepo *repository.UserRepository,
) *LiveSessionService {
	return &LiveSessionService{
		SessionRepo: sessionRepo,
		ClassRepo:   classRepo,
		DeckRepo:    deckRepo,
		CardRepo:    cardRepo,
		UserRepo:    userRepo,
	}
}

var _ live.Store = (*LiveSessionService)(nil)

func (s *LiveSessionService) GetSession(ctx context.Context, id string) (*model.Session, error) {
	return s.SessionRepo.FindByID(id)
}

func (s *LiveSessionService) GetDecksByIDs(ctx context.Context, ids []string) ([]*model.Deck, error) {
	decks, err := s.DeckRepo.FindByIDs(ids)
	if err != nil {
		return nil, err
	}
	// 运行时按会话里的 deck 顺序消费
	byID := make(map[string]*model.Deck, len(decks))
	for i := range decks {
		byID[decks[i].ID] = &decks[i]
	}
	ordered := make([]*model.Deck, 0, len(ids))
	for _, id := range ids {
		if deck, ok := byID[id]; ok {
			ordered = append(ordered, deck)
		}
	}
	return ordered, nil
}

func (s *LiveSessionService) GetCardsByIDs(ctx context.Context, ids []string) ([]*model.Card, error) {
	cards, err := s.CardRepo.FindByIDs(ids)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Card, 0, len(cards))
	for i := range cards {
		out = append(out, &cards[i])
	}
	return out, nil
}

func (s *LiveSessionService) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.UserRepo.FindByID(id)
}

func (s *LiveSessionService) MarkSessionCompleted(ctx context.Context, id string) error {
	return s.SessionRepo.UpdateStatus(id, model.SessionCompleted)
}

// SessionCards 按会话的 deck 顺序展开全部卡片，REST 镜像接口用
func (s *LiveSessionService) SessionCards(ctx context.Context, sessionID string) ([]*model.Card, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	decks, err := s.GetDecksByIDs(ctx, session.DeckIDList())
	if err != nil {
		return nil, err
	}
	var cardIDs []string
	for _, deck := range decks {
		cardIDs = append(cardIDs, deck.CardIDList()...)
	}
	cards, err := s.GetCardsByIDs(ctx, cardIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*model.Card, len(cards))
	for _, card := range cards {
		byID[card.ID] = card
	}
	ordered := make([]*model.Card, 0, len(cardIDs))
	for _, id := range cardIDs {
		if card, ok := byID[id]; ok {
			ordered = append(ordered, card)
		}
	}
	return ordered, nil
}

// Authorize 接入直播前的检查：会话在进行中（教师接入视为开播），
// 教师必须是班级老师，学生必须在班级名单里。
func (s *LiveSessionService) Authorize(sessionID string, user *model.User) (live.Role, error) {
	session, err := s.SessionRepo.FindByID(sessionID)
	if err != nil {
		return "", err
	}
	class, err := s.ClassRepo.FindByID(session.ClassID)
	if err != nil {
		return "", err
	}

	if user.IsTeacher() {
		if class.TeacherID != user.ID {
			return "", util.ErrPermissionDenied
		}
		switch session.Status {
		case model.SessionInProgress:
		case model.SessionScheduled:
			if err := s.SessionRepo.UpdateStatus(sessionID, model.SessionInProgress); err != nil {
				return "", err
			}
		default:
			return "", util.ErrSessionNotLive
		}
		return live.RoleTeacher, nil
	}

	if session.Status != model.SessionInProgress {
		return "", util.ErrSessionNotLive
	}
	for _, id := range class.EnrolledStudentIDs() {
		if id == user.ID {
			return live.RoleStudent, nil
		}
	}
	return "", util.ErrPermissionDenied
}
