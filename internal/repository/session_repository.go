package repository

import (
	"errors"
	"time"

	"superr_bounty_backend/internal/model"
	"superr_bounty_backend/internal/util"

	"gorm.io/gorm"
)

type SessionRepository struct {
	DB *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{DB: db}
}

func (r *SessionRepository) Create(session *model.Session) error {
	return r.DB.Create(session).Error
}

func (r *SessionRepository) FindByID(id string) (*model.Session, error) {
	var session model.Session
	err := r.DB.First(&session, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrSessionNotFound
	}
	return &session, err
}

// FindByCode 按六位加入码找未结束的会话
func (r *SessionRepository) FindByCode(code string) (*model.Session, error) {
	var session model.Session
	err := r.DB.Where("code = ? AND status IN ?", code,
		[]model.SessionStatus{model.SessionScheduled, model.SessionInProgress}).
		Order("start_time DESC").
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrSessionNotFound
	}
	return &session, err
}

func (r *SessionRepository) FindByClass(classID string) ([]model.Session, error) {
	var sessions []model.Session
	err := r.DB.Where("class_id = ?", classID).
		Order("start_time ASC").
		Find(&sessions).Error
	return sessions, err
}

func (r *SessionRepository) FindByClassIDs(classIDs []string) ([]model.Session, error) {
	if len(classIDs) == 0 {
		return nil, nil
	}
	var sessions []model.Session
	err := r.DB.Where("class_id IN ?", classIDs).
		Order("start_time ASC").
		Find(&sessions).Error
	return sessions, err
}

func (r *SessionRepository) FindByStatus(status model.SessionStatus) ([]model.Session, error) {
	var sessions []model.Session
	err := r.DB.Where("status = ?", status).
		Order("start_time ASC").
		Find(&sessions).Error
	return sessions, err
}

func (r *SessionRepository) FindInRange(classIDs []string, from, to time.Time) ([]model.Session, error) {
	if len(classIDs) == 0 {
		return nil, nil
	}
	var sessions []model.Session
	err := r.DB.Where("class_id IN ? AND start_time >= ? AND start_time < ?", classIDs, from, to).
		Order("start_time ASC").
		Find(&sessions).Error
	return sessions, err
}

func (r *SessionRepository) Update(session *model.Session) error {
	return r.DB.Save(session).Error
}

func (r *SessionRepository) UpdateStatus(id string, status model.SessionStatus) error {
	return r.DB.Model(&model.Session{}).
		Where("id = ?", id).
		Update("status", status).
		Error
}

func (r *SessionRepository) Delete(id string) error {
	return r.DB.Delete(&model.Session{}, "id = ?", id).Error
}

// AddDeck 把 deck 追加进会话的顺序列表。列表是整列 JSON，
// 读改写必须在事务里，避免并发编辑互相覆盖。
func (r *SessionRepository) AddDeck(sessionID, deckID string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var session model.Session
		if err := tx.First(&session, "id = ?", sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return util.ErrSessionNotFound
			}
			return err
		}
		ids := session.DeckIDList()
		for _, id := range ids {
			if id == deckID {
				return nil
			}
		}
		if err := session.SetDeckIDList(append(ids, deckID)); err != nil {
			return err
		}
		return tx.Model(&session).Update("deck_ids", session.DeckIDs).Error
	})
}

// RemoveDeck 从会话的顺序列表里摘掉 deck，其余顺序不动
func (r *SessionRepository) RemoveDeck(sessionID, deckID string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var session model.Session
		if err := tx.First(&session, "id = ?", sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return util.ErrSessionNotFound
			}
			return err
		}
		ids := session.DeckIDList()
		kept := make([]string, 0, len(ids))
		for _, id := range ids {
			if id != deckID {
				kept = append(kept, id)
			}
		}
		if len(kept) == len(ids) {
			return nil
		}
		if err := session.SetDeckIDList(kept); err != nil {
			return err
		}
		return tx.Model(&session).Update("deck_ids", session.DeckIDs).Error
	})
}
