package service

import (
	"superr_bounty_backend/internal/model"
	"superr_bounty_backend/internal/repository"
	"superr_bounty_backend/internal/util"
)

type CardService struct {
	CardRepo *repository.CardRepository
}

func NewCardService(cardRepo *repository.CardRepository) *CardService {
	return &CardService{CardRepo: cardRepo}
}

// Create 内容字段先按 kind 解码一遍，进库的内容保证是合法变体
func (s *CardService) Create(ownerID string, card *model.Card) error {
	card.OwnerID = ownerID
	if _, err := card.DecodeContent(); err != nil {
		return err
	}
	return s.CardRepo.Create(card)
}

func (s *CardService) Get(id string) (*model.Card, error) {
	return s.CardRepo.FindByID(id)
}

func (s *CardService) ListForOwner(ownerID string) ([]model.Card, error) {
	return s.CardRepo.FindByOwner(ownerID)
}

func (s *CardService) Update(ownerID string, card *model.Card) error {
	existing, err := s.CardRepo.FindByID(card.ID)
	if err != nil {
		return err
	}
	if existing.OwnerID != ownerID {
		return util.ErrPermissionDenied
	}
	if _, err := card.DecodeContent(); err != nil {
		return err
	}
	card.OwnerID = existing.OwnerID
	return s.CardRepo.Update(card)
}

func (s *CardService) Delete(ownerID, id string) error {
	existing, err := s.CardRepo.FindByID(id)
	if err != nil {
		return err
	}
	if existing.OwnerID != ownerID {
		return util.ErrPermissionDenied
	}
	return s.CardRepo.Delete(id)
}
