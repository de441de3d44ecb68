package service

import (
	"superr_bounty_backend/internal/model"
	"superr_bounty_backend/internal/repository"
	"superr_bounty_backend/internal/util"
)

type DeckService struct {
	DeckRepo *repository.DeckRepository
	CardRepo *repository.CardRepository
}

func NewDeckService(deckRepo *repository.DeckRepository, cardRepo *repository.CardRepository) *DeckService {
	return &DeckService{
		DeckRepo: deckRepo,
		CardRepo: cardRepo,
	}
}

func (s *DeckService) Create(ownerID string, deck *model.Deck) error {
	deck.OwnerID = ownerID
	return s.DeckRepo.Create(deck)
}

func (s *DeckService) Get(id string) (*model.Deck, error) {
	return s.DeckRepo.FindByID(id)
}

// GetWithCards 取 deck 和按顺序展开的卡片
func (s *DeckService) GetWithCards(id string) (*model.Deck, []model.Card, error) {
	deck, err := s.DeckRepo.FindByID(id)
	if err != nil {
		return nil, nil, err
	}
	ids := deck.CardIDList()
	cards, err := s.CardRepo.FindByIDs(ids)
	if err != nil {
		return nil, nil, err
	}

	byID := make(map[string]model.Card, len(cards))
	for _, card := range cards {
		byID[card.ID] = card
	}
	ordered := make([]model.Card, 0, len(ids))
	for _, cardID := range ids {
		if card, ok := byID[cardID]; ok {
			ordered = append(ordered, card)
		}
	}
	return deck, ordered, nil
}

func (s *DeckService) ListForOwner(ownerID string) ([]model.Deck, error) {
	return s.DeckRepo.FindByOwner(ownerID)
}

func (s *DeckService) Update(ownerID string, deck *model.Deck) error {
	existing, err := s.DeckRepo.FindByID(deck.ID)
	if err != nil {
		return err
	}
	if existing.OwnerID != ownerID {
		return util.ErrPermissionDenied
	}
	deck.OwnerID = existing.OwnerID
	return s.DeckRepo.Update(deck)
}

func (s *DeckService) Delete(ownerID, id string) error {
	existing, err := s.DeckRepo.FindByID(id)
	if err != nil {
		return err
	}
	if existing.OwnerID != ownerID {
		return util.ErrPermissionDenied
	}
	return s.DeckRepo.Delete(id)
}

func (s *DeckService) AddCard(ownerID, deckID, cardID string) error {
	deck, err := s.DeckRepo.FindByID(deckID)
	if err != nil {
		return err
	}
	if deck.OwnerID != ownerID {
		return util.ErrPermissionDenied
	}
	if _, err := s.CardRepo.FindByID(cardID); err != nil {
		return err
	}
	return s.DeckRepo.AddCard(deckID, cardID)
}

func (s *DeckService) RemoveCard(ownerID, deckID, cardID string) error {
	deck, err := s.DeckRepo.FindByID(deckID)
	if err != nil {
		return err
	}
	if deck.OwnerID != ownerID {
		return util.ErrPermissionDenied
	}
	return s.DeckRepo.RemoveCard(deckID, cardID)
}
