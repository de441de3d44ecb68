package repository

import (
	"errors"

	"superr_bounty_backend/internal/model"
	"superr_bounty_backend/internal/util"

	"gorm.io/gorm"
)

type DeckRepository struct {
	DB *gorm.DB
}

func NewDeckRepository(db *gorm.DB) *DeckRepository {
	return &DeckRepository{DB: db}
}

func (r *DeckRepository) Create(deck *model.Deck) error {
	return r.DB.Create(deck).Error
}

func (r *DeckRepository) FindByID(id string) (*model.Deck, error) {
	var deck model.Deck
	err := r.DB.First(&deck, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrDeckNotFound
	}
	return &deck, err
}

func (r *DeckRepository) FindByIDs(ids []string) ([]model.Deck, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var decks []model.Deck
	err := r.DB.Where("id IN ?", ids).Find(&decks).Error
	return decks, err
}

func (r *DeckRepository) FindByOwner(ownerID string) ([]model.Deck, error) {
	var decks []model.Deck
	err := r.DB.Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&decks).Error
	return decks, err
}

func (r *DeckRepository) Update(deck *model.Deck) error {
	return r.DB.Save(deck).Error
}

func (r *DeckRepository) Delete(id string) error {
	return r.DB.Delete(&model.Deck{}, "id = ?", id).Error
}

// AddCard 卡片追加进 deck 的顺序列表，和会话的 deck 列表同一套事务写法
func (r *DeckRepository) AddCard(deckID, cardID string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var deck model.Deck
		if err := tx.First(&deck, "id = ?", deckID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return util.ErrDeckNotFound
			}
			return err
		}
		ids := deck.CardIDList()
		for _, id := range ids {
			if id == cardID {
				return nil
			}
		}
		if err := deck.SetCardIDList(append(ids, cardID)); err != nil {
			return err
		}
		return tx.Model(&deck).Update("card_ids", deck.CardIDs).Error
	})
}

func (r *DeckRepository) RemoveCard(deckID, cardID string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var deck model.Deck
		if err := tx.First(&deck, "id = ?", deckID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return util.ErrDeckNotFound
			}
			return err
		}
		ids := deck.CardIDList()
		kept := make([]string, 0, len(ids))
		for _, id := range ids {
			if id != cardID {
				kept = append(kept, id)
			}
		}
		if len(kept) == len(ids) {
			return nil
		}
		if err := deck.SetCardIDList(kept); err != nil {
			return err
		}
		return tx.Model(&deck).Update("card_ids", deck.CardIDs).Error
	})
}
