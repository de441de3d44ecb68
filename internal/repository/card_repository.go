package repository

import (
	"errors"

	"superr_bounty_backend/internal/model"
	"superr_bounty_backend/internal/util"

	"gorm.io/gorm"
)

type CardRepository struct {
	DB *gorm.DB
}

func NewCardRepository(db *gorm.DB) *CardRepository {
	return &CardRepository{DB: db}
}

func (r *CardRepository) Create(card *model.Card) error {
	return r.DB.Create(card).Error
}

func (r *CardRepository) FindByID(id string) (*model.Card, error) {
	var card model.Card
	err := r.DB.First(&card, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCardNotFound
	}
	return &card, err
}

func (r *CardRepository) FindByIDs(ids []string) ([]model.Card, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var cards []model.Card
	err := r.DB.Where("id IN ?", ids).Find(&cards).Error
	return cards, err
}

func (r *CardRepository) FindByOwner(ownerID string) ([]model.Card, error) {
	var cards []model.Card
	err := r.DB.Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&cards).Error
	return cards, err
}

func (r *CardRepository) Update(card *model.Card) error {
	return r.DB.Save(card).Error
}

func (r *CardRepository) Delete(id string) error {
	return r.DB.Delete(&model.Card{}, "id = ?", id).Error
}
