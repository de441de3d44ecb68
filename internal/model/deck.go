package model

import "encoding/json"

type Deck struct {
	UUIDBase
	OwnerID     string          `gorm:"index;type:varchar(36)" json:"ownerId"`
	Title       string          `gorm:"size:255;not null" json:"title"`
	Description string          `gorm:"type:text" json:"description,omitempty"`
	CoverImage  string          `gorm:"size:512" json:"coverImage,omitempty"`
	CardIDs     json.RawMessage `gorm:"type:json" json:"cardIds"`
}

func (Deck) TableName() string {
	return "decks"
}

// CardIDList 解析卡片顺序列表
func (d *Deck) CardIDList() []string {
	if len(d.CardIDs) == 0 {
		return nil
	}
	var ids []string
	if err := json.Unmarshal(d.CardIDs, &ids); err != nil {
		return nil
	}
	return ids
}

func (d *Deck) SetCardIDList(ids []string) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	d.CardIDs = raw
	return nil
}
