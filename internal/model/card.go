package model

import (
	"encoding/json"
	"fmt"
)

// CardKind 卡片类型，决定 content 的结构和响应的编解码方式
type CardKind string

const (
	KindSimpleMCQ         CardKind = "SimpleMCQ"
	KindFillInTheBlanks   CardKind = "FillInTheBlanks"
	KindImage             CardKind = "Image"
	KindLinkToFile        CardKind = "LinkToFile"
	KindMatchTheFollowing CardKind = "MatchTheFollowing"
	KindShortAnswer       CardKind = "ShortAnswer"
	KindOneWord           CardKind = "OneWord"
	KindYesNo             CardKind = "YesNo"
	KindThisThat          CardKind = "ThisThat"
	KindOpenEnded         CardKind = "OpenEnded"
	KindSimpleVote        CardKind = "SimpleVote"
)

type Card struct {
	UUIDBase
	OwnerID     string          `gorm:"index;type:varchar(36)" json:"ownerId"`
	Kind        CardKind        `gorm:"size:50;not null;index" json:"kind"`
	Title       string          `gorm:"size:255" json:"title"`
	Description string          `gorm:"type:text" json:"description,omitempty"`
	Content     json.RawMessage `gorm:"type:json;not null" json:"content"`
}

func (Card) TableName() string {
	return "cards"
}

// CardContent 是 11 种内容变体的标记接口，变体与 Kind 一一对应。
type CardContent interface {
	Kind() CardKind
}

type SimpleMCQContent struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
}

func (SimpleMCQContent) Kind() CardKind { return KindSimpleMCQ }

type FillInTheBlanksContent struct {
	BeforeText string `json:"beforeText"`
	AfterText  string `json:"afterText"`
	Answer     string `json:"answer"`
}

func (FillInTheBlanksContent) Kind() CardKind { return KindFillInTheBlanks }

type ImageContent struct {
	ImageURL string `json:"imageUrl"`
}

func (ImageContent) Kind() CardKind { return KindImage }

type LinkToFileContent struct {
	FileURL  string `json:"fileUrl"`
	FileType string `json:"fileType"`
}

func (LinkToFileContent) Kind() CardKind { return KindLinkToFile }

type MatchPair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

type MatchTheFollowingContent struct {
	Question string      `json:"question"`
	Pairs    []MatchPair `json:"pairs"`
}

func (MatchTheFollowingContent) Kind() CardKind { return KindMatchTheFollowing }

type ShortAnswerContent struct {
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	MaxLength int    `json:"maxLength"`
}

func (ShortAnswerContent) Kind() CardKind { return KindShortAnswer }

type OneWordContent struct {
	Prompt        string `json:"prompt"`
	CorrectAnswer string `json:"correctAnswer"`
}

func (OneWordContent) Kind() CardKind { return KindOneWord }

type YesNoContent struct {
	Question string `json:"question"`
}

func (YesNoContent) Kind() CardKind { return KindYesNo }

type ThisThatContent struct {
	OptionA string `json:"optionA"`
	OptionB string `json:"optionB"`
}

func (ThisThatContent) Kind() CardKind { return KindThisThat }

type OpenEndedContent struct {
	Question string `json:"question"`
}

func (OpenEndedContent) Kind() CardKind { return KindOpenEnded }

type SimpleVoteContent struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

func (SimpleVoteContent) Kind() CardKind { return KindSimpleVote }

var contentFactories = map[CardKind]func() CardContent{
	KindSimpleMCQ:         func() CardContent { return &SimpleMCQContent{} },
	KindFillInTheBlanks:   func() CardContent { return &FillInTheBlanksContent{} },
	KindImage:             func() CardContent { return &ImageContent{} },
	KindLinkToFile:        func() CardContent { return &LinkToFileContent{} },
	KindMatchTheFollowing: func() CardContent { return &MatchTheFollowingContent{} },
	KindShortAnswer:       func() CardContent { return &ShortAnswerContent{} },
	KindOneWord:           func() CardContent { return &OneWordContent{} },
	KindYesNo:             func() CardContent { return &YesNoContent{} },
	KindThisThat:          func() CardContent { return &ThisThatContent{} },
	KindOpenEnded:         func() CardContent { return &OpenEndedContent{} },
	KindSimpleVote:        func() CardContent { return &SimpleVoteContent{} },
}

// DecodeContent 按 Kind 将 content JSON 解析为对应的变体
func (c *Card) DecodeContent() (CardContent, error) {
	factory, ok := contentFactories[c.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown card kind: %s", c.Kind)
	}
	content := factory()
	if err := json.Unmarshal(c.Content, content); err != nil {
		return nil, fmt.Errorf("decode %s content: %w", c.Kind, err)
	}
	return content, nil
}

// SetContent 序列化变体并同步 Kind
func (c *Card) SetContent(content CardContent) error {
	raw, err := json.Marshal(content)
	if err != nil {
		return err
	}
	c.Kind = content.Kind()
	c.Content = raw
	return nil
}
