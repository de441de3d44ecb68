package live

import (
	"fmt"
	"math/rand"
	"sort"

	"superr_bounty_backend/internal/model"
)

type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// RosterEntry 在线名单里的一个学生
type RosterEntry struct {
	StudentID string `json:"studentId"`
	Name      string `json:"name"`
	JoinTime  int64  `json:"joinTime"`
	Rejoined  bool   `json:"rejoined"`
}

// HandRaiseEntry 一次举手，按举手时间排序下发
type HandRaiseEntry struct {
	StudentID string `json:"studentId"`
	Name      string `json:"name"`
	RaisedAt  int64  `json:"raisedAt"`
}

// State 会话的统一快照。每次变更整体替换，不做增量修改。
type State struct {
	Loading      bool             `json:"loading"`
	Error        string           `json:"error,omitempty"`
	SessionID    string           `json:"sessionId"`
	SessionTitle string           `json:"sessionTitle"`
	CardCount    int              `json:"cardCount"`
	CardIndex    int              `json:"cardIndex"`
	Card         *CardState       `json:"card,omitempty"`
	ActiveCount  int              `json:"activeCount"`
	Roster       []RosterEntry    `json:"roster"`
	HandRaises   []HandRaiseEntry `json:"handRaises"`
}

// CardState 当前卡片的交互状态。Response/Submitted 属于各自连接的观察者，
// Counts/Breakdown 是全场聚合，只对教师填充。
type CardState struct {
	CardID      string             `json:"cardId"`
	Kind        model.CardKind     `json:"kind"`
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	Content     model.CardContent  `json:"content"`
	Response    model.CardResponse `json:"response,omitempty"`
	Submitted   bool               `json:"submitted"`
	// Shuffle 只用于配对题，右列的展示顺序，构造时生成一次，
	// 聚合刷新时保留，切卡时丢弃
	Shuffle   []int                  `json:"shuffle,omitempty"`
	Counts    []int                  `json:"counts,omitempty"`
	Responses int                    `json:"responses,omitempty"`
	Breakdown *model.ResultBreakdown `json:"breakdown,omitempty"`
}

// cardOps 每种卡片的构造器和聚合刷新器，kind 为唯一分发键
type cardOps struct {
	newState func(card *model.Card, content model.CardContent, role Role) *CardState
	refresh  func(s *CardState, content model.CardContent, responses map[string]model.CardResponse, activeCount int)
}

var cardOpsTable = map[model.CardKind]cardOps{
	model.KindSimpleMCQ: {
		newState: func(card *model.Card, content model.CardContent, role Role) *CardState {
			s := baseCardState(card, content)
			if role == RoleStudent {
				s.Response = model.SimpleMCQResponse{}
			}
			return s
		},
		refresh: func(s *CardState, content model.CardContent, responses map[string]model.CardResponse, activeCount int) {
			mcq := content.(*model.SimpleMCQContent)
			s.Counts = model.SimpleMCQResponseCounts(mcq, responses)
			s.Responses = len(responses)
			b := model.CardBreakdown(content, responses, activeCount)
			s.Breakdown = &b
		},
	},
	model.KindYesNo: {
		newState: func(card *model.Card, content model.CardContent, role Role) *CardState {
			s := baseCardState(card, content)
			if role == RoleStudent {
				s.Response = model.YesNoResponse{}
			}
			return s
		},
		refresh: func(s *CardState, content model.CardContent, responses map[string]model.CardResponse, activeCount int) {
			s.Counts = model.YesNoResponseCounts(responses)
			s.Responses = len(responses)
		},
	},
	model.KindThisThat: {
		newState: func(card *model.Card, content model.CardContent, role Role) *CardState {
			s := baseCardState(card, content)
			if role == RoleStudent {
				s.Response = model.ThisThatResponse{}
			}
			return s
		},
		refresh: func(s *CardState, content model.CardContent, responses map[string]model.CardResponse, activeCount int) {
			// 二选一按两个选项计数，沿用 MCQ 的向量形状
			counts := make([]int, 2)
			for _, r := range responses {
				if tt, ok := r.(model.ThisThatResponse); ok && tt.SelectedOption != nil {
					if i := *tt.SelectedOption; i >= 0 && i < 2 {
						counts[i]++
					}
				}
			}
			s.Counts = counts
			s.Responses = len(responses)
		},
	},
	model.KindFillInTheBlanks: {
		newState: func(card *model.Card, content model.CardContent, role Role) *CardState {
			s := baseCardState(card, content)
			if role == RoleStudent {
				s.Response = model.FillInTheBlanksResponse{}
			}
			return s
		},
		refresh: func(s *CardState, content model.CardContent, responses map[string]model.CardResponse, activeCount int) {
			s.Responses = model.TextResponseCount(responses)
			b := model.CardBreakdown(content, responses, activeCount)
			s.Breakdown = &b
		},
	},
	model.KindShortAnswer: {
		newState: func(card *model.Card, content model.CardContent, role Role) *CardState {
			s := baseCardState(card, content)
			if role == RoleStudent {
				s.Response = model.ShortAnswerResponse{}
			}
			return s
		},
		refresh: func(s *CardState, content model.CardContent, responses map[string]model.CardResponse, activeCount int) {
			s.Responses = model.TextResponseCount(responses)
			b := model.CardBreakdown(content, responses, activeCount)
			s.Breakdown = &b
		},
	},
	model.KindMatchTheFollowing: {
		newState: func(card *model.Card, content model.CardContent, role Role) *CardState {
			s := baseCardState(card, content)
			match := content.(*model.MatchTheFollowingContent)
			s.Shuffle = rand.Perm(len(match.Pairs))
			if role == RoleStudent {
				connected := make([]int, len(match.Pairs))
				for i := range connected {
					connected[i] = model.UnconnectedPair
				}
				s.Response = model.MatchTheFollowingResponse{ConnectedPairs: connected}
			}
			return s
		},
		refresh: func(s *CardState, content model.CardContent, responses map[string]model.CardResponse, activeCount int) {
			s.Responses = len(responses)
			b := model.CardBreakdown(content, responses, activeCount)
			s.Breakdown = &b
		},
	},
	// 图片卡只展示，不收集回答
	model.KindImage: {
		newState: func(card *model.Card, content model.CardContent, role Role) *CardState {
			return baseCardState(card, content)
		},
	},
}

func baseCardState(card *model.Card, content model.CardContent) *CardState {
	return &CardState{
		CardID:      card.ID,
		Kind:        card.Kind,
		Title:       card.Title,
		Description: card.Description,
		Content:     content,
	}
}

// NewCardState 构造当前卡片的交互状态。不支持的卡片种类属于流程缺陷，直接 panic。
func NewCardState(card *model.Card, content model.CardContent, role Role) *CardState {
	ops, ok := cardOpsTable[card.Kind]
	if !ok {
		panic(fmt.Sprintf("live: card kind %q has no interaction state", card.Kind))
	}
	return ops.newState(card, content, role)
}

// RefreshCardState 用最新的聚合结果刷新卡片状态，保留观察者本地的
// Response/Submitted/Shuffle。
func RefreshCardState(s *CardState, content model.CardContent, responses map[string]model.CardResponse, activeCount int) {
	ops, ok := cardOpsTable[s.Kind]
	if !ok || ops.refresh == nil {
		return
	}
	ops.refresh(s, content, responses, activeCount)
}

// SupportedLiveKind 该种类能否进入直播交互
func SupportedLiveKind(kind model.CardKind) bool {
	_, ok := cardOpsTable[kind]
	return ok
}

func buildRoster(active map[string]ActiveEntry, names map[string]string) []RosterEntry {
	roster := make([]RosterEntry, 0, len(active))
	for id, entry := range active {
		roster = append(roster, RosterEntry{
			StudentID: id,
			Name:      names[id],
			JoinTime:  entry.JoinTime,
			Rejoined:  entry.Rejoined,
		})
	}
	sort.Slice(roster, func(i, j int) bool {
		if roster[i].JoinTime != roster[j].JoinTime {
			return roster[i].JoinTime < roster[j].JoinTime
		}
		return roster[i].StudentID < roster[j].StudentID
	})
	return roster
}

func buildHandRaises(hands map[string]int64, names map[string]string) []HandRaiseEntry {
	raises := make([]HandRaiseEntry, 0, len(hands))
	for id, ts := range hands {
		raises = append(raises, HandRaiseEntry{StudentID: id, Name: names[id], RaisedAt: ts})
	}
	sort.Slice(raises, func(i, j int) bool {
		if raises[i].RaisedAt != raises[j].RaisedAt {
			return raises[i].RaisedAt < raises[j].RaisedAt
		}
		return raises[i].StudentID < raises[j].StudentID
	})
	return raises
}
