package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"superr_bounty_backend/internal/live"
	"superr_bounty_backend/internal/model"
	"superr_bounty_backend/internal/util"

	"github.com/gorilla/websocket"
)

type hubStore struct {
	session *model.Session
	deck    *model.Deck
	card    *model.Card
	user    *model.User
}

func (f *hubStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	if id != f.session.ID {
		return nil, util.ErrSessionNotFound
	}
	return f.session, nil
}

func (f *hubStore) GetDecksByIDs(ctx context.Context, ids []string) ([]*model.Deck, error) {
	return []*model.Deck{f.deck}, nil
}

func (f *hubStore) GetCardsByIDs(ctx context.Context, ids []string) ([]*model.Card, error) {
	return []*model.Card{f.card}, nil
}

func (f *hubStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	return f.user, nil
}

func (f *hubStore) MarkSessionCompleted(ctx context.Context, id string) error {
	return nil
}

func newHubStore(t *testing.T) *hubStore {
	t.Helper()
	session := &model.Session{Title: "课前小测", Status: model.SessionInProgress}
	session.ID = "sess1"
	if err := session.SetDeckIDList([]string{"deck1"}); err != nil {
		t.Fatal(err)
	}
	deck := &model.Deck{Title: "第一课"}
	deck.ID = "deck1"
	if err := deck.SetCardIDList([]string{"c1"}); err != nil {
		t.Fatal(err)
	}
	card := &model.Card{}
	card.ID = "c1"
	if err := card.SetContent(&model.SimpleMCQContent{
		Question:      "?",
		Options:       []string{"A", "B"},
		CorrectAnswer: 0,
	}); err != nil {
		t.Fatal(err)
	}
	user := &model.User{Name: "王老师", Role: model.Teacher}
	user.ID = "t1"
	return &hubStore{session: session, deck: deck, card: card, user: user}
}

// 下行协议约定：连接建立先收到一帧 loading 快照，加载完成后是完整状态
func TestServeLiveWsLoadingThenSnapshot(t *testing.T) {
	hub := NewLiveHub(live.NewManager(live.NewMemoryTree(), newHubStore(t)))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeLiveWs(w, r, "sess1", "t1", live.RoleTeacher)
	}))
	defer srv.Close()
	defer hub.Stop()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	type frame struct {
		Type string `json:"type"`
		Data struct {
			Loading      bool   `json:"loading"`
			SessionID    string `json:"sessionId"`
			SessionTitle string `json:"sessionTitle"`
			CardCount    int    `json:"cardCount"`
		} `json:"data"`
	}

	var first frame
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read loading frame: %v", err)
	}
	if first.Type != "STATE" || !first.Data.Loading || first.Data.SessionID != "sess1" {
		t.Fatalf("first frame = %+v, want loading snapshot", first)
	}

	var second frame
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("read state frame: %v", err)
	}
	if second.Type != "STATE" || second.Data.Loading {
		t.Fatalf("second frame = %+v, want loaded snapshot", second)
	}
	if second.Data.SessionTitle != "课前小测" || second.Data.CardCount != 1 {
		t.Fatalf("snapshot = %+v", second.Data)
	}
}
