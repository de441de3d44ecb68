package live

import (
	"context"
	"errors"
	"sync"
	"testing"

	"superr_bounty_backend/internal/model"
	"superr_bounty_backend/internal/util"
)

type fakeStore struct {
	mu        sync.Mutex
	sessions  map[string]*model.Session
	decks     map[string]*model.Deck
	cards     map[string]*model.Card
	users     map[string]*model.User
	completed []string
}

func (f *fakeStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, util.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeStore) GetDecksByIDs(ctx context.Context, ids []string) ([]*model.Deck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Deck
	for _, id := range ids {
		if d, ok := f.decks[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeStore) GetCardsByIDs(ctx context.Context, ids []string) ([]*model.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Card
	for _, id := range ids {
		if c, ok := f.cards[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, util.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeStore) MarkSessionCompleted(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, id)
	return nil
}

func mustContent(t *testing.T, id string, content model.CardContent) *model.Card {
	t.Helper()
	card := &model.Card{}
	card.ID = id
	if err := card.SetContent(content); err != nil {
		t.Fatalf("SetContent(%s): %v", id, err)
	}
	return card
}

// newFakeStore 一个 deck 三张卡：选择题、配对题、图片
func newFakeStore(t *testing.T) *fakeStore {
	t.Helper()

	session := &model.Session{Title: "光合作用复习", Status: model.SessionInProgress}
	session.ID = "sess1"
	if err := session.SetDeckIDList([]string{"deck1"}); err != nil {
		t.Fatal(err)
	}

	deck := &model.Deck{Title: "第一课"}
	deck.ID = "deck1"
	if err := deck.SetCardIDList([]string{"c-mcq", "c-match", "c-img"}); err != nil {
		t.Fatal(err)
	}

	store := &fakeStore{
		sessions: map[string]*model.Session{"sess1": session},
		decks:    map[string]*model.Deck{"deck1": deck},
		cards: map[string]*model.Card{
			"c-mcq": mustContent(t, "c-mcq", &model.SimpleMCQContent{
				Question:      "叶绿体在哪里？",
				Options:       []string{"细胞核", "细胞质", "液泡"},
				CorrectAnswer: 1,
			}),
			"c-match": mustContent(t, "c-match", &model.MatchTheFollowingContent{
				Question: "连一连",
				Pairs: []model.MatchPair{
					{Left: "a", Right: "1"},
					{Left: "b", Right: "2"},
					{Left: "c", Right: "3"},
				},
			}),
			"c-img": mustContent(t, "c-img", &model.ImageContent{ImageURL: "http://x/leaf.png"}),
		},
		users: map[string]*model.User{},
	}
	for _, u := range []struct {
		id, name string
		role     model.UserRole
	}{
		{"t1", "王老师", model.Teacher},
		{"stu1", "小明", model.Student},
		{"stu2", "小红", model.Student},
	} {
		user := &model.User{Name: u.name, Role: u.role}
		user.ID = u.id
		store.users[u.id] = user
	}
	return store
}

// lastState 把快照通道排干，取最后一个
func lastState(v *Viewer) (State, bool) {
	var s State
	ok := false
	for {
		select {
		case st, open := <-v.Updates():
			if !open {
				return s, ok
			}
			s, ok = st, true
		default:
			return s, ok
		}
	}
}

func TestRuntimeLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(t)
	m := NewManager(NewMemoryTree(), store)

	teacher, err := m.Attach(ctx, "sess1", "t1", RoleTeacher)
	if err != nil {
		t.Fatalf("teacher attach: %v", err)
	}

	s, ok := lastState(teacher)
	if !ok {
		t.Fatal("teacher got no initial snapshot")
	}
	if s.SessionTitle != "光合作用复习" || s.CardCount != 3 || s.CardIndex != 0 {
		t.Fatalf("initial state = %+v", s)
	}
	if s.Card == nil || s.Card.Kind != model.KindSimpleMCQ {
		t.Fatalf("initial card = %+v", s.Card)
	}

	student, err := m.Attach(ctx, "sess1", "stu1", RoleStudent)
	if err != nil {
		t.Fatalf("student attach: %v", err)
	}

	s, _ = lastState(teacher)
	if s.ActiveCount != 1 || len(s.Roster) != 1 {
		t.Fatalf("teacher state after join = %+v", s)
	}
	if s.Roster[0].StudentID != "stu1" || s.Roster[0].Name != "小明" || s.Roster[0].Rejoined {
		t.Fatalf("roster entry = %+v", s.Roster[0])
	}

	// 学生端不下发名单，只有人数
	s, _ = lastState(student)
	if len(s.Roster) != 0 || s.ActiveCount != 1 {
		t.Fatalf("student state leaks roster: %+v", s)
	}

	// 举手：教师看全量，学生只看自己
	if err := student.RaiseHand(ctx); err != nil {
		t.Fatalf("RaiseHand: %v", err)
	}
	s, _ = lastState(teacher)
	if len(s.HandRaises) != 1 || s.HandRaises[0].StudentID != "stu1" {
		t.Fatalf("teacher hand raises = %+v", s.HandRaises)
	}
	s, _ = lastState(student)
	if len(s.HandRaises) != 1 || s.HandRaises[0].StudentID != "stu1" {
		t.Fatalf("student own hand raise = %+v", s.HandRaises)
	}

	if err := teacher.ResolveAllHands(ctx); err != nil {
		t.Fatalf("ResolveAllHands: %v", err)
	}
	s, _ = lastState(teacher)
	if len(s.HandRaises) != 0 {
		t.Fatalf("hand raises after resolve = %+v", s.HandRaises)
	}

	// 作答并提交
	sel := 1
	if err := student.UpdateResponse(model.SimpleMCQResponse{SelectedOption: &sel}); err != nil {
		t.Fatalf("UpdateResponse: %v", err)
	}
	if err := student.Submit(ctx); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := student.Submit(ctx); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("second Submit err = %v, want ErrAlreadySubmitted", err)
	}

	s, _ = lastState(teacher)
	if s.Card.Responses != 1 {
		t.Fatalf("teacher responses = %d, want 1", s.Card.Responses)
	}
	wantCounts := []int{0, 1, 0}
	for i := range wantCounts {
		if s.Card.Counts[i] != wantCounts[i] {
			t.Fatalf("counts = %v, want %v", s.Card.Counts, wantCounts)
		}
	}
	if s.Card.Breakdown == nil || s.Card.Breakdown.Correct != 1 {
		t.Fatalf("breakdown = %+v", s.Card.Breakdown)
	}

	// 学生断开：转入离席名单
	if err := student.Close(ctx); err != nil {
		t.Fatalf("student Close: %v", err)
	}
	s, _ = lastState(teacher)
	if s.ActiveCount != 0 {
		t.Fatalf("active count after leave = %d", s.ActiveCount)
	}

	// 重进带 rejoined 标记
	student, err = m.Attach(ctx, "sess1", "stu1", RoleStudent)
	if err != nil {
		t.Fatalf("rejoin attach: %v", err)
	}
	s, _ = lastState(teacher)
	if len(s.Roster) != 1 || !s.Roster[0].Rejoined {
		t.Fatalf("roster after rejoin = %+v", s.Roster)
	}

	// 教师收尾：标记完成，剩余观察者通道关闭
	if err := teacher.Close(ctx); err != nil {
		t.Fatalf("teacher Close: %v", err)
	}
	if len(store.completed) != 1 || store.completed[0] != "sess1" {
		t.Fatalf("completed = %v", store.completed)
	}
	for range student.Updates() {
	}
}

func TestAdvanceClampsToDeck(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryTree(), newFakeStore(t))

	teacher, err := m.Attach(ctx, "sess1", "t1", RoleTeacher)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := teacher.Advance(ctx); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}
	s, _ := lastState(teacher)
	if s.CardIndex != 2 {
		t.Fatalf("index after over-advance = %d, want 2", s.CardIndex)
	}
	if s.Card.Kind != model.KindImage {
		t.Fatalf("card kind = %s, want Image", s.Card.Kind)
	}

	for i := 0; i < 5; i++ {
		if err := teacher.Retreat(ctx); err != nil {
			t.Fatalf("Retreat: %v", err)
		}
	}
	s, _ = lastState(teacher)
	if s.CardIndex != 0 {
		t.Fatalf("index after over-retreat = %d, want 0", s.CardIndex)
	}
}

func TestStudentCannotNavigate(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryTree(), newFakeStore(t))

	if _, err := m.Attach(ctx, "sess1", "t1", RoleTeacher); err != nil {
		t.Fatalf("teacher attach: %v", err)
	}
	student, err := m.Attach(ctx, "sess1", "stu1", RoleStudent)
	if err != nil {
		t.Fatalf("student attach: %v", err)
	}

	if err := student.Advance(ctx); !errors.Is(err, util.ErrPermissionDenied) {
		t.Errorf("student Advance err = %v, want permission denied", err)
	}
	if err := student.ResolveAllHands(ctx); !errors.Is(err, util.ErrPermissionDenied) {
		t.Errorf("student ResolveAllHands err = %v, want permission denied", err)
	}
}

func TestSubmitMatchDeshuffles(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryTree(), newFakeStore(t))

	teacher, err := m.Attach(ctx, "sess1", "t1", RoleTeacher)
	if err != nil {
		t.Fatalf("teacher attach: %v", err)
	}
	if err := teacher.Advance(ctx); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	student, err := m.Attach(ctx, "sess1", "stu1", RoleStudent)
	if err != nil {
		t.Fatalf("student attach: %v", err)
	}
	s, _ := lastState(student)
	if s.Card == nil || s.Card.Kind != model.KindMatchTheFollowing {
		t.Fatalf("student card = %+v", s.Card)
	}
	shuffle := s.Card.Shuffle
	if len(shuffle) != 3 {
		t.Fatalf("shuffle = %v, want 3 slots", shuffle)
	}

	// 在打乱坐标系里把每个左项连到显示上正确的槽位，
	// 提交后存进树的应是恒等排列
	connected := make([]int, 3)
	copy(connected, shuffle)
	if err := student.UpdateResponse(model.MatchTheFollowingResponse{ConnectedPairs: connected}); err != nil {
		t.Fatalf("UpdateResponse: %v", err)
	}
	if err := student.Submit(ctx); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	s, _ = lastState(teacher)
	if s.Card.Breakdown == nil {
		t.Fatal("teacher breakdown missing")
	}
	if s.Card.Breakdown.Correct != 1 || s.Card.Breakdown.Incorrect != 0 {
		t.Fatalf("breakdown = %+v, want 1 correct", s.Card.Breakdown)
	}
}

func TestSubmitRejectsEmptyResponse(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryTree(), newFakeStore(t))

	if _, err := m.Attach(ctx, "sess1", "t1", RoleTeacher); err != nil {
		t.Fatalf("teacher attach: %v", err)
	}
	student, err := m.Attach(ctx, "sess1", "stu1", RoleStudent)
	if err != nil {
		t.Fatalf("student attach: %v", err)
	}

	// 选择题未选就提交
	if err := student.Submit(ctx); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Submit err = %v, want ErrEmptyResponse", err)
	}
}

func TestUpdateResponseKindMismatch(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryTree(), newFakeStore(t))

	if _, err := m.Attach(ctx, "sess1", "t1", RoleTeacher); err != nil {
		t.Fatalf("teacher attach: %v", err)
	}
	student, err := m.Attach(ctx, "sess1", "stu1", RoleStudent)
	if err != nil {
		t.Fatalf("student attach: %v", err)
	}

	err = student.UpdateResponse(model.FillInTheBlanksResponse{Answer: "x"})
	var decodeErr *model.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Errorf("UpdateResponse err = %v, want DecodeError", err)
	}
}

func TestIndexChangeDiscardsDraft(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryTree(), newFakeStore(t))

	teacher, err := m.Attach(ctx, "sess1", "t1", RoleTeacher)
	if err != nil {
		t.Fatalf("teacher attach: %v", err)
	}
	student, err := m.Attach(ctx, "sess1", "stu1", RoleStudent)
	if err != nil {
		t.Fatalf("student attach: %v", err)
	}

	sel := 0
	if err := student.UpdateResponse(model.SimpleMCQResponse{SelectedOption: &sel}); err != nil {
		t.Fatalf("UpdateResponse: %v", err)
	}
	if err := teacher.Advance(ctx); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	s, _ := lastState(student)
	if s.Card == nil || s.Card.Kind != model.KindMatchTheFollowing {
		t.Fatalf("student card after advance = %+v", s.Card)
	}
	if s.Card.Submitted {
		t.Error("submitted flag leaked across cards")
	}
	match, ok := s.Card.Response.(model.MatchTheFollowingResponse)
	if !ok {
		t.Fatalf("response = %T, want fresh match response", s.Card.Response)
	}
	for i, v := range match.ConnectedPairs {
		if v != model.UnconnectedPair {
			t.Errorf("pairs[%d] = %d, want unconnected", i, v)
		}
	}
}

func TestTwoStudentAggregates(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryTree(), newFakeStore(t))

	teacher, err := m.Attach(ctx, "sess1", "t1", RoleTeacher)
	if err != nil {
		t.Fatalf("teacher attach: %v", err)
	}
	stu1, err := m.Attach(ctx, "sess1", "stu1", RoleStudent)
	if err != nil {
		t.Fatalf("stu1 attach: %v", err)
	}
	stu2, err := m.Attach(ctx, "sess1", "stu2", RoleStudent)
	if err != nil {
		t.Fatalf("stu2 attach: %v", err)
	}

	correct, wrong := 1, 0
	if err := stu1.UpdateResponse(model.SimpleMCQResponse{SelectedOption: &correct}); err != nil {
		t.Fatalf("stu1 UpdateResponse: %v", err)
	}
	if err := stu1.Submit(ctx); err != nil {
		t.Fatalf("stu1 Submit: %v", err)
	}
	if err := stu2.UpdateResponse(model.SimpleMCQResponse{SelectedOption: &wrong}); err != nil {
		t.Fatalf("stu2 UpdateResponse: %v", err)
	}
	if err := stu2.Submit(ctx); err != nil {
		t.Fatalf("stu2 Submit: %v", err)
	}

	s, _ := lastState(teacher)
	if s.ActiveCount != 2 {
		t.Fatalf("active count = %d, want 2", s.ActiveCount)
	}
	wantCounts := []int{1, 1, 0}
	for i := range wantCounts {
		if s.Card.Counts[i] != wantCounts[i] {
			t.Fatalf("counts = %v, want %v", s.Card.Counts, wantCounts)
		}
	}
	if b := s.Card.Breakdown; b == nil || b.Correct != 1 || b.Incorrect != 1 || b.Unanswered != 0 {
		t.Fatalf("breakdown = %+v, want 1/1/0", s.Card.Breakdown)
	}

	// 翻页再翻回，第一张卡的聚合还在树里
	if err := teacher.Advance(ctx); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if err := teacher.Retreat(ctx); err != nil {
		t.Fatalf("Retreat: %v", err)
	}
	s, _ = lastState(teacher)
	if s.CardIndex != 0 || s.Card.Responses != 2 {
		t.Fatalf("card 0 after retreat = index %d, responses %d", s.CardIndex, s.Card.Responses)
	}
	for i := range wantCounts {
		if s.Card.Counts[i] != wantCounts[i] {
			t.Fatalf("counts after retreat = %v, want %v", s.Card.Counts, wantCounts)
		}
	}
}

func TestConcurrentEndAndDisconnect(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 200; i++ {
		m := NewManager(NewMemoryTree(), newFakeStore(t))
		teacher, err := m.Attach(ctx, "sess1", "t1", RoleTeacher)
		if err != nil {
			t.Fatalf("teacher attach: %v", err)
		}
		student, err := m.Attach(ctx, "sess1", "stu1", RoleStudent)
		if err != nil {
			t.Fatalf("student attach: %v", err)
		}

		// 教师结束会话和学生断开同时发生，两边都不能二次 close 快照通道
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := teacher.Close(ctx); err != nil {
				t.Errorf("teacher Close: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			_ = student.Close(ctx)
		}()
		wg.Wait()
		for range student.Updates() {
		}
	}
}

func TestManagerReattachAfterShutdown(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryTree(), newFakeStore(t))

	teacher, err := m.Attach(ctx, "sess1", "t1", RoleTeacher)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := teacher.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// 结束后再接入要拿到全新的运行时
	teacher, err = m.Attach(ctx, "sess1", "t1", RoleTeacher)
	if err != nil {
		t.Fatalf("reattach: %v", err)
	}
	if _, ok := lastState(teacher); !ok {
		t.Fatal("no snapshot from new runtime")
	}
}

func TestAttachUnknownSession(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryTree(), newFakeStore(t))

	if _, err := m.Attach(ctx, "missing", "t1", RoleTeacher); err == nil {
		t.Fatal("expected error for unknown session")
	}
}

func TestNewCardStatePanicsOnUnsupportedKind(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unsupported kind")
		}
	}()
	card := &model.Card{Kind: model.KindOpenEnded}
	NewCardState(card, &model.OpenEndedContent{Question: "?"}, RoleStudent)
}

func TestSupportedLiveKind(t *testing.T) {
	supported := []model.CardKind{
		model.KindSimpleMCQ, model.KindYesNo, model.KindThisThat,
		model.KindFillInTheBlanks, model.KindShortAnswer,
		model.KindMatchTheFollowing, model.KindImage,
	}
	for _, k := range supported {
		if !SupportedLiveKind(k) {
			t.Errorf("SupportedLiveKind(%s) = false", k)
		}
	}
	unsupported := []model.CardKind{
		model.KindLinkToFile, model.KindOneWord,
		model.KindOpenEnded, model.KindSimpleVote,
	}
	for _, k := range unsupported {
		if SupportedLiveKind(k) {
			t.Errorf("SupportedLiveKind(%s) = true", k)
		}
	}
}
