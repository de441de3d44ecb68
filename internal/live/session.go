package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"superr_bounty_backend/internal/model"
	"superr_bounty_backend/internal/util"
	"superr_bounty_backend/pkg/logger"
	"superr_bounty_backend/pkg/monitoring"

	"go.uber.org/zap"
)

var (
	ErrRuntimeClosed    = errors.New("live: session runtime closed")
	ErrNoCurrentCard    = errors.New("live: session has no current card")
	ErrAlreadySubmitted = errors.New("live: response already submitted")
	ErrEmptyResponse    = errors.New("live: nothing to submit")
	ErrUnsupportedCard  = errors.New("live: card kind does not take responses")
)

// Store 运行时需要的持久层能力，repository 层实现
type Store interface {
	GetSession(ctx context.Context, id string) (*model.Session, error)
	GetDecksByIDs(ctx context.Context, ids []string) ([]*model.Deck, error)
	GetCardsByIDs(ctx context.Context, ids []string) ([]*model.Card, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
	MarkSessionCompleted(ctx context.Context, id string) error
}

// Runtime 单个会话的进程内运行时。同一实例的所有连接共享一个 Runtime，
// 所有树回调和客户端命令都在 mu 下改状态，快照整体替换后扇出。
type Runtime struct {
	sessionID string
	tree      Tree
	store     Store
	onClosed  func(sessionID string)

	loadMu sync.Mutex

	mu        sync.Mutex
	loaded    bool
	closed    bool
	session   *model.Session
	cards     []*model.Card
	contents  []model.CardContent
	index     int
	active    map[string]ActiveEntry
	hands     map[string]int64
	responses map[int]map[string]model.CardResponse
	names     map[string]string
	viewers   map[*Viewer]struct{}
	subs      []Subscription
}

// Viewer 一条连接对应的观察者。交互中的回答和配对题乱序
// 属于观察者本地，不进共享状态。
type Viewer struct {
	r       *Runtime
	userID  string
	role    Role
	card    *CardState
	updates chan State
	closed  bool
}

func newRuntime(sessionID string, tree Tree, store Store, onClosed func(string)) *Runtime {
	return &Runtime{
		sessionID: sessionID,
		tree:      tree,
		store:     store,
		onClosed:  onClosed,
		active:    make(map[string]ActiveEntry),
		hands:     make(map[string]int64),
		responses: make(map[int]map[string]model.CardResponse),
		names:     make(map[string]string),
		viewers:   make(map[*Viewer]struct{}),
	}
}

// Attach 把一个观察者接入会话。教师接入会重置会话树并把持久状态
// 置为进行中，学生接入会进入在线名单（带重进标记）。
func (r *Runtime) Attach(ctx context.Context, userID string, role Role) (*Viewer, error) {
	if err := r.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	if role == RoleTeacher {
		if err := r.tree.Init(ctx, r.sessionID); err != nil {
			return nil, err
		}
	} else {
		if err := r.joinRoster(ctx, userID); err != nil {
			return nil, err
		}
	}

	v := &Viewer{
		r:       r,
		userID:  userID,
		role:    role,
		updates: make(chan State, 8),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRuntimeClosed
	}
	r.viewers[v] = struct{}{}
	r.rebuildCardLocked(v)
	v.push(r.snapshotLocked(v))
	r.mu.Unlock()

	return v, nil
}

func (r *Runtime) ensureLoaded(ctx context.Context) error {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	r.mu.Lock()
	if r.loaded || r.closed {
		closed := r.closed
		r.mu.Unlock()
		if closed {
			return ErrRuntimeClosed
		}
		return nil
	}
	r.mu.Unlock()

	session, err := r.store.GetSession(ctx, r.sessionID)
	if err != nil {
		return err
	}

	decks, err := r.store.GetDecksByIDs(ctx, session.DeckIDList())
	if err != nil {
		return err
	}
	var cardIDs []string
	for _, deck := range decks {
		cardIDs = append(cardIDs, deck.CardIDList()...)
	}

	cards, err := r.store.GetCardsByIDs(ctx, cardIDs)
	if err != nil {
		return err
	}
	byID := make(map[string]*model.Card, len(cards))
	for _, c := range cards {
		byID[c.ID] = c
	}

	// 卡片顺序由 deck 的 id 列表决定，缺失的 id 跳过
	var ordered []*model.Card
	var contents []model.CardContent
	for _, id := range cardIDs {
		card, ok := byID[id]
		if !ok {
			continue
		}
		content, err := card.DecodeContent()
		if err != nil {
			return fmt.Errorf("card %s content: %w", card.ID, err)
		}
		ordered = append(ordered, card)
		contents = append(contents, content)
	}

	r.mu.Lock()
	r.session = session
	r.cards = ordered
	r.contents = contents
	r.loaded = true
	r.mu.Unlock()

	// 订阅不能持着 mu 做，首次回调会同步取 mu
	subs := []Subscription{
		r.tree.ObserveIndex(r.sessionID, r.onIndex, r.onTreeError),
		r.tree.ObserveActive(r.sessionID, r.onActive, r.onTreeError),
		r.tree.ObserveHandRaises(r.sessionID, r.onHands, r.onTreeError),
		r.tree.ObserveResponses(r.sessionID, r.onResponses, r.onTreeError),
	}
	r.mu.Lock()
	r.subs = append(r.subs, subs...)
	r.mu.Unlock()
	return nil
}

func (r *Runtime) joinRoster(ctx context.Context, studentID string) error {
	_, rejoined, err := r.tree.GetLeft(ctx, r.sessionID, studentID)
	if err != nil {
		return err
	}
	if rejoined {
		if err := r.tree.RemoveLeft(ctx, r.sessionID, studentID); err != nil {
			return err
		}
	}
	return r.tree.SetActive(ctx, r.sessionID, studentID, ActiveEntry{
		JoinTime: time.Now().UnixMilli(),
		Rejoined: rejoined,
	})
}

func (r *Runtime) clampIndex(index int) int {
	if index < 0 {
		return 0
	}
	if len(r.cards) > 0 && index > len(r.cards)-1 {
		return len(r.cards) - 1
	}
	if len(r.cards) == 0 {
		return 0
	}
	return index
}

// onIndex 位置变了就为每个观察者重建卡片状态，未提交的编辑随之丢弃
func (r *Runtime) onIndex(index int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	next := r.clampIndex(index)
	changed := next != r.index
	r.index = next
	for v := range r.viewers {
		if changed || v.card == nil {
			r.rebuildCardLocked(v)
		}
	}
	r.broadcastLocked()
}

func (r *Runtime) onActive(active map[string]ActiveEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.active = active
	r.resolveNamesLocked(mapKeys(active))
	r.refreshAggregatesLocked()
	r.broadcastLocked()
}

func (r *Runtime) onHands(hands map[string]int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.hands = hands
	r.resolveNamesLocked(mapKeys(hands))
	r.broadcastLocked()
}

// onResponses 每次全量重建解码后的聚合，kind 以卡片为准。
// 没有条目的下标也保留空 map，缺席和空集不混同。
func (r *Runtime) onResponses(raw map[string]map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	decoded := make(map[int]map[string]model.CardResponse, len(r.cards))
	for i := range r.cards {
		decoded[i] = make(map[string]model.CardResponse)
	}
	for idxStr, perStudent := range raw {
		var idx int
		if _, err := fmt.Sscanf(idxStr, "%d", &idx); err != nil {
			continue
		}
		if idx < 0 || idx >= len(r.cards) {
			continue
		}
		for studentID, value := range perStudent {
			resp, err := model.DecodeResponse(r.cards[idx].Kind, value)
			if err != nil {
				logger.Log.Warn("discarding undecodable response",
					zap.String("sessionId", r.sessionID),
					zap.Int("cardIndex", idx),
					zap.String("studentId", studentID),
					zap.Error(err))
				continue
			}
			decoded[idx][studentID] = resp
		}
	}
	r.responses = decoded
	r.refreshAggregatesLocked()
	r.broadcastLocked()
}

func (r *Runtime) onTreeError(err error) {
	logger.Log.Error("live tree subscription error",
		zap.String("sessionId", r.sessionID), zap.Error(err))
	r.mu.Lock()
	defer r.mu.Unlock()
	for v := range r.viewers {
		s := r.snapshotLocked(v)
		s.Error = err.Error()
		v.push(s)
	}
}

// rebuildCardLocked 重建观察者的当前卡片状态，进行中的回答不保留
func (r *Runtime) rebuildCardLocked(v *Viewer) {
	if len(r.cards) == 0 {
		v.card = nil
		return
	}
	card := r.cards[r.index]
	content := r.contents[r.index]
	v.card = NewCardState(card, content, v.role)
	if v.role == RoleTeacher {
		RefreshCardState(v.card, content, r.responses[r.index], len(r.active))
	}
}

// refreshAggregatesLocked 聚合结果只刷进教师的卡片状态，
// 学生本地的回答与乱序原样保留
func (r *Runtime) refreshAggregatesLocked() {
	if len(r.cards) == 0 {
		return
	}
	content := r.contents[r.index]
	for v := range r.viewers {
		if v.role != RoleTeacher || v.card == nil {
			continue
		}
		RefreshCardState(v.card, content, r.responses[r.index], len(r.active))
	}
}

func (r *Runtime) resolveNamesLocked(ids []string) {
	for _, id := range ids {
		if _, ok := r.names[id]; ok {
			continue
		}
		user, err := r.store.GetUser(context.Background(), id)
		if err != nil {
			logger.Log.Warn("display name lookup failed",
				zap.String("userId", id), zap.Error(err))
			// 失败也记一笔，避免每次快照都打库
			r.names[id] = ""
			continue
		}
		r.names[id] = user.Name
	}
}

func (r *Runtime) snapshotLocked(v *Viewer) State {
	s := State{
		SessionID:   r.sessionID,
		CardCount:   len(r.cards),
		CardIndex:   r.index,
		Card:        v.card,
		ActiveCount: len(r.active),
	}
	if r.session != nil {
		s.SessionTitle = r.session.Title
	}
	if v.role == RoleTeacher {
		s.Roster = buildRoster(r.active, r.names)
		s.HandRaises = buildHandRaises(r.hands, r.names)
	} else if ts, ok := r.hands[v.userID]; ok {
		s.HandRaises = []HandRaiseEntry{{StudentID: v.userID, Name: r.names[v.userID], RaisedAt: ts}}
	}
	return s
}

func (r *Runtime) broadcastLocked() {
	for v := range r.viewers {
		v.push(r.snapshotLocked(v))
	}
}

// push 带丢弃旧快照的投递，慢消费者只会错过中间态，不会堵住运行时
func (v *Viewer) push(s State) {
	if v.closed {
		return
	}
	for {
		select {
		case v.updates <- s:
			return
		default:
		}
		select {
		case <-v.updates:
		default:
		}
	}
}

// Updates 当前观察者的快照流。运行时关闭或观察者退出后通道关闭。
func (v *Viewer) Updates() <-chan State {
	return v.updates
}

func (v *Viewer) Role() Role     { return v.role }
func (v *Viewer) UserID() string { return v.userID }

// Advance 教师翻到下一张。只写树，不做本地乐观更新，
// 位置变化统一从订阅回来。
func (v *Viewer) Advance(ctx context.Context) error {
	return v.move(ctx, 1)
}

// Retreat 教师翻回上一张
func (v *Viewer) Retreat(ctx context.Context) error {
	return v.move(ctx, -1)
}

func (v *Viewer) move(ctx context.Context, delta int) error {
	if v.role != RoleTeacher {
		return util.ErrPermissionDenied
	}
	r := v.r
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRuntimeClosed
	}
	next := r.clampIndex(r.index + delta)
	current := r.index
	r.mu.Unlock()

	if next == current {
		return nil
	}
	return r.tree.SetIndex(ctx, r.sessionID, next)
}

// UpdateResponse 记录进行中的回答，只改本地状态不落树
func (v *Viewer) UpdateResponse(resp model.CardResponse) error {
	if v.role != RoleStudent {
		return util.ErrPermissionDenied
	}
	r := v.r
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRuntimeClosed
	}
	if v.card == nil {
		return ErrNoCurrentCard
	}
	if resp != nil && resp.ResponseKind() != v.card.Kind {
		return &model.DecodeError{Kind: resp.ResponseKind()}
	}
	if v.card.Submitted {
		return ErrAlreadySubmitted
	}
	v.card.Response = resp
	v.push(r.snapshotLocked(v))
	return nil
}

// UpdateRawResponse 按当前卡片种类解码线上的原始值再记录，
// 给 websocket 指令层用
func (v *Viewer) UpdateRawResponse(raw interface{}) error {
	r := v.r
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRuntimeClosed
	}
	if v.card == nil {
		r.mu.Unlock()
		return ErrNoCurrentCard
	}
	kind := v.card.Kind
	r.mu.Unlock()

	resp, err := model.DecodeResponse(kind, raw)
	if err != nil {
		return err
	}
	return v.UpdateResponse(resp)
}

// Submit 提交当前回答。先置已提交再写树，写失败不重试。
// 配对题先把打乱坐标系的连接列表换回原始坐标系再编码。
func (v *Viewer) Submit(ctx context.Context) error {
	if v.role != RoleStudent {
		return util.ErrPermissionDenied
	}
	r := v.r
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRuntimeClosed
	}
	if v.card == nil {
		r.mu.Unlock()
		return ErrNoCurrentCard
	}
	if v.card.Submitted {
		r.mu.Unlock()
		return ErrAlreadySubmitted
	}
	resp := v.card.Response
	if resp == nil {
		r.mu.Unlock()
		return ErrEmptyResponse
	}
	if match, ok := resp.(model.MatchTheFollowingResponse); ok {
		resp = model.MatchTheFollowingResponse{
			ConnectedPairs: model.DeshufflePairs(match.ConnectedPairs, v.card.Shuffle),
		}
	}
	raw, err := model.EncodeResponse(v.card.Kind, resp)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	if raw == nil {
		r.mu.Unlock()
		return ErrEmptyResponse
	}
	index := r.index
	v.card.Submitted = true
	v.push(r.snapshotLocked(v))
	r.mu.Unlock()

	if err := r.tree.SetResponse(ctx, r.sessionID, index, v.userID, raw); err != nil {
		logger.Log.Error("response write failed",
			zap.String("sessionId", r.sessionID),
			zap.String("studentId", v.userID),
			zap.Error(err))
		return err
	}
	return nil
}

// RaiseHand 举手。已举手则保持原时间戳不变。
func (v *Viewer) RaiseHand(ctx context.Context) error {
	if v.role != RoleStudent {
		return util.ErrPermissionDenied
	}
	r := v.r
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRuntimeClosed
	}
	_, raised := r.hands[v.userID]
	r.mu.Unlock()
	if raised {
		return nil
	}
	return r.tree.SetHandRaise(ctx, r.sessionID, v.userID, time.Now().UnixMilli())
}

// LowerHand 学生收回自己的手，未举手时为空操作
func (v *Viewer) LowerHand(ctx context.Context) error {
	if v.role != RoleStudent {
		return util.ErrPermissionDenied
	}
	return v.r.tree.RemoveHandRaise(ctx, v.r.sessionID, v.userID)
}

// ResolveHand 教师放下指定学生的手
func (v *Viewer) ResolveHand(ctx context.Context, studentID string) error {
	if v.role != RoleTeacher {
		return util.ErrPermissionDenied
	}
	return v.r.tree.RemoveHandRaise(ctx, v.r.sessionID, studentID)
}

// ResolveAllHands 教师清空举手列表
func (v *Viewer) ResolveAllHands(ctx context.Context) error {
	if v.role != RoleTeacher {
		return util.ErrPermissionDenied
	}
	return v.r.tree.RemoveAllHandRaises(ctx, v.r.sessionID)
}

// Close 统一的退出路径，显式结束和连接断开走同一份清理。
// 学生转入离席名单，教师删除整棵树并把会话标记为已结束。
func (v *Viewer) Close(ctx context.Context) error {
	r := v.r
	r.mu.Lock()
	if v.closed {
		r.mu.Unlock()
		return nil
	}
	v.closed = true
	delete(r.viewers, v)
	close(v.updates)
	empty := len(r.viewers) == 0
	alreadyClosed := r.closed
	r.mu.Unlock()

	if alreadyClosed {
		return nil
	}

	if v.role == RoleTeacher {
		return r.shutdown(ctx)
	}

	var errs []error
	if err := r.tree.RemoveHandRaise(ctx, r.sessionID, v.userID); err != nil {
		errs = append(errs, err)
	}
	if err := r.tree.SetLeft(ctx, r.sessionID, v.userID, LeftEntry{LeftTime: time.Now().UnixMilli()}); err != nil {
		errs = append(errs, err)
	}
	if err := r.tree.RemoveActive(ctx, r.sessionID, v.userID); err != nil {
		errs = append(errs, err)
	}
	if empty {
		r.release()
	}
	return errors.Join(errs...)
}

// shutdown 教师结束会话，所有剩余观察者的快照流一并关闭
func (r *Runtime) shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	// v.closed 和 updates 的关闭都受 r.mu 保护，和 Viewer.Close 同一把锁，
	// 否则并发断开会二次 close 同一个 channel。
	for v := range r.viewers {
		v.closed = true
		close(v.updates)
	}
	r.viewers = make(map[*Viewer]struct{})
	subs := r.subs
	r.subs = nil
	r.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}

	var errs []error
	if err := r.tree.Remove(ctx, r.sessionID); err != nil {
		errs = append(errs, err)
	}
	if err := r.store.MarkSessionCompleted(ctx, r.sessionID); err != nil {
		errs = append(errs, err)
	}
	if r.onClosed != nil {
		r.onClosed(r.sessionID)
	}
	return errors.Join(errs...)
}

// release 最后一个观察者离开但会话没结束，只回收进程内资源，树保留
func (r *Runtime) release() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	subs := r.subs
	r.subs = nil
	r.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	if r.onClosed != nil {
		r.onClosed(r.sessionID)
	}
}

// Manager 进程内运行时注册表，同一会话复用一个 Runtime
type Manager struct {
	tree  Tree
	store Store

	mu       sync.Mutex
	runtimes map[string]*Runtime
}

func NewManager(tree Tree, store Store) *Manager {
	return &Manager{
		tree:     tree,
		store:    store,
		runtimes: make(map[string]*Runtime),
	}
}

// Attach 取到（必要时创建）会话运行时并接入观察者
func (m *Manager) Attach(ctx context.Context, sessionID, userID string, role Role) (*Viewer, error) {
	m.mu.Lock()
	r, ok := m.runtimes[sessionID]
	if !ok {
		r = newRuntime(sessionID, m.tree, m.store, m.drop)
		m.runtimes[sessionID] = r
		monitoring.LiveSessions.Inc()
	}
	m.mu.Unlock()

	v, err := r.Attach(ctx, userID, role)
	if err == ErrRuntimeClosed {
		// 刚好撞上运行时收尾，换一个新的再试一次
		m.mu.Lock()
		if m.runtimes[sessionID] == r {
			delete(m.runtimes, sessionID)
			monitoring.LiveSessions.Dec()
		}
		r = newRuntime(sessionID, m.tree, m.store, m.drop)
		m.runtimes[sessionID] = r
		monitoring.LiveSessions.Inc()
		m.mu.Unlock()
		return r.Attach(ctx, userID, role)
	}
	return v, err
}

func (m *Manager) drop(sessionID string) {
	m.mu.Lock()
	if _, ok := m.runtimes[sessionID]; ok {
		delete(m.runtimes, sessionID)
		monitoring.LiveSessions.Dec()
	}
	m.mu.Unlock()
}

func mapKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
