package live

import (
	"context"
	"strconv"
	"sync"
)

// ActiveEntry 活跃学生记录
type ActiveEntry struct {
	JoinTime int64 `json:"joinTime"`
	Rejoined bool  `json:"rejoined"`
}

// LeftEntry 离开学生记录
type LeftEntry struct {
	LeftTime int64 `json:"leftTime"`
}

// Subscription 订阅句柄，屏幕/连接销毁时必须 Close
type Subscription interface {
	Close()
}

// Tree 是一次会话的共享实时树。子节点固定为五个：
// currentCardIndex、active_students、left_students、student_responses、
// hand_raises。每个观察回调收到的都是该子树的完整当前值，不是增量；
// 四路订阅之间没有先后顺序保证。
type Tree interface {
	// Init 幂等地重建会话节点（教师端开课时调用）
	Init(ctx context.Context, sessionID string) error
	// Remove 删除整个会话节点（教师端结束时调用）
	Remove(ctx context.Context, sessionID string) error

	SetIndex(ctx context.Context, sessionID string, index int) error
	GetIndex(ctx context.Context, sessionID string) (int, error)

	SetActive(ctx context.Context, sessionID, studentID string, entry ActiveEntry) error
	RemoveActive(ctx context.Context, sessionID, studentID string) error
	SetLeft(ctx context.Context, sessionID, studentID string, entry LeftEntry) error
	RemoveLeft(ctx context.Context, sessionID, studentID string) error
	GetLeft(ctx context.Context, sessionID, studentID string) (LeftEntry, bool, error)

	SetResponse(ctx context.Context, sessionID string, cardIndex int, studentID string, raw interface{}) error

	SetHandRaise(ctx context.Context, sessionID, studentID string, raisedAt int64) error
	RemoveHandRaise(ctx context.Context, sessionID, studentID string) error
	RemoveAllHandRaises(ctx context.Context, sessionID string) error

	// 观察方法在注册时立即用当前值回调一次，之后每次变更再回调。
	ObserveIndex(sessionID string, fn func(int), errFn func(error)) Subscription
	ObserveActive(sessionID string, fn func(map[string]ActiveEntry), errFn func(error)) Subscription
	ObserveHandRaises(sessionID string, fn func(map[string]int64), errFn func(error)) Subscription
	ObserveResponses(sessionID string, fn func(map[string]map[string]interface{}), errFn func(error)) Subscription
}

type treeChild int

const (
	childIndex treeChild = iota
	childActive
	childHands
	childResponses
)

// MemoryTree 进程内实现，单实例部署和测试使用
type MemoryTree struct {
	mu       sync.Mutex
	sessions map[string]*memoryNode
	subs     map[string]map[treeChild]map[int]*memorySub
	nextSub  int
}

type memoryNode struct {
	index     int
	active    map[string]ActiveEntry
	left      map[string]LeftEntry
	responses map[string]map[string]interface{}
	hands     map[string]int64
}

type memorySub struct {
	tree      *MemoryTree
	sessionID string
	child     treeChild
	id        int
	fn        func(interface{})
}

func (s *memorySub) Close() {
	s.tree.mu.Lock()
	defer s.tree.mu.Unlock()
	if children, ok := s.tree.subs[s.sessionID]; ok {
		delete(children[s.child], s.id)
	}
}

func NewMemoryTree() *MemoryTree {
	return &MemoryTree{
		sessions: make(map[string]*memoryNode),
		subs:     make(map[string]map[treeChild]map[int]*memorySub),
	}
}

func newMemoryNode() *memoryNode {
	return &memoryNode{
		active:    make(map[string]ActiveEntry),
		left:      make(map[string]LeftEntry),
		responses: make(map[string]map[string]interface{}),
		hands:     make(map[string]int64),
	}
}

func (t *MemoryTree) node(sessionID string) *memoryNode {
	n, ok := t.sessions[sessionID]
	if !ok {
		n = newMemoryNode()
		t.sessions[sessionID] = n
	}
	return n
}

// notify 在持锁状态下收集回调，解锁后派发，避免回调再入死锁
func (t *MemoryTree) notify(sessionID string, children ...treeChild) {
	type pending struct {
		fn    func(interface{})
		value interface{}
	}
	var fire []pending

	t.mu.Lock()
	n := t.node(sessionID)
	for _, child := range children {
		value := n.childValue(child)
		for _, sub := range t.subs[sessionID][child] {
			fire = append(fire, pending{fn: sub.fn, value: value})
		}
	}
	t.mu.Unlock()

	for _, p := range fire {
		p.fn(p.value)
	}
}

func (n *memoryNode) childValue(child treeChild) interface{} {
	switch child {
	case childIndex:
		return n.index
	case childActive:
		out := make(map[string]ActiveEntry, len(n.active))
		for k, v := range n.active {
			out[k] = v
		}
		return out
	case childHands:
		out := make(map[string]int64, len(n.hands))
		for k, v := range n.hands {
			out[k] = v
		}
		return out
	case childResponses:
		out := make(map[string]map[string]interface{}, len(n.responses))
		for idx, perStudent := range n.responses {
			inner := make(map[string]interface{}, len(perStudent))
			for sid, raw := range perStudent {
				inner[sid] = raw
			}
			out[idx] = inner
		}
		return out
	}
	return nil
}

func (t *MemoryTree) Init(ctx context.Context, sessionID string) error {
	t.mu.Lock()
	t.sessions[sessionID] = newMemoryNode()
	t.mu.Unlock()
	t.notify(sessionID, childIndex, childActive, childHands, childResponses)
	return nil
}

func (t *MemoryTree) Remove(ctx context.Context, sessionID string) error {
	t.mu.Lock()
	delete(t.sessions, sessionID)
	t.mu.Unlock()
	t.notify(sessionID, childIndex, childActive, childHands, childResponses)
	return nil
}

func (t *MemoryTree) SetIndex(ctx context.Context, sessionID string, index int) error {
	t.mu.Lock()
	t.node(sessionID).index = index
	t.mu.Unlock()
	t.notify(sessionID, childIndex)
	return nil
}

func (t *MemoryTree) GetIndex(ctx context.Context, sessionID string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.node(sessionID).index, nil
}

func (t *MemoryTree) SetActive(ctx context.Context, sessionID, studentID string, entry ActiveEntry) error {
	t.mu.Lock()
	t.node(sessionID).active[studentID] = entry
	t.mu.Unlock()
	t.notify(sessionID, childActive)
	return nil
}

func (t *MemoryTree) RemoveActive(ctx context.Context, sessionID, studentID string) error {
	t.mu.Lock()
	delete(t.node(sessionID).active, studentID)
	t.mu.Unlock()
	t.notify(sessionID, childActive)
	return nil
}

func (t *MemoryTree) SetLeft(ctx context.Context, sessionID, studentID string, entry LeftEntry) error {
	t.mu.Lock()
	t.node(sessionID).left[studentID] = entry
	t.mu.Unlock()
	return nil
}

func (t *MemoryTree) RemoveLeft(ctx context.Context, sessionID, studentID string) error {
	t.mu.Lock()
	delete(t.node(sessionID).left, studentID)
	t.mu.Unlock()
	return nil
}

func (t *MemoryTree) GetLeft(ctx context.Context, sessionID, studentID string) (LeftEntry, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.node(sessionID).left[studentID]
	return entry, ok, nil
}

func (t *MemoryTree) SetResponse(ctx context.Context, sessionID string, cardIndex int, studentID string, raw interface{}) error {
	key := strconv.Itoa(cardIndex)
	t.mu.Lock()
	n := t.node(sessionID)
	if n.responses[key] == nil {
		n.responses[key] = make(map[string]interface{})
	}
	n.responses[key][studentID] = raw
	t.mu.Unlock()
	t.notify(sessionID, childResponses)
	return nil
}

func (t *MemoryTree) SetHandRaise(ctx context.Context, sessionID, studentID string, raisedAt int64) error {
	t.mu.Lock()
	t.node(sessionID).hands[studentID] = raisedAt
	t.mu.Unlock()
	t.notify(sessionID, childHands)
	return nil
}

func (t *MemoryTree) RemoveHandRaise(ctx context.Context, sessionID, studentID string) error {
	t.mu.Lock()
	delete(t.node(sessionID).hands, studentID)
	t.mu.Unlock()
	t.notify(sessionID, childHands)
	return nil
}

func (t *MemoryTree) RemoveAllHandRaises(ctx context.Context, sessionID string) error {
	t.mu.Lock()
	t.node(sessionID).hands = make(map[string]int64)
	t.mu.Unlock()
	t.notify(sessionID, childHands)
	return nil
}

func (t *MemoryTree) subscribe(sessionID string, child treeChild, fn func(interface{})) *memorySub {
	t.mu.Lock()
	if t.subs[sessionID] == nil {
		t.subs[sessionID] = make(map[treeChild]map[int]*memorySub)
	}
	if t.subs[sessionID][child] == nil {
		t.subs[sessionID][child] = make(map[int]*memorySub)
	}
	t.nextSub++
	sub := &memorySub{tree: t, sessionID: sessionID, child: child, id: t.nextSub, fn: fn}
	t.subs[sessionID][child][sub.id] = sub
	initial := t.node(sessionID).childValue(child)
	t.mu.Unlock()

	fn(initial)
	return sub
}

func (t *MemoryTree) ObserveIndex(sessionID string, fn func(int), errFn func(error)) Subscription {
	return t.subscribe(sessionID, childIndex, func(v interface{}) {
		fn(v.(int))
	})
}

func (t *MemoryTree) ObserveActive(sessionID string, fn func(map[string]ActiveEntry), errFn func(error)) Subscription {
	return t.subscribe(sessionID, childActive, func(v interface{}) {
		fn(v.(map[string]ActiveEntry))
	})
}

func (t *MemoryTree) ObserveHandRaises(sessionID string, fn func(map[string]int64), errFn func(error)) Subscription {
	return t.subscribe(sessionID, childHands, func(v interface{}) {
		fn(v.(map[string]int64))
	})
}

func (t *MemoryTree) ObserveResponses(sessionID string, fn func(map[string]map[string]interface{}), errFn func(error)) Subscription {
	return t.subscribe(sessionID, childResponses, func(v interface{}) {
		fn(v.(map[string]map[string]interface{}))
	})
}
