package live

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"superr_bounty_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const treeChannel = "live_tree_channel"

// treeEvent 跨实例广播的变更通知，负载只有坐标，值从 Redis 重新读取
type treeEvent struct {
	SessionID string    `json:"sessionId"`
	Child     treeChild `json:"child"`
}

// RedisTree 把会话树放在 Redis 上，多实例通过 pub/sub 感知变更。
// 每个学生只写自己键下的子树，天然无冲突。
type RedisTree struct {
	rdb    *redis.Client
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	subs    map[string]map[treeChild]map[int]func(interface{})
	nextSub int
}

func NewRedisTree(rdb *redis.Client) *RedisTree {
	ctx, cancel := context.WithCancel(context.Background())
	t := &RedisTree{
		rdb:    rdb,
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[string]map[treeChild]map[int]func(interface{})),
	}
	go t.run()
	return t
}

func (t *RedisTree) run() {
	pubsub := t.rdb.Subscribe(t.ctx, treeChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-t.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev treeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logger.Log.Error("live tree pubsub unmarshal error", zap.Error(err))
				continue
			}
			t.dispatch(ev.SessionID, ev.Child)
		}
	}
}

func (t *RedisTree) Stop() {
	t.cancel()
}

func (t *RedisTree) dispatch(sessionID string, child treeChild) {
	value, err := t.loadChild(sessionID, child)
	if err != nil {
		logger.Log.Error("live tree load failed",
			zap.String("sessionId", sessionID), zap.Error(err))
		return
	}

	t.mu.Lock()
	var fire []func(interface{})
	for _, fn := range t.subs[sessionID][child] {
		fire = append(fire, fn)
	}
	t.mu.Unlock()

	for _, fn := range fire {
		fn(value)
	}
}

func (t *RedisTree) publish(sessionID string, children ...treeChild) {
	for _, child := range children {
		payload, _ := json.Marshal(treeEvent{SessionID: sessionID, Child: child})
		if err := t.rdb.Publish(t.ctx, treeChannel, payload).Err(); err != nil {
			logger.Log.Error("live tree publish failed", zap.Error(err))
		}
	}
}

func treeKey(sessionID, child string) string {
	return fmt.Sprintf("live:session:%s:%s", sessionID, child)
}

func (t *RedisTree) Init(ctx context.Context, sessionID string) error {
	pipe := t.rdb.Pipeline()
	pipe.Del(ctx,
		treeKey(sessionID, "index"),
		treeKey(sessionID, "active"),
		treeKey(sessionID, "left"),
		treeKey(sessionID, "responses"),
		treeKey(sessionID, "hands"),
	)
	pipe.Set(ctx, treeKey(sessionID, "index"), "0", 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	t.publish(sessionID, childIndex, childActive, childHands, childResponses)
	return nil
}

func (t *RedisTree) Remove(ctx context.Context, sessionID string) error {
	err := t.rdb.Del(ctx,
		treeKey(sessionID, "index"),
		treeKey(sessionID, "active"),
		treeKey(sessionID, "left"),
		treeKey(sessionID, "responses"),
		treeKey(sessionID, "hands"),
	).Err()
	if err != nil {
		return err
	}
	t.publish(sessionID, childIndex, childActive, childHands, childResponses)
	return nil
}

func (t *RedisTree) SetIndex(ctx context.Context, sessionID string, index int) error {
	if err := t.rdb.Set(ctx, treeKey(sessionID, "index"), strconv.Itoa(index), 0).Err(); err != nil {
		return err
	}
	t.publish(sessionID, childIndex)
	return nil
}

func (t *RedisTree) GetIndex(ctx context.Context, sessionID string) (int, error) {
	raw, err := t.rdb.Get(ctx, treeKey(sessionID, "index")).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(raw)
}

func (t *RedisTree) SetActive(ctx context.Context, sessionID, studentID string, entry ActiveEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := t.rdb.HSet(ctx, treeKey(sessionID, "active"), studentID, raw).Err(); err != nil {
		return err
	}
	t.publish(sessionID, childActive)
	return nil
}

func (t *RedisTree) RemoveActive(ctx context.Context, sessionID, studentID string) error {
	if err := t.rdb.HDel(ctx, treeKey(sessionID, "active"), studentID).Err(); err != nil {
		return err
	}
	t.publish(sessionID, childActive)
	return nil
}

func (t *RedisTree) SetLeft(ctx context.Context, sessionID, studentID string, entry LeftEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return t.rdb.HSet(ctx, treeKey(sessionID, "left"), studentID, raw).Err()
}

func (t *RedisTree) RemoveLeft(ctx context.Context, sessionID, studentID string) error {
	return t.rdb.HDel(ctx, treeKey(sessionID, "left"), studentID).Err()
}

func (t *RedisTree) GetLeft(ctx context.Context, sessionID, studentID string) (LeftEntry, bool, error) {
	raw, err := t.rdb.HGet(ctx, treeKey(sessionID, "left"), studentID).Result()
	if err == redis.Nil {
		return LeftEntry{}, false, nil
	}
	if err != nil {
		return LeftEntry{}, false, err
	}
	var entry LeftEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return LeftEntry{}, false, err
	}
	return entry, true, nil
}

func (t *RedisTree) SetResponse(ctx context.Context, sessionID string, cardIndex int, studentID string, raw interface{}) error {
	value, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	field := fmt.Sprintf("%d:%s", cardIndex, studentID)
	if err := t.rdb.HSet(ctx, treeKey(sessionID, "responses"), field, value).Err(); err != nil {
		return err
	}
	t.publish(sessionID, childResponses)
	return nil
}

func (t *RedisTree) SetHandRaise(ctx context.Context, sessionID, studentID string, raisedAt int64) error {
	if err := t.rdb.HSet(ctx, treeKey(sessionID, "hands"), studentID, strconv.FormatInt(raisedAt, 10)).Err(); err != nil {
		return err
	}
	t.publish(sessionID, childHands)
	return nil
}

func (t *RedisTree) RemoveHandRaise(ctx context.Context, sessionID, studentID string) error {
	if err := t.rdb.HDel(ctx, treeKey(sessionID, "hands"), studentID).Err(); err != nil {
		return err
	}
	t.publish(sessionID, childHands)
	return nil
}

func (t *RedisTree) RemoveAllHandRaises(ctx context.Context, sessionID string) error {
	if err := t.rdb.Del(ctx, treeKey(sessionID, "hands")).Err(); err != nil {
		return err
	}
	t.publish(sessionID, childHands)
	return nil
}

func (t *RedisTree) loadChild(sessionID string, child treeChild) (interface{}, error) {
	switch child {
	case childIndex:
		raw, err := t.rdb.Get(t.ctx, treeKey(sessionID, "index")).Result()
		if err == redis.Nil {
			return 0, nil
		}
		if err != nil {
			return nil, err
		}
		index, err := strconv.Atoi(raw)
		if err != nil {
			return nil, err
		}
		return index, nil

	case childActive:
		fields, err := t.rdb.HGetAll(t.ctx, treeKey(sessionID, "active")).Result()
		if err != nil {
			return nil, err
		}
		out := make(map[string]ActiveEntry, len(fields))
		for id, raw := range fields {
			var entry ActiveEntry
			if err := json.Unmarshal([]byte(raw), &entry); err != nil {
				return nil, err
			}
			out[id] = entry
		}
		return out, nil

	case childHands:
		fields, err := t.rdb.HGetAll(t.ctx, treeKey(sessionID, "hands")).Result()
		if err != nil {
			return nil, err
		}
		out := make(map[string]int64, len(fields))
		for id, raw := range fields {
			ts, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, err
			}
			out[id] = ts
		}
		return out, nil

	case childResponses:
		fields, err := t.rdb.HGetAll(t.ctx, treeKey(sessionID, "responses")).Result()
		if err != nil {
			return nil, err
		}
		out := make(map[string]map[string]interface{})
		for field, raw := range fields {
			idx, studentID, ok := strings.Cut(field, ":")
			if !ok {
				continue
			}
			var value interface{}
			if err := json.Unmarshal([]byte(raw), &value); err != nil {
				return nil, err
			}
			if out[idx] == nil {
				out[idx] = make(map[string]interface{})
			}
			out[idx][studentID] = value
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown tree child %d", child)
}

func (t *RedisTree) subscribe(sessionID string, child treeChild, fn func(interface{}), errFn func(error)) Subscription {
	t.mu.Lock()
	if t.subs[sessionID] == nil {
		t.subs[sessionID] = make(map[treeChild]map[int]func(interface{}))
	}
	if t.subs[sessionID][child] == nil {
		t.subs[sessionID][child] = make(map[int]func(interface{}))
	}
	t.nextSub++
	id := t.nextSub
	t.subs[sessionID][child][id] = fn
	t.mu.Unlock()

	// 注册即回放当前值
	value, err := t.loadChild(sessionID, child)
	if err != nil {
		if errFn != nil {
			errFn(err)
		}
	} else {
		fn(value)
	}

	return &redisSub{tree: t, sessionID: sessionID, child: child, id: id}
}

type redisSub struct {
	tree      *RedisTree
	sessionID string
	child     treeChild
	id        int
}

func (s *redisSub) Close() {
	s.tree.mu.Lock()
	defer s.tree.mu.Unlock()
	if children, ok := s.tree.subs[s.sessionID]; ok {
		delete(children[s.child], s.id)
	}
}

func (t *RedisTree) ObserveIndex(sessionID string, fn func(int), errFn func(error)) Subscription {
	return t.subscribe(sessionID, childIndex, func(v interface{}) {
		fn(v.(int))
	}, errFn)
}

func (t *RedisTree) ObserveActive(sessionID string, fn func(map[string]ActiveEntry), errFn func(error)) Subscription {
	return t.subscribe(sessionID, childActive, func(v interface{}) {
		fn(v.(map[string]ActiveEntry))
	}, errFn)
}

func (t *RedisTree) ObserveHandRaises(sessionID string, fn func(map[string]int64), errFn func(error)) Subscription {
	return t.subscribe(sessionID, childHands, func(v interface{}) {
		fn(v.(map[string]int64))
	}, errFn)
}

func (t *RedisTree) ObserveResponses(sessionID string, fn func(map[string]map[string]interface{}), errFn func(error)) Subscription {
	return t.subscribe(sessionID, childResponses, func(v interface{}) {
		fn(v.(map[string]map[string]interface{}))
	}, errFn)
}
