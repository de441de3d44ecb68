package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"superr_bounty_backend/internal/live"
	"superr_bounty_backend/pkg/logger"
	"superr_bounty_backend/pkg/monitoring"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSCommand 客户端上行指令
type WSCommand struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type wsReply struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// LiveClient 一条直播连接，下行只有状态快照和指令错误
type LiveClient struct {
	Hub     *LiveHub
	Conn    *websocket.Conn
	Viewer  *live.Viewer
	Send    chan []byte
	Limiter *rate.Limiter

	done      chan struct{}
	closeOnce sync.Once
}

// LiveHub 直播连接的登记处，运行时本身归 live.Manager 管
type LiveHub struct {
	Manager *live.Manager

	mu      sync.Mutex
	clients map[*LiveClient]struct{}
}

func NewLiveHub(manager *live.Manager) *LiveHub {
	return &LiveHub{
		Manager: manager,
		clients: make(map[*LiveClient]struct{}),
	}
}

// ServeLiveWs 升级连接并接入会话运行时
func (h *LiveHub) ServeLiveWs(w http.ResponseWriter, r *http.Request, sessionID, userID string, role live.Role) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Error("WebSocket upgrade failed", zap.Error(err), zap.String("userId", userID))
		return
	}

	// 接入要走数据库加载，先下发一帧加载中快照
	loading, _ := json.Marshal(wsReply{Type: "STATE", Data: live.State{Loading: true, SessionID: sessionID}})
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.TextMessage, loading)

	viewer, err := h.Manager.Attach(r.Context(), sessionID, userID, role)
	if err != nil {
		logger.Log.Error("live attach failed",
			zap.String("sessionId", sessionID),
			zap.String("userId", userID),
			zap.Error(err))
		payload, _ := json.Marshal(wsReply{Type: "ERROR", Error: err.Error()})
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteMessage(websocket.TextMessage, payload)
		conn.Close()
		return
	}

	client := &LiveClient{
		Hub:     h,
		Conn:    conn,
		Viewer:  viewer,
		Send:    make(chan []byte, 64),
		Limiter: rate.NewLimiter(rate.Limit(30), 50),
		done:    make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	monitoring.LiveClients.Inc()

	go client.writePump()
	go client.statePump()
	go client.readPump()
}

func (c *LiveClient) teardown() {
	c.closeOnce.Do(func() {
		c.Hub.mu.Lock()
		delete(c.Hub.clients, c)
		c.Hub.mu.Unlock()
		monitoring.LiveClients.Dec()

		if err := c.Viewer.Close(context.Background()); err != nil {
			logger.Log.Error("live viewer close failed", zap.Error(err))
		}
		// Send 不关，写端用 done 退出，避免和还在投递的一侧赛跑
		close(c.done)
		c.Conn.Close()
	})
}

// statePump 把运行时的快照流转成下行消息
func (c *LiveClient) statePump() {
	for state := range c.Viewer.Updates() {
		payload, err := json.Marshal(wsReply{Type: "STATE", Data: state})
		if err != nil {
			logger.Log.Error("live state marshal failed", zap.Error(err))
			continue
		}
		select {
		case c.Send <- payload:
			monitoring.LiveMessageCounter.WithLabelValues("STATE", "out").Inc()
		case <-c.done:
			return
		default:
			// 消费不过来就丢中间快照，下一份是全量的
		}
	}
	c.teardown()
}

func (c *LiveClient) readPump() {
	defer c.teardown()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Error("WebSocket unexpected close", zap.Error(err), zap.String("userId", c.Viewer.UserID()))
			}
			break
		}

		if !c.Limiter.Allow() {
			continue
		}

		var cmd WSCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			continue
		}

		monitoring.LiveMessageCounter.WithLabelValues(cmd.Type, "in").Inc()

		if err := c.dispatch(&cmd); err != nil {
			payload, _ := json.Marshal(wsReply{Type: "ERROR", Error: err.Error()})
			select {
			case c.Send <- payload:
			case <-c.done:
				return
			default:
			}
		}
	}
}

func (c *LiveClient) dispatch(cmd *WSCommand) error {
	ctx := context.Background()
	switch cmd.Type {
	case "ADVANCE":
		return c.Viewer.Advance(ctx)
	case "RETREAT":
		return c.Viewer.Retreat(ctx)
	case "UPDATE_RESPONSE":
		data, _ := cmd.Data.(map[string]interface{})
		return c.Viewer.UpdateRawResponse(data["response"])
	case "SUBMIT":
		return c.Viewer.Submit(ctx)
	case "RAISE_HAND":
		return c.Viewer.RaiseHand(ctx)
	case "LOWER_HAND":
		return c.Viewer.LowerHand(ctx)
	case "RESOLVE_HAND":
		data, _ := cmd.Data.(map[string]interface{})
		studentID, _ := data["studentId"].(string)
		return c.Viewer.ResolveHand(ctx, studentID)
	case "RESOLVE_ALL_HANDS":
		return c.Viewer.ResolveAllHands(ctx)
	}
	return nil
}

func (c *LiveClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Stop 停机时断开所有直播连接
func (h *LiveHub) Stop() {
	h.mu.Lock()
	clients := make([]*LiveClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.teardown()
	}
	logger.Log.Info("LiveHub stopped", zap.Int("closedConnections", len(clients)))
}
