package internal

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// 系統設計問題：
//   群組邏輯只認得「連線 ID」，如何把它接到真正的 WebSocket 連線上？
//
// 核心挑戰：
//   1. 定位：依連線 ID 發給單一連線、發給全部、發給除了自己以外的全部
//   2. 心跳機制：傳輸層 Ping/Pong 檢測死連接（應用層 heartbeat 只回 ack）
//   3. 慢客戶端：發送不能阻塞群組操作（群組持鎖時呼叫）
//   4. 洪水攻擊：單一連線短時間送出大量事件
//
// 設計方案：
//   ✅ Hub 模式 - map[connID]*Connection 集中管理，實作 Directory
//   ✅ 緩衝 channel - 非阻塞發送，緩衝區滿時丟棄
//   ✅ Ping/Pong 心跳 - 讀取期限由 pong 延長
//   ✅ 每連線 token bucket（x/time/rate）限制入站事件速率

// WebSocketHub WebSocket 連接中心
type WebSocketHub struct {
	cfg     WebSocketConfig
	group   *Group
	metrics *Metrics
	logger  *slog.Logger

	upgrader    websocket.Upgrader
	connections map[string]*Connection // connID -> Connection
	mu          sync.RWMutex
}

// Connection WebSocket 連接
type Connection struct {
	ID        string
	Conn      *websocket.Conn
	Send      chan []byte
	Hub       *WebSocketHub
	limiter   *rate.Limiter
	closeOnce sync.Once // 確保 channel 只關閉一次
}

// NewWebSocketHub 創建 WebSocket Hub
//
// allowedOrigin 為 "*" 或空字串時不檢查來源，否則為逗號分隔的允許清單。
func NewWebSocketHub(cfg WebSocketConfig, allowedOrigin string, metrics *Metrics, logger *slog.Logger) *WebSocketHub {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &WebSocketHub{
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(allowedOrigin),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections: make(map[string]*Connection),
	}
}

// Bind 綁定處理入站事件的群組（必須在開始服務前呼叫）
func (hub *WebSocketHub) Bind(group *Group) {
	hub.group = group
}

func originChecker(allowed string) func(r *http.Request) bool {
	allowed = strings.TrimSpace(allowed)
	if allowed == "" || allowed == "*" {
		return func(*http.Request) bool { return true }
	}

	origins := make(map[string]struct{})
	for _, o := range strings.Split(allowed, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins[o] = struct{}{}
		}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// 非瀏覽器客戶端
			return true
		}
		_, ok := origins[origin]
		return ok
	}
}

// ServeWS 處理 WebSocket 連接
func (hub *WebSocketHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	if hub.group == nil {
		http.Error(w, "服務尚未就緒", http.StatusServiceUnavailable)
		return
	}

	conn, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("升級 WebSocket 失敗", "error", err)
		return
	}

	connection := &Connection{
		ID:      uuid.NewString(),
		Conn:    conn,
		Send:    make(chan []byte, hub.cfg.SendBuffer),
		Hub:     hub,
		limiter: newLimiter(hub.cfg.RateLimit, hub.cfg.RateBurst),
	}

	hub.register(connection)
	hub.group.Connect(connection.ID)

	go connection.writePump()
	go connection.readPump()

	hub.logger.Info("WebSocket 連接建立", "conn_id", connection.ID)
}

func newLimiter(limit float64, burst int) *rate.Limiter {
	if limit <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(limit), burst)
}

// register 註冊連接
func (hub *WebSocketHub) register(conn *Connection) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.connections[conn.ID] = conn
}

// unregister 取消註冊連接
func (hub *WebSocketHub) unregister(conn *Connection) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	if actual, exists := hub.connections[conn.ID]; exists && actual == conn {
		delete(hub.connections, conn.ID)
		conn.closeSend()
	}
}

func (c *Connection) closeSend() {
	c.closeOnce.Do(func() {
		close(c.Send)
	})
}

// enqueue 非阻塞放入發送緩衝（呼叫者必須持有 hub 讀鎖）
func (hub *WebSocketHub) enqueue(conn *Connection, message []byte) {
	select {
	case conn.Send <- message:
	default:
		hub.logger.Warn("連接緩衝區滿，丟棄訊息", "conn_id", conn.ID)
	}
}

func (hub *WebSocketHub) encode(ev Event) ([]byte, bool) {
	message, err := json.Marshal(ev)
	if err != nil {
		hub.logger.Error("序列化事件失敗", "event", ev.Type, "error", err)
		return nil, false
	}
	return message, true
}

// Send 發給單一連線
func (hub *WebSocketHub) Send(connID string, ev Event) {
	message, ok := hub.encode(ev)
	if !ok {
		return
	}

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if conn, exists := hub.connections[connID]; exists {
		hub.enqueue(conn, message)
	}
}

// Broadcast 廣播給所有連線
func (hub *WebSocketHub) Broadcast(ev Event) {
	hub.BroadcastExcept("", ev)
}

// BroadcastExcept 廣播給除了 connID 以外的所有連線
func (hub *WebSocketHub) BroadcastExcept(connID string, ev Event) {
	message, ok := hub.encode(ev)
	if !ok {
		return
	}

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	for id, conn := range hub.connections {
		if id == connID {
			continue
		}
		hub.enqueue(conn, message)
	}
}

// Close 關閉連線：先送出緩衝中的訊息，再送 close frame
func (hub *WebSocketHub) Close(connID string) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	if conn, exists := hub.connections[connID]; exists {
		delete(hub.connections, connID)
		conn.closeSend()
	}
}

// Connected 連線是否仍在目錄中
func (hub *WebSocketHub) Connected(connID string) bool {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	_, exists := hub.connections[connID]
	return exists
}

// ConnectionCount 目前連線數
func (hub *WebSocketHub) ConnectionCount() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.connections)
}

// Stop 關閉所有連接
func (hub *WebSocketHub) Stop() {
	hub.mu.Lock()
	for _, conn := range hub.connections {
		conn.closeSend()
		conn.Conn.Close()
	}
	hub.connections = make(map[string]*Connection)
	hub.mu.Unlock()

	hub.logger.Info("WebSocket Hub 已停止")
}

// readPump 讀取客戶端消息
//
// 讀取期限 PongWait，每次收到 Pong 延長；writePump 以較短的 PingInterval 發送 Ping。
// 離開時通知群組（斷線處理只在這裡發生一次）。
func (c *Connection) readPump() {
	defer func() {
		c.Hub.unregister(c)
		c.Conn.Close()
		c.Hub.group.Disconnect(c.ID)
		c.Hub.logger.Info("WebSocket 連接關閉", "conn_id", c.ID)
	}()

	cfg := c.Hub.cfg
	c.Conn.SetReadLimit(cfg.MaxMessageSize)

	if err := c.Conn.SetReadDeadline(time.Now().Add(cfg.PongWait)); err != nil {
		c.Hub.logger.Error("設置讀取期限失敗", "error", err)
	}

	c.Conn.SetPongHandler(func(string) error {
		if err := c.Conn.SetReadDeadline(time.Now().Add(cfg.PongWait)); err != nil {
			c.Hub.logger.Error("設置讀取期限失敗", "error", err)
		}
		return nil
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Error("WebSocket 讀取錯誤",
					"error", err,
					"conn_id", c.ID)
			}
			break
		}

		if messageType == websocket.TextMessage {
			c.handleMessage(message)
		}
	}
}

// writePump 寫入消息到客戶端
func (c *Connection) writePump() {
	cfg := c.Hub.cfg
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait)); err != nil {
				c.Hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if !ok {
				// Hub 關閉了通道，送出 close frame 後結束
				_ = c.Conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// 批量發送隊列中的消息
			n := len(c.Send)
			for i := 0; i < n; i++ {
				next, ok := <-c.Send
				if !ok {
					break
				}
				if err := c.Conn.WriteMessage(websocket.TextMessage, next); err != nil {
					c.Hub.logger.Error("發送消息失敗", "error", err, "conn_id", c.ID)
					return
				}
			}

		case <-ticker.C:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait)); err != nil {
				c.Hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 解析並交給群組處理
func (c *Connection) handleMessage(message []byte) {
	if !c.limiter.Allow() {
		c.Hub.metrics.RateLimited.Add(1)
		c.Hub.logger.Debug("事件超過速率限制，已丟棄", "conn_id", c.ID)
		return
	}

	ev, err := DecodeInbound(message)
	if err != nil {
		c.Hub.metrics.EventsDropped.Add(1)
		c.Hub.logger.Debug("解析客戶端消息失敗",
			"error", err,
			"conn_id", c.ID)
		return
	}

	_ = c.Hub.group.Handle(c.ID, ev)
}
