package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// 系統設計問題：
//   兩名玩家的瀏覽器各有一條 WebSocket，如何讓網路層與對局邏輯互不干擾？
//
// 核心挑戰：
//   1. 慢客戶端：對手的網路很慢時，不能拖住自己的攻擊流程
//   2. 死連接：瀏覽器崩潰、網路中斷時，伺服器要能察覺並釋放座位
//   3. 關閉競爭：讀取端、寫入端、Hub 停止三方都可能觸發關閉
//
// 設計方案：
//   ✅ 每條連接兩個 goroutine - readPump 依序處理操作，writePump 負責網路寫入
//   ✅ 緩衝 channel - Send 只入隊，滿了直接返回錯誤
//   ✅ Ping/Pong 心跳 - 54s Ping / 60s 超時
//   ✅ closed 旗標 + sync.Once - channel 只關閉一次，關閉後 Send 不會 panic

var (
	// ErrConnectionClosed 連接已關閉
	ErrConnectionClosed = errors.New("連接已關閉")
	// ErrSendBufferFull 發送緩衝區已滿
	ErrSendBufferFull = errors.New("發送緩衝區已滿")
)

// WebSocketHub WebSocket 連接中心
//
// 只負責連接的生命週期；房間與對局狀態全部在 Manager 裡。
type WebSocketHub struct {
	manager     *Manager
	cfg         WebSocketConfig
	logger      *slog.Logger
	upgrader    websocket.Upgrader
	connections map[string]*Connection // playerID -> Connection
	mu          sync.RWMutex
	stopped     bool
}

// Connection 一條玩家連接，實作 Conn
type Connection struct {
	PlayerID string

	ws        *websocket.Conn
	send      chan []byte
	hub       *WebSocketHub
	session   *Session
	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// NewWebSocketHub 創建 WebSocket Hub
func NewWebSocketHub(manager *Manager, cfg WebSocketConfig, logger *slog.Logger) *WebSocketHub {
	return &WebSocketHub{
		manager: manager,
		cfg:     cfg,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// 在生產環境應該檢查來源
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections: make(map[string]*Connection),
	}
}

// ServeWS 處理 /ws/game/{room_id} 與 /ws/game
//
// 沒有房間 ID 時由 Manager 配對到最早創建且未滿的房間。
// 房間已滿：發送一則 error 訊息後關閉連接。
func (hub *WebSocketHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	hub.mu.RLock()
	stopped := hub.stopped
	hub.mu.RUnlock()
	if stopped {
		http.Error(w, "伺服器正在關閉", http.StatusServiceUnavailable)
		return
	}

	roomID := r.PathValue("room_id")

	ws, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("升級 WebSocket 失敗", "error", err)
		return
	}

	c := &Connection{
		PlayerID: uuid.NewString(),
		ws:       ws,
		send:     make(chan []byte, hub.cfg.SendBuffer),
		hub:      hub,
	}
	go c.writePump()

	session, err := hub.manager.Connect(c.PlayerID, roomID, c)
	if err != nil {
		hub.logger.Info("拒絕 WebSocket 連接",
			"room_id", roomID,
			"player_id", c.PlayerID,
			"error", err)
		_ = c.Send(errorMessage(err))
		c.shutdown()
		return
	}
	c.session = session

	hub.register(c)
	go c.readPump()

	hub.logger.Info("WebSocket 連接建立",
		"room_id", session.Room().ID,
		"player_id", c.PlayerID,
		"slot", session.Slot)
}

// register 註冊連接
func (hub *WebSocketHub) register(c *Connection) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.connections[c.PlayerID] = c
}

// unregister 取消註冊連接
func (hub *WebSocketHub) unregister(c *Connection) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	if actual, ok := hub.connections[c.PlayerID]; ok && actual == c {
		delete(hub.connections, c.PlayerID)
	}
}

// ConnectionCount 目前的連接數
func (hub *WebSocketHub) ConnectionCount() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.connections)
}

// Stop 關閉所有連接
//
// 每條連接的 readPump 會因此結束並執行離開房間的清理。
func (hub *WebSocketHub) Stop() {
	hub.mu.Lock()
	hub.stopped = true
	conns := make([]*Connection, 0, len(hub.connections))
	for _, c := range hub.connections {
		conns = append(conns, c)
	}
	hub.mu.Unlock()

	for _, c := range conns {
		c.shutdown()
	}
	hub.logger.Info("WebSocket Hub 已停止", "connections", len(conns))
}

// Send 序列化並入隊一則訊息（非阻塞）
func (c *Connection) Send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化訊息失敗: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return fmt.Errorf("%w: player %s", ErrSendBufferFull, c.PlayerID)
	}
}

// shutdown 關閉發送通道，writePump 送出關閉幀後結束
func (c *Connection) shutdown() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
	})
}

// readPump 讀取客戶端操作
//
// 心跳（讀取端）：
//   - PongWait 內沒有收到任何訊息（包括 Pong）就視為死連接
//   - 收到 Pong 重置讀取期限
//
// 同一條連接的操作都在這個 goroutine 裡依序交給 Session。
// 結束時執行離開房間的清理，對手會收到 opponent_disconnected。
func (c *Connection) readPump() {
	defer func() {
		c.session.Close()
		c.hub.unregister(c)
		c.shutdown()
	}()

	cfg := c.hub.cfg
	if cfg.MaxMessageSize > 0 {
		c.ws.SetReadLimit(cfg.MaxMessageSize)
	}
	if err := c.ws.SetReadDeadline(time.Now().Add(cfg.PongWait)); err != nil {
		c.hub.logger.Error("設置讀取期限失敗", "error", err)
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		messageType, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("WebSocket 讀取錯誤",
					"error", err,
					"player_id", c.PlayerID)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		// 錯誤已經以 error 訊息回覆給客戶端
		_ = c.session.Handle(message)
	}
}

// writePump 寫入訊息到客戶端
//
// 心跳（發送端）：每 PingInterval 發送一次 Ping，客戶端自動回覆 Pong。
// 佇列中累積的訊息一次寫完，減少喚醒次數。
func (c *Connection) writePump() {
	cfg := c.hub.cfg
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteWait)); err != nil {
				c.hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if !ok {
				// 嘗試發送關閉幀，忽略錯誤（連接可能已斷）
				_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			n := len(c.send)
			for i := 0; i < n; i++ {
				next, ok := <-c.send
				if !ok {
					break
				}
				if err := c.ws.WriteMessage(websocket.TextMessage, next); err != nil {
					c.hub.logger.Warn("發送訊息失敗", "error", err, "player_id", c.PlayerID)
					return
				}
			}

		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteWait)); err != nil {
				c.hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
