package internal

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/koopa0/system-design/14-battleship/internal/game"
)

// Manager 房間註冊表
//
// 整個進程唯一的共享可變狀態：roomID -> Room、playerID -> roomID。
// 由 main 顯式創建並傳給 WebSocketHub / Handler，沒有全域單例。
//
// 鎖的粒度：
//   - m.mu 只保護兩張映射表
//   - 每個 Room 有自己的鎖
//   - 鎖順序固定為 m.mu → room.mu，房間內操作從不反向取得 m.mu
type Manager struct {
	cfg        GameConfig
	rooms      map[string]*Room  // roomID -> Room
	playerRoom map[string]string // playerID -> roomID
	mu         sync.RWMutex
	publisher  EventPublisher
	logger     *slog.Logger
	now        func() time.Time
}

// ManagerOption 可選配置
type ManagerOption func(*Manager)

// WithClock 替換時鐘（測試限流使用）
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager 創建房間註冊表
func NewManager(cfg GameConfig, publisher EventPublisher, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if cfg.GridSize == 0 {
		cfg.GridSize = game.DefaultGridSize
	}
	if len(cfg.Fleet) == 0 {
		cfg.Fleet = game.DefaultFleet()
	}
	if cfg.RateLimits == nil {
		cfg.RateLimits = DefaultRateLimits()
	}
	m := &Manager{
		cfg:        cfg,
		rooms:      make(map[string]*Room),
		playerRoom: make(map[string]string),
		publisher:  publisher,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Join 玩家加入房間
//
// roomID 非空：取得或創建該房間。
// roomID 為空：選最早創建且未滿的房間，沒有則創建新房間（ID 為 UUID）。
// 房間已滿返回 ErrRoomFull，此時不記錄任何映射。
func (m *Manager) Join(playerID string, conn Conn, roomID string) (*Room, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.playerRoom[playerID]; ok {
		return nil, 0, fmt.Errorf("%w: 已在房間 %s", ErrPlayerExists, existing)
	}

	room, created := m.pickRoomLocked(roomID)
	slot, err := room.AddPlayer(playerID, conn)
	if err != nil {
		if created {
			delete(m.rooms, room.ID)
		}
		return nil, 0, err
	}
	m.playerRoom[playerID] = room.ID

	m.logger.Info("玩家加入房間",
		"room_id", room.ID,
		"player_id", playerID,
		"slot", slot)

	return room, slot, nil
}

// pickRoomLocked 找到或創建房間（需持有 m.mu 寫鎖）
func (m *Manager) pickRoomLocked(roomID string) (*Room, bool) {
	if roomID != "" {
		if room, ok := m.rooms[roomID]; ok {
			return room, false
		}
		return m.createRoomLocked(roomID), true
	}

	var candidate *Room
	for _, room := range m.rooms {
		if room.PlayerCount() >= 2 {
			continue
		}
		if candidate == nil || room.CreatedAt.Before(candidate.CreatedAt) {
			candidate = room
		}
	}
	if candidate != nil {
		return candidate, false
	}
	return m.createRoomLocked(uuid.NewString()), true
}

func (m *Manager) createRoomLocked(roomID string) *Room {
	room := NewRoom(roomID, m.cfg, m.now)
	m.rooms[roomID] = room
	m.logger.Info("房間已創建", "room_id", roomID)
	return room
}

// Leave 玩家離開房間，返回其座位；玩家不在任何房間時返回 false
func (m *Manager) Leave(playerID string) (int, bool) {
	_, slot, _, ok := m.leave(playerID)
	return slot, ok
}

// leave 移除玩家並返回剩下的玩家
//
// 房間在同一把鎖內被清空與刪除，與對手的並發離開不會互相踩踏：
// 後到的一方只會看到「玩家不在任何房間」。
func (m *Manager) leave(playerID string) (*Room, int, []occupant, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	roomID, ok := m.playerRoom[playerID]
	if !ok {
		return nil, 0, nil, false
	}
	delete(m.playerRoom, playerID)

	room, ok := m.rooms[roomID]
	if !ok {
		return nil, 0, nil, false
	}

	room.mu.Lock()
	slot, remaining, removed := room.removePlayerLocked(playerID)
	empty := len(room.slots) == 0
	room.mu.Unlock()

	if empty {
		delete(m.rooms, roomID)
		m.logger.Info("房間已移除", "room_id", roomID)
	}
	if !removed {
		return nil, 0, nil, false
	}

	m.logger.Info("玩家離開房間",
		"room_id", roomID,
		"player_id", playerID,
		"slot", slot)

	return room, slot, remaining, true
}

// RoomOf 玩家所在的房間
func (m *Manager) RoomOf(playerID string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	roomID, ok := m.playerRoom[playerID]
	if !ok {
		return nil, false
	}
	room, ok := m.rooms[roomID]
	return room, ok
}

// RoomByID 依 ID 取得房間
func (m *Manager) RoomByID(roomID string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[roomID]
	return room, ok
}

// ListRooms 所有房間快照，依創建時間排序
func (m *Manager) ListRooms() []RoomInfo {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	m.mu.RUnlock()

	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].CreatedAt.Equal(rooms[j].CreatedAt) {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})

	result := make([]RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		result = append(result, room.Snapshot())
	}
	return result
}

// Stats 統計資訊
func (m *Manager) Stats() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byPhase := make(map[game.Phase]int)
	waiting := 0
	for _, room := range m.rooms {
		byPhase[room.Phase()]++
		if room.PlayerCount() < 2 {
			waiting++
		}
	}

	return map[string]any{
		"total_rooms":   len(m.rooms),
		"total_players": len(m.playerRoom),
		"waiting_rooms": waiting,
		"by_phase":      byPhase,
	}
}

// publish 發布事件（在所有鎖之外呼叫）
func (m *Manager) publish(events []*MatchEvent) {
	if len(events) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, e := range events {
		if e.Timestamp.IsZero() {
			e.Timestamp = m.now()
		}
		if err := m.publisher.Publish(ctx, e); err != nil {
			m.logger.Warn("發布對局事件失敗",
				"error", err,
				"room_id", e.RoomID,
				"event", e.Type)
		}
	}
}
