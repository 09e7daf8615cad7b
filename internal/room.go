package internal

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/koopa0/system-design/14-battleship/internal/game"
)

// 系統設計問題：
//   兩條獨立的連接同時修改同一個房間（雙方幾乎同時攻擊、一方斷線時另一方正在攻擊），
//   如何保證棋盤與回合不會被觀察到中間狀態？
//
// 設計方案：
//   ✅ 每個房間一把 Mutex - 房間內所有修改串行化，不同房間互不影響
//   ✅ 鎖內只做記憶體操作 - 訊息先收集到 Outbox，解鎖後才發送
//   ✅ 顯式欄位 - 限流時間戳、重賽旗標都是建構時初始化的欄位

// Conn 連接句柄
//
// Send 只負責入隊（非阻塞），真正的網路寫入由連接自己的 goroutine 完成。
type Conn interface {
	Send(msg any) error
}

// occupant 房間內的一名玩家
type occupant struct {
	id   string
	slot int
	conn Conn
}

// Room 兩人對戰房間
//
// 系統設計考量：
//
//  1. 座位（slot）：
//     - 最多兩名玩家，座位 0 / 1
//     - 加入時分配較小的空座位（0 先於 1）
//
//  2. 並發控制（Mutex 而非 RWMutex）：
//     - 幾乎所有操作都會修改狀態（放置、攻擊、旗標）
//     - 讀操作（統計、HTTP 查詢）頻率低，不值得讀寫鎖
//
//  3. 生命週期：
//     - 第一次有人加入時創建
//     - 玩家全部離開時由 Manager 刪除
//     - 有人離開後對局重置：剩下的玩家等待新對手組成新的一局
type Room struct {
	ID        string    `json:"room_id"`
	CreatedAt time.Time `json:"created_at"`

	mu      sync.Mutex
	cfg     GameConfig
	match   *game.Match
	slots   map[string]int  // playerID -> slot
	conns   map[string]Conn // playerID -> 連接
	ready   map[string]bool
	rematch map[string]bool
	limiter *RateLimiter
	rng     *rand.Rand
}

// NewRoom 創建房間
func NewRoom(id string, cfg GameConfig, now func() time.Time) *Room {
	if now == nil {
		now = time.Now
	}
	return &Room{
		ID:        id,
		CreatedAt: now(),
		cfg:       cfg,
		match:     game.NewMatch(cfg.GridSize, cfg.Fleet),
		slots:     make(map[string]int),
		conns:     make(map[string]Conn),
		ready:     make(map[string]bool),
		rematch:   make(map[string]bool),
		limiter:   NewRateLimiter(cfg.RateLimits, now),
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// AddPlayer 加入玩家，返回分配到的座位
func (r *Room) AddPlayer(playerID string, conn Conn) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.slots) >= 2 {
		return 0, ErrRoomFull
	}
	if _, exists := r.slots[playerID]; exists {
		return 0, ErrPlayerExists
	}

	slot := 0
	for _, taken := range r.slots {
		if taken == 0 {
			slot = 1
		}
	}
	r.slots[playerID] = slot
	r.conns[playerID] = conn
	r.ready[playerID] = false
	return slot, nil
}

// RemovePlayer 移除玩家，返回其座位；玩家不在房間內時返回 false
func (r *Room) RemovePlayer(playerID string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, _, ok := r.removePlayerLocked(playerID)
	return slot, ok
}

// removePlayerLocked 移除玩家並返回剩下的玩家（需持有鎖）
//
// 有人離開後這局已經不成立：對局重置，剩下玩家的準備 / 重賽旗標清空。
func (r *Room) removePlayerLocked(playerID string) (int, []occupant, bool) {
	slot, ok := r.slots[playerID]
	if !ok {
		return 0, nil, false
	}

	delete(r.slots, playerID)
	delete(r.conns, playerID)
	delete(r.ready, playerID)
	delete(r.rematch, playerID)
	r.limiter.Forget(playerID)

	remaining := r.occupantsLocked()
	if len(remaining) > 0 {
		r.match.Reset()
		for _, o := range remaining {
			r.ready[o.id] = false
			delete(r.rematch, o.id)
		}
	}
	return slot, remaining, true
}

// OpponentOf 對手的玩家 ID
func (r *Room) OpponentOf(playerID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opponentLocked(playerID)
}

func (r *Room) opponentLocked(playerID string) (string, bool) {
	for id := range r.slots {
		if id != playerID {
			return id, true
		}
	}
	return "", false
}

// SetReady 設置準備狀態
func (r *Room) SetReady(playerID string, ready bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.slots[playerID]; !ok {
		return fmt.Errorf("%w: 玩家 %s 不在房間內", ErrInvariantBroken, playerID)
	}
	r.ready[playerID] = ready
	return nil
}

// BothReady 兩名玩家都在且都已準備
func (r *Room) BothReady() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bothReadyLocked()
}

func (r *Room) bothReadyLocked() bool {
	if len(r.ready) != 2 {
		return false
	}
	for _, ok := range r.ready {
		if !ok {
			return false
		}
	}
	return true
}

// SetRematch 設置重賽旗標
func (r *Room) SetRematch(playerID string, want bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setRematchLocked(playerID, want)
}

func (r *Room) setRematchLocked(playerID string, want bool) {
	if _, ok := r.slots[playerID]; !ok {
		return
	}
	if want {
		r.rematch[playerID] = true
	} else {
		delete(r.rematch, playerID)
	}
}

// BothWantRematch 兩名玩家都請求了重賽
func (r *Room) BothWantRematch() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bothWantRematchLocked()
}

func (r *Room) bothWantRematchLocked() bool {
	if len(r.slots) != 2 {
		return false
	}
	for id := range r.slots {
		if !r.rematch[id] {
			return false
		}
	}
	return true
}

// ResetForRematch 換一局新的對局，清空準備與重賽旗標
func (r *Room) ResetForRematch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetForRematchLocked()
}

func (r *Room) resetForRematchLocked() {
	r.match = game.NewMatch(r.cfg.GridSize, r.cfg.Fleet)
	for id := range r.slots {
		r.ready[id] = false
	}
	clear(r.rematch)
}

// SlotOf 玩家的座位
func (r *Room) SlotOf(playerID string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot, ok := r.slots[playerID]
	return slot, ok
}

// PlayerCount 玩家數量
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}

// Phase 當前對局階段
func (r *Room) Phase() game.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.match.Phase()
}

// occupantsLocked 依座位排序的玩家列表（需持有鎖）
func (r *Room) occupantsLocked() []occupant {
	list := make([]occupant, 0, len(r.slots))
	for id, slot := range r.slots {
		list = append(list, occupant{id: id, slot: slot, conn: r.conns[id]})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].slot < list[j].slot })
	return list
}

// exec 在房間鎖內執行一個操作
//
// 流程：確認玩家在房間內 → 限流檢查 → fn（修改狀態並填寫 Outbox）。
// 返回的 Outbox 由呼叫方在鎖外發送。
func (r *Room) exec(playerID string, kind ActionKind, fn func(slot int, out *Outbox) error) (*Outbox, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.slots[playerID]
	if !ok {
		return nil, fmt.Errorf("%w: 玩家 %s 不在房間 %s 內", ErrInvariantBroken, playerID, r.ID)
	}
	if !r.limiter.Allow(playerID, kind) {
		return nil, fmt.Errorf("%w: 請稍候再%s", ErrRateLimited, kind)
	}

	out := &Outbox{roomID: r.ID}
	if err := fn(slot, out); err != nil {
		return nil, err
	}
	return out, nil
}

// PlayerInfo 玩家狀態（HTTP 查詢用）
type PlayerInfo struct {
	PlayerID  string `json:"player_id"`
	Slot      int    `json:"slot"`
	Ready     bool   `json:"ready"`
	Confirmed bool   `json:"placement_confirmed"`
	Rematch   bool   `json:"rematch_requested"`
}

// RoomInfo 房間快照
type RoomInfo struct {
	RoomID    string       `json:"room_id"`
	Phase     game.Phase   `json:"phase"`
	Turn      *int         `json:"turn_slot,omitempty"`
	Players   []PlayerInfo `json:"players"`
	CreatedAt time.Time    `json:"created_at"`
}

// Snapshot 房間快照（不含棋盤，避免洩漏佈局）
func (r *Room) Snapshot() RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := RoomInfo{
		RoomID:    r.ID,
		Phase:     r.match.Phase(),
		Players:   make([]PlayerInfo, 0, len(r.slots)),
		CreatedAt: r.CreatedAt,
	}
	if turn, ok := r.match.Turn(); ok {
		info.Turn = &turn
	}
	for _, o := range r.occupantsLocked() {
		info.Players = append(info.Players, PlayerInfo{
			PlayerID:  o.id,
			Slot:      o.slot,
			Ready:     r.ready[o.id],
			Confirmed: r.match.Confirmed(o.slot),
			Rematch:   r.rematch[o.id],
		})
	}
	return info
}
