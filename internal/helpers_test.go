package internal_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/koopa0/system-design/14-battleship/internal"
	"github.com/koopa0/system-design/14-battleship/internal/game"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // 測試時只顯示錯誤
	}))
}

// twoShipFleet 測試用的小艦隊
var twoShipFleet = []game.ShipClass{
	{Name: "Sous-marin", Length: 3},
	{Name: "Torpilleur", Length: 2},
}

// testGameConfig 不限流的小艦隊配置
func testGameConfig() internal.GameConfig {
	return internal.GameConfig{
		GridSize:   10,
		Fleet:      twoShipFleet,
		RateLimits: internal.RateLimits{},
	}
}

// fakeConn 記錄收到的每一則訊息（以 JSON 形式，和線上一致）
type fakeConn struct {
	mu   sync.Mutex
	msgs []map[string]any
	err  error
}

func (c *fakeConn) Send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, decoded)
	return nil
}

// actions 收到的訊息類型（依序）
func (c *fakeConn) actions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.msgs))
	for _, m := range c.msgs {
		out = append(out, m["action"].(string))
	}
	return out
}

// last 最後一則訊息
func (c *fakeConn) last() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.msgs) == 0 {
		return nil
	}
	return c.msgs[len(c.msgs)-1]
}

// find 指定類型的所有訊息
func (c *fakeConn) find(action string) []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []map[string]any
	for _, m := range c.msgs {
		if m["action"] == action {
			out = append(out, m)
		}
	}
	return out
}

// drain 清空記錄，返回清空前的訊息類型
func (c *fakeConn) drain() []string {
	actions := c.actions()
	c.mu.Lock()
	c.msgs = nil
	c.mu.Unlock()
	return actions
}

// fakeClock 手動推進的時鐘
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingPublisher 記錄所有發布的事件
type recordingPublisher struct {
	mu     sync.Mutex
	events []*internal.MatchEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e *internal.MatchEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// player 一名已連線的測試玩家
type player struct {
	conn    *fakeConn
	session *internal.Session
}

func (p *player) do(t testing.TB, a internal.Action) error {
	t.Helper()
	return p.session.Dispatch(&a)
}

func (p *player) must(t testing.TB, a internal.Action) {
	t.Helper()
	require.NoError(t, p.session.Dispatch(&a))
}

func connect(t testing.TB, m *internal.Manager, playerID, roomID string) *player {
	t.Helper()
	conn := &fakeConn{}
	s, err := m.Connect(playerID, roomID, conn)
	require.NoError(t, err)
	return &player{conn: conn, session: s}
}

func coord(row, col int) *game.Coord {
	return &game.Coord{Row: row, Col: col}
}

func attack(row, col int) internal.Action {
	return internal.Action{Kind: internal.ActionAttack, Coordinate: coord(row, col)}
}

func placeShip(name string, size, row, col int, o game.Orientation) internal.Action {
	return internal.Action{
		Kind:        internal.ActionPlaceShip,
		ShipName:    name,
		ShipSize:    size,
		Origin:      coord(row, col),
		Orientation: o,
	}
}

// placeStandard 放置 twoShipFleet 並確認
//
//	Sous-marin: (0,0) (0,1) (0,2)
//	Torpilleur: (4,4) (5,4)
func placeStandard(t testing.TB, p *player) {
	t.Helper()
	p.must(t, placeShip("Sous-marin", 3, 0, 0, game.IncCol))
	p.must(t, placeShip("Torpilleur", 2, 4, 4, game.IncRow))
	p.must(t, internal.Action{Kind: internal.ActionConfirmPlacement})
}

// battleRoom 兩名玩家都已佈署完成、進入戰鬥（slot 0 先攻）
func battleRoom(t testing.TB, m *internal.Manager, roomID string) (*player, *player) {
	t.Helper()
	p1 := connect(t, m, "alice", roomID)
	p2 := connect(t, m, "bob", roomID)
	placeStandard(t, p1)
	placeStandard(t, p2)
	p1.conn.drain()
	p2.conn.drain()
	return p1, p2
}
