package internal_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/koopa0/system-design/14-battleship/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMatchEvent_JSON 事件格式不含棋盤
func TestMatchEvent_JSON(t *testing.T) {
	e := &internal.MatchEvent{
		RoomID:    "r1",
		Type:      internal.EventGameOver,
		PlayerID:  "alice",
		Slot:      0,
		Data:      map[string]any{"winner_slot": 0},
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"room_id": "r1",
		"type": "game_over",
		"player_id": "alice",
		"slot": 0,
		"data": {"winner_slot": 0},
		"timestamp": "2024-01-01T00:00:00Z"
	}`, string(data))
}

// TestManager_PublishesEvents 事件帶有房間與時間戳
func TestManager_PublishesEvents(t *testing.T) {
	clock := newFakeClock()
	pub := &recordingPublisher{}
	m := internal.NewManager(testGameConfig(), pub, testLogger(), internal.WithClock(clock.Now))

	_, p2 := battleRoom(t, m, "r1")
	p2.session.Close()

	assert.Equal(t, []string{
		internal.EventPlayerJoined,
		internal.EventPlayerJoined,
		internal.EventBattleStarted,
		internal.EventPlayerLeft,
	}, pub.types())

	for _, e := range pub.events {
		assert.Equal(t, "r1", e.RoomID)
		assert.Equal(t, clock.Now(), e.Timestamp)
	}
	left := pub.events[3]
	assert.Equal(t, "bob", left.PlayerID)
	assert.Equal(t, 1, left.Slot)
}

// TestNopPublisher 未配置 NATS 時不做任何事
func TestNopPublisher(t *testing.T) {
	var p internal.EventPublisher = internal.NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), &internal.MatchEvent{}))
	assert.NoError(t, p.Close())
}

// TestNATSPublisher_Unreachable 連不上 NATS 時返回錯誤
func TestNATSPublisher_Unreachable(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping network test in short mode")
	}
	_, err := internal.NewNATSPublisher("nats://127.0.0.1:1", "battleship")
	assert.Error(t, err)
}
