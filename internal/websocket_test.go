package internal_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koopa0/system-design/14-battleship/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *internal.WebSocketHub, *internal.Manager) {
	t.Helper()
	logger := testLogger()
	manager := internal.NewManager(testGameConfig(), nil, logger)
	hub := internal.NewWebSocketHub(manager, internal.DefaultConfig().WebSocket, logger)

	mux := http.NewServeMux()
	mux.Handle("/", internal.NewHandler(manager, hub, logger).Routes())
	mux.HandleFunc("/ws/game", hub.ServeWS)
	mux.HandleFunc("/ws/game/{room_id}", hub.ServeWS)

	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		hub.Stop()
		server.Close()
	})
	return server, hub, manager
}

func dial(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + path
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

// readUntil 讀取訊息直到指定類型出現
func readUntil(t *testing.T, ws *websocket.Conn, action string) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg map[string]any
		require.NoError(t, ws.ReadJSON(&msg), "等待 %s", action)
		if msg["action"] == action {
			return msg
		}
	}
}

// TestWebSocketHub_Connection 測試連線與座位
func TestWebSocketHub_Connection(t *testing.T) {
	server, hub, manager := newTestServer(t)

	ws1 := dial(t, server, "/ws/game/r1")
	joined := readUntil(t, ws1, internal.MsgPlayerJoined)
	assert.Equal(t, float64(0), joined["slot"])
	assert.NotEmpty(t, joined["player_id"])

	ws2 := dial(t, server, "/ws/game/r1")
	joined = readUntil(t, ws2, internal.MsgPlayerJoined)
	assert.Equal(t, float64(1), joined["slot"])

	readUntil(t, ws1, internal.MsgReady)
	readUntil(t, ws2, internal.MsgReady)

	assert.Eventually(t, func() bool { return hub.ConnectionCount() == 2 }, time.Second, 10*time.Millisecond)

	room, ok := manager.RoomByID("r1")
	require.True(t, ok)
	assert.Equal(t, 2, room.PlayerCount())
}

// TestWebSocketHub_RoomFull 第三名玩家收到錯誤後被關閉
func TestWebSocketHub_RoomFull(t *testing.T) {
	server, _, _ := newTestServer(t)

	dial(t, server, "/ws/game/r1")
	dial(t, server, "/ws/game/r1")

	ws3 := dial(t, server, "/ws/game/r1")
	msg := readUntil(t, ws3, internal.MsgError)
	assert.Contains(t, msg["message"], "房間已滿")

	_, _, err := ws3.ReadMessage()
	assert.Error(t, err, "連接應已關閉")
}

// TestWebSocketHub_Matchmaking 沒有房間 ID 時自動配對
func TestWebSocketHub_Matchmaking(t *testing.T) {
	server, _, manager := newTestServer(t)

	ws1 := dial(t, server, "/ws/game")
	id1 := readUntil(t, ws1, internal.MsgPlayerJoined)["player_id"].(string)
	ws2 := dial(t, server, "/ws/game")
	id2 := readUntil(t, ws2, internal.MsgPlayerJoined)["player_id"].(string)

	r1, ok := manager.RoomOf(id1)
	require.True(t, ok)
	r2, ok := manager.RoomOf(id2)
	require.True(t, ok)
	assert.Equal(t, r1.ID, r2.ID)
}

// TestWebSocketHub_Gameplay 透過 WebSocket 走完佈署與一次攻擊
func TestWebSocketHub_Gameplay(t *testing.T) {
	server, _, _ := newTestServer(t)

	ws1 := dial(t, server, "/ws/game/r1")
	readUntil(t, ws1, internal.MsgPlayerJoined)
	ws2 := dial(t, server, "/ws/game/r1")
	readUntil(t, ws2, internal.MsgReady)
	readUntil(t, ws1, internal.MsgReady)

	for _, ws := range []*websocket.Conn{ws1, ws2} {
		require.NoError(t, ws.WriteJSON(map[string]any{
			"action": "place_ship", "ship_name": "Sous-marin", "ship_size": 3,
			"origin": []int{0, 0}, "orientation": "inc_col",
		}))
		readUntil(t, ws, internal.MsgGridUpdate)
		require.NoError(t, ws.WriteJSON(map[string]any{
			"action": "place_ship", "ship_name": "Torpilleur", "ship_size": 2,
			"origin": []int{4, 4}, "orientation": "inc_row",
		}))
		readUntil(t, ws, internal.MsgGridUpdate)
		require.NoError(t, ws.WriteJSON(map[string]any{"action": "confirm_placement"}))
		readUntil(t, ws, internal.MsgPlacementConfirmed)
	}

	assert.Equal(t, float64(0), readUntil(t, ws1, internal.MsgTurnStart)["turn_slot"])
	readUntil(t, ws2, internal.MsgTurnStart)

	require.NoError(t, ws1.WriteJSON(map[string]any{"action": "attack", "coordinate": []int{0, 0}}))
	res := readUntil(t, ws2, internal.MsgAttackResult)
	assert.Equal(t, "hit", res["outcome"])
	assert.Equal(t, internal.RoleDefender, res["role"])
	assert.Equal(t, true, res["replay_allowed"])

	// 格式錯誤只回覆錯誤，連接保持
	require.NoError(t, ws1.WriteMessage(websocket.TextMessage, []byte(`{"action":"attack"}`)))
	readUntil(t, ws1, internal.MsgError)

	require.NoError(t, ws1.WriteJSON(map[string]any{"action": "attack", "coordinate": []int{9, 9}}))
	res = readUntil(t, ws1, internal.MsgAttackResult)
	assert.Equal(t, "miss", res["outcome"])
	changed := readUntil(t, ws1, internal.MsgTurnChanged)
	assert.Equal(t, float64(1), changed["turn_slot"])
}

// TestWebSocketHub_Disconnect 斷線通知對手並釋放座位
func TestWebSocketHub_Disconnect(t *testing.T) {
	server, hub, manager := newTestServer(t)

	ws1 := dial(t, server, "/ws/game/r1")
	readUntil(t, ws1, internal.MsgPlayerJoined)
	ws2 := dial(t, server, "/ws/game/r1")
	readUntil(t, ws2, internal.MsgReady)

	require.NoError(t, ws2.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	ws2.Close()

	readUntil(t, ws1, internal.MsgOpponentDisconnected)

	assert.Eventually(t, func() bool {
		room, ok := manager.RoomByID("r1")
		return ok && room.PlayerCount() == 1 && hub.ConnectionCount() == 1
	}, time.Second, 10*time.Millisecond)

	// 空出的座位可以再加入
	ws3 := dial(t, server, "/ws/game/r1")
	assert.Equal(t, float64(1), readUntil(t, ws3, internal.MsgPlayerJoined)["slot"])
}

// TestWebSocketHub_Stop 停止時關閉所有連接並拒絕新連接
func TestWebSocketHub_Stop(t *testing.T) {
	server, hub, manager := newTestServer(t)

	ws := dial(t, server, "/ws/game/r1")
	readUntil(t, ws, internal.MsgPlayerJoined)
	assert.Eventually(t, func() bool { return hub.ConnectionCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Stop()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := ws.ReadMessage()
	assert.Error(t, err)

	assert.Eventually(t, func() bool {
		_, ok := manager.RoomByID("r1")
		return !ok
	}, time.Second, 10*time.Millisecond)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/game/r2"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	assert.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	}
}
