package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// 對局事件類型
const (
	EventPlayerJoined   = "player_joined"
	EventPlayerLeft     = "player_left"
	EventBattleStarted  = "battle_started"
	EventGameOver       = "game_over"
	EventRematchStarted = "rematch_started"
)

// MatchEvent 對局生命週期事件
//
// 只描述發生了什麼，不攜帶棋盤內容（避免洩漏佈局給下游）。
type MatchEvent struct {
	RoomID    string         `json:"room_id"`
	Type      string         `json:"type"`
	PlayerID  string         `json:"player_id,omitempty"`
	Slot      int            `json:"slot"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// EventPublisher 事件發布介面
//
// 發布在房間鎖之外進行；失敗只記錄日誌，不影響對局。
type EventPublisher interface {
	Publish(ctx context.Context, event *MatchEvent) error
	Close() error
}

// NopPublisher 不發布任何事件（未配置 NATS 時）
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *MatchEvent) error { return nil }
func (NopPublisher) Close() error                               { return nil }

// NATSPublisher 將事件發布到 NATS
//
// Subject 命名：{prefix}.{type}，例如 battleship.game_over。
// 房間 ID 可能包含 '.'，所以放在訊息內容而不是 subject 裡。
//
// 使用 Core NATS 而非 JetStream：
//   - 事件是通知（統計、排行榜等下游可選訂閱），不需要持久化重放
//   - Publish 只寫入客戶端緩衝區，不會阻塞對局流程
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSPublisher 連接 NATS
func NewNATSPublisher(url, prefix string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("battleship-server"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("連接 NATS 失敗: %w", err)
	}
	return &NATSPublisher{conn: conn, prefix: prefix}, nil
}

// Subject 事件對應的 subject
func (p *NATSPublisher) Subject(eventType string) string {
	return fmt.Sprintf("%s.%s", p.prefix, eventType)
}

// Publish 發布事件
func (p *NATSPublisher) Publish(ctx context.Context, event *MatchEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化事件失敗: %w", err)
	}
	if err := p.conn.Publish(p.Subject(event.Type), data); err != nil {
		return fmt.Errorf("發布事件失敗: %w", err)
	}
	return nil
}

// Close 送出緩衝區中的事件並關閉連接
func (p *NATSPublisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return fmt.Errorf("關閉 NATS 連接失敗: %w", err)
	}
	return nil
}
