package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/koopa0/system-design/14-battleship/internal/game"
)

// 系統設計問題：
//   每條連接的操作如何路由到房間，並把結果一致地推送給房間內的兩個人？
//
// 核心挑戰：
//   1. 同一條連接的操作必須嚴格依序處理
//   2. 房間鎖內不能做 I/O（慢客戶端不能拖住對手）
//   3. 斷線清理可能與對手的斷線同時發生，而且只能執行一次
//
// 設計方案：
//   ✅ 一條連接一個 Session，由該連接的讀取 goroutine 依序呼叫 Handle
//   ✅ Outbox - 鎖內收集要送出的訊息與事件，解鎖後統一投遞
//   ✅ sync.Once - Close 冪等

// delivery 待投遞的一則訊息
type delivery struct {
	conn Conn
	msg  any
}

// Outbox 一次操作產生的所有輸出
type Outbox struct {
	roomID     string
	deliveries []delivery
	events     []*MatchEvent
}

// send 發給單一連接
func (o *Outbox) send(conn Conn, msg any) {
	if conn == nil {
		return
	}
	o.deliveries = append(o.deliveries, delivery{conn: conn, msg: msg})
}

// broadcast 依座位順序發給房間內每個人，msg 依收件人產生
func (o *Outbox) broadcast(occupants []occupant, msg func(o occupant) any) {
	for _, occ := range occupants {
		o.send(occ.conn, msg(occ))
	}
}

// event 記錄對局事件
func (o *Outbox) event(eventType, playerID string, slot int, data map[string]any) {
	o.events = append(o.events, &MatchEvent{
		RoomID:   o.roomID,
		Type:     eventType,
		PlayerID: playerID,
		Slot:     slot,
		Data:     data,
	})
}

// Session 一條連接的操作分派器
type Session struct {
	PlayerID string
	Slot     int

	room      *Room
	conn      Conn
	manager   *Manager
	logger    *slog.Logger
	closeOnce sync.Once
}

// Connect 連接建立：加入房間並通知
//
// 成功後發給自己 player_joined；房間滿兩人時通知雙方可以開始。
func (m *Manager) Connect(playerID, roomID string, conn Conn) (*Session, error) {
	room, slot, err := m.Join(playerID, conn, roomID)
	if err != nil {
		return nil, err
	}

	s := &Session{
		PlayerID: playerID,
		Slot:     slot,
		room:     room,
		conn:     conn,
		manager:  m,
		logger:   m.logger.With("room_id", room.ID, "player_id", playerID),
	}

	room.mu.Lock()
	out := &Outbox{roomID: room.ID}
	s.joinNotices(room.occupantsLocked(), out)
	out.event(EventPlayerJoined, playerID, slot, nil)
	room.mu.Unlock()

	s.flush(out)
	return s, nil
}

// Room 所在房間
func (s *Session) Room() *Room { return s.room }

// Handle 處理一則原始訊息
//
// 必須由同一個 goroutine 依序呼叫。任何錯誤都只產生一則 error 訊息給自己。
func (s *Session) Handle(raw []byte) error {
	action, err := DecodeAction(raw)
	if err != nil {
		s.reject("", err)
		return err
	}
	return s.Dispatch(action)
}

// Dispatch 執行一個已驗證的操作
func (s *Session) Dispatch(a *Action) error {
	handler, ok := s.handlers()[a.Kind]
	if !ok {
		err := fmt.Errorf("%w: %s", ErrUnknownAction, a.Kind)
		s.reject(a.Kind, err)
		return err
	}

	out, err := s.room.exec(s.PlayerID, a.Kind, func(slot int, out *Outbox) error {
		return handler(a, slot, out)
	})
	if err != nil {
		s.reject(a.Kind, err)
		return err
	}
	s.flush(out)
	return nil
}

type actionHandler func(a *Action, slot int, out *Outbox) error

func (s *Session) handlers() map[ActionKind]actionHandler {
	return map[ActionKind]actionHandler{
		ActionJoin:             s.onJoin,
		ActionSetReady:         s.onSetReady,
		ActionPlaceShip:        s.onPlaceShip,
		ActionAutoPlace:        s.onAutoPlace,
		ActionResetPlacement:   s.onResetPlacement,
		ActionConfirmPlacement: s.onConfirmPlacement,
		ActionAttack:           s.onAttack,
		ActionRematch:          s.onRematch,
		ActionDisconnect:       s.onDisconnect,
	}
}

// 以下 on* 都在房間鎖內執行

func (s *Session) onJoin(_ *Action, _ int, out *Outbox) error {
	s.joinNotices(s.room.occupantsLocked(), out)
	return nil
}

func (s *Session) joinNotices(occupants []occupant, out *Outbox) {
	out.send(s.conn, PlayerJoinedMessage{Action: MsgPlayerJoined, Slot: s.Slot, PlayerID: s.PlayerID})
	if len(occupants) == 2 {
		out.broadcast(occupants, func(o occupant) any {
			return TextMessage{Action: MsgReady, Message: fmt.Sprintf("玩家 %d 已連線，對局可以開始！", s.Slot)}
		})
	}
}

func (s *Session) onSetReady(_ *Action, _ int, out *Outbox) error {
	r := s.room
	r.ready[s.PlayerID] = true
	if r.bothReadyLocked() {
		out.broadcast(r.occupantsLocked(), func(occupant) any {
			return TextMessage{Action: MsgPlacementStart, Message: "雙方都已準備，開始佈署艦隊！"}
		})
		return nil
	}
	out.send(s.conn, TextMessage{Action: MsgWaitingOpponent, Message: "等待對手準備…"})
	return nil
}

func (s *Session) onPlaceShip(a *Action, slot int, out *Outbox) error {
	m := s.room.match
	if _, err := m.PlaceShip(slot, a.ShipName, *a.Origin, a.ShipSize, a.Orientation); err != nil {
		return err
	}
	out.send(s.conn, GridUpdateMessage{Action: MsgGridUpdate, Grid: m.Board(slot).Grid().View()})
	return nil
}

func (s *Session) onAutoPlace(_ *Action, slot int, out *Outbox) error {
	m := s.room.match
	if err := m.AutoPlace(slot, s.room.rng); err != nil {
		return err
	}
	out.send(s.conn, GridUpdateMessage{Action: MsgGridUpdate, Grid: m.Board(slot).Grid().View()})
	return nil
}

func (s *Session) onResetPlacement(_ *Action, slot int, out *Outbox) error {
	m := s.room.match
	if err := m.ResetPlacement(slot); err != nil {
		return err
	}
	out.send(s.conn, GridUpdateMessage{Action: MsgGridUpdate, Grid: m.Board(slot).Grid().View()})
	return nil
}

func (s *Session) onConfirmPlacement(_ *Action, slot int, out *Outbox) error {
	r := s.room
	started, err := r.match.ConfirmPlacement(slot)
	if err != nil {
		return err
	}
	out.send(s.conn, TextMessage{Action: MsgPlacementConfirmed, Message: "已確認佈署"})
	if !started {
		return nil
	}

	turn, _ := r.match.Turn()
	occupants := r.occupantsLocked()
	out.broadcast(occupants, func(occupant) any {
		return TextMessage{Action: MsgBattleStart, Message: "戰鬥開始！"}
	})
	out.broadcast(occupants, func(o occupant) any {
		return turnMessage(MsgTurnStart, turn, o.slot)
	})
	out.event(EventBattleStarted, s.PlayerID, slot, map[string]any{"first_turn": turn})
	return nil
}

// onAttack 攻擊
//
// 訊息順序：attack_result（雙方）→ turn_changed（未保留回合時）→ game_over（全滅時）。
func (s *Session) onAttack(a *Action, slot int, out *Outbox) error {
	r := s.room
	if _, ok := r.opponentLocked(s.PlayerID); !ok {
		return fmt.Errorf("%w: 沒有可攻擊的對手", ErrInvariantBroken)
	}

	res, err := r.match.Attack(slot, *a.Coordinate)
	if err != nil {
		return err
	}

	occupants := r.occupantsLocked()
	replay := res.Outcome.GrantsReplay() && res.Outcome != game.Eliminated
	out.broadcast(occupants, func(o occupant) any {
		role := RoleDefender
		if o.slot == slot {
			role = RoleAttacker
		}
		return AttackResultMessage{
			Action:        MsgAttackResult,
			Outcome:       res.Outcome,
			Coordinate:    res.Coord,
			Role:          role,
			ReplayAllowed: replay,
			ShipName:      res.ShipName,
			ShipSize:      res.ShipSize,
			SunkPositions: res.SunkPositions,
		}
	})

	if !res.Outcome.GrantsReplay() {
		turn, _ := r.match.Turn()
		out.broadcast(occupants, func(o occupant) any {
			return turnMessage(MsgTurnChanged, turn, o.slot)
		})
	}

	if res.Outcome == game.Eliminated {
		out.broadcast(occupants, func(o occupant) any {
			return GameOverMessage{Action: MsgGameOver, WinnerID: s.PlayerID, Victory: o.id == s.PlayerID}
		})
		out.event(EventGameOver, s.PlayerID, slot, map[string]any{"winner_slot": slot})
	}
	return nil
}

// onRematch 重賽請求：雙方都請求後重置對局
func (s *Session) onRematch(_ *Action, slot int, out *Outbox) error {
	r := s.room
	r.setRematchLocked(s.PlayerID, true)

	occupants := r.occupantsLocked()
	out.broadcast(occupants, func(o occupant) any {
		text := "對手想要重賽，要再來一局嗎？"
		if o.id == s.PlayerID {
			text = "等待對手同意重賽…"
		}
		return RematchWaitingMessage{Action: MsgOpponentWaitRematch, WaitingPlayer: s.PlayerID, Message: text}
	})

	if r.bothWantRematchLocked() {
		r.resetForRematchLocked()
		out.broadcast(occupants, func(occupant) any {
			return TextMessage{Action: MsgRematchRestart}
		})
		out.event(EventRematchStarted, s.PlayerID, slot, nil)
	}
	return nil
}

// onDisconnect 主動「離開」：只撤回自己的重賽請求，仍留在房間內
func (s *Session) onDisconnect(_ *Action, _ int, _ *Outbox) error {
	s.room.setRematchLocked(s.PlayerID, false)
	return nil
}

// Close 連接斷開後的清理（冪等）
//
// 房間可能已經因為對手同時斷線而被刪除，此時什麼都不做。
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		room, slot, remaining, ok := s.manager.leave(s.PlayerID)
		if !ok {
			return
		}
		out := &Outbox{roomID: room.ID}
		out.broadcast(remaining, func(occupant) any {
			return TextMessage{Action: MsgOpponentDisconnected, Message: "對手已斷線"}
		})
		out.event(EventPlayerLeft, s.PlayerID, slot, nil)
		s.flush(out)
	})
}

// reject 回覆一則錯誤訊息
func (s *Session) reject(kind ActionKind, err error) {
	level := slog.LevelDebug
	if errors.Is(err, ErrInvariantBroken) {
		level = slog.LevelWarn
	}
	s.logger.Log(context.Background(), level, "操作被拒絕", "action", kind, "error", err)

	if sendErr := s.conn.Send(errorMessage(err)); sendErr != nil {
		s.logger.Warn("發送錯誤訊息失敗", "error", sendErr)
	}
}

// flush 投遞訊息並發布事件（鎖外）
func (s *Session) flush(out *Outbox) {
	for _, d := range out.deliveries {
		if err := d.conn.Send(d.msg); err != nil {
			s.logger.Warn("投遞訊息失敗", "error", err)
		}
	}
	s.manager.publish(out.events)
}
