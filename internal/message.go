package internal

import (
	"encoding/json"
	"fmt"

	"github.com/koopa0/system-design/14-battleship/internal/game"
)

// ActionKind 客戶端操作類型
type ActionKind string

const (
	ActionJoin             ActionKind = "join"
	ActionSetReady         ActionKind = "set_ready"
	ActionPlaceShip        ActionKind = "place_ship"
	ActionAutoPlace        ActionKind = "auto_place_request"
	ActionResetPlacement   ActionKind = "reset_placement"
	ActionConfirmPlacement ActionKind = "confirm_placement"
	ActionAttack           ActionKind = "attack"
	ActionRematch          ActionKind = "rematch_request"
	ActionDisconnect       ActionKind = "disconnect"
)

// Action 客戶端送來的一則操作
//
// 所有操作共用一個結構，各欄位只在對應操作中使用：
//   - place_ship：ship_size, origin, orientation, ship_name
//   - attack：coordinate
type Action struct {
	Kind        ActionKind       `json:"action"`
	ShipSize    int              `json:"ship_size,omitempty"`
	Origin      *game.Coord      `json:"origin,omitempty"`
	Orientation game.Orientation `json:"orientation,omitempty"`
	ShipName    string           `json:"ship_name,omitempty"`
	Coordinate  *game.Coord      `json:"coordinate,omitempty"`
}

// DecodeAction 解析並驗證一則客戶端訊息
//
// 這是核心邏輯的邊界：格式錯誤返回 ErrValidation，
// 未知操作返回 ErrUnknownAction，通過的 Action 保證欄位齊全。
func DecodeAction(raw []byte) (*Action, error) {
	var a Action
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if a.Kind == "" {
		return nil, fmt.Errorf("%w: 缺少 action 欄位", ErrValidation)
	}

	switch a.Kind {
	case ActionJoin, ActionSetReady, ActionAutoPlace, ActionResetPlacement,
		ActionConfirmPlacement, ActionRematch, ActionDisconnect:
	case ActionPlaceShip:
		switch {
		case a.ShipSize <= 0:
			return nil, fmt.Errorf("%w: ship_size 必須為正整數", ErrValidation)
		case a.Origin == nil:
			return nil, fmt.Errorf("%w: 缺少 origin", ErrValidation)
		case !a.Orientation.Valid():
			return nil, fmt.Errorf("%w: orientation 必須是 inc_col/dec_col/inc_row/dec_row", ErrValidation)
		case a.ShipName == "":
			return nil, fmt.Errorf("%w: 缺少 ship_name", ErrValidation)
		}
	case ActionAttack:
		if a.Coordinate == nil {
			return nil, fmt.Errorf("%w: 缺少 coordinate", ErrValidation)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, a.Kind)
	}
	return &a, nil
}

// 伺服器送出的訊息類型
const (
	MsgPlayerJoined         = "player_joined"
	MsgReady                = "ready"
	MsgError                = "error"
	MsgWaitingOpponent      = "waiting_opponent"
	MsgPlacementStart       = "placement_start"
	MsgGridUpdate           = "grid_update"
	MsgPlacementConfirmed   = "placement_confirmed"
	MsgBattleStart          = "battle_start"
	MsgTurnStart            = "turn_start"
	MsgAttackResult         = "attack_result"
	MsgTurnChanged          = "turn_changed"
	MsgGameOver             = "game_over"
	MsgOpponentWaitRematch  = "opponent_waiting_rematch"
	MsgRematchRestart       = "rematch_restart"
	MsgOpponentDisconnected = "opponent_disconnected"
)

// 攻擊結果中的角色
const (
	RoleAttacker = "attacker"
	RoleDefender = "defender"
)

// PlayerJoinedMessage 告知玩家被分配的座位
type PlayerJoinedMessage struct {
	Action   string `json:"action"`
	Slot     int    `json:"slot"`
	PlayerID string `json:"player_id"`
}

// TextMessage 只帶說明文字的訊息（ready、error、placement_confirmed 等）
type TextMessage struct {
	Action  string `json:"action"`
	Message string `json:"message,omitempty"`
}

// GridUpdateMessage 玩家自己的棋盤
type GridUpdateMessage struct {
	Action string    `json:"action"`
	Grid   game.View `json:"grid"`
}

// TurnMessage 回合開始 / 回合交換
type TurnMessage struct {
	Action        string `json:"action"`
	TurnSlot      int    `json:"turn_slot"`
	RecipientSlot int    `json:"recipient_slot"`
	Message       string `json:"message"`
}

// AttackResultMessage 攻擊結果，雙方各收到一份（角色不同）
type AttackResultMessage struct {
	Action        string       `json:"action"`
	Outcome       game.Outcome `json:"outcome"`
	Coordinate    game.Coord   `json:"coordinate"`
	Role          string       `json:"role"`
	ReplayAllowed bool         `json:"replay_allowed"`
	ShipName      string       `json:"ship_name,omitempty"`
	ShipSize      int          `json:"ship_size,omitempty"`
	SunkPositions []game.Coord `json:"sunk_positions,omitempty"`
}

// GameOverMessage 對局結束
type GameOverMessage struct {
	Action   string `json:"action"`
	WinnerID string `json:"winner_id"`
	Victory  bool   `json:"victory"`
}

// RematchWaitingMessage 有玩家請求重賽
type RematchWaitingMessage struct {
	Action        string `json:"action"`
	WaitingPlayer string `json:"waiting_player"`
	Message       string `json:"message"`
}

func errorMessage(err error) TextMessage {
	return TextMessage{Action: MsgError, Message: err.Error()}
}

func turnMessage(action string, turn, recipient int) TurnMessage {
	text := "對手的回合"
	if turn == recipient {
		text = "輪到你了！"
	}
	return TurnMessage{Action: action, TurnSlot: turn, RecipientSlot: recipient, Message: text}
}
