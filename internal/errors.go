package internal

import (
	"errors"

	"github.com/koopa0/system-design/14-battleship/internal/game"
)

// 錯誤分類
//
// 所有錯誤都在 Session 邊界被攔截，轉成一則 error 訊息發給出錯的連接，
// 不會中斷連接，也不會破壞房間狀態。
var (
	ErrValidation      = errors.New("訊息格式不正確")
	ErrRateLimited     = errors.New("操作太頻繁")
	ErrUnknownAction   = errors.New("未知的操作")
	ErrRoomFull        = errors.New("房間已滿")
	ErrInvariantBroken = errors.New("房間狀態不一致")
	ErrPlayerExists    = errors.New("玩家已在房間內")

	ErrInvalidPlacement = game.ErrInvalidPlacement
	ErrOutOfTurn        = game.ErrOutOfTurn
	ErrWrongPhase       = game.ErrWrongPhase
)
