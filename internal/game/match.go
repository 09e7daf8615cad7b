package game

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

var (
	// ErrWrongPhase 操作在當前階段不合法（如放置階段攻擊）
	ErrWrongPhase = errors.New("當前階段不允許此操作")
	// ErrOutOfTurn 不是該玩家的回合
	ErrOutOfTurn = errors.New("還沒輪到你")
)

// Phase 對局階段
//
//	placement → battle → finished
//	    ↑___________________|  (Reset)
type Phase string

const (
	PhasePlacement Phase = "placement"
	PhaseBattle    Phase = "battle"
	PhaseFinished  Phase = "finished"
)

const noSlot = -1

// Match 一局對戰的狀態
//
// 兩個座位（slot 0/1）各有一塊 Board 與一個「放置完成」旗標。
// 雙方都確認放置後進入戰鬥，固定由 slot 0 先攻（可預測、易測試）。
//
// Match 本身不加鎖，由持有它的 Room 串行化所有操作。
type Match struct {
	size      int
	fleet     []ShipClass
	boards    [2]*Board
	confirmed [2]bool
	turn      int
	winner    int
}

// NewMatch 創建新對局
func NewMatch(size int, fleet []ShipClass) *Match {
	m := &Match{
		size:  size,
		fleet: append([]ShipClass(nil), fleet...),
	}
	m.Reset()
	return m
}

// Reset 清空雙方棋盤、旗標與回合（重賽使用）
func (m *Match) Reset() {
	m.boards = [2]*Board{NewBoard(m.size), NewBoard(m.size)}
	m.confirmed = [2]bool{}
	m.turn = noSlot
	m.winner = noSlot
}

// Fleet 艦隊編制（副本）
func (m *Match) Fleet() []ShipClass { return append([]ShipClass(nil), m.fleet...) }

// Board 指定座位的棋盤
func (m *Match) Board(slot int) *Board { return m.boards[slot] }

// Phase 當前階段
func (m *Match) Phase() Phase {
	switch {
	case m.winner != noSlot:
		return PhaseFinished
	case m.turn != noSlot:
		return PhaseBattle
	default:
		return PhasePlacement
	}
}

// Turn 當前可攻擊的座位；戰鬥開始前返回 false
func (m *Match) Turn() (int, bool) {
	return m.turn, m.turn != noSlot
}

// Winner 勝者座位；未分勝負返回 false
func (m *Match) Winner() (int, bool) {
	return m.winner, m.winner != noSlot
}

// Confirmed 該座位是否已確認放置
func (m *Match) Confirmed(slot int) bool { return m.confirmed[slot] }

// canEditPlacement 放置階段且該座位尚未確認
func (m *Match) canEditPlacement(slot int) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	if m.Phase() != PhasePlacement {
		return fmt.Errorf("%w: 戰鬥已開始", ErrWrongPhase)
	}
	if m.confirmed[slot] {
		return fmt.Errorf("%w: 已確認放置", ErrWrongPhase)
	}
	return nil
}

// PlaceShip 為指定座位放置一艘艦艇
//
// 除了棋盤規則外，名稱必須屬於艦隊編制且長度相符。
func (m *Match) PlaceShip(slot int, name string, anchor Coord, length int, o Orientation) (Ship, error) {
	if err := m.canEditPlacement(slot); err != nil {
		return Ship{}, err
	}
	sc, ok := classOf(m.fleet, name)
	if !ok {
		return Ship{}, fmt.Errorf("%w: 未知艦種 %q", ErrInvalidPlacement, name)
	}
	if sc.Length != length {
		return Ship{}, fmt.Errorf("%w: %s 長度應為 %d", ErrInvalidPlacement, name, sc.Length)
	}
	return m.boards[slot].Place(name, anchor, length, o)
}

// AutoPlace 隨機放置整支艦隊（覆蓋現有佈局）
func (m *Match) AutoPlace(slot int, rng *rand.Rand) error {
	if err := m.canEditPlacement(slot); err != nil {
		return err
	}
	return AutoPlace(m.boards[slot], m.fleet, rng)
}

// ResetPlacement 清空指定座位的佈局
func (m *Match) ResetPlacement(slot int) error {
	if err := m.canEditPlacement(slot); err != nil {
		return err
	}
	m.boards[slot].Reset()
	return nil
}

// AllShipsPlaced 艦隊是否全部就位
func (m *Match) AllShipsPlaced(slot int) bool {
	return m.boards[slot].AllPlaced(m.fleet)
}

// ConfirmPlacement 確認放置
//
// 艦隊必須全部就位。雙方都確認後回合指標初始化為 slot 0，
// battleStarted 為 true 表示這次確認觸發了開戰。
func (m *Match) ConfirmPlacement(slot int) (battleStarted bool, err error) {
	if err := m.canEditPlacement(slot); err != nil {
		return false, err
	}
	if !m.AllShipsPlaced(slot) {
		return false, fmt.Errorf("%w: 艦隊尚未全部放置", ErrInvalidPlacement)
	}
	m.confirmed[slot] = true
	if m.confirmed[0] && m.confirmed[1] {
		m.turn = 0
		return true, nil
	}
	return false, nil
}

// AdvanceTurn 交換回合
func (m *Match) AdvanceTurn() {
	if m.turn != noSlot {
		m.turn = 1 - m.turn
	}
}

// Attack attacker 攻擊對手棋盤
//
// 只有戰鬥階段且輪到 attacker 時才能攻擊。
// 非保留回合的結果（miss / already_attacked / out_of_bounds）會交換回合；
// eliminated 記錄勝者並結束對局。
func (m *Match) Attack(attacker int, c Coord) (AttackResult, error) {
	if err := checkSlot(attacker); err != nil {
		return AttackResult{}, err
	}
	if m.Phase() != PhaseBattle {
		return AttackResult{}, fmt.Errorf("%w: 戰鬥尚未開始或已結束", ErrWrongPhase)
	}
	if m.turn != attacker {
		return AttackResult{}, ErrOutOfTurn
	}

	result := m.boards[1-attacker].Attack(c)
	switch {
	case result.Outcome == Eliminated:
		m.winner = attacker
		m.turn = noSlot
	case !result.Outcome.GrantsReplay():
		m.AdvanceTurn()
	}
	return result, nil
}

func checkSlot(slot int) error {
	if slot != 0 && slot != 1 {
		return fmt.Errorf("%w: 座位 %d 不存在", ErrWrongPhase, slot)
	}
	return nil
}
