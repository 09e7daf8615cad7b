package game

import (
	"encoding/json"
	"fmt"
)

// CellKind 格子類型
type CellKind uint8

const (
	CellEmpty CellKind = iota // 海面
	CellMiss                  // 已攻擊的海面
	CellShip                  // 艦艇區段
)

// SegmentState 艦艇區段狀態
//
// 合法轉換：
//
//	Intact → Hit（攻擊命中）
//	Hit → Sunk（整艘艦艇所有區段都被命中時一起轉換）
type SegmentState uint8

const (
	Intact SegmentState = iota
	Hit
	Sunk
)

// Code 線上格式代碼
func (s SegmentState) Code() string {
	switch s {
	case Hit:
		return "X"
	case Sunk:
		return "C"
	default:
		return "S"
	}
}

// Cell 棋盤格子
//
// 以 Kind 作為標籤的聯合型別，避免用字串同時表示「海面」「未命中」「艦艇」。
// ShipID/State/ShipName 只在 Kind == CellShip 時有意義。
type Cell struct {
	Kind     CellKind
	ShipID   string
	State    SegmentState
	ShipName string
}

// IsShip 是否為艦艇區段
func (c Cell) IsShip() bool { return c.Kind == CellShip }

// IsIntact 是否為未受損的艦艇區段
func (c Cell) IsIntact() bool { return c.Kind == CellShip && c.State == Intact }

// MarshalJSON 線上格式
//
//	"~"                         海面
//	"O"                         未命中
//	[ship_id, "S|X|C", name]    艦艇區段
func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case CellEmpty:
		return []byte(`"~"`), nil
	case CellMiss:
		return []byte(`"O"`), nil
	case CellShip:
		return json.Marshal([3]string{c.ShipID, c.State.Code(), c.ShipName})
	}
	return nil, fmt.Errorf("未知格子類型: %d", c.Kind)
}
