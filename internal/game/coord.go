// Package game 實現海戰棋的棋盤與對局狀態。
//
// 這一層是純邏輯（無 I/O、無鎖）：
//   - Grid：單一玩家的方格棋盤
//   - Board：棋盤 + 已放置的艦艇清單
//   - Match：兩塊 Board、回合指標、放置確認旗標
//
// 併發控制由上層的 Room 負責（每個房間一把鎖）。
package game

import (
	"encoding/json"
	"fmt"
)

// Coord 棋盤座標（列, 行）
//
// JSON 格式為二元陣列 [row, col]，與客戶端保持一致。
type Coord struct {
	Row int
	Col int
}

// MarshalJSON 序列化為 [row, col]
func (c Coord) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{c.Row, c.Col})
}

// UnmarshalJSON 從 [row, col] 反序列化
func (c *Coord) UnmarshalJSON(data []byte) error {
	var pair []int
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("座標格式錯誤: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("座標必須是兩個整數，收到 %d 個", len(pair))
	}
	c.Row, c.Col = pair[0], pair[1]
	return nil
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// Orientation 艦艇方向
type Orientation string

const (
	IncCol Orientation = "inc_col" // 向右（行遞增）
	DecCol Orientation = "dec_col" // 向左（行遞減）
	IncRow Orientation = "inc_row" // 向下（列遞增）
	DecRow Orientation = "dec_row" // 向上（列遞減）
)

// Orientations 所有合法方向
var Orientations = []Orientation{IncCol, DecCol, IncRow, DecRow}

// Valid 是否為合法方向
func (o Orientation) Valid() bool {
	switch o {
	case IncCol, DecCol, IncRow, DecRow:
		return true
	}
	return false
}

// step 單位位移
func (o Orientation) step() (dRow, dCol int) {
	switch o {
	case IncCol:
		return 0, 1
	case DecCol:
		return 0, -1
	case IncRow:
		return 1, 0
	case DecRow:
		return -1, 0
	}
	return 0, 0
}

// Footprint 計算艦艇佔據的座標
//
// 從 anchor 開始沿方向延伸 length 格，結果有序且不做邊界檢查
// （邊界由 ValidatePlacement 負責）。未知方向或非正長度返回 nil。
func Footprint(anchor Coord, length int, o Orientation) []Coord {
	if length <= 0 || !o.Valid() {
		return nil
	}
	dRow, dCol := o.step()
	coords := make([]Coord, length)
	for i := range length {
		coords[i] = Coord{Row: anchor.Row + i*dRow, Col: anchor.Col + i*dCol}
	}
	return coords
}
