package game

import (
	"errors"
	"fmt"
)

// ErrInvalidPlacement 放置不合法（越界、重疊、相鄰、重複艦種）
var ErrInvalidPlacement = errors.New("放置不合法")

// Outcome 攻擊結果
type Outcome string

const (
	OutOfBounds     Outcome = "out_of_bounds"
	AlreadyAttacked Outcome = "already_attacked"
	Miss            Outcome = "miss"
	HitOutcome      Outcome = "hit"
	SunkOutcome     Outcome = "sunk"
	Eliminated      Outcome = "eliminated"
)

// GrantsReplay 攻擊方是否可以繼續行動
//
// 命中與擊沉都保留回合；未命中、重複攻擊、越界則交出回合。
func (o Outcome) GrantsReplay() bool {
	switch o {
	case HitOutcome, SunkOutcome, Eliminated:
		return true
	}
	return false
}

// AttackResult 攻擊結果詳情
//
// ShipName/ShipSize/SunkPositions 只在 sunk 或 eliminated 時填寫。
type AttackResult struct {
	Outcome       Outcome
	Coord         Coord
	ShipName      string
	ShipSize      int
	SunkPositions []Coord
}

// Board 一名玩家的棋盤與艦艇清單
type Board struct {
	grid   *Grid
	ships  []Ship
	byID   map[string]int // shipID -> ships 索引
	placed map[string]bool
}

// NewBoard 創建空白棋盤
func NewBoard(size int) *Board {
	return &Board{
		grid:   NewGrid(size),
		byID:   make(map[string]int),
		placed: make(map[string]bool),
	}
}

// Grid 底層棋盤（唯讀使用）
func (b *Board) Grid() *Grid { return b.grid }

// Ships 已放置艦艇（副本）
func (b *Board) Ships() []Ship {
	return append([]Ship(nil), b.ships...)
}

// HasShip 是否已放置指定名稱的艦艇
func (b *Board) HasShip(name string) bool { return b.placed[name] }

// AllPlaced 艦隊中的每一艘是否都已放置
func (b *Board) AllPlaced(fleet []ShipClass) bool {
	for _, sc := range fleet {
		if !b.placed[sc.Name] {
			return false
		}
	}
	return true
}

// Reset 清空棋盤與艦艇清單
func (b *Board) Reset() {
	*b = *NewBoard(b.grid.size)
}

// Place 放置艦艇
//
// 先完整驗證再寫入，拒絕時棋盤不會有任何部分修改。
// 艦艇 ID 由放置順序 + 名稱組成，同一局內唯一。
func (b *Board) Place(name string, anchor Coord, length int, o Orientation) (Ship, error) {
	if b.placed[name] {
		return Ship{}, fmt.Errorf("%w: %s 已經放置過", ErrInvalidPlacement, name)
	}
	if !o.Valid() {
		return Ship{}, fmt.Errorf("%w: 未知方向 %q", ErrInvalidPlacement, o)
	}
	coords := Footprint(anchor, length, o)
	if !b.grid.ValidatePlacement(coords) {
		return Ship{}, fmt.Errorf("%w: %s 於 %s 越界、重疊或與其他艦艇相鄰", ErrInvalidPlacement, name, anchor)
	}

	ship := Ship{
		ID:          fmt.Sprintf("ship_%d_%s", len(b.ships), name),
		Name:        name,
		Length:      length,
		Anchor:      anchor,
		Orientation: o,
		Cells:       coords,
	}
	for _, c := range coords {
		b.grid.set(c, Cell{Kind: CellShip, ShipID: ship.ID, State: Intact, ShipName: name})
	}
	b.byID[ship.ID] = len(b.ships)
	b.ships = append(b.ships, ship)
	b.placed[name] = true
	return ship, nil
}

// Attack 攻擊一個座標
//
// 狀態轉換：
//
//	海面 → 未命中                         (miss)
//	完好區段 → 命中                        (hit)
//	最後一個完好區段 → 整艘轉為擊沉          (sunk)
//	擊沉後棋盤上已無完好區段                (eliminated)
//
// 越界與重複攻擊不修改棋盤。
func (b *Board) Attack(c Coord) AttackResult {
	result := AttackResult{Coord: c}
	if !b.grid.InBounds(c) {
		result.Outcome = OutOfBounds
		return result
	}

	cell := b.grid.At(c)
	switch {
	case cell.Kind == CellEmpty:
		b.grid.set(c, Cell{Kind: CellMiss})
		result.Outcome = Miss
		return result
	case cell.Kind == CellMiss, cell.State != Intact:
		result.Outcome = AlreadyAttacked
		return result
	}

	cell.State = Hit
	b.grid.set(c, cell)

	ship := b.ships[b.byID[cell.ShipID]]
	for _, sc := range ship.Cells {
		if b.grid.At(sc).State != Hit {
			result.Outcome = HitOutcome
			return result
		}
	}

	for _, sc := range ship.Cells {
		sunk := b.grid.At(sc)
		sunk.State = Sunk
		b.grid.set(sc, sunk)
	}
	result.ShipName = ship.Name
	result.ShipSize = ship.Length
	result.SunkPositions = append([]Coord(nil), ship.Cells...)
	if b.grid.hasIntact() {
		result.Outcome = SunkOutcome
	} else {
		result.Outcome = Eliminated
	}
	return result
}
