package game

import "encoding/json"

// DefaultGridSize 預設棋盤邊長
const DefaultGridSize = 10

// Grid 單一玩家的方格棋盤
//
// 只能透過 Board 的放置與攻擊操作修改，外部只拿得到 View（副本）。
type Grid struct {
	size  int
	cells [][]Cell
}

// NewGrid 創建空棋盤
func NewGrid(size int) *Grid {
	cells := make([][]Cell, size)
	for i := range cells {
		cells[i] = make([]Cell, size)
	}
	return &Grid{size: size, cells: cells}
}

// Size 棋盤邊長
func (g *Grid) Size() int { return g.size }

// InBounds 座標是否在 [0, size) 範圍內
func (g *Grid) InBounds(c Coord) bool {
	return c.Row >= 0 && c.Row < g.size && c.Col >= 0 && c.Col < g.size
}

// At 讀取格子（越界返回空格）
func (g *Grid) At(c Coord) Cell {
	if !g.InBounds(c) {
		return Cell{}
	}
	return g.cells[c.Row][c.Col]
}

func (g *Grid) set(c Coord, cell Cell) {
	g.cells[c.Row][c.Col] = cell
}

// ValidatePlacement 檢查一組座標能否放置艦艇
//
// 規則：
//  1. 所有座標都在棋盤內
//  2. 目標格子必須是海面
//  3. 每個目標格子的 8 個鄰格（含對角線）都不能有艦艇
func (g *Grid) ValidatePlacement(coords []Coord) bool {
	if len(coords) == 0 {
		return false
	}
	for _, c := range coords {
		if !g.InBounds(c) {
			return false
		}
		if g.At(c).Kind != CellEmpty {
			return false
		}
		for dRow := -1; dRow <= 1; dRow++ {
			for dCol := -1; dCol <= 1; dCol++ {
				n := Coord{Row: c.Row + dRow, Col: c.Col + dCol}
				if g.InBounds(n) && g.At(n).IsShip() {
					return false
				}
			}
		}
	}
	return true
}

// hasIntact 棋盤上是否還有未受損的區段
func (g *Grid) hasIntact() bool {
	for _, row := range g.cells {
		for _, cell := range row {
			if cell.IsIntact() {
				return true
			}
		}
	}
	return false
}

// View 棋盤快照（深拷貝）
//
// 廣播在釋放房間鎖之後才序列化，所以必須交出副本而不是內部切片。
func (g *Grid) View() View {
	view := make(View, g.size)
	for i, row := range g.cells {
		view[i] = append([]Cell(nil), row...)
	}
	return view
}

// View 棋盤的唯讀快照，JSON 為二維陣列
type View [][]Cell

// MarshalJSON 序列化棋盤
func (g *Grid) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.cells)
}
