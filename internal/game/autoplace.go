package game

import (
	"fmt"
	"math/rand/v2"
)

const (
	placeAttemptsPerShip = 100 // 每艘艦艇的隨機嘗試次數
	layoutAttempts       = 20  // 整體佈局失敗後的重來次數
)

// AutoPlace 隨機放置整支艦隊
//
// 先清空棋盤，再依序為每個艦種隨機挑選錨點與方向。
// 某艘艦艇 100 次都放不下時整體重來；重來多次仍失敗才返回錯誤
// （棋盤太小或艦隊太大時會發生）。
func AutoPlace(b *Board, fleet []ShipClass, rng *rand.Rand) error {
	size := b.grid.Size()
	for range layoutAttempts {
		b.Reset()
		if placeFleet(b, fleet, size, rng) {
			return nil
		}
	}
	b.Reset()
	return fmt.Errorf("%w: 無法為 %d×%d 棋盤產生自動佈局", ErrInvalidPlacement, size, size)
}

func placeFleet(b *Board, fleet []ShipClass, size int, rng *rand.Rand) bool {
	for _, sc := range fleet {
		placed := false
		for range placeAttemptsPerShip {
			anchor := Coord{Row: rng.IntN(size), Col: rng.IntN(size)}
			o := Orientations[rng.IntN(len(Orientations))]
			if _, err := b.Place(sc.Name, anchor, sc.Length, o); err == nil {
				placed = true
				break
			}
		}
		if !placed {
			return false
		}
	}
	return true
}
