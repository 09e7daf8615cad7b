package game_test

import (
	"math/rand/v2"
	"testing"

	"github.com/koopa0/system-design/14-battleship/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var twoShipFleet = []game.ShipClass{
	{Name: "Sous-marin", Length: 3},
	{Name: "Torpilleur", Length: 2},
}

// placeStandard 在指定座位放置 twoShipFleet
//
//	Sous-marin: (0,0) (0,1) (0,2)
//	Torpilleur: (4,4) (5,4)
func placeStandard(t *testing.T, m *game.Match, slot int) {
	t.Helper()
	_, err := m.PlaceShip(slot, "Sous-marin", game.Coord{Row: 0, Col: 0}, 3, game.IncCol)
	require.NoError(t, err)
	_, err = m.PlaceShip(slot, "Torpilleur", game.Coord{Row: 4, Col: 4}, 2, game.IncRow)
	require.NoError(t, err)
}

func startedMatch(t *testing.T) *game.Match {
	t.Helper()
	m := game.NewMatch(10, twoShipFleet)
	placeStandard(t, m, 0)
	placeStandard(t, m, 1)
	started, err := m.ConfirmPlacement(0)
	require.NoError(t, err)
	require.False(t, started)
	started, err = m.ConfirmPlacement(1)
	require.NoError(t, err)
	require.True(t, started)
	return m
}

// TestMatch_Placement 測試放置階段
func TestMatch_Placement(t *testing.T) {
	t.Run("fleet rules", func(t *testing.T) {
		m := game.NewMatch(10, twoShipFleet)

		_, err := m.PlaceShip(0, "Porte-avions", game.Coord{Row: 0, Col: 0}, 5, game.IncCol)
		assert.ErrorIs(t, err, game.ErrInvalidPlacement, "不在編制內的艦種")

		_, err = m.PlaceShip(0, "Torpilleur", game.Coord{Row: 0, Col: 0}, 4, game.IncCol)
		assert.ErrorIs(t, err, game.ErrInvalidPlacement, "長度不符")

		_, err = m.PlaceShip(2, "Torpilleur", game.Coord{Row: 0, Col: 0}, 2, game.IncCol)
		assert.Error(t, err)

		assert.False(t, m.AllShipsPlaced(0))
		placeStandard(t, m, 0)
		assert.True(t, m.AllShipsPlaced(0))
		assert.False(t, m.AllShipsPlaced(1))
	})

	t.Run("confirm requires every ship", func(t *testing.T) {
		m := game.NewMatch(10, twoShipFleet)
		_, err := m.PlaceShip(0, "Torpilleur", game.Coord{Row: 0, Col: 0}, 2, game.IncCol)
		require.NoError(t, err)

		_, err = m.ConfirmPlacement(0)
		assert.ErrorIs(t, err, game.ErrInvalidPlacement)
		assert.False(t, m.Confirmed(0))
	})

	t.Run("no edits after confirm", func(t *testing.T) {
		m := game.NewMatch(10, twoShipFleet)
		placeStandard(t, m, 0)
		_, err := m.ConfirmPlacement(0)
		require.NoError(t, err)

		assert.ErrorIs(t, m.ResetPlacement(0), game.ErrWrongPhase)
		assert.ErrorIs(t, m.AutoPlace(0, rand.New(rand.NewPCG(1, 1))), game.ErrWrongPhase)
		_, err = m.ConfirmPlacement(0)
		assert.ErrorIs(t, err, game.ErrWrongPhase)

		// 對手仍可編輯
		assert.NoError(t, m.ResetPlacement(1))
	})

	t.Run("reset placement clears board", func(t *testing.T) {
		m := game.NewMatch(10, twoShipFleet)
		placeStandard(t, m, 1)
		require.NoError(t, m.ResetPlacement(1))
		assert.Empty(t, m.Board(1).Ships())
		assert.False(t, m.AllShipsPlaced(1))
	})

	t.Run("auto place fills fleet", func(t *testing.T) {
		m := game.NewMatch(10, twoShipFleet)
		require.NoError(t, m.AutoPlace(0, rand.New(rand.NewPCG(7, 7))))
		assert.True(t, m.AllShipsPlaced(0))
	})
}

// TestMatch_TurnFlow 測試回合流轉
func TestMatch_TurnFlow(t *testing.T) {
	t.Run("slot 0 starts", func(t *testing.T) {
		m := game.NewMatch(10, twoShipFleet)
		_, ok := m.Turn()
		assert.False(t, ok)
		assert.Equal(t, game.PhasePlacement, m.Phase())

		m = startedMatch(t)
		turn, ok := m.Turn()
		require.True(t, ok)
		assert.Equal(t, 0, turn)
		assert.Equal(t, game.PhaseBattle, m.Phase())
	})

	t.Run("attack before battle", func(t *testing.T) {
		m := game.NewMatch(10, twoShipFleet)
		_, err := m.Attack(0, game.Coord{Row: 0, Col: 0})
		assert.ErrorIs(t, err, game.ErrWrongPhase)
	})

	t.Run("out of turn", func(t *testing.T) {
		m := startedMatch(t)
		before := m.Board(0).Grid().View()
		_, err := m.Attack(1, game.Coord{Row: 0, Col: 0})
		assert.ErrorIs(t, err, game.ErrOutOfTurn)
		assert.Equal(t, before, m.Board(0).Grid().View())
	})

	tests := []struct {
		name       string
		target     game.Coord
		outcome    game.Outcome
		turnAfter  int
		prehits    []game.Coord
		wantWinner bool
	}{
		{name: "miss passes turn", target: game.Coord{Row: 9, Col: 9}, outcome: game.Miss, turnAfter: 1},
		{name: "out of bounds passes turn", target: game.Coord{Row: 10, Col: 0}, outcome: game.OutOfBounds, turnAfter: 1},
		{name: "hit keeps turn", target: game.Coord{Row: 0, Col: 0}, outcome: game.HitOutcome, turnAfter: 0},
		{
			name:      "sunk keeps turn",
			prehits:   []game.Coord{{Row: 4, Col: 4}},
			target:    game.Coord{Row: 5, Col: 4},
			outcome:   game.SunkOutcome,
			turnAfter: 0,
		},
		{
			name:      "already attacked passes turn",
			prehits:   []game.Coord{{Row: 4, Col: 4}},
			target:    game.Coord{Row: 4, Col: 4},
			outcome:   game.AlreadyAttacked,
			turnAfter: 1,
		},
		{
			name:       "eliminated ends match",
			prehits:    []game.Coord{{Row: 4, Col: 4}, {Row: 5, Col: 4}, {Row: 0, Col: 0}, {Row: 0, Col: 1}},
			target:     game.Coord{Row: 0, Col: 2},
			outcome:    game.Eliminated,
			wantWinner: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := startedMatch(t)
			for _, c := range tt.prehits {
				res, err := m.Attack(0, c)
				require.NoError(t, err)
				require.True(t, res.Outcome.GrantsReplay())
			}

			res, err := m.Attack(0, tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, res.Outcome)

			if tt.wantWinner {
				winner, ok := m.Winner()
				require.True(t, ok)
				assert.Equal(t, 0, winner)
				assert.Equal(t, game.PhaseFinished, m.Phase())
				_, err := m.Attack(0, game.Coord{Row: 9, Col: 9})
				assert.ErrorIs(t, err, game.ErrWrongPhase)
				return
			}
			turn, ok := m.Turn()
			require.True(t, ok)
			assert.Equal(t, tt.turnAfter, turn)
		})
	}
}

// TestMatch_Reset 測試重置
func TestMatch_Reset(t *testing.T) {
	m := startedMatch(t)
	_, err := m.Attack(0, game.Coord{Row: 0, Col: 0})
	require.NoError(t, err)

	m.Reset()
	assert.Equal(t, game.PhasePlacement, m.Phase())
	_, ok := m.Turn()
	assert.False(t, ok)
	for slot := range 2 {
		assert.Empty(t, m.Board(slot).Ships())
		assert.False(t, m.Confirmed(slot))
		for _, row := range m.Board(slot).Grid().View() {
			for _, cell := range row {
				assert.Equal(t, game.CellEmpty, cell.Kind)
			}
		}
	}
}
