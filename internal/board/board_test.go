package board

import (
	"encoding/json"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type move struct {
	player Cell
	cell   int
}

func play(t *testing.T, size int, moves ...move) GameState {
	t.Helper()
	s, err := NewGame(size)
	require.NoError(t, err)
	for i, m := range moves {
		s, err = ApplyMove(s, m.cell, m.player)
		require.NoError(t, err, "move %d (%s on %d)", i, m.player, m.cell)
	}
	return s
}

func TestNewGame(t *testing.T) {
	for size := 1; size <= 6; size++ {
		s, err := NewGame(size)
		require.NoError(t, err)
		assert.Equal(t, size, s.Size())
		assert.Len(t, s.Cells(), size*size)
		for i, c := range s.Cells() {
			assert.Equal(t, Empty, c, "size %d cell %d", size, i)
		}
		assert.Equal(t, PlayerA, s.CurrentPlayer())
		assert.Equal(t, InProgress, s.Outcome().Kind)
		assert.Nil(t, s.WinningLine())
	}
}

func TestNewGameRejectsSize(t *testing.T) {
	for _, size := range []int{0, -1, -9} {
		_, err := NewGame(size)
		assert.ErrorIs(t, err, ErrInvalidConfiguration, "size %d", size)
	}
}

func TestTopRowWin(t *testing.T) {
	s := play(t, 3,
		move{PlayerA, 0}, move{PlayerB, 4},
		move{PlayerA, 1}, move{PlayerB, 5},
		move{PlayerA, 2},
	)
	o := s.Outcome()
	assert.Equal(t, Win, o.Kind)
	assert.Equal(t, PlayerA, o.Winner)
	assert.Equal(t, []int{0, 1, 2}, o.Line)
	assert.True(t, s.Over())
}

func TestWinningLines(t *testing.T) {
	tests := []struct {
		name  string
		size  int
		moves []move
		line  []int
		who   Cell
	}{
		{
			name:  "column",
			size:  3,
			moves: []move{{PlayerA, 1}, {PlayerB, 0}, {PlayerA, 2}, {PlayerB, 3}, {PlayerA, 4}, {PlayerB, 6}},
			line:  []int{0, 3, 6},
			who:   PlayerB,
		},
		{
			name:  "main diagonal",
			size:  3,
			moves: []move{{PlayerA, 0}, {PlayerB, 1}, {PlayerA, 4}, {PlayerB, 2}, {PlayerA, 8}},
			line:  []int{0, 4, 8},
			who:   PlayerA,
		},
		{
			name:  "anti diagonal",
			size:  3,
			moves: []move{{PlayerA, 2}, {PlayerB, 0}, {PlayerA, 4}, {PlayerB, 1}, {PlayerA, 6}},
			line:  []int{2, 4, 6},
			who:   PlayerA,
		},
		{
			name: "anti diagonal 4x4",
			size: 4,
			moves: []move{
				{PlayerA, 3}, {PlayerB, 0}, {PlayerA, 6}, {PlayerB, 1},
				{PlayerA, 9}, {PlayerB, 2}, {PlayerA, 12},
			},
			line: []int{3, 6, 9, 12},
			who:  PlayerA,
		},
		{
			name:  "single cell",
			size:  1,
			moves: []move{{PlayerA, 0}},
			line:  []int{0},
			who:   PlayerA,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := play(t, tt.size, tt.moves...)
			assert.Equal(t, Win, s.Outcome().Kind)
			assert.Equal(t, tt.who, s.Outcome().Winner)
			assert.Equal(t, tt.line, s.WinningLine())
		})
	}
}

func TestRowReportedBeforeColumn(t *testing.T) {
	// The last move completes row 0 and column 2 at once.
	s := play(t, 3,
		move{PlayerA, 0}, move{PlayerB, 3},
		move{PlayerA, 1}, move{PlayerB, 4},
		move{PlayerA, 5}, move{PlayerB, 6},
		move{PlayerA, 8}, move{PlayerB, 7},
	)
	require.False(t, s.Over())
	s, err := ApplyMove(s, 2, PlayerA)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, s.WinningLine())
}

func TestBrokenDiagonalIsNotAWin(t *testing.T) {
	// A holds 1, 6, 11 and 12: a wrapped diagonal on a 4x4 board.
	s := play(t, 4,
		move{PlayerA, 1}, move{PlayerB, 0},
		move{PlayerA, 6}, move{PlayerB, 2},
		move{PlayerA, 11}, move{PlayerB, 3},
		move{PlayerA, 12},
	)
	assert.Equal(t, InProgress, s.Outcome().Kind)
	assert.Equal(t, PlayerB, s.CurrentPlayer())
}

func TestDraw(t *testing.T) {
	// X O X
	// X X O
	// O X O
	s := play(t, 3,
		move{PlayerA, 0}, move{PlayerB, 1}, move{PlayerA, 2},
		move{PlayerB, 5}, move{PlayerA, 3}, move{PlayerB, 6},
		move{PlayerA, 4}, move{PlayerB, 8}, move{PlayerA, 7},
	)
	assert.Equal(t, Draw, s.Outcome().Kind)
	assert.Equal(t, Empty, s.Outcome().Winner)
	assert.Nil(t, s.WinningLine())
}

func TestRejectedMovesLeaveStateUnchanged(t *testing.T) {
	s := play(t, 3, move{PlayerA, 4})
	before := s.Cells()

	tests := []struct {
		name   string
		cell   int
		player Cell
	}{
		{"occupied", 4, PlayerB},
		{"negative cell", -1, PlayerB},
		{"past the end", 9, PlayerB},
		{"wrong turn", 0, PlayerA},
		{"not a player", 0, Empty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ApplyMove(s, tt.cell, tt.player)
			require.ErrorIs(t, err, ErrInvalidMove)
			assert.Equal(t, before, got.Cells())
			assert.Equal(t, PlayerB, got.CurrentPlayer())
		})
	}
}

func TestMoveAfterGameOver(t *testing.T) {
	s := play(t, 3,
		move{PlayerA, 0}, move{PlayerB, 3},
		move{PlayerA, 1}, move{PlayerB, 4},
		move{PlayerA, 2},
	)
	got, err := ApplyMove(s, 5, PlayerB)
	require.ErrorIs(t, err, ErrInvalidMove)
	assert.Equal(t, Empty, got.At(5))

	got, err = ApplyMove(s, 5, PlayerA)
	require.ErrorIs(t, err, ErrInvalidMove)
	assert.Equal(t, s.Cells(), got.Cells())
}

func TestApplyMoveDoesNotMutateInput(t *testing.T) {
	s, err := NewGame(3)
	require.NoError(t, err)
	next, err := ApplyMove(s, 0, PlayerA)
	require.NoError(t, err)

	assert.Equal(t, Empty, s.At(0))
	assert.Equal(t, PlayerA, s.CurrentPlayer())
	assert.Equal(t, PlayerA, next.At(0))
	assert.Equal(t, PlayerB, next.CurrentPlayer())

	// Accessor results are copies too.
	cells := next.Cells()
	cells[1] = PlayerB
	assert.Equal(t, Empty, next.At(1))
}

func TestLines(t *testing.T) {
	assert.Equal(t, [][]int{
		{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
		{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
		{0, 4, 8}, {2, 4, 6},
	}, Lines(3))
	assert.Len(t, Lines(5), 12)
	assert.Nil(t, Lines(0))
}

func TestStateJSONDerivesOutcome(t *testing.T) {
	s := play(t, 3,
		move{PlayerA, 0}, move{PlayerB, 4},
		move{PlayerA, 1}, move{PlayerB, 5},
		move{PlayerA, 2},
	)
	data, err := json.Marshal(s)
	require.NoError(t, err)

	var restored GameState
	require.NoError(t, json.Unmarshal(data, &restored))
	assert.Equal(t, s.Cells(), restored.Cells())
	assert.Equal(t, Win, restored.Outcome().Kind)
	assert.Equal(t, []int{0, 1, 2}, restored.WinningLine())
}

func TestStateJSONRejectsBadBoards(t *testing.T) {
	for _, raw := range []string{
		`{"size":3,"cells":[0,0,0],"current":1}`,
		`{"size":0,"cells":[],"current":1}`,
		`{"size":1,"cells":[7],"current":1}`,
		`{"size":1,"cells":[0],"current":0}`,
		`{"size":4294967296,"cells":[],"current":1}`,
		`{"size":-3,"cells":[0,0,0,0,0,0,0,0,0],"current":1}`,
	} {
		var s GameState
		assert.ErrorIs(t, json.Unmarshal([]byte(raw), &s), ErrInvalidConfiguration, raw)
	}
}

func TestSuggestMoveTakesWin(t *testing.T) {
	// A threatens 2, B threatens 5; A to move wins rather than blocks.
	s := play(t, 3,
		move{PlayerA, 0}, move{PlayerB, 3},
		move{PlayerA, 1}, move{PlayerB, 4},
	)
	cell, ok := SuggestMove(s, PlayerA, PlayerB, rand.New(rand.NewPCG(1, 2)))
	require.True(t, ok)
	assert.Equal(t, 2, cell)
}

func TestSuggestMoveBlocks(t *testing.T) {
	s := play(t, 3, move{PlayerA, 0}, move{PlayerB, 4}, move{PlayerA, 1})
	cell, ok := SuggestMove(s, PlayerB, PlayerA, rand.New(rand.NewPCG(1, 2)))
	require.True(t, ok)
	assert.Equal(t, 2, cell)
}

func TestSuggestMoveTakesCenter(t *testing.T) {
	s := play(t, 3, move{PlayerA, 0})
	cell, ok := SuggestMove(s, PlayerB, PlayerA, rand.New(rand.NewPCG(1, 2)))
	require.True(t, ok)
	assert.Equal(t, 4, cell)

	// Even sizes use the same index formula.
	s = play(t, 4, move{PlayerA, 0})
	cell, ok = SuggestMove(s, PlayerB, PlayerA, nil)
	require.True(t, ok)
	assert.Equal(t, 8, cell)
}

func TestSuggestMoveRandomIsSeeded(t *testing.T) {
	s := play(t, 3, move{PlayerA, 4})
	a, ok := SuggestMove(s, PlayerB, PlayerA, rand.New(rand.NewPCG(7, 7)))
	require.True(t, ok)
	b, ok := SuggestMove(s, PlayerB, PlayerA, rand.New(rand.NewPCG(7, 7)))
	require.True(t, ok)
	assert.Equal(t, a, b)
	assert.Contains(t, s.EmptyCells(), a)
}

func TestSuggestMoveGameOver(t *testing.T) {
	s := play(t, 3,
		move{PlayerA, 0}, move{PlayerB, 3},
		move{PlayerA, 1}, move{PlayerB, 4},
		move{PlayerA, 2},
	)
	_, ok := SuggestMove(s, PlayerB, PlayerA, nil)
	assert.False(t, ok)

	draw := play(t, 3,
		move{PlayerA, 0}, move{PlayerB, 1}, move{PlayerA, 2},
		move{PlayerB, 5}, move{PlayerA, 3}, move{PlayerB, 6},
		move{PlayerA, 4}, move{PlayerB, 8}, move{PlayerA, 7},
	)
	_, ok = SuggestMove(draw, PlayerB, PlayerA, nil)
	assert.False(t, ok)
}

func TestSuggestMoveSelfPlay(t *testing.T) {
	for size := 1; size <= 5; size++ {
		for seed := uint64(0); seed < 20; seed++ {
			rng := rand.New(rand.NewPCG(seed, uint64(size)))
			s, err := NewGame(size)
			require.NoError(t, err)
			for turns := 0; ; turns++ {
				require.LessOrEqual(t, turns, size*size)
				p := s.CurrentPlayer()
				cell, ok := SuggestMove(s, p, p.Opponent(), rng)
				if !ok {
					assert.True(t, s.Over() || len(s.EmptyCells()) == 0)
					break
				}
				require.Equal(t, Empty, s.At(cell), "size %d seed %d", size, seed)
				s, err = ApplyMove(s, cell, p)
				require.NoError(t, err)
			}
			assert.True(t, s.Over())
		}
	}
}
