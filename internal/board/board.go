// Package board implements the tic-tac-toe board engine: an N×N grid of
// cell owners with win/draw detection and a scripted opponent.
//
// Every operation takes a GameState and returns a new one. Nothing in this
// package blocks, logs or keeps state between calls.
package board

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrInvalidMove is returned when a move is rejected. The state passed
	// in is returned unchanged alongside it.
	ErrInvalidMove = errors.New("invalid move")
	// ErrInvalidConfiguration is returned for an unusable board size.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// Cell is the owner of one square.
type Cell int8

const (
	Empty Cell = iota
	PlayerA
	PlayerB
)

func (c Cell) String() string {
	switch c {
	case PlayerA:
		return "X"
	case PlayerB:
		return "O"
	default:
		return ""
	}
}

// Opponent returns the other player. Empty has no opponent.
func (c Cell) Opponent() Cell {
	switch c {
	case PlayerA:
		return PlayerB
	case PlayerB:
		return PlayerA
	default:
		return Empty
	}
}

func (c Cell) isPlayer() bool {
	return c == PlayerA || c == PlayerB
}

// OutcomeKind classifies a board.
type OutcomeKind int

const (
	InProgress OutcomeKind = iota
	Win
	Draw
)

func (k OutcomeKind) String() string {
	switch k {
	case Win:
		return "win"
	case Draw:
		return "draw"
	default:
		return "in_progress"
	}
}

// Outcome is the classification of a board after the last move.
// Winner and Line are only set when Kind is Win.
type Outcome struct {
	Kind   OutcomeKind
	Winner Cell
	Line   []int
}

// GameState is an immutable snapshot of a game. The zero value is not a
// usable game; create one with NewGame.
type GameState struct {
	size    int
	cells   []Cell
	current Cell
	outcome Outcome
}

// NewGame returns an empty size×size board with PlayerA to move.
func NewGame(size int) (GameState, error) {
	if size < 1 {
		return GameState{}, fmt.Errorf("%w: board size %d, need at least 1", ErrInvalidConfiguration, size)
	}
	return GameState{
		size:    size,
		cells:   make([]Cell, size*size),
		current: PlayerA,
	}, nil
}

// Size returns the board edge length.
func (s GameState) Size() int { return s.size }

// Cells returns a copy of the board in row-major order.
func (s GameState) Cells() []Cell {
	out := make([]Cell, len(s.cells))
	copy(out, s.cells)
	return out
}

// At returns the owner of cell i, or Empty when i is out of range.
func (s GameState) At(i int) Cell {
	if i < 0 || i >= len(s.cells) {
		return Empty
	}
	return s.cells[i]
}

// CurrentPlayer returns the player to move. Once the game is over it is
// the player who made the final move.
func (s GameState) CurrentPlayer() Cell { return s.current }

// Outcome returns the board classification.
func (s GameState) Outcome() Outcome {
	o := s.outcome
	o.Line = append([]int(nil), s.outcome.Line...)
	return o
}

// WinningLine returns the cells of the winning line, or nil.
func (s GameState) WinningLine() []int {
	return s.Outcome().Line
}

// Over reports whether the game has reached a win or a draw.
func (s GameState) Over() bool {
	return s.outcome.Kind != InProgress
}

// EmptyCells returns the indices of unowned cells in ascending order.
func (s GameState) EmptyCells() []int {
	var out []int
	for i, c := range s.cells {
		if c == Empty {
			out = append(out, i)
		}
	}
	return out
}

func (s GameState) clone() GameState {
	next := s
	next.cells = s.Cells()
	next.outcome = s.Outcome()
	return next
}

// ApplyMove places p on cell and returns the resulting state. The move is
// rejected with ErrInvalidMove when the game is over, the cell is out of
// range or taken, or it is not p's turn.
func ApplyMove(s GameState, cell int, p Cell) (GameState, error) {
	switch {
	case s.Over():
		return s, fmt.Errorf("%w: game is over", ErrInvalidMove)
	case cell < 0 || cell >= len(s.cells):
		return s, fmt.Errorf("%w: cell %d out of range", ErrInvalidMove, cell)
	case s.cells[cell] != Empty:
		return s, fmt.Errorf("%w: cell %d already occupied", ErrInvalidMove, cell)
	case !p.isPlayer():
		return s, fmt.Errorf("%w: cell value %d is not a player", ErrInvalidMove, p)
	case p != s.current:
		return s, fmt.Errorf("%w: not %s's turn", ErrInvalidMove, p)
	}

	next := s.clone()
	next.cells[cell] = p
	next.outcome = evaluate(next.size, next.cells)
	if next.outcome.Kind == InProgress {
		next.current = p.Opponent()
	}
	return next, nil
}

// Lines returns every line that can win on a size×size board: rows in
// row-major order, then columns, then the main diagonal and the
// anti-diagonal. No other diagonals are win paths.
func Lines(size int) [][]int {
	if size < 1 {
		return nil
	}
	lines := make([][]int, 0, 2*size+2)
	for r := 0; r < size; r++ {
		line := make([]int, size)
		for c := 0; c < size; c++ {
			line[c] = r*size + c
		}
		lines = append(lines, line)
	}
	for c := 0; c < size; c++ {
		line := make([]int, size)
		for r := 0; r < size; r++ {
			line[r] = c + r*size
		}
		lines = append(lines, line)
	}
	diag := make([]int, size)
	anti := make([]int, size)
	for i := 0; i < size; i++ {
		diag[i] = i * (size + 1)
		anti[i] = (i + 1) * (size - 1)
	}
	return append(lines, diag, anti)
}

func evaluate(size int, cells []Cell) Outcome {
	for _, line := range Lines(size) {
		if owner := lineOwner(cells, line); owner != Empty {
			return Outcome{Kind: Win, Winner: owner, Line: line}
		}
	}
	for _, c := range cells {
		if c == Empty {
			return Outcome{Kind: InProgress}
		}
	}
	return Outcome{Kind: Draw}
}

// lineOwner returns the player holding every cell of line, or Empty.
func lineOwner(cells []Cell, line []int) Cell {
	first := cells[line[0]]
	if first == Empty {
		return Empty
	}
	for _, i := range line[1:] {
		if cells[i] != first {
			return Empty
		}
	}
	return first
}

type wireState struct {
	Size    int    `json:"size"`
	Cells   []Cell `json:"cells"`
	Current Cell   `json:"current"`
}

// MarshalJSON encodes the board, size and turn. The outcome is derived
// again on decode.
func (s GameState) MarshalJSON() ([]byte, error) {
	cells := s.cells
	if cells == nil {
		cells = []Cell{}
	}
	return json.Marshal(wireState{Size: s.size, Cells: cells, Current: s.current})
}

func (s *GameState) UnmarshalJSON(data []byte) error {
	var w wireState
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	// Size is checked against the decoded cells before squaring it.
	if w.Size < 1 || w.Size > len(w.Cells) || len(w.Cells) != w.Size*w.Size {
		return fmt.Errorf("%w: %d cells for board size %d", ErrInvalidConfiguration, len(w.Cells), w.Size)
	}
	for i, c := range w.Cells {
		if c != Empty && !c.isPlayer() {
			return fmt.Errorf("%w: cell %d holds %d", ErrInvalidConfiguration, i, c)
		}
	}
	if !w.Current.isPlayer() {
		return fmt.Errorf("%w: current player %d", ErrInvalidConfiguration, w.Current)
	}
	*s = GameState{
		size:    w.Size,
		cells:   w.Cells,
		current: w.Current,
		outcome: evaluate(w.Size, w.Cells),
	}
	return nil
}
