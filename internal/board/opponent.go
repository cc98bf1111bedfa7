package board

import "math/rand/v2"

// SuggestMove picks a cell for ai to play against human. In order of
// preference it takes an immediate win, blocks an immediate win by human,
// takes the center cell, or picks uniformly among the empty cells using
// rng. Candidates are tried in ascending cell order.
//
// The second result is false when the game is over or the board is full.
// A nil rng falls back to the package-level source.
func SuggestMove(s GameState, ai, human Cell, rng *rand.Rand) (int, bool) {
	if s.Over() {
		return -1, false
	}
	empty := s.EmptyCells()
	if len(empty) == 0 {
		return -1, false
	}

	if cell, ok := completingMove(s, empty, ai); ok {
		return cell, true
	}
	if cell, ok := completingMove(s, empty, human); ok {
		return cell, true
	}

	center := (s.size * s.size) / 2
	if s.cells[center] == Empty {
		return center, true
	}

	var pick int
	if rng != nil {
		pick = rng.IntN(len(empty))
	} else {
		pick = rand.IntN(len(empty))
	}
	return empty[pick], true
}

// completingMove returns the first empty cell that would give p a
// winning line.
func completingMove(s GameState, empty []int, p Cell) (int, bool) {
	if !p.isPlayer() {
		return -1, false
	}
	trial := s.Cells()
	for _, cell := range empty {
		trial[cell] = p
		won := evaluate(s.size, trial)
		trial[cell] = Empty
		if won.Kind == Win && won.Winner == p {
			return cell, true
		}
	}
	return -1, false
}
