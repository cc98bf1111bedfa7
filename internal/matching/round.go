// Package matching implements the memory-game engine: a shuffled deck of
// paired tokens, flip and match bookkeeping, a move counter and an elapsed
// time sampled on demand.
//
// RoundState values are immutable. Flip and Tick return new values and
// leave their input untouched, so a caller can keep older snapshots around
// for rendering.
package matching

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"
)

var (
	// ErrInvalidConfiguration is returned for an unusable card count or deck.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrInvalidFlip is returned when a card cannot be turned over.
	ErrInvalidFlip = errors.New("invalid flip")
)

// Phase is the stage of a round.
type Phase int

const (
	NotStarted Phase = iota
	Running
	// Resolving covers the moment between the second card of a pair being
	// turned and the match or mismatch being applied. Flip passes through it
	// and never returns a state in this phase.
	Resolving
	Complete
)

var phaseNames = [...]string{"not_started", "running", "resolving", "complete"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

func (p Phase) MarshalText() ([]byte, error) {
	if p < 0 || int(p) >= len(phaseNames) {
		return nil, fmt.Errorf("unknown phase %d", int(p))
	}
	return []byte(phaseNames[p]), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	for i, name := range phaseNames {
		if name == string(text) {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

// Card is one card of the deck. ID equals the card's position.
type Card struct {
	ID      int    `json:"id"`
	Token   string `json:"token"`
	Flipped bool   `json:"flipped"`
	Matched bool   `json:"matched"`
}

// Resolution is the outcome of the most recently completed pair.
type Resolution struct {
	First   int  `json:"first"`
	Second  int  `json:"second"`
	Matched bool `json:"matched"`
}

// RoundState is an immutable snapshot of one round.
type RoundState struct {
	deck         []Card
	faceUp       []int
	moves        int
	matchedPairs int
	elapsed      int
	phase        Phase
	startedAt    time.Time
	last         *Resolution
}

// NewRound deals cardCount cards: cardCount/2 distinct tokens, each twice,
// shuffled with rng. cardCount must be even, at least 2 and at most
// MaxCards. A nil rng falls back to the package-level source.
func NewRound(cardCount int, rng *rand.Rand) (RoundState, error) {
	if cardCount < 2 || cardCount%2 != 0 {
		return RoundState{}, fmt.Errorf("%w: card count %d must be even and at least 2", ErrInvalidConfiguration, cardCount)
	}
	if cardCount > MaxCards {
		return RoundState{}, fmt.Errorf("%w: card count %d exceeds %d", ErrInvalidConfiguration, cardCount, MaxCards)
	}
	pairs := cardCount / 2
	order := make([]string, 0, cardCount)
	order = append(order, Tokens[:pairs]...)
	order = append(order, Tokens[:pairs]...)

	swap := func(i, j int) { order[i], order[j] = order[j], order[i] }
	if rng != nil {
		rng.Shuffle(len(order), swap)
	} else {
		rand.Shuffle(len(order), swap)
	}
	return Deal(order)
}

// Reset starts over with a fresh deck. It is NewRound under another name
// and is always legal, whatever the phase of the round being discarded.
func Reset(cardCount int, rng *rand.Rand) (RoundState, error) {
	return NewRound(cardCount, rng)
}

// Deal builds a round from tokens laid out in the given order; card i gets
// tokens[i]. Every token must appear exactly twice.
func Deal(tokens []string) (RoundState, error) {
	if len(tokens) < 2 || len(tokens)%2 != 0 {
		return RoundState{}, fmt.Errorf("%w: %d cards must be even and at least 2", ErrInvalidConfiguration, len(tokens))
	}
	counts := make(map[string]int, len(tokens)/2)
	for _, tok := range tokens {
		counts[tok]++
	}
	for tok, n := range counts {
		if n != 2 {
			return RoundState{}, fmt.Errorf("%w: token %q appears %d times", ErrInvalidConfiguration, tok, n)
		}
	}
	deck := make([]Card, len(tokens))
	for i, tok := range tokens {
		deck[i] = Card{ID: i, Token: tok}
	}
	return RoundState{deck: deck, phase: NotStarted}, nil
}

// Flip turns card id face up at time now.
//
// The first flip of a round starts the clock. Turning the second card of a
// pair counts a move and resolves the pair at once: matching cards stay up
// and are marked matched, mismatched cards go back down. Completing the last
// pair ends the round and fixes the elapsed time.
//
// Flip fails with ErrInvalidFlip, returning s unchanged, when the round is
// complete, the id is unknown, or the card is already up or matched.
func Flip(s RoundState, id int, now time.Time) (RoundState, error) {
	switch {
	case s.phase == Complete || s.phase == Resolving:
		return s, fmt.Errorf("%w: round is %s", ErrInvalidFlip, s.phase)
	case id < 0 || id >= len(s.deck):
		return s, fmt.Errorf("%w: unknown card %d", ErrInvalidFlip, id)
	case s.deck[id].Matched:
		return s, fmt.Errorf("%w: card %d is already matched", ErrInvalidFlip, id)
	case s.deck[id].Flipped:
		return s, fmt.Errorf("%w: card %d is already face up", ErrInvalidFlip, id)
	}

	next := s.clone()
	if next.phase == NotStarted {
		next.phase = Running
		next.startedAt = now
	}
	next.deck[id].Flipped = true
	next.faceUp = append(next.faceUp, id)
	if len(next.faceUp) < 2 {
		return next, nil
	}

	next.moves++
	next.phase = Resolving
	return next.resolve(now), nil
}

// resolve applies the outcome of the face-up pair. next must be a private
// clone.
func (next RoundState) resolve(now time.Time) RoundState {
	a, b := next.faceUp[0], next.faceUp[1]
	matched := next.deck[a].Token == next.deck[b].Token
	if matched {
		next.deck[a].Matched = true
		next.deck[b].Matched = true
		next.matchedPairs++
	} else {
		next.deck[a].Flipped = false
		next.deck[b].Flipped = false
	}
	next.faceUp = nil
	next.last = &Resolution{First: a, Second: b, Matched: matched}

	if next.matchedPairs == len(next.deck)/2 {
		next = next.withElapsed(now)
		next.phase = Complete
		return next
	}
	next.phase = Running
	return next
}

// Tick recomputes the elapsed time from the round's start. It only has an
// effect while the round is running, and never moves the elapsed time
// backwards.
func Tick(s RoundState, now time.Time) RoundState {
	if s.phase != Running {
		return s
	}
	return s.withElapsed(now)
}

func (s RoundState) withElapsed(now time.Time) RoundState {
	secs := int(now.Sub(s.startedAt) / time.Second)
	if secs > s.elapsed {
		s.elapsed = secs
	}
	return s
}

func (s RoundState) clone() RoundState {
	next := s
	next.deck = s.Cards()
	next.faceUp = s.FaceUp()
	if s.last != nil {
		last := *s.last
		next.last = &last
	}
	return next
}

// Cards returns a copy of the deck. Tokens of face-down cards are included;
// use View for a rendering-safe snapshot.
func (s RoundState) Cards() []Card {
	out := make([]Card, len(s.deck))
	copy(out, s.deck)
	return out
}

// Card returns the card with the given id.
func (s RoundState) Card(id int) (Card, bool) {
	if id < 0 || id >= len(s.deck) {
		return Card{}, false
	}
	return s.deck[id], true
}

// FaceUp returns the ids of flipped cards that are not yet matched.
func (s RoundState) FaceUp() []int {
	if len(s.faceUp) == 0 {
		return nil
	}
	return append([]int(nil), s.faceUp...)
}

func (s RoundState) CardCount() int    { return len(s.deck) }
func (s RoundState) Pairs() int        { return len(s.deck) / 2 }
func (s RoundState) Moves() int        { return s.moves }
func (s RoundState) MatchedPairs() int { return s.matchedPairs }
func (s RoundState) Phase() Phase      { return s.phase }

// ElapsedSeconds is the elapsed time as of the last Flip or Tick.
func (s RoundState) ElapsedSeconds() int { return s.elapsed }

// StartedAt is the instant of the first flip, or the zero time.
func (s RoundState) StartedAt() time.Time { return s.startedAt }

// LastResolution returns the outcome of the most recent pair, if any.
func (s RoundState) LastResolution() (Resolution, bool) {
	if s.last == nil {
		return Resolution{}, false
	}
	return *s.last, true
}

type wireRound struct {
	Deck         []Card      `json:"deck"`
	FaceUp       []int       `json:"faceUp,omitempty"`
	Moves        int         `json:"moves"`
	MatchedPairs int         `json:"matchedPairs"`
	Elapsed      int         `json:"elapsed"`
	Phase        Phase       `json:"phase"`
	StartedAt    time.Time   `json:"startedAt"`
	Last         *Resolution `json:"last,omitempty"`
}

func (s RoundState) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireRound{
		Deck:         s.Cards(),
		FaceUp:       s.faceUp,
		Moves:        s.moves,
		MatchedPairs: s.matchedPairs,
		Elapsed:      s.elapsed,
		Phase:        s.phase,
		StartedAt:    s.startedAt,
		Last:         s.last,
	})
}

// UnmarshalJSON restores a round and checks the deck invariants.
func (s *RoundState) UnmarshalJSON(data []byte) error {
	var w wireRound
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	tokens := make([]string, len(w.Deck))
	matched := 0
	for i, c := range w.Deck {
		if c.ID != i {
			return fmt.Errorf("%w: card at %d has id %d", ErrInvalidConfiguration, i, c.ID)
		}
		tokens[i] = c.Token
		if c.Matched {
			matched++
		}
	}
	if _, err := Deal(tokens); err != nil {
		return err
	}
	if len(w.FaceUp) > 1 || matched != w.MatchedPairs*2 {
		return fmt.Errorf("%w: %d face-up cards, %d matched cards for %d pairs",
			ErrInvalidConfiguration, len(w.FaceUp), matched, w.MatchedPairs)
	}
	for _, id := range w.FaceUp {
		if id < 0 || id >= len(w.Deck) || !w.Deck[id].Flipped || w.Deck[id].Matched {
			return fmt.Errorf("%w: face-up card %d", ErrInvalidConfiguration, id)
		}
	}
	for _, c := range w.Deck {
		switch {
		case c.Matched && !c.Flipped:
			return fmt.Errorf("%w: matched card %d is face down", ErrInvalidConfiguration, c.ID)
		case c.Flipped && !c.Matched && !slices.Contains(w.FaceUp, c.ID):
			return fmt.Errorf("%w: card %d is up but not tracked as face up", ErrInvalidConfiguration, c.ID)
		}
	}
	if err := checkPhase(w); err != nil {
		return err
	}
	*s = RoundState{
		deck:         w.Deck,
		faceUp:       w.FaceUp,
		moves:        w.Moves,
		matchedPairs: w.MatchedPairs,
		elapsed:      w.Elapsed,
		phase:        w.Phase,
		startedAt:    w.StartedAt,
		last:         w.Last,
	}
	return nil
}

// checkPhase rejects a phase that disagrees with the counters. Resolving is
// never stored.
func checkPhase(w wireRound) error {
	pairs := len(w.Deck) / 2
	switch {
	case w.Moves < w.MatchedPairs:
		return fmt.Errorf("%w: %d moves for %d matched pairs", ErrInvalidConfiguration, w.Moves, w.MatchedPairs)
	case w.Phase == Resolving:
		return fmt.Errorf("%w: round stored while resolving", ErrInvalidConfiguration)
	case w.Phase == Complete && w.MatchedPairs != pairs:
		return fmt.Errorf("%w: complete with %d of %d pairs", ErrInvalidConfiguration, w.MatchedPairs, pairs)
	case w.Phase != Complete && w.MatchedPairs == pairs:
		return fmt.Errorf("%w: all pairs matched but round is %s", ErrInvalidConfiguration, w.Phase)
	case w.Phase == NotStarted && (w.Moves != 0 || len(w.FaceUp) != 0):
		return fmt.Errorf("%w: round not started but has play", ErrInvalidConfiguration)
	}
	return nil
}
