// Package memory hosts the card-matching game for a single player on top
// of the matching engine. It adds the presentation pacing the engine leaves
// out: a resolved pair stays visible for a moment, the clock refreshes while
// the round runs, and a finished round can restart itself.
package memory

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"arcade/internal/game"
	"arcade/internal/matching"
)

const (
	DefaultCardCount     = 16
	DefaultGridSize      = 4
	DefaultRevealDelay   = 500 * time.Millisecond
	DefaultMismatchDelay = time.Second
	DefaultRestartDelay  = 3 * time.Second
	DefaultTickInterval  = time.Second
)

// Settings tune the pacing of a Memory game type. Zero fields take the
// defaults above.
type Settings struct {
	RevealDelay   time.Duration
	MismatchDelay time.Duration
	RestartDelay  time.Duration
	TickInterval  time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.RevealDelay <= 0 {
		s.RevealDelay = DefaultRevealDelay
	}
	if s.MismatchDelay <= 0 {
		s.MismatchDelay = DefaultMismatchDelay
	}
	if s.RestartDelay <= 0 {
		s.RestartDelay = DefaultRestartDelay
	}
	if s.TickInterval <= 0 {
		s.TickInterval = DefaultTickInterval
	}
	return s
}

// Memory implements game.Game.
type Memory struct {
	Settings Settings
}

// New returns a memory game type with the given settings.
func New(settings Settings) Memory {
	return Memory{Settings: settings}
}

func (Memory) Info() game.GameInfo {
	return game.GameInfo{
		Name:       "memory",
		MinPlayers: 1,
		MaxPlayers: 1,
	}
}

// Options are the per-session settings sent when a session is created.
// GridSize is the number of columns the client lays the cards out in.
type Options struct {
	CardCount   int  `json:"cardCount"`
	GridSize    int  `json:"gridSize"`
	AutoRestart bool `json:"autoRestart"`
}

func parseOptions(raw json.RawMessage) (Options, error) {
	opts := Options{CardCount: DefaultCardCount, GridSize: DefaultGridSize}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &opts); err != nil {
			return Options{}, fmt.Errorf("invalid memory options: %w", err)
		}
	}
	if opts.GridSize < 1 {
		return Options{}, fmt.Errorf("grid size %d must be positive", opts.GridSize)
	}
	return opts, nil
}

func (g Memory) NewMatch(config game.MatchConfig) (game.Match, error) {
	if len(config.PlayerIDs) != 1 {
		return nil, fmt.Errorf("memory is played alone, got %d players", len(config.PlayerIDs))
	}
	opts, err := parseOptions(config.Options)
	if err != nil {
		return nil, err
	}
	m := &Match{
		Player:   config.PlayerIDs[0],
		Options:  opts,
		settings: g.Settings.withDefaults(),
		rng:      config.Random(),
		now:      config.Clock(),
	}
	if m.Round, err = matching.NewRound(opts.CardCount, m.rng); err != nil {
		return nil, err
	}
	return m, nil
}

var _ game.Paced = (*Match)(nil)

// Match implements game.Match for a memory round.
type Match struct {
	Player  string              `json:"player"`
	Options Options             `json:"options"`
	Round   matching.RoundState `json:"round"`
	// Reveal is the last resolved pair while it is still on show.
	Reveal *matching.Resolution `json:"reveal,omitempty"`

	settings Settings
	rng      *rand.Rand
	now      func() time.Time
}

type stateView struct {
	matching.View
	GridSize    int                  `json:"gridSize"`
	AutoRestart bool                 `json:"autoRestart"`
	Reveal      *matching.Resolution `json:"reveal,omitempty"`
}

type flipPayload struct {
	Card int `json:"card"`
}

// State renders the round as of now. A mismatched pair on show is drawn
// face up until the reveal ends.
func (m *Match) State(playerID string) any {
	view := matching.Tick(m.Round, m.clock()).View()
	if r := m.Reveal; r != nil && !r.Matched {
		for _, id := range []int{r.First, r.Second} {
			if c, ok := m.Round.Card(id); ok {
				view.Cards[id].Flipped = true
				view.Cards[id].Token = c.Token
			}
		}
	}
	return stateView{
		View:        view,
		GridSize:    m.Options.GridSize,
		AutoRestart: m.Options.AutoRestart,
		Reveal:      m.Reveal,
	}
}

func (m *Match) ValidActions(playerID string) []game.Action {
	if playerID != m.Player {
		return nil
	}
	actions := []game.Action{{Type: game.ActionResetRound}}
	if m.Reveal != nil || m.Round.Phase() == matching.Complete {
		return actions
	}
	for _, c := range m.Round.Cards() {
		if c.Flipped || c.Matched {
			continue
		}
		payload, _ := json.Marshal(flipPayload{Card: c.ID})
		actions = append(actions, game.Action{Type: "flip", Payload: payload})
	}
	return actions
}

func (m *Match) ApplyAction(playerID string, action game.Action) error {
	if playerID != m.Player {
		return fmt.Errorf("player %s is not in this match", playerID)
	}
	switch action.Type {
	case game.ActionResetRound:
		return m.reset()
	case "flip":
	default:
		return fmt.Errorf("unknown action type: %s", action.Type)
	}

	var flip flipPayload
	if err := json.Unmarshal(action.Payload, &flip); err != nil {
		return fmt.Errorf("invalid flip payload: %w", err)
	}
	if r := m.Reveal; r != nil {
		return fmt.Errorf("%w: cards %d and %d are still showing", matching.ErrInvalidFlip, r.First, r.Second)
	}
	next, err := matching.Flip(m.Round, flip.Card, m.clock())
	if err != nil {
		return err
	}
	if last, ok := next.LastResolution(); ok && next.Moves() != m.Round.Moves() {
		m.Reveal = &last
	}
	m.Round = next
	return nil
}

func (m *Match) reset() error {
	round, err := matching.Reset(m.Options.CardCount, m.rng)
	if err != nil {
		return err
	}
	m.Round = round
	m.Reveal = nil
	return nil
}

func (m *Match) IsOver() bool {
	return m.Round.Phase() == matching.Complete
}

func (m *Match) Results() []game.PlayerResult {
	if !m.IsOver() {
		return nil
	}
	return []game.PlayerResult{{
		PlayerID:       m.Player,
		Rank:           1,
		Score:          m.Round.MatchedPairs(),
		Moves:          m.Round.Moves(),
		ElapsedSeconds: m.Round.ElapsedSeconds(),
	}}
}

// NextStep reports the next piece of deferred work: ending a reveal,
// refreshing the clock, or restarting a finished round.
func (m *Match) NextStep() (time.Duration, bool) {
	s := m.settings.withDefaults()
	switch {
	case m.Reveal != nil && m.Reveal.Matched:
		return s.RevealDelay, true
	case m.Reveal != nil:
		return s.MismatchDelay, true
	case m.Round.Phase() == matching.Running:
		return s.TickInterval, true
	case m.IsOver() && m.Options.AutoRestart:
		return s.RestartDelay, true
	}
	return 0, false
}

// Step runs the work NextStep announced.
func (m *Match) Step() error {
	switch {
	case m.Reveal != nil:
		m.Reveal = nil
		m.Round = matching.Tick(m.Round, m.clock())
	case m.Round.Phase() == matching.Running:
		m.Round = matching.Tick(m.Round, m.clock())
	case m.IsOver() && m.Options.AutoRestart:
		return m.reset()
	}
	return nil
}

func (m *Match) clock() time.Time {
	if m.now == nil {
		return time.Now()
	}
	return m.now()
}

func (m *Match) MarshalJSON() ([]byte, error) {
	type alias Match
	return json.Marshal((*alias)(m))
}

func (m *Match) UnmarshalJSON(data []byte) error {
	type alias Match
	return json.Unmarshal(data, (*alias)(m))
}
