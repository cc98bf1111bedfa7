package game

import (
	"encoding/json"
	"math/rand/v2"
	"time"
)

// GameInfo describes a game type for the lobby.
type GameInfo struct {
	Name       string `json:"name"`
	MinPlayers int    `json:"minPlayers"`
	MaxPlayers int    `json:"maxPlayers"`
}

// MatchConfig holds settings for creating a new match.
type MatchConfig struct {
	// PlayerIDs in seating order; the first player moves first.
	PlayerIDs []string
	// Options is the game-specific JSON sent when the session was created.
	Options json.RawMessage
	// Rand and Now default to a randomly seeded source and time.Now.
	Rand *rand.Rand
	Now  func() time.Time
}

// Random returns c.Rand, or a new randomly seeded source.
func (c MatchConfig) Random() *rand.Rand {
	if c.Rand != nil {
		return c.Rand
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// Clock returns c.Now, or time.Now.
func (c MatchConfig) Clock() func() time.Time {
	if c.Now != nil {
		return c.Now
	}
	return time.Now
}

// Action represents a move a player can make.
type Action struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// PlayerResult holds the outcome for one player.
type PlayerResult struct {
	PlayerID       string `json:"playerId"`
	Rank           int    `json:"rank"` // 1 = first place
	Score          int    `json:"score"`
	Moves          int    `json:"moves"`
	ElapsedSeconds int    `json:"elapsedSeconds,omitempty"`
}

// Game describes a game type (tic-tac-toe, memory, etc.)
type Game interface {
	Info() GameInfo
	NewMatch(config MatchConfig) (Match, error)
}

// Match is one in-progress game session.
type Match interface {
	State(playerID string) any
	ValidActions(playerID string) []Action
	ApplyAction(playerID string, action Action) error
	IsOver() bool
	Results() []PlayerResult
	// MarshalJSON / UnmarshalJSON support for persistence
	MarshalJSON() ([]byte, error)
	UnmarshalJSON(data []byte) error
}

// Paced is implemented by matches with follow-up work that should run
// after a delay, such as a bot's turn or turning a mismatched pair back
// over. The host calls NextStep after every change and Step once the
// delay has passed.
type Paced interface {
	NextStep() (time.Duration, bool)
	Step() error
}

// ActionResetRound is accepted by every built-in game and starts the match
// over with the same players and options.
const ActionResetRound = "reset"
