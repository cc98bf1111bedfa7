package tictactoe

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"

	"arcade/internal/board"
	"arcade/internal/game"
)

const (
	// MaxSize bounds the board edge a session may ask for.
	MaxSize = 9
	// DefaultBotDelay is how long the scripted opponent waits before moving.
	DefaultBotDelay = 500 * time.Millisecond
)

// Settings tune a TicTacToe game type.
type Settings struct {
	BotDelay time.Duration
}

// TicTacToe implements game.Game.
type TicTacToe struct {
	Settings Settings
}

// New returns a tic-tac-toe game type with the given settings.
func New(settings Settings) TicTacToe {
	return TicTacToe{Settings: settings}
}

func (t TicTacToe) Info() game.GameInfo {
	return game.GameInfo{
		Name:       "tictactoe",
		MinPlayers: 1,
		MaxPlayers: 2,
	}
}

// Options are the per-session settings sent when a session is created.
// Symbol is the mark of the first player to join; X always opens, so a
// player who picks O against the bot lets the bot move first.
type Options struct {
	Size     int    `json:"size"`
	Opponent bool   `json:"opponent"`
	Symbol   string `json:"symbol,omitempty"`
}

func parseOptions(raw json.RawMessage) (Options, error) {
	opts := Options{Size: 3}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &opts); err != nil {
			return Options{}, fmt.Errorf("invalid tictactoe options: %w", err)
		}
	}
	if opts.Size < 1 || opts.Size > MaxSize {
		return Options{}, fmt.Errorf("board size %d out of range 1..%d", opts.Size, MaxSize)
	}
	switch opts.Symbol {
	case "":
		opts.Symbol = board.PlayerA.String()
	case board.PlayerA.String(), board.PlayerB.String():
	default:
		return Options{}, fmt.Errorf("symbol must be X or O, got %q", opts.Symbol)
	}
	return opts, nil
}

func (t TicTacToe) NewMatch(config game.MatchConfig) (game.Match, error) {
	opts, err := parseOptions(config.Options)
	if err != nil {
		return nil, err
	}
	m := &Match{
		Options:  opts,
		botDelay: t.Settings.BotDelay,
		rng:      config.Random(),
	}
	var first, second string
	switch ids := config.PlayerIDs; {
	case len(ids) == 1:
		first, second = ids[0], "bot-"+uuid.NewString()[:8]
		m.Bot = second
	case len(ids) == 2 && opts.Opponent:
		return nil, fmt.Errorf("a game against the bot takes one player, got %d", len(ids))
	case len(ids) == 2:
		first, second = ids[0], ids[1]
	default:
		return nil, fmt.Errorf("tictactoe needs 1 or 2 players, got %d", len(ids))
	}
	m.Players = [2]string{first, second}
	if opts.Symbol == board.PlayerB.String() {
		m.Players = [2]string{second, first}
	}
	if m.Board, err = board.NewGame(opts.Size); err != nil {
		return nil, err
	}
	return m, nil
}

var _ game.Paced = (*Match)(nil)

// Match implements game.Match for tic-tac-toe. Players[0] plays X and
// moves first; the bot, if any, may hold either seat.
type Match struct {
	Players [2]string       `json:"players"`
	Bot     string          `json:"bot,omitempty"` // seat id of the scripted opponent
	Options Options         `json:"options"`
	Board   board.GameState `json:"board"`

	botDelay time.Duration
	rng      *rand.Rand
}

type stateView struct {
	Size    int      `json:"size"`
	Board   []int    `json:"board"` // 0=empty, 1=X, 2=O
	Turn    string   `json:"turn"`
	You     int      `json:"you"` // 1=X, 2=O, 0=spectator
	Players []string `json:"players"`
	Bot     string   `json:"bot,omitempty"`
	Done    bool     `json:"done"`
	Winner  string   `json:"winner,omitempty"`
	Line    []int    `json:"line,omitempty"`
}

func (m *Match) seat(playerID string) (board.Cell, bool) {
	switch playerID {
	case m.Players[0]:
		return board.PlayerA, true
	case m.Players[1]:
		return board.PlayerB, true
	}
	return board.Empty, false
}

func (m *Match) playerAt(c board.Cell) string {
	if c == board.PlayerB {
		return m.Players[1]
	}
	return m.Players[0]
}

func (m *Match) State(playerID string) any {
	you, _ := m.seat(playerID)
	cells := m.Board.Cells()
	view := stateView{
		Size:    m.Board.Size(),
		Board:   make([]int, len(cells)),
		Turn:    m.playerAt(m.Board.CurrentPlayer()),
		You:     int(you),
		Players: m.Players[:],
		Bot:     m.Bot,
		Done:    m.Board.Over(),
	}
	for i, c := range cells {
		view.Board[i] = int(c)
	}
	switch o := m.Board.Outcome(); o.Kind {
	case board.Draw:
		view.Winner = "draw"
	case board.Win:
		view.Winner = m.playerAt(o.Winner)
		view.Line = o.Line
	}
	return view
}

type movePayload struct {
	Cell int `json:"cell"`
}

func (m *Match) ValidActions(playerID string) []game.Action {
	if m.Board.Over() || playerID == m.Bot {
		return nil
	}
	if seat, ok := m.seat(playerID); !ok || seat != m.Board.CurrentPlayer() {
		return nil
	}
	var actions []game.Action
	for _, cell := range m.Board.EmptyCells() {
		payload, _ := json.Marshal(movePayload{Cell: cell})
		actions = append(actions, game.Action{
			Type:    "move",
			Payload: payload,
		})
	}
	return actions
}

func (m *Match) ApplyAction(playerID string, action game.Action) error {
	seat, ok := m.seat(playerID)
	if !ok || playerID == m.Bot {
		return fmt.Errorf("player %s is not seated in this match", playerID)
	}
	switch action.Type {
	case game.ActionResetRound:
		return m.reset()
	case "move":
	default:
		return fmt.Errorf("unknown action type: %s", action.Type)
	}

	var move movePayload
	if err := json.Unmarshal(action.Payload, &move); err != nil {
		return fmt.Errorf("invalid move payload: %w", err)
	}
	if !m.Board.Over() && seat != m.Board.CurrentPlayer() {
		return fmt.Errorf("%w: not your turn", board.ErrInvalidMove)
	}
	next, err := board.ApplyMove(m.Board, move.Cell, seat)
	if err != nil {
		return err
	}
	m.Board = next
	return nil
}

func (m *Match) reset() error {
	fresh, err := board.NewGame(m.Options.Size)
	if err != nil {
		return err
	}
	m.Board = fresh
	return nil
}

func (m *Match) IsOver() bool {
	return m.Board.Over()
}

// Results ranks the human seats, winner first. The bot is never listed.
func (m *Match) Results() []game.PlayerResult {
	if !m.Board.Over() {
		return nil
	}
	moves := [3]int{}
	for _, c := range m.Board.Cells() {
		moves[c]++
	}
	o := m.Board.Outcome()
	var results []game.PlayerResult
	for _, mark := range []board.Cell{board.PlayerA, board.PlayerB} {
		id := m.playerAt(mark)
		if id == m.Bot {
			continue
		}
		r := game.PlayerResult{PlayerID: id, Rank: 1, Moves: moves[mark]}
		if o.Kind == board.Win {
			if o.Winner == mark {
				r.Score = 1
			} else {
				r.Rank = 2
			}
		}
		results = append(results, r)
	}
	slices.SortStableFunc(results, func(a, b game.PlayerResult) int { return a.Rank - b.Rank })
	return results
}

// NextStep reports the bot's pending turn.
func (m *Match) NextStep() (time.Duration, bool) {
	if !m.botToMove() {
		return 0, false
	}
	if m.botDelay > 0 {
		return m.botDelay, true
	}
	return DefaultBotDelay, true
}

// Step plays the bot's turn, if it has one.
func (m *Match) Step() error {
	if !m.botToMove() {
		return nil
	}
	bot, _ := m.seat(m.Bot)
	cell, ok := board.SuggestMove(m.Board, bot, bot.Opponent(), m.rng)
	if !ok {
		return nil
	}
	next, err := board.ApplyMove(m.Board, cell, bot)
	if err != nil {
		return fmt.Errorf("bot move %d: %w", cell, err)
	}
	m.Board = next
	return nil
}

func (m *Match) botToMove() bool {
	if m.Bot == "" || m.Board.Over() {
		return false
	}
	bot, _ := m.seat(m.Bot)
	return m.Board.CurrentPlayer() == bot
}

func (m *Match) MarshalJSON() ([]byte, error) {
	type alias Match
	return json.Marshal((*alias)(m))
}

func (m *Match) UnmarshalJSON(data []byte) error {
	type alias Match
	return json.Unmarshal(data, (*alias)(m))
}
