package session

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"arcade/internal/game"
)

// Status represents the session lifecycle.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Player represents a connected player.
type Player struct {
	ID   string
	Send chan []byte // outbound messages
}

// Session is one game session with connected players.
type Session struct {
	mu       sync.RWMutex
	Code     string
	GameType string
	Options  json.RawMessage
	Status   Status
	HostID   string
	Players  map[string]*Player
	Match    game.Match
	game     game.Game

	order    []string // player ids in join order
	recorded bool     // results of the current round were handed out

	timer    *time.Timer
	timerGen uint64
}

// NewSession creates a session in the waiting state.
func NewSession(code, gameType string, g game.Game, options json.RawMessage) *Session {
	return &Session{
		Code:     code,
		GameType: gameType,
		Options:  options,
		Status:   StatusWaiting,
		Players:  make(map[string]*Player),
		game:     g,
	}
}

// AddPlayer adds a player to the session. Returns error if full or already playing.
func (s *Session) AddPlayer(playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status != StatusWaiting {
		return fmt.Errorf("session is not accepting players")
	}
	info := s.game.Info()
	if len(s.Players) >= info.MaxPlayers {
		return fmt.Errorf("session is full")
	}
	if _, exists := s.Players[playerID]; exists {
		return fmt.Errorf("player %s already in session", playerID)
	}
	s.addLocked(playerID)
	if s.HostID == "" {
		s.HostID = playerID
	}
	return nil
}

func (s *Session) addLocked(playerID string) {
	s.Players[playerID] = &Player{
		ID:   playerID,
		Send: make(chan []byte, 64),
	}
	s.order = append(s.order, playerID)
}

// RemovePlayer removes a player from the session. If the host leaves, the
// longest-seated remaining player becomes host.
func (s *Session) RemovePlayer(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Players[playerID]
	if !ok {
		return
	}
	close(p.Send)
	delete(s.Players, playerID)
	s.order = slices.DeleteFunc(s.order, func(id string) bool { return id == playerID })
	if s.HostID == playerID {
		s.HostID = ""
		if len(s.order) > 0 {
			s.HostID = s.order[0]
		}
	}
}

// ConnectPlayer replaces the Send channel for a reconnecting player.
func (s *Session) ConnectPlayer(playerID string, send chan []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Players[playerID]
	if !ok {
		return false
	}
	p.Send = send
	return true
}

// PlayerIDs returns the player IDs in join order.
func (s *Session) PlayerIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}

// Start transitions the session from waiting to playing. The first player
// to join takes the first seat.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status != StatusWaiting {
		return fmt.Errorf("session is not in waiting state")
	}
	info := s.game.Info()
	if len(s.Players) < info.MinPlayers {
		return fmt.Errorf("need at least %d players, have %d", info.MinPlayers, len(s.Players))
	}

	match, err := s.game.NewMatch(game.MatchConfig{
		PlayerIDs: slices.Clone(s.order),
		Options:   s.Options,
	})
	if err != nil {
		return fmt.Errorf("new match: %w", err)
	}
	s.Match = match
	s.Status = StatusPlaying
	s.recorded = false
	return nil
}

// SettleLocked brings Status in line with the match after a change. When a
// round has just ended it returns that round's results, once; a round that
// starts over puts the session back into play. Caller must hold the lock.
func (s *Session) SettleLocked() []game.PlayerResult {
	if s.Match == nil {
		return nil
	}
	if !s.Match.IsOver() {
		s.Status = StatusPlaying
		s.recorded = false
		return nil
	}
	s.Status = StatusFinished
	if s.recorded {
		return nil
	}
	s.recorded = true
	return s.Match.Results()
}

// AfterLocked arranges for step to run under the session lock once d has
// passed, followed by done without the lock. It replaces any step still
// pending. Caller must hold the lock.
func (s *Session) AfterLocked(d time.Duration, step, done func()) {
	s.StopTimerLocked()
	gen := s.timerGen
	s.timer = time.AfterFunc(d, func() {
		s.mu.Lock()
		if gen != s.timerGen {
			s.mu.Unlock()
			return
		}
		s.timer = nil
		step()
		s.mu.Unlock()
		done()
	})
}

// StopTimerLocked cancels a pending step. A step whose timer already fired
// but has not taken the lock yet is dropped too.
func (s *Session) StopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerGen++
}

// Stop cancels a pending step.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StopTimerLocked()
}

// Broadcast sends a message to all connected players.
func (s *Session) Broadcast(msg []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.Players {
		select {
		case p.Send <- msg:
		default:
			// drop message if buffer full
		}
	}
}

// GetPlayer returns a player's send channel, or nil if not found.
func (s *Session) GetPlayer(playerID string) *Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Players[playerID]
}

// Info returns session info for the API.
type Info struct {
	Code     string          `json:"code"`
	GameType string          `json:"gameType"`
	Status   Status          `json:"status"`
	Players  []string        `json:"players"`
	HostID   string          `json:"hostId"`
	Options  json.RawMessage `json:"options,omitempty"`
}

func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.infoLocked()
}

// InfoLocked returns info without acquiring the lock (caller must hold it).
func (s *Session) InfoLocked() Info {
	return s.infoLocked()
}

func (s *Session) infoLocked() Info {
	ids := slices.Clone(s.order)
	if ids == nil {
		ids = []string{}
	}
	return Info{
		Code:     s.Code,
		GameType: s.GameType,
		Status:   s.Status,
		Players:  ids,
		HostID:   s.HostID,
		Options:  s.Options,
	}
}

// Lock/RLock/Unlock/RUnlock expose the mutex for the server's websocket handler.
func (s *Session) Lock()    { s.mu.Lock() }
func (s *Session) Unlock()  { s.mu.Unlock() }
func (s *Session) RLock()   { s.mu.RLock() }
func (s *Session) RUnlock() { s.mu.RUnlock() }
