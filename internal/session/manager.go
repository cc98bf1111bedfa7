package session

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"arcade/internal/game"
	"arcade/internal/storage"
)

// Manager manages all active sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	registry *game.Registry
	store    *storage.Store
	log      *zap.Logger
}

// NewManager creates a session manager. A nil logger discards output.
func NewManager(registry *game.Registry, store *storage.Store, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		registry: registry,
		store:    store,
		log:      log,
	}
}

// Create makes a new session and persists it. Options are checked against
// the game before anything is stored.
func (m *Manager) Create(gameType string, options json.RawMessage) (*Session, error) {
	g, ok := m.registry.Get(gameType)
	if !ok {
		return nil, fmt.Errorf("unknown game type: %s", gameType)
	}
	if err := checkOptions(g, options); err != nil {
		return nil, err
	}
	code := generateCode()
	if err := m.store.CreateSession(code, gameType, string(options)); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	s := NewSession(code, gameType, g, options)
	m.mu.Lock()
	m.sessions[code] = s
	m.mu.Unlock()
	m.log.Info("session created", zap.String("session", code), zap.String("game", gameType))
	return s, nil
}

// checkOptions deals a throwaway match with placeholder players so bad
// options fail at creation rather than at start.
func checkOptions(g game.Game, options json.RawMessage) error {
	if len(options) > 0 && !json.Valid(options) {
		return fmt.Errorf("options are not valid JSON")
	}
	ids := make([]string, g.Info().MinPlayers)
	for i := range ids {
		ids[i] = fmt.Sprintf("seat-%d", i+1)
	}
	if _, err := g.NewMatch(game.MatchConfig{PlayerIDs: ids, Options: options}); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}

// Get returns a session by code.
func (m *Manager) Get(code string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[code]
	return s, ok
}

// List returns info for all active sessions.
func (m *Manager) List() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	infos := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		infos = append(infos, s.Info())
	}
	return infos
}

// SaveMatchState persists the current match state for a session.
func (m *Manager) SaveMatchState(s *Session) error {
	s.mu.RLock()
	match := s.Match
	status := s.Status
	var data []byte
	var err error
	if match != nil {
		data, err = match.MarshalJSON()
	}
	s.mu.RUnlock()

	if err := m.store.UpdateSessionStatus(s.Code, string(status)); err != nil {
		return err
	}
	if match == nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("marshal match state: %w", err)
	}
	return m.store.SaveMatchState(s.Code, string(data))
}

// RecordResults stores the placings of a finished round.
func (m *Manager) RecordResults(s *Session, results []game.PlayerResult) error {
	if len(results) == 0 {
		return nil
	}
	rows := make([]storage.ResultRow, len(results))
	for i, r := range results {
		rows[i] = storage.ResultRow{
			SessionCode:    s.Code,
			GameType:       s.GameType,
			PlayerID:       r.PlayerID,
			Rank:           r.Rank,
			Score:          r.Score,
			Moves:          r.Moves,
			ElapsedSeconds: r.ElapsedSeconds,
		}
	}
	if _, err := m.store.RecordResults(rows); err != nil {
		return fmt.Errorf("record results: %w", err)
	}
	m.log.Info("round recorded", zap.String("session", s.Code), zap.Int("players", len(rows)))
	return nil
}

// Leaderboard returns the best recorded results for a game type.
func (m *Manager) Leaderboard(gameType string, limit int) ([]storage.ResultRow, error) {
	if _, ok := m.registry.Get(gameType); !ok {
		return nil, fmt.Errorf("unknown game type: %s", gameType)
	}
	return m.store.Leaderboard(gameType, limit)
}

// Restore loads sessions from the database on startup.
func (m *Manager) Restore() error {
	rows, err := m.store.ListSessions("")
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	for _, row := range rows {
		if row.Status == string(StatusFinished) {
			continue
		}
		log := m.log.With(zap.String("session", row.Code))
		g, ok := m.registry.Get(row.GameType)
		if !ok {
			log.Warn("skipping session: unknown game type", zap.String("game", row.GameType))
			continue
		}
		snap, err := m.loadSessionPlayers(row.Code)
		if err != nil {
			log.Warn("skipping session: no roster", zap.Error(err))
			continue
		}
		s := NewSession(row.Code, row.GameType, g, json.RawMessage(row.Options))
		s.Status = Status(row.Status)
		for _, id := range snap.Players {
			s.addLocked(id)
		}
		s.HostID = snap.HostID

		if s.Status == StatusPlaying {
			stateJSON, err := m.store.GetMatchState(row.Code)
			if err != nil {
				log.Warn("skipping session: no match state", zap.Error(err))
				continue
			}
			match, err := g.NewMatch(game.MatchConfig{PlayerIDs: snap.Players, Options: s.Options})
			if err != nil {
				log.Warn("skipping session: cannot seat players", zap.Error(err))
				continue
			}
			if err := match.UnmarshalJSON([]byte(stateJSON)); err != nil {
				log.Warn("skipping session: unmarshal error", zap.Error(err))
				continue
			}
			s.Match = match
		}
		m.mu.Lock()
		m.sessions[row.Code] = s
		m.mu.Unlock()
		log.Debug("session restored", zap.String("status", row.Status))
	}
	return nil
}

// Remove deletes a session from memory and storage.
func (m *Manager) Remove(code string) {
	m.mu.Lock()
	s, ok := m.sessions[code]
	delete(m.sessions, code)
	m.mu.Unlock()
	if ok {
		s.Stop()
	}
	if err := m.store.DeleteSession(code); err != nil {
		m.log.Warn("delete session", zap.String("session", code), zap.Error(err))
	}
}

// CleanupLoop removes stale sessions periodically until stop is closed.
func (m *Manager) CleanupLoop(interval, maxAge time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.cleanup(maxAge)
		case <-stop:
			return
		}
	}
}

func (m *Manager) cleanup(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for code, s := range m.sessions {
		s.mu.RLock()
		empty := len(s.Players) == 0
		finished := s.Status == StatusFinished
		s.mu.RUnlock()

		if finished || empty {
			row, err := m.store.GetSession(code)
			if err != nil {
				s.Stop()
				delete(m.sessions, code)
				continue
			}
			if now.Sub(row.CreatedAt) > maxAge || empty {
				m.log.Info("cleaning up session", zap.String("session", code))
				s.Stop()
				m.store.DeleteSession(code)
				delete(m.sessions, code)
			}
		}
	}
}

func generateCode() string {
	b := make([]byte, 3) // 6 hex chars
	rand.Read(b)
	return hex.EncodeToString(b)
}

type sessionSnapshot struct {
	Players []string `json:"players"`
	HostID  string   `json:"hostId"`
}

// SaveSessionPlayers persists the roster so Restore can seat the same
// players in the same order.
func (m *Manager) SaveSessionPlayers(s *Session) error {
	s.mu.RLock()
	snap := sessionSnapshot{
		Players: append([]string(nil), s.order...),
		HostID:  s.HostID,
	}
	s.mu.RUnlock()
	return m.store.UpdateSessionPlayers(s.Code, snap.HostID, snap.Players)
}

func (m *Manager) loadSessionPlayers(code string) (sessionSnapshot, error) {
	row, err := m.store.GetSession(code)
	if err != nil {
		return sessionSnapshot{}, err
	}
	return sessionSnapshot{Players: row.Players, HostID: row.HostID}, nil
}
