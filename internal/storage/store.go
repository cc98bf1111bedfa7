package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SessionRow represents a session in the database.
type SessionRow struct {
	Code      string
	GameType  string
	Status    string // "waiting", "playing", "finished"
	Options   string // game options JSON, "{}" when none were sent
	HostID    string
	Players   []string // join order
	CreatedAt time.Time
}

// ResultRow is one player's placing in a finished round.
type ResultRow struct {
	ID             string    `json:"id"`
	SessionCode    string    `json:"sessionCode"`
	GameType       string    `json:"gameType"`
	PlayerID       string    `json:"playerId"`
	Rank           int       `json:"rank"`
	Score          int       `json:"score"`
	Moves          int       `json:"moves"`
	ElapsedSeconds int       `json:"elapsedSeconds"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Store handles SQLite persistence.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database and runs migrations.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if path == ":memory:" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}
	// WAL mode for better concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			code       TEXT PRIMARY KEY,
			game_type  TEXT NOT NULL,
			status     TEXT NOT NULL DEFAULT 'waiting',
			options    TEXT NOT NULL DEFAULT '{}',
			host_id    TEXT NOT NULL DEFAULT '',
			players    TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS match_state (
			session_code TEXT PRIMARY KEY REFERENCES sessions(code),
			state_json   TEXT NOT NULL,
			updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS results (
			id              TEXT PRIMARY KEY,
			session_code    TEXT NOT NULL,
			game_type       TEXT NOT NULL,
			player_id       TEXT NOT NULL,
			rank            INTEGER NOT NULL,
			score           INTEGER NOT NULL,
			moves           INTEGER NOT NULL,
			elapsed_seconds INTEGER NOT NULL,
			created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS results_game ON results (game_type, rank, moves, elapsed_seconds);
	`)
	return err
}

// CreateSession inserts a new session. An empty options string is stored
// as "{}".
func (s *Store) CreateSession(code, gameType, options string) error {
	if options == "" {
		options = "{}"
	}
	_, err := s.db.Exec(
		"INSERT INTO sessions (code, game_type, status, options) VALUES (?, ?, 'waiting', ?)",
		code, gameType, options,
	)
	return err
}

const sessionColumns = "code, game_type, status, options, host_id, players, created_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*SessionRow, error) {
	var sr SessionRow
	var players string
	if err := row.Scan(&sr.Code, &sr.GameType, &sr.Status, &sr.Options, &sr.HostID, &players, &sr.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(players), &sr.Players); err != nil {
		return nil, fmt.Errorf("session %s players: %w", sr.Code, err)
	}
	return &sr, nil
}

// GetSession retrieves a session by code.
func (s *Store) GetSession(code string) (*SessionRow, error) {
	return scanSession(s.db.QueryRow("SELECT "+sessionColumns+" FROM sessions WHERE code = ?", code))
}

// UpdateSessionStatus changes a session's status.
func (s *Store) UpdateSessionStatus(code, status string) error {
	_, err := s.db.Exec("UPDATE sessions SET status = ? WHERE code = ?", status, code)
	return err
}

// UpdateSessionPlayers records the roster in join order and the host.
func (s *Store) UpdateSessionPlayers(code, hostID string, players []string) error {
	if players == nil {
		players = []string{}
	}
	data, err := json.Marshal(players)
	if err != nil {
		return err
	}
	_, err = s.db.Exec("UPDATE sessions SET host_id = ?, players = ? WHERE code = ?", hostID, string(data), code)
	return err
}

// ListSessions returns all sessions with the given status (or all if status is empty).
func (s *Store) ListSessions(status string) ([]SessionRow, error) {
	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = s.db.Query("SELECT " + sessionColumns + " FROM sessions ORDER BY created_at DESC")
	} else {
		rows, err = s.db.Query("SELECT "+sessionColumns+" FROM sessions WHERE status = ? ORDER BY created_at DESC", status)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []SessionRow
	for rows.Next() {
		sr, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *sr)
	}
	return result, rows.Err()
}

// SaveMatchState upserts match state JSON.
func (s *Store) SaveMatchState(sessionCode, stateJSON string) error {
	_, err := s.db.Exec(`
		INSERT INTO match_state (session_code, state_json, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(session_code) DO UPDATE SET state_json = excluded.state_json, updated_at = excluded.updated_at
	`, sessionCode, stateJSON)
	return err
}

// GetMatchState retrieves match state JSON.
func (s *Store) GetMatchState(sessionCode string) (string, error) {
	var stateJSON string
	err := s.db.QueryRow("SELECT state_json FROM match_state WHERE session_code = ?", sessionCode).Scan(&stateJSON)
	return stateJSON, err
}

// DeleteSession removes a session and its match state. Recorded results
// are kept for the leaderboard.
func (s *Store) DeleteSession(code string) error {
	_, err := s.db.Exec("DELETE FROM match_state WHERE session_code = ?", code)
	if err != nil {
		return err
	}
	_, err = s.db.Exec("DELETE FROM sessions WHERE code = ?", code)
	return err
}

// RecordResults stores one row per result in a single transaction and
// returns the rows with their generated ids.
func (s *Store) RecordResults(results []ResultRow) ([]ResultRow, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO results (id, session_code, game_type, player_id, rank, score, moves, elapsed_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	out := make([]ResultRow, len(results))
	for i, r := range results {
		r.ID = uuid.NewString()
		if _, err := stmt.Exec(r.ID, r.SessionCode, r.GameType, r.PlayerID, r.Rank, r.Score, r.Moves, r.ElapsedSeconds); err != nil {
			return nil, fmt.Errorf("insert result for %s: %w", r.PlayerID, err)
		}
		out[i] = r
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

// Leaderboard lists the best results for a game type: lower rank first,
// then fewer moves, then less time.
func (s *Store) Leaderboard(gameType string, limit int) ([]ResultRow, error) {
	rows, err := s.db.Query(`
		SELECT id, session_code, game_type, player_id, rank, score, moves, elapsed_seconds, created_at
		FROM results
		WHERE game_type = ?
		ORDER BY rank ASC, moves ASC, elapsed_seconds ASC, created_at ASC
		LIMIT ?
	`, gameType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []ResultRow{}
	for rows.Next() {
		var r ResultRow
		if err := rows.Scan(&r.ID, &r.SessionCode, &r.GameType, &r.PlayerID, &r.Rank, &r.Score, &r.Moves, &r.ElapsedSeconds, &r.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
