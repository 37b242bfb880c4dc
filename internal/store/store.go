// Package store persists per-session generation usage in SQLite.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultGenerationLimit is the per-session generation allowance.
const DefaultGenerationLimit = 50

const dateLayout = "2006-01-02"

// UsageStats summarizes one session against its limit.
type UsageStats struct {
	SessionID        string    `json:"session_id"`
	TotalGenerations int       `json:"total_generations"`
	EstimatedTokens  int       `json:"estimated_tokens"`
	FirstAccess      time.Time `json:"first_access"`
	LastAccess       time.Time `json:"last_access"`
	Limit            int       `json:"limit"`
	Remaining        int       `json:"remaining"`
	PercentageUsed   float64   `json:"percentage_used"`
}

// SessionUsage is the full record of a session, daily counts included.
type SessionUsage struct {
	SessionID         string         `json:"session_id"`
	FirstAccess       time.Time      `json:"first_access"`
	LastAccess        time.Time      `json:"last_access"`
	GenerationsCount  int            `json:"generations_count"`
	EstimatedTokens   int            `json:"estimated_tokens"`
	GenerationsByDate map[string]int `json:"generations_by_date"`
}

// Store represents the SQLite-based usage tracker
type Store struct {
	db    *sql.DB
	path  string
	limit int
	now   func() time.Time
}

// NewStore opens (creating if needed) the usage database at dbPath. A limit
// of zero disables the per-session cap.
func NewStore(dbPath string, limit int) (*Store, error) {
	if limit < 0 {
		return nil, fmt.Errorf("generation limit must be >= 0, got %d", limit)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{
		db:    db,
		path:  dbPath,
		limit: limit,
		now:   time.Now,
	}

	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// initialize creates the necessary tables
func (s *Store) initialize() error {
	sessionsTable := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		first_access DATETIME NOT NULL,
		last_access DATETIME NOT NULL,
		generations_count INTEGER NOT NULL DEFAULT 0,
		estimated_tokens INTEGER NOT NULL DEFAULT 0
	);`

	dailyTable := `
	CREATE TABLE IF NOT EXISTS generations_by_date (
		session_id TEXT NOT NULL,
		day TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (session_id, day),
		FOREIGN KEY (session_id) REFERENCES sessions (session_id)
	);`

	for _, table := range []string{sessionsTable, dailyTable} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Limit returns the per-session generation limit (0 means unlimited).
func (s *Store) Limit() int {
	return s.limit
}

// RecordGeneration counts one generation and its estimated tokens for sessionID.
func (s *Store) RecordGeneration(sessionID string, tokens int) error {
	now := s.now().UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
	INSERT INTO sessions (session_id, first_access, last_access, generations_count, estimated_tokens)
	VALUES (?, ?, ?, 1, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		last_access = excluded.last_access,
		generations_count = generations_count + 1,
		estimated_tokens = estimated_tokens + excluded.estimated_tokens`,
		sessionID, now, now, tokens)
	if err != nil {
		return fmt.Errorf("failed to record generation: %w", err)
	}

	_, err = tx.Exec(`
	INSERT INTO generations_by_date (session_id, day, count) VALUES (?, ?, 1)
	ON CONFLICT(session_id, day) DO UPDATE SET count = count + 1`,
		sessionID, now.Format(dateLayout))
	if err != nil {
		return fmt.Errorf("failed to record daily generation: %w", err)
	}

	return tx.Commit()
}

// Stats returns usage for sessionID. Unknown sessions report zero usage.
func (s *Store) Stats(sessionID string) (*UsageStats, error) {
	stats := &UsageStats{SessionID: sessionID, Limit: s.limit}

	err := s.db.QueryRow(`
	SELECT first_access, last_access, generations_count, estimated_tokens
	FROM sessions WHERE session_id = ?`, sessionID).
		Scan(&stats.FirstAccess, &stats.LastAccess, &stats.TotalGenerations, &stats.EstimatedTokens)
	if errors.Is(err, sql.ErrNoRows) {
		now := s.now().UTC()
		stats.FirstAccess, stats.LastAccess = now, now
	} else if err != nil {
		return nil, fmt.Errorf("failed to get usage stats: %w", err)
	}

	if s.limit > 0 {
		stats.Remaining = max(0, s.limit-stats.TotalGenerations)
		stats.PercentageUsed = float64(stats.TotalGenerations) / float64(s.limit) * 100
	}
	return stats, nil
}

// LimitReached reports whether sessionID has used its allowance.
func (s *Store) LimitReached(sessionID string) (bool, error) {
	if s.limit == 0 {
		return false, nil
	}
	stats, err := s.Stats(sessionID)
	if err != nil {
		return false, err
	}
	return stats.TotalGenerations >= s.limit, nil
}

// Reset zeroes the counters of an existing session. Unknown sessions are left alone.
func (s *Store) Reset(sessionID string) error {
	now := s.now().UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
	UPDATE sessions SET first_access = ?, last_access = ?, generations_count = 0, estimated_tokens = 0
	WHERE session_id = ?`, now, now, sessionID); err != nil {
		return fmt.Errorf("failed to reset session: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM generations_by_date WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to reset daily counts: %w", err)
	}

	return tx.Commit()
}

// All returns every tracked session ordered by most recent access.
func (s *Store) All() ([]SessionUsage, error) {
	rows, err := s.db.Query(`
	SELECT session_id, first_access, last_access, generations_count, estimated_tokens
	FROM sessions ORDER BY last_access DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []SessionUsage
	index := make(map[string]int)
	for rows.Next() {
		u := SessionUsage{GenerationsByDate: make(map[string]int)}
		if err := rows.Scan(&u.SessionID, &u.FirstAccess, &u.LastAccess, &u.GenerationsCount, &u.EstimatedTokens); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		index[u.SessionID] = len(sessions)
		sessions = append(sessions, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	daily, err := s.db.Query("SELECT session_id, day, count FROM generations_by_date")
	if err != nil {
		return nil, fmt.Errorf("failed to list daily counts: %w", err)
	}
	defer func() { _ = daily.Close() }()

	for daily.Next() {
		var id, day string
		var count int
		if err := daily.Scan(&id, &day, &count); err != nil {
			return nil, fmt.Errorf("failed to scan daily count: %w", err)
		}
		if i, ok := index[id]; ok {
			sessions[i].GenerationsByDate[day] = count
		}
	}
	return sessions, daily.Err()
}
