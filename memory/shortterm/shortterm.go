// Package shortterm provides the durable, per-session rolling log of recent
// conversation turns, backed by SQLite.
//
// Turns are ordered by a monotonically increasing sequence (the autoincrement
// row id), not wall-clock time, so ordering stays well-defined under
// same-millisecond writes. Turns are never promoted to long-term storage
// automatically; they only leave the log through trim or clear.
package shortterm

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver
)

// Role values stored with each turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Turn is a single conversation entry.
type Turn struct {
	Sequence  int64
	SessionID string
	UserID    string
	Role      string
	Content   string
}

// Store persists conversation turns in SQLite.
type Store struct {
	db *sql.DB
}

// Open creates a Store at the given database path, creating the schema if
// needed. ":memory:" is accepted for tests.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("shortterm: open database: %w", err)
	}

	// SQLite is single-writer. A single shared connection lets database/sql
	// serialize concurrent callers instead of them fighting for write locks.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("shortterm: set pragma: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("shortterm: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS turns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id);
	`)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add appends a turn for the session with the next sequence number.
func (s *Store) Add(ctx context.Context, sessionID, userID, role, content string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (session_id, user_id, role, content) VALUES (?, ?, ?, ?)`,
		sessionID, userID, role, content)
	if err != nil {
		return fmt.Errorf("shortterm: insert turn: %w", err)
	}
	return nil
}

// Recent returns up to limit most recent turns for the session in ascending
// sequence order (oldest first).
func (s *Store) Recent(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, user_id, role, content FROM (
			SELECT id, session_id, user_id, role, content
			FROM turns
			WHERE session_id = ?
			ORDER BY id DESC
			LIMIT ?
		) ORDER BY id ASC`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("shortterm: query recent: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.Sequence, &t.SessionID, &t.UserID, &t.Role, &t.Content); err != nil {
			return nil, fmt.Errorf("shortterm: scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("shortterm: iterate turns: %w", err)
	}
	return turns, nil
}

// Count returns the total number of turns stored for the session.
func (s *Store) Count(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM turns WHERE session_id = ?`, sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("shortterm: count turns: %w", err)
	}
	return count, nil
}

// Trim physically deletes all turns for the session except the limit most
// recent by sequence. Idempotent.
func (s *Store) Trim(ctx context.Context, sessionID string, limit int) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM turns
		WHERE session_id = ?
		AND id NOT IN (
			SELECT id FROM turns
			WHERE session_id = ?
			ORDER BY id DESC
			LIMIT ?
		)`,
		sessionID, sessionID, limit)
	if err != nil {
		return fmt.Errorf("shortterm: trim turns: %w", err)
	}
	return nil
}

// Clear deletes all turns for the session.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM turns WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("shortterm: clear turns: %w", err)
	}
	return nil
}
