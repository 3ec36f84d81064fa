// Package store persists session snapshots in SQLite so interrupted
// interviews survive process restarts.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/viva-dev/viva/internal/logging"
	"github.com/viva-dev/viva/internal/session"
)

// snapshotKey addresses the single resumable session slot. Only one
// interview can be in flight per machine.
const snapshotKey = "current"

// Store provides SQLite-backed persistence for session snapshots.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// DefaultPath returns the snapshot database location in the state dir.
func DefaultPath() (string, error) {
	dir, err := logging.StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "sessions.db"), nil
}

// Open opens the SQLite database at dbPath and creates tables if they
// don't exist.
func Open(logger *slog.Logger, dbPath string) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		key TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Save writes the snapshot, replacing any previous one.
func (s *Store) Save(snap session.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO snapshots (key, payload, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		snapshotKey, string(payload), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// Load returns the stored snapshot. A missing row reports absence, and
// an undecodable payload is treated the same way rather than blocking
// new sessions.
func (s *Store) Load() (session.Snapshot, bool, error) {
	row := s.db.QueryRow(`SELECT payload FROM snapshots WHERE key = ?`, snapshotKey)

	var payload string
	err := row.Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Snapshot{}, false, nil
	}
	if err != nil {
		return session.Snapshot{}, false, fmt.Errorf("scan snapshot: %w", err)
	}

	var snap session.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		s.logger.Warn("discarding corrupt session snapshot", "error", err)
		return session.Snapshot{}, false, nil
	}
	return snap, true, nil
}

// Clear removes the stored snapshot. Clearing an empty store is fine.
func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM snapshots WHERE key = ?`, snapshotKey); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// HasResumable reports whether an unfinished session is stored.
func (s *Store) HasResumable() (bool, error) {
	snap, ok, err := s.Load()
	if err != nil {
		return false, err
	}
	return ok && !snap.Finished(), nil
}
