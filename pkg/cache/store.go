// Package cache persists registry snapshots across process restarts so a
// warm start can skip the parsing pipeline when nothing changed upstream.
// The store is advisory: a missing or stale snapshot never blocks startup,
// it only forces a full re-ingest.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	skilltypes "github.com/skillmesh/skillmesh/pkg/types/skills"
)

const snapshotName = "registry"

const createSnapshotsTable = `
CREATE TABLE IF NOT EXISTS snapshots (
	name     TEXT PRIMARY KEY,
	payload  TEXT NOT NULL,
	saved_at TIMESTAMP NOT NULL
)`

// Store is a SQLite-backed snapshot store keyed by logical name
type Store struct {
	dbPath string
	db     *sqlx.DB
}

// NewStore opens (and if needed creates) the snapshot database
func NewStore(ctx context.Context, dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create cache directory")
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open cache database")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping cache database")
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "failed to execute pragma: %s", pragma)
		}
	}
	db.SetMaxIdleConns(1)
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, createSnapshotsTable); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create snapshots table")
	}

	return &Store{dbPath: dbPath, db: db}, nil
}

// Close releases the database handle
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSnapshot upserts the registry snapshot under the fixed logical name
func (s *Store) SaveSnapshot(ctx context.Context, snapshot *skilltypes.RegistrySnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "failed to serialize snapshot")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (name, payload, saved_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`,
		snapshotName, string(payload), time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "failed to save snapshot")
	}
	return nil
}

// LoadSnapshot returns the stored snapshot, or nil when absent
func (s *Store) LoadSnapshot(ctx context.Context) (*skilltypes.RegistrySnapshot, error) {
	var payload string
	err := s.db.GetContext(ctx, &payload,
		"SELECT payload FROM snapshots WHERE name = ?", snapshotName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load snapshot")
	}

	var snapshot skilltypes.RegistrySnapshot
	if err := json.Unmarshal([]byte(payload), &snapshot); err != nil {
		return nil, errors.Wrap(err, "failed to deserialize snapshot")
	}
	return &snapshot, nil
}

// IsFresh reports whether a snapshot exists and was saved within maxAge
func (s *Store) IsFresh(ctx context.Context, maxAge time.Duration) (bool, error) {
	var savedAt time.Time
	err := s.db.GetContext(ctx, &savedAt,
		"SELECT saved_at FROM snapshots WHERE name = ?", snapshotName)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "failed to read snapshot age")
	}

	return time.Since(savedAt) <= maxAge, nil
}
