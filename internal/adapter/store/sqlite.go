package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Interface guard
var _ Backend = (*SQLiteBackend)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv (
	session_id TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	PRIMARY KEY (session_id, key)
);

CREATE TABLE IF NOT EXISTS alarms (
	session_id TEXT PRIMARY KEY,
	wake_at    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alarms_wake_at ON alarms (wake_at);
`

// SQLiteBackend persists sessions and alarms in a SQLite database so that
// both survive process restarts.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens (and migrates) the database at path.
// ":memory:" is accepted for tests.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// database/sql pools connections; a shared in-memory db needs exactly one.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) Scope(sessionID string) Store {
	return &sqliteStore{db: b.db, sessionID: sessionID}
}

func (b *SQLiteBackend) DueAlarms(ctx context.Context, now time.Time) ([]Alarm, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT session_id, wake_at FROM alarms WHERE wake_at <= ? ORDER BY wake_at`,
		now.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("query due alarms: %w", err)
	}
	defer rows.Close()

	var due []Alarm
	for rows.Next() {
		var (
			id string
			ms int64
		)
		if err := rows.Scan(&id, &ms); err != nil {
			return nil, fmt.Errorf("scan alarm: %w", err)
		}
		due = append(due, Alarm{SessionID: id, At: time.UnixMilli(ms)})
	}
	return due, rows.Err()
}

func (b *SQLiteBackend) ClaimAlarm(ctx context.Context, a Alarm) (bool, error) {
	res, err := b.db.ExecContext(ctx,
		`DELETE FROM alarms WHERE session_id = ? AND wake_at = ?`,
		a.SessionID, a.At.UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("claim alarm: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim alarm: %w", err)
	}
	return n == 1, nil
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

type sqliteStore struct {
	db        *sql.DB
	sessionID string
}

func (s *sqliteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE session_id = ? AND key = ?`,
		s.sessionID, key,
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return v, true, nil
}

func (s *sqliteStore) Put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (session_id, key, value) VALUES (?, ?, ?)
		 ON CONFLICT (session_id, key) DO UPDATE SET value = excluded.value`,
		s.sessionID, key, value,
	)
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

func (s *sqliteStore) Delete(ctx context.Context, keys ...string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, k := range keys {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM kv WHERE session_id = ? AND key = ?`, s.sessionID, k,
		); err != nil {
			return fmt.Errorf("delete %q: %w", k, err)
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) ScheduleAlarm(ctx context.Context, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alarms (session_id, wake_at) VALUES (?, ?)
		 ON CONFLICT (session_id) DO UPDATE SET wake_at = excluded.wake_at`,
		s.sessionID, at.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("schedule alarm: %w", err)
	}
	return nil
}

func (s *sqliteStore) CancelAlarm(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM alarms WHERE session_id = ?`, s.sessionID,
	); err != nil {
		return fmt.Errorf("cancel alarm: %w", err)
	}
	return nil
}

func (s *sqliteStore) Alarm(ctx context.Context) (time.Time, bool, error) {
	var ms int64
	err := s.db.QueryRowContext(ctx,
		`SELECT wake_at FROM alarms WHERE session_id = ?`, s.sessionID,
	).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read alarm: %w", err)
	}
	return time.UnixMilli(ms), true, nil
}
