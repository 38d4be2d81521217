// Package sqlitedirectory provides a SQLite-backed session directory.
package sqlitedirectory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-session-host/directory"
	apperrors "github.com/jrsteele09/go-session-host/internal/errors"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS directory_entries (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	capacity       INTEGER NOT NULL,
	metadata       TEXT NOT NULL DEFAULT '{}',
	created_at     INTEGER NOT NULL,
	last_heartbeat INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS directory_entries_heartbeat ON directory_entries (last_heartbeat);
`

// Store persists directory entries in SQLite.
type Store struct {
	sqlDB   *sql.DB
	ttl     time.Duration
	nowTime func() time.Time
}

var _ directory.Store = (*Store)(nil)

// Option modifies a Store.
type Option func(*Store)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Store) {
		s.nowTime = nowFunc
	}
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite directory at path and creates its schema. A ttl of zero disables expiry.
func Open(path string, ttl time.Duration, options ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	s := &Store{sqlDB: sqlDB, ttl: ttl, nowTime: time.Now}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Register(ctx context.Context, name string, capacity int, metadata map[string]string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperrors.Wrapf(apperrors.ErrInvalidArgument, "name is required")
	}
	if capacity < 1 {
		return "", apperrors.Wrapf(apperrors.ErrInvalidArgument, "capacity %d", capacity)
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}

	id := uuid.New().String()
	now := toMillis(s.nowTime())
	if _, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO directory_entries (id, name, capacity, metadata, created_at, last_heartbeat) VALUES (?, ?, ?, ?, ?, ?)`,
		id, name, capacity, string(encoded), now, now,
	); err != nil {
		return "", fmt.Errorf("insert directory entry: %w", err)
	}
	return id, nil
}

func (s *Store) Heartbeat(ctx context.Context, entryID string) error {
	now := s.nowTime()
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE directory_entries SET last_heartbeat = ? WHERE id = ? AND last_heartbeat >= ?`,
		toMillis(now), entryID, s.cutoff(now),
	)
	if err != nil {
		return fmt.Errorf("heartbeat directory entry: %w", err)
	}
	return requireRow(res, entryID)
}

func (s *Store) Unregister(ctx context.Context, entryID string) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM directory_entries WHERE id = ?`, entryID)
	if err != nil {
		return fmt.Errorf("delete directory entry: %w", err)
	}
	return requireRow(res, entryID)
}

// List returns live entries, oldest first.
func (s *Store) List(ctx context.Context) ([]directory.Entry, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, name, capacity, metadata, created_at, last_heartbeat
		 FROM directory_entries WHERE last_heartbeat >= ? ORDER BY created_at, id`,
		s.cutoff(s.nowTime()),
	)
	if err != nil {
		return nil, fmt.Errorf("list directory entries: %w", err)
	}
	defer rows.Close()

	entries := make([]directory.Entry, 0)
	for rows.Next() {
		var (
			e                    directory.Entry
			metadata             string
			createdAt, heartbeat int64
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.Capacity, &metadata, &createdAt, &heartbeat); err != nil {
			return nil, fmt.Errorf("scan directory entry: %w", err)
		}
		if err := json.Unmarshal([]byte(metadata), &e.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", e.ID, err)
		}
		e.CreatedAt = fromMillis(createdAt)
		e.LastHeartbeat = fromMillis(heartbeat)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate directory entries: %w", err)
	}
	return entries, nil
}

// DeleteExpired removes entries whose last heartbeat is older than the TTL.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM directory_entries WHERE last_heartbeat < ?`, s.cutoff(s.nowTime()))
	if err != nil {
		return 0, fmt.Errorf("delete expired directory entries: %w", err)
	}
	return res.RowsAffected()
}

// cutoff is the oldest heartbeat, in millis, that still counts as live.
func (s *Store) cutoff(now time.Time) int64 {
	if s.ttl <= 0 {
		return 0
	}
	return toMillis(now.Add(-s.ttl))
}

func requireRow(res sql.Result, entryID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.Wrapf(apperrors.ErrNotFound, "entry %s", entryID)
	}
	return nil
}
