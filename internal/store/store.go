// Package store persists the ambient state SPEC_FULL.md places outside
// gsession's own data model: an append-only audit trail of lifecycle
// reconciliation events, and a snapshot of the last bootdata refresh.
// cmd/gameserverd loads the snapshot before constructing gsession.Server
// to seed its bridge's initial maintenance/status-print state, and saves
// it again on every successful periodic bootdata refresh (via
// gsession.Server.SetBootDataObserver) and once more at shutdown, so a
// restarted standalone server resumes with the last known configuration
// instead of always booting to defaults. It is grounded on the
// teacher's SQLite store (single schema string of idempotent CREATE ...
// IF NOT EXISTS statements, context-scoped queries, log/slog) with the schema replaced
// for this domain.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a query by id or key finds no row.
var ErrNotFound = errors.New("store: not found")

// AuditEntry is one row in the audit_log table: a durable record of a
// gsession.ReconcileEvent.
type AuditEntry struct {
	ID        string // UUID, assigned at insert time
	Kind      string
	AccountID int32
	RoomID    int32
	Detail    string
	CreatedAt time.Time
}

// Store persists server state in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database at path and runs migrations.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	st := &Store{db: db}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Info("sqlite store opened", "path", path)
	return st, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA journal_mode=WAL`); err != nil {
		slog.Warn("enable WAL mode failed", "error", err)
	}
	if _, err := s.db.ExecContext(ctx, `PRAGMA busy_timeout=5000`); err != nil {
		slog.Warn("set busy_timeout failed", "error", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	account_id INTEGER NOT NULL DEFAULT 0,
	room_id INTEGER NOT NULL DEFAULT 0,
	detail TEXT NOT NULL DEFAULT '',
	created_at_unix_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_log_created ON audit_log(created_at_unix_ms);
CREATE INDEX IF NOT EXISTS idx_audit_log_kind ON audit_log(kind);

CREATE TABLE IF NOT EXISTS bootdata_snapshot (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	status_print_interval INTEGER NOT NULL DEFAULT 0,
	maintenance INTEGER NOT NULL DEFAULT 0,
	refreshed_at_unix_ms INTEGER NOT NULL
);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("run sqlite migrations: %w", err)
	}

	slog.Debug("sqlite migrations applied")
	return nil
}

// InsertAuditLog records one reconciliation event. The row id is assigned
// here so callers never need to invent their own correlation ids.
func (s *Store) InsertAuditLog(ctx context.Context, kind string, accountID, roomID int32, detail string) (string, error) {
	id := uuid.New().String()
	const q = `INSERT INTO audit_log (id, kind, account_id, room_id, detail, created_at_unix_ms) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q, id, kind, accountID, roomID, detail, time.Now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("insert audit log entry: %w", err)
	}
	slog.Debug("audit log entry recorded", "id", id, "kind", kind, "account_id", accountID)
	return id, nil
}

// RecentAuditLog returns the most recent audit entries, newest first,
// optionally filtered by kind ("" means no filter).
func (s *Store) RecentAuditLog(ctx context.Context, kind string, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows *sql.Rows
	var err error
	if kind != "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, kind, account_id, room_id, detail, created_at_unix_ms FROM audit_log WHERE kind = ? ORDER BY created_at_unix_ms DESC, rowid DESC LIMIT ?`,
			kind, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, kind, account_id, room_id, detail, created_at_unix_ms FROM audit_log ORDER BY created_at_unix_ms DESC, rowid DESC LIMIT ?`,
			limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var createdAtMs int64
		if err := rows.Scan(&e.ID, &e.Kind, &e.AccountID, &e.RoomID, &e.Detail, &createdAtMs); err != nil {
			return nil, fmt.Errorf("scan audit log row: %w", err)
		}
		e.CreatedAt = time.UnixMilli(createdAtMs).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SaveBootDataSnapshot upserts the single bootdata_snapshot row, recording
// the last successfully refreshed central configuration. Call this on
// every refresh (see gsession.Server.SetBootDataObserver), not only at
// shutdown, so LoadBootDataSnapshot has something current to restore.
func (s *Store) SaveBootDataSnapshot(ctx context.Context, statusPrintInterval uint32, maintenance bool) error {
	const q = `
INSERT INTO bootdata_snapshot (id, status_print_interval, maintenance, refreshed_at_unix_ms)
VALUES (1, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	status_print_interval = excluded.status_print_interval,
	maintenance = excluded.maintenance,
	refreshed_at_unix_ms = excluded.refreshed_at_unix_ms
`
	maint := 0
	if maintenance {
		maint = 1
	}
	_, err := s.db.ExecContext(ctx, q, statusPrintInterval, maint, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save bootdata snapshot: %w", err)
	}
	return nil
}

// BootDataSnapshot is the last persisted central configuration refresh.
type BootDataSnapshot struct {
	StatusPrintInterval uint32
	Maintenance         bool
	RefreshedAt         time.Time
}

// LoadBootDataSnapshot returns the last saved snapshot, or ErrNotFound if
// none has been saved yet.
func (s *Store) LoadBootDataSnapshot(ctx context.Context) (BootDataSnapshot, error) {
	var snap BootDataSnapshot
	var maint int
	var refreshedAtMs int64
	err := s.db.QueryRowContext(ctx,
		`SELECT status_print_interval, maintenance, refreshed_at_unix_ms FROM bootdata_snapshot WHERE id = 1`,
	).Scan(&snap.StatusPrintInterval, &maint, &refreshedAtMs)
	if errors.Is(err, sql.ErrNoRows) {
		return BootDataSnapshot{}, ErrNotFound
	}
	if err != nil {
		return BootDataSnapshot{}, fmt.Errorf("load bootdata snapshot: %w", err)
	}
	snap.Maintenance = maint != 0
	snap.RefreshedAt = time.UnixMilli(refreshedAtMs).UTC()
	return snap, nil
}
