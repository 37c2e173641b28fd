package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"statuswatch/internal/transport"
	"statuswatch/pkg/logx"
)

const schema = `
CREATE TABLE IF NOT EXISTS notification_channels (
	tenant_id  INTEGER PRIMARY KEY,
	chat_id    INTEGER NOT NULL,
	thread_id  INTEGER NOT NULL DEFAULT 0,
	updated_at TEXT    NOT NULL
);
CREATE TABLE IF NOT EXISTS audit (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	at             TEXT    NOT NULL,
	actor_id       INTEGER NOT NULL,
	actor_username TEXT,
	tenant_id      INTEGER NOT NULL,
	action         TEXT    NOT NULL,
	chat_id        INTEGER,
	thread_id      INTEGER,
	source         TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_tenant_at ON audit(tenant_id, at);
`

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := cfg.Path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	log.Debug("sqlite store opened", logx.String("path", path))
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) SetChannel(ctx context.Context, tenant int64, ch transport.ChatTarget) (transport.ChatTarget, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return transport.ChatTarget{}, false, err
	}
	defer func() { _ = tx.Rollback() }()

	prev, had, err := scanChannel(tx.QueryRowContext(ctx,
		`SELECT chat_id, thread_id FROM notification_channels WHERE tenant_id = ?`, tenant))
	if err != nil {
		return transport.ChatTarget{}, false, err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO notification_channels(tenant_id, chat_id, thread_id, updated_at) VALUES(?,?,?,?)
		 ON CONFLICT(tenant_id) DO UPDATE SET chat_id=excluded.chat_id, thread_id=excluded.thread_id, updated_at=excluded.updated_at`,
		tenant, ch.ChatID, ch.ThreadID, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return transport.ChatTarget{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return transport.ChatTarget{}, false, err
	}
	return prev, had, nil
}

func (s *sqliteStore) RemoveChannel(ctx context.Context, tenant int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notification_channels WHERE tenant_id = ?`, tenant)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *sqliteStore) Channel(ctx context.Context, tenant int64) (transport.ChatTarget, bool, error) {
	return scanChannel(s.db.QueryRowContext(ctx,
		`SELECT chat_id, thread_id FROM notification_channels WHERE tenant_id = ?`, tenant))
}

func (s *sqliteStore) Channels(ctx context.Context) (map[int64]transport.ChatTarget, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tenant_id, chat_id, thread_id FROM notification_channels`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[int64]transport.ChatTarget{}
	for rows.Next() {
		var tenant int64
		var ch transport.ChatTarget
		if err := rows.Scan(&tenant, &ch.ChatID, &ch.ThreadID); err != nil {
			return nil, err
		}
		out[tenant] = ch
	}
	return out, rows.Err()
}

func (s *sqliteStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit(at, actor_id, actor_username, tenant_id, action, chat_id, thread_id, source)
		 VALUES(?,?,?,?,?,?,?,?)`,
		e.At.UTC().Format(time.RFC3339Nano), e.ActorID, nullStr(e.ActorUsername), e.Tenant, e.Action,
		e.ChatID, e.ThreadID, e.Source,
	)
	return err
}

func scanChannel(row *sql.Row) (transport.ChatTarget, bool, error) {
	var ch transport.ChatTarget
	err := row.Scan(&ch.ChatID, &ch.ThreadID)
	if errors.Is(err, sql.ErrNoRows) {
		return transport.ChatTarget{}, false, nil
	}
	if err != nil {
		return transport.ChatTarget{}, false, err
	}
	return ch, true, nil
}

func nullStr(v string) any {
	if v == "" {
		return nil
	}
	return v
}
