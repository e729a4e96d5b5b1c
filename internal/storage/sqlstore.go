// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/jeranaias/autologout/internal/config"
	"github.com/jeranaias/autologout/internal/session"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know by default.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Open returns the session store selected by cfg.
func Open(cfg config.StorageConfig) (session.Store, error) {
	switch cfg.Driver {
	case DriverMemory, "":
		return session.NewMemoryStore(), nil
	case DriverSQLite, DriverPostgres:
		return OpenSQL(cfg.Driver, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// =============================================================================
// SQL STORE
// =============================================================================

// SQLStore is a session.Store backed by SQLite or PostgreSQL.
type SQLStore struct {
	db     *sqlx.DB
	driver string
}

// sessionRow is the sessions table layout.
type sessionRow struct {
	ID           string `db:"id"`
	UserID       string `db:"user_id"`
	Roles        string `db:"roles"`
	CreatedAt    int64  `db:"created_at"`
	LastActivity int64  `db:"last_activity"`
	TimeoutNS    int64  `db:"timeout_ns"`
	PaddingNS    int64  `db:"padding_ns"`
	Terminated   bool   `db:"terminated"`
}

// OpenSQL connects to the database and applies the schema.
func OpenSQL(driver, dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s: dsn is required", driver)
	}

	if driver == DriverSQLite && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	switch driver {
	case DriverSQLite:
		// SQLite allows one writer; a single connection also keeps
		// :memory: databases alive between calls.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		pragmas := []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA synchronous=NORMAL",
			"PRAGMA busy_timeout=5000",
			"PRAGMA temp_store=MEMORY",
		}
		for _, pragma := range pragmas {
			if _, err := db.Exec(pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
			}
		}
	case DriverPostgres:
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	s := &SQLStore{db: db, driver: driver}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range Schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`),
		"schema_version", fmt.Sprintf("%d", SchemaVersion))
	if err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}

// Driver returns the database driver name.
func (s *SQLStore) Driver() string {
	return s.driver
}

func (s *SQLStore) Create(ctx context.Context, sess *session.Session) error {
	row, err := toRow(sess)
	if err != nil {
		return err
	}
	_, err = s.db.NamedExecContext(ctx,
		`INSERT INTO sessions (id, user_id, roles, created_at, last_activity, timeout_ns, padding_ns, terminated)
		 VALUES (:id, :user_id, :roles, :created_at, :last_activity, :timeout_ns, :padding_ns, :terminated)`,
		row)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", sess.ID, err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (*session.Session, error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT * FROM sessions WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return row.toSession()
}

func (s *SQLStore) Touch(ctx context.Context, id string, at time.Time) error {
	return s.updateOne(ctx, id, `UPDATE sessions SET last_activity = ? WHERE id = ?`, at.UnixNano(), id)
}

func (s *SQLStore) Terminate(ctx context.Context, id string) error {
	return s.updateOne(ctx, id, `UPDATE sessions SET terminated = ? WHERE id = ?`, true, id)
}

func (s *SQLStore) updateOne(ctx context.Context, id, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("update session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session %s: %w", id, err)
	}
	if n == 0 {
		return session.ErrNotFound
	}
	return nil
}

func (s *SQLStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind(`DELETE FROM sessions WHERE `+expiredPredicate), now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM sessions`); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

// ListByUser returns every stored session of userID, oldest first.
func (s *SQLStore) ListByUser(ctx context.Context, userID string) ([]*session.Session, error) {
	var rows []sessionRow
	err := s.db.SelectContext(ctx, &rows,
		s.db.Rebind(`SELECT * FROM sessions WHERE user_id = ? ORDER BY created_at`), userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]*session.Session, 0, len(rows))
	for _, r := range rows {
		sess, err := r.toSession()
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// ROW CONVERSION
// =============================================================================

func toRow(sess *session.Session) (sessionRow, error) {
	roles := sess.Roles
	if roles == nil {
		roles = []string{}
	}
	data, err := json.Marshal(roles)
	if err != nil {
		return sessionRow{}, fmt.Errorf("encode roles: %w", err)
	}
	return sessionRow{
		ID:           sess.ID,
		UserID:       sess.UserID,
		Roles:        string(data),
		CreatedAt:    sess.CreatedAt.UnixNano(),
		LastActivity: sess.LastActivity.UnixNano(),
		TimeoutNS:    int64(sess.Timeout),
		PaddingNS:    int64(sess.Padding),
		Terminated:   sess.Terminated,
	}, nil
}

func (r sessionRow) toSession() (*session.Session, error) {
	var roles []string
	if r.Roles != "" {
		if err := json.Unmarshal([]byte(r.Roles), &roles); err != nil {
			return nil, fmt.Errorf("decode roles of session %s: %w", r.ID, err)
		}
	}
	if len(roles) == 0 {
		roles = nil
	}
	return &session.Session{
		ID:           r.ID,
		UserID:       r.UserID,
		Roles:        roles,
		CreatedAt:    time.Unix(0, r.CreatedAt).UTC(),
		LastActivity: time.Unix(0, r.LastActivity).UTC(),
		Timeout:      time.Duration(r.TimeoutNS),
		Padding:      time.Duration(r.PaddingNS),
		Terminated:   r.Terminated,
	}, nil
}

var _ session.Store = (*SQLStore)(nil)
