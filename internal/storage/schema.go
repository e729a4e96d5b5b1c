// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

const (
	// SchemaVersion tracks the database schema version for migrations
	SchemaVersion = 1
)

// Schema is valid for both SQLite and PostgreSQL. Times and durations are
// unix nanoseconds so the expiry predicate is plain integer arithmetic on
// either engine.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    roles TEXT NOT NULL DEFAULT '[]', -- JSON array
    created_at BIGINT NOT NULL,
    last_activity BIGINT NOT NULL,
    timeout_ns BIGINT NOT NULL,
    padding_ns BIGINT NOT NULL,
    terminated BOOLEAN NOT NULL DEFAULT FALSE
)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_last_activity ON sessions(last_activity)`,
}

// expiredPredicate matches Session.Expired.
const expiredPredicate = `terminated OR (timeout_ns > 0 AND last_activity + timeout_ns + padding_ns <= ?)`
