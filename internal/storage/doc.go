// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists sessions in SQL.
//
// SQLStore implements session.Store over sqlx with either the pure-Go
// SQLite driver (a single file, no cgo) or PostgreSQL for deployments
// where several servers share one session table.
//
// # Usage
//
//	store, err := storage.Open(cfg.Storage)
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//	mgr := session.NewManager(store)
//
// Driver "memory" returns a session.MemoryStore.
package storage
