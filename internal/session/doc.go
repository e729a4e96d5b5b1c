// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session is the server-side session authority.
//
// The authority decides how much time a session has left. Clients only
// poll it: a local countdown never ends a session on its own.
//
// # Key Types
//
//   - Session: One user session with its idle timeout and padding
//   - Store: Persistence interface (MemoryStore here, SQL in storage)
//   - Manager: Open, TimeLeft, Touch, Terminate, Sweep
//
// # Usage
//
//	mgr := session.NewManager(session.NewMemoryStore())
//	s, _ := mgr.Open(ctx, "alice", []string{"editor"}, 30*time.Minute, 20*time.Second)
//
//	left, err := mgr.TimeLeft(ctx, s.ID) // does not reset the idle clock
//	_, err = mgr.Touch(ctx, s.ID)        // keep-alive
//
// # Expiry
//
// Remaining reaches 0 after Timeout of inactivity; that is when clients
// warn. The session is dead after Timeout plus Padding, at which point
// every call returns ErrExpired.
package session
