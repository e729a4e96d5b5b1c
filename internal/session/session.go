// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"time"
)

var (
	// ErrNotFound means no session exists with the given id.
	ErrNotFound = errors.New("session not found")

	// ErrExpired means the session exists but can no longer be used.
	ErrExpired = errors.New("session expired")
)

// NeverExpires is reported as time left for sessions without a timeout.
const NeverExpires = 24 * time.Hour

// =============================================================================
// SESSION
// =============================================================================

// Session is one authenticated user session as seen by the authority.
type Session struct {
	ID           string
	UserID       string
	Roles        []string
	CreatedAt    time.Time
	LastActivity time.Time

	// Timeout is the idle timeout. 0 means the session never expires.
	Timeout time.Duration
	// Padding is the grace period after Timeout before the session is dead.
	Padding time.Duration

	Terminated bool
}

// Idle returns how long the session has been inactive at now.
func (s *Session) Idle(now time.Time) time.Duration {
	idle := now.Sub(s.LastActivity)
	if idle < 0 {
		return 0
	}
	return idle
}

// Remaining returns the time left before the client should warn.
// It is 0 when the warning is due and NeverExpires when there is no timeout.
func (s *Session) Remaining(now time.Time) time.Duration {
	if s.Timeout <= 0 {
		return NeverExpires
	}
	remaining := s.Timeout - s.Idle(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Expired reports whether the session is dead at now: terminated, or idle
// beyond its timeout plus padding.
func (s *Session) Expired(now time.Time) bool {
	if s.Terminated {
		return true
	}
	return s.Timeout > 0 && s.Idle(now) >= s.Timeout+s.Padding
}

// Clone returns a copy that shares nothing with s.
func (s *Session) Clone() *Session {
	c := *s
	c.Roles = append([]string(nil), s.Roles...)
	return &c
}
