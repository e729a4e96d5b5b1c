// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// SESSION MANAGER
// =============================================================================

// Manager is the session authority: it answers how much time a session has
// left and applies keep-alives and logouts. The store is the only shared
// state, so any number of clients may watch the same session.
type Manager struct {
	store    Store
	now      func() time.Time
	logger   *zap.Logger
	onExpire func(*Session)
}

// Option configures a Manager.
type Option func(*Manager)

// WithNow replaces the wall clock.
func WithNow(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithExpireHook registers fn to run when a request finds a session past
// its timeout plus padding and terminates it.
func WithExpireHook(fn func(*Session)) Option {
	return func(m *Manager) {
		m.onExpire = fn
	}
}

// NewManager creates a manager over store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the backing store.
func (m *Manager) Store() Store {
	return m.store
}

// Open creates a session for user. A zero timeout means it never expires.
func (m *Manager) Open(ctx context.Context, userID string, roles []string, timeout, padding time.Duration) (*Session, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	now := m.now()
	s := &Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		Roles:        append([]string(nil), roles...),
		CreatedAt:    now,
		LastActivity: now,
		Timeout:      timeout,
		Padding:      padding,
	}
	if err := m.store.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	m.logger.Info("session opened",
		zap.String("session_id", s.ID),
		zap.String("user", userID),
		zap.Duration("timeout", timeout),
	)
	return s, nil
}

// Lookup returns a live session. A session found dead is terminated and
// reported as ErrExpired.
func (m *Manager) Lookup(ctx context.Context, id string) (*Session, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Terminated {
		return s, ErrExpired
	}
	if s.Expired(m.now()) {
		if err := m.store.Terminate(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("terminate expired session: %w", err)
		}
		s.Terminated = true
		m.logger.Info("session expired", zap.String("session_id", id), zap.String("user", s.UserID))
		if m.onExpire != nil {
			m.onExpire(s.Clone())
		}
		return s, ErrExpired
	}
	return s, nil
}

// TimeLeft reports the session's remaining time. It does not count as
// activity.
func (m *Manager) TimeLeft(ctx context.Context, id string) (time.Duration, error) {
	s, err := m.Lookup(ctx, id)
	if err != nil {
		return 0, err
	}
	return s.Remaining(m.now()), nil
}

// Touch records activity on the session and returns it.
func (m *Manager) Touch(ctx context.Context, id string) (*Session, error) {
	s, err := m.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	now := m.now()
	if err := m.store.Touch(ctx, id, now); err != nil {
		return nil, fmt.Errorf("touch session: %w", err)
	}
	s.LastActivity = now
	return s, nil
}

// Terminate ends the session. Terminating a session that is already gone
// returns ErrExpired or ErrNotFound.
func (m *Manager) Terminate(ctx context.Context, id string) (*Session, error) {
	s, err := m.Lookup(ctx, id)
	if err != nil {
		return s, err
	}
	if err := m.store.Terminate(ctx, id); err != nil {
		return nil, fmt.Errorf("terminate session: %w", err)
	}
	s.Terminated = true
	return s, nil
}

// Sweep deletes expired sessions and returns how many were removed.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	n, err := m.store.DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	if n > 0 {
		m.logger.Debug("swept expired sessions", zap.Int("count", n))
	}
	return n, nil
}

// Count returns the number of stored sessions.
func (m *Manager) Count(ctx context.Context) (int, error) {
	return m.store.Count(ctx)
}
