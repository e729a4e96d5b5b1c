// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package autologout

import (
	"context"
	"errors"
)

var (
	// ErrAuthExpired means the server no longer accepts the session.
	// It is always terminal and leads straight to a redirect.
	ErrAuthExpired = errors.New("session authentication expired")

	// ErrUnreachable means the server could not be asked. It is never terminal
	// on its own.
	ErrUnreachable = errors.New("session server unreachable")

	// ErrConfigInvalid marks policy values that must be rejected before a
	// controller is ever created.
	ErrConfigInvalid = errors.New("invalid timeout configuration")
)

// classify maps any gateway error onto ErrAuthExpired or ErrUnreachable.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrAuthExpired):
		return ErrAuthExpired
	default:
		return ErrUnreachable
	}
}

// IsAuthExpired reports whether err carries ErrAuthExpired.
func IsAuthExpired(err error) bool {
	return errors.Is(err, ErrAuthExpired)
}

// IsUnreachable reports whether err is a transient failure, including a
// per-request deadline running out.
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrUnreachable) || errors.Is(err, context.DeadlineExceeded)
}
