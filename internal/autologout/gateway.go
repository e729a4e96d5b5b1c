// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package autologout

import "context"

// Gateway is the client view of the three server operations.
//
// Implementations return an error wrapping ErrAuthExpired when the server says
// the session is gone (HTTP 403) and any other error for transport problems.
// KeepAlive and Logout must be safe to call on an expired session.
type Gateway interface {
	// TimeLeft returns the seconds until the warning is due. Zero means now.
	TimeLeft(ctx context.Context) (int, error)

	// KeepAlive resets the server-side idle countdown.
	KeepAlive(ctx context.Context) error

	// Logout terminates the server-side session.
	Logout(ctx context.Context) error
}

// Navigator performs the final redirect of a context.
type Navigator interface {
	Redirect(url, message string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(url, message string)

// Redirect calls f(url, message).
func (f NavigatorFunc) Redirect(url, message string) {
	f(url, message)
}
