// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package autologout

import (
	"fmt"
	"time"
)

// MinIdleTimeout is the smallest idle timeout a policy may carry.
const MinIdleTimeout = 60 * time.Second

// Policy holds the timeout settings for one attached context.
// It is read once when a controller is created and never changes afterwards.
type Policy struct {
	// IdleTimeout is the inactivity period before the warning is due.
	IdleTimeout time.Duration

	// Padding is how long the warning stays up before a forced logout.
	Padding time.Duration

	// RedirectURL is where the context goes after logout.
	RedirectURL string

	// Title and Message are shown in the warning dialog.
	Title   string
	Message string

	// InactivityMessage accompanies the redirect after an automatic logout.
	InactivityMessage string

	// SkipDialog logs out without asking.
	SkipDialog bool

	// RefreshOnly keeps the session alive and never logs out.
	RefreshOnly bool

	// AltLogoutURL, when set, replaces the logout call with a redirect to
	// this URL. Used where the logout request cannot be made directly, for
	// example behind single sign-on.
	AltLogoutURL string
}

// Validate rejects out-of-range values. The returned error wraps ErrConfigInvalid.
func (p Policy) Validate() error {
	if p.IdleTimeout < MinIdleTimeout {
		return fmt.Errorf("%w: idle timeout %v is below %v", ErrConfigInvalid, p.IdleTimeout, MinIdleTimeout)
	}
	if p.Padding < 0 {
		return fmt.Errorf("%w: padding %v is negative", ErrConfigInvalid, p.Padding)
	}
	if p.RedirectURL == "" {
		return fmt.Errorf("%w: redirect url is empty", ErrConfigInvalid)
	}
	return nil
}

// Prompt builds the dialog contents for this policy.
func (p Policy) Prompt() Prompt {
	return Prompt{
		Title:   p.Title,
		Message: p.Message,
		Padding: p.Padding,
	}
}
