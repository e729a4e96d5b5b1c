// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package autologout

import "time"

// DialogHandle identifies one opened dialog.
type DialogHandle uint64

// Prompt is what the warning dialog shows.
type Prompt struct {
	Title   string
	Message string

	// Padding is how long the user has to answer.
	Padding time.Duration
}

// DialogCallbacks are the only ways a dialog may resolve. Dismissal is handled
// exactly like OnLogout by the controller.
type DialogCallbacks struct {
	OnExtend  func()
	OnLogout  func()
	OnDismiss func()
}

// Dialog presents the logout warning.
//
// Open must not block. At most one dialog is open per controller; the
// controller calls Close before its handle is forgotten, and a callback that
// fires after Close is ignored.
type Dialog interface {
	Open(p Prompt, cb DialogCallbacks) DialogHandle
	Close(h DialogHandle)
}
