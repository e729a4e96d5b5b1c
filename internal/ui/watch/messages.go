// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package watch

import (
	"time"

	"github.com/jeranaias/autologout/internal/autologout"
)

// OpenDialogMsg asks the model to show the warning.
type OpenDialogMsg struct {
	Handle    autologout.DialogHandle
	Prompt    autologout.Prompt
	Callbacks autologout.DialogCallbacks
}

// CloseDialogMsg asks the model to hide the warning if it is still Handle.
type CloseDialogMsg struct {
	Handle autologout.DialogHandle
}

// RedirectMsg is the controller's final navigation.
type RedirectMsg struct {
	URL     string
	Message string
}

// TransitionMsg reports one controller transition.
type TransitionMsg struct {
	Transition autologout.Transition
}

// StoppedMsg reports that the controller returned.
type StoppedMsg struct {
	Err error
}

type tickMsg time.Time
