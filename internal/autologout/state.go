// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package autologout

import "time"

// =============================================================================
// STATES
// =============================================================================

// State is the controller's position in the timeout lifecycle.
type State int

const (
	// StateActive waits for the main countdown.
	StateActive State = iota
	// StateAwaitingProbe waits for the server's time-left answer.
	StateAwaitingProbe
	// StateWarningOpen shows the logout warning.
	StateWarningOpen
	// StateConfirmingLogout re-checks the server before a forced logout.
	StateConfirmingLogout
	// StateLoggedOut is terminal for the context.
	StateLoggedOut
	// StateRefreshOnlyIdle keeps the session alive and never warns.
	StateRefreshOnlyIdle
	// StateDetached means the context went away before logout.
	StateDetached
)

// String returns a string representation of the State.
func (s State) String() string {
	switch s {
	case StateActive:
		return "ACTIVE"
	case StateAwaitingProbe:
		return "AWAITING_PROBE"
	case StateWarningOpen:
		return "WARNING_OPEN"
	case StateConfirmingLogout:
		return "CONFIRMING_LOGOUT"
	case StateLoggedOut:
		return "LOGGED_OUT"
	case StateRefreshOnlyIdle:
		return "REFRESH_ONLY_IDLE"
	case StateDetached:
		return "DETACHED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether no further transitions can happen.
func (s State) IsTerminal() bool {
	return s == StateLoggedOut || s == StateDetached
}

// =============================================================================
// EVENTS
// =============================================================================

// EventKind enumerates what can happen to a controller.
type EventKind int

const (
	EventAttach EventKind = iota
	EventMainFired
	EventPaddingFired
	EventProbeDone
	EventKeepAliveDone
	EventLogoutDone
	EventExtend
	EventLogout
	EventDismiss
	EventDetach
)

var eventNames = map[EventKind]string{
	EventAttach:        "attach",
	EventMainFired:     "main_fired",
	EventPaddingFired:  "padding_fired",
	EventProbeDone:     "probe_done",
	EventKeepAliveDone: "keep_alive_done",
	EventLogoutDone:    "logout_done",
	EventExtend:        "extend",
	EventLogout:        "logout",
	EventDismiss:       "dismiss",
	EventDetach:        "detach",
}

// String returns the event name.
func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is one input to the state machine.
type Event struct {
	Kind EventKind

	// Remaining and Err carry a call result.
	Remaining RemainingTime
	Err       error

	// Dialog is the dialog sequence a user action belongs to.
	Dialog uint64

	// Timer is the arming a timer event came from.
	Timer TimerHandle
}

// =============================================================================
// EFFECTS
// =============================================================================

// EffectKind enumerates side effects the runtime must carry out.
type EffectKind int

const (
	EffectArm EffectKind = iota
	EffectCancel
	EffectProbe
	EffectKeepAlive
	EffectLogout
	EffectOpenDialog
	EffectCloseDialog
	EffectRedirect
)

// Effect is one side effect requested by a transition.
type Effect struct {
	Kind EffectKind

	// Slot and After describe EffectArm and EffectCancel.
	Slot  Slot
	After time.Duration

	// Dialog and Prompt describe the dialog effects.
	Dialog uint64
	Prompt Prompt

	// URL and Message describe EffectRedirect.
	URL     string
	Message string
}

// Call is the gateway round trip currently in flight.
type Call int

const (
	CallNone Call = iota
	CallProbe
	CallKeepAlive
	CallLogout
)

// Transition is reported to observers after every accepted event.
type Transition struct {
	From  State
	To    State
	Event EventKind
	Err   error
	At    time.Time

	// NextWake is the main countdown deadline after the transition, if armed.
	NextWake time.Time
}
