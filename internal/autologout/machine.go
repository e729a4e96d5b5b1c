// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package autologout

import (
	"errors"
	"time"
)

// Machine is the pure timeout state machine.
//
// Step never touches timers, the network, or the dialog. It returns the next
// machine value and the effects the runtime must perform, in order. Every
// accepted event leaves the machine with something pending: an armed timer,
// an open dialog, a call in flight, or a redirect.
type Machine struct {
	Policy Policy
	State  State

	// InFlight is the gateway call awaiting a result.
	InFlight Call

	// DialogSeq is the open dialog, or 0 when closed.
	DialogSeq uint64
	nextSeq   uint64

	// Redirected is set once the final redirect has been requested.
	Redirected bool
}

// NewMachine returns a machine that has not been attached yet.
func NewMachine(p Policy) Machine {
	return Machine{Policy: p, State: StateDetached}
}

// Accepts reports whether ev would change anything. Events that are not
// accepted are stale and are dropped without effects.
func (m Machine) Accepts(ev Event) bool {
	_, _, ok := m.step(ev)
	return ok
}

// Step applies ev and returns the new machine plus the effects to run.
func (m Machine) Step(ev Event) (Machine, []Effect) {
	next, effects, _ := m.step(ev)
	return next, effects
}

func (m Machine) step(ev Event) (Machine, []Effect, bool) {
	if ev.Kind == EventAttach {
		return m.attach()
	}
	if ev.Kind == EventDetach {
		return m.detach()
	}
	if m.State.IsTerminal() {
		// Only the logout result still matters once logged out.
		if m.State == StateLoggedOut && ev.Kind == EventLogoutDone && m.InFlight == CallLogout {
			return m.finishLogout()
		}
		return m, nil, false
	}

	switch ev.Kind {
	case EventMainFired:
		return m.onMainFired()
	case EventPaddingFired:
		return m.onPaddingFired()
	case EventProbeDone:
		if m.InFlight != CallProbe {
			return m, nil, false
		}
		m.InFlight = CallNone
		return m.onProbeDone(ev)
	case EventKeepAliveDone:
		if m.InFlight != CallKeepAlive {
			return m, nil, false
		}
		m.InFlight = CallNone
		return m.onKeepAliveDone(ev)
	case EventExtend, EventLogout, EventDismiss:
		if m.State != StateWarningOpen || ev.Dialog == 0 || ev.Dialog != m.DialogSeq {
			return m, nil, false
		}
		if ev.Kind == EventExtend {
			return m.onExtend()
		}
		return m.beginLogout()
	}
	return m, nil, false
}

// =============================================================================
// TRANSITIONS
// =============================================================================

func (m Machine) attach() (Machine, []Effect, bool) {
	if m.State != StateDetached || m.Redirected {
		return m, nil, false
	}
	m.State = StateActive
	if m.Policy.RefreshOnly {
		m.State = StateRefreshOnlyIdle
	}
	return m, []Effect{arm(SlotMain, m.Policy.IdleTimeout)}, true
}

func (m Machine) detach() (Machine, []Effect, bool) {
	if m.State == StateDetached {
		return m, nil, false
	}
	effects := m.closeDialog(cancelAll())
	m.State = StateDetached
	m.InFlight = CallNone
	return m, effects, true
}

// Active -> AwaitingProbe, RefreshOnlyIdle -> RefreshOnlyIdle.
func (m Machine) onMainFired() (Machine, []Effect, bool) {
	if m.InFlight != CallNone {
		return m, nil, false
	}
	switch m.State {
	case StateActive:
		m.State = StateAwaitingProbe
		m.InFlight = CallProbe
		return m, []Effect{arm(SlotPadding, m.Policy.Padding), {Kind: EffectProbe}}, true
	case StateRefreshOnlyIdle:
		m.InFlight = CallKeepAlive
		return m, []Effect{{Kind: EffectKeepAlive}}, true
	}
	return m, nil, false
}

// WarningOpen -> ConfirmingLogout. A padding expiry during the first probe
// reuses that probe as the recheck instead of starting a second call.
func (m Machine) onPaddingFired() (Machine, []Effect, bool) {
	switch m.State {
	case StateWarningOpen:
		effects := m.closeDialog(nil)
		m.DialogSeq = 0
		m.State = StateConfirmingLogout
		m.InFlight = CallProbe
		return m, append(effects, Effect{Kind: EffectProbe}), true
	case StateAwaitingProbe:
		m.State = StateConfirmingLogout
		return m, nil, true
	}
	return m, nil, false
}

func (m Machine) onProbeDone(ev Event) (Machine, []Effect, bool) {
	err := classify(ev.Err)
	switch m.State {
	case StateAwaitingProbe:
		switch {
		case errors.Is(err, ErrAuthExpired):
			return m.redirectNow()
		case err != nil:
			// Retry on the next natural cycle.
			m.State = StateActive
			return m, []Effect{cancel(SlotPadding), arm(SlotMain, m.Policy.IdleTimeout)}, true
		case !ev.Remaining.Expired():
			m.State = StateActive
			return m, []Effect{cancel(SlotPadding), arm(SlotMain, ev.Remaining.Duration())}, true
		case m.Policy.SkipDialog:
			return m.beginLogout()
		default:
			m.nextSeq++
			m.DialogSeq = m.nextSeq
			m.State = StateWarningOpen
			return m, []Effect{{Kind: EffectOpenDialog, Dialog: m.DialogSeq, Prompt: m.Policy.Prompt()}}, true
		}

	case StateConfirmingLogout:
		switch {
		case errors.Is(err, ErrAuthExpired):
			return m.redirectNow()
		case err != nil:
			return m.beginLogout()
		case !ev.Remaining.Expired():
			// Another context kept the session alive while the warning was up.
			m.State = StateActive
			return m, []Effect{cancel(SlotPadding), arm(SlotMain, ev.Remaining.Duration())}, true
		default:
			return m.beginLogout()
		}
	}
	return m, nil, false
}

func (m Machine) onKeepAliveDone(ev Event) (Machine, []Effect, bool) {
	err := classify(ev.Err)
	if errors.Is(err, ErrAuthExpired) {
		return m.redirectNow()
	}
	switch m.State {
	case StateActive, StateRefreshOnlyIdle:
		return m, []Effect{arm(SlotMain, m.Policy.IdleTimeout)}, true
	}
	return m, nil, false
}

// WarningOpen -> Active. The main countdown is armed only after the
// keep-alive completes.
func (m Machine) onExtend() (Machine, []Effect, bool) {
	effects := []Effect{cancel(SlotPadding)}
	effects = m.closeDialog(effects)
	m.DialogSeq = 0
	m.State = StateActive
	m.InFlight = CallKeepAlive
	return m, append(effects, Effect{Kind: EffectKeepAlive}), true
}

// beginLogout enters LoggedOut and either calls the gateway or, with the
// alternate method, hands the logout to the redirect target.
func (m Machine) beginLogout() (Machine, []Effect, bool) {
	effects := m.closeDialog(cancelAll())
	m.DialogSeq = 0
	m.State = StateLoggedOut
	if m.Policy.AltLogoutURL != "" {
		m.InFlight = CallNone
		m.Redirected = true
		return m, append(effects, Effect{
			Kind:    EffectRedirect,
			URL:     m.Policy.AltLogoutURL,
			Message: m.Policy.InactivityMessage,
		}), true
	}
	m.InFlight = CallLogout
	return m, append(effects, Effect{Kind: EffectLogout}), true
}

// finishLogout redirects once, whatever the logout call returned.
func (m Machine) finishLogout() (Machine, []Effect, bool) {
	m.InFlight = CallNone
	if m.Redirected {
		return m, nil, true
	}
	m.Redirected = true
	return m, []Effect{m.redirect()}, true
}

// redirectNow handles ErrAuthExpired from any call: no logout, no dialog.
func (m Machine) redirectNow() (Machine, []Effect, bool) {
	effects := m.closeDialog(cancelAll())
	m.DialogSeq = 0
	m.State = StateLoggedOut
	m.InFlight = CallNone
	if m.Redirected {
		return m, effects, true
	}
	m.Redirected = true
	return m, append(effects, m.redirect()), true
}

// =============================================================================
// HELPERS
// =============================================================================

func (m Machine) redirect() Effect {
	return Effect{Kind: EffectRedirect, URL: m.Policy.RedirectURL, Message: m.Policy.InactivityMessage}
}

func (m Machine) closeDialog(effects []Effect) []Effect {
	if m.DialogSeq == 0 {
		return effects
	}
	return append(effects, Effect{Kind: EffectCloseDialog, Dialog: m.DialogSeq})
}

func arm(slot Slot, after time.Duration) Effect {
	return Effect{Kind: EffectArm, Slot: slot, After: after}
}

func cancel(slot Slot) Effect {
	return Effect{Kind: EffectCancel, Slot: slot}
}

func cancelAll() []Effect {
	return []Effect{cancel(SlotMain), cancel(SlotPadding)}
}
