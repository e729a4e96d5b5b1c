// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package autologout implements the client side of session inactivity management.
//
// A Controller owns one countdown per attached context. When the main countdown
// fires it asks the server how much time is really left, because another
// context sharing the same session may have kept it alive. Only when the server
// reports zero does the controller warn the user, and only when the warning is
// declined, dismissed, or left unanswered past the padding period does it log
// the session out and redirect.
//
// # Key Types
//
//   - Policy: immutable timeout settings for one context
//   - Machine: pure transition function (state, event) -> (state, effects)
//   - Controller: runtime that executes effects on a single goroutine
//   - TimeoutClock: two timer slots (main and padding) with stale-fire detection
//   - Probe: authoritative time-left lookup through a Gateway
//   - Gateway, Dialog, Navigator: collaborators supplied by the caller
//
// # Usage
//
//	ctrl, err := autologout.NewController(policy, gw, dialog, nav)
//	if err != nil {
//	    return err
//	}
//	err = ctrl.Run(ctx) // returns nil once the logout redirect is issued
//
// # Errors
//
// Gateways report ErrAuthExpired when the server no longer recognises the
// session and ErrUnreachable for everything else. Authentication failures are
// terminal; transport failures are retried by the next countdown cycle.
package autologout
