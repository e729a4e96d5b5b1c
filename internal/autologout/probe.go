// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package autologout

import (
	"context"
	"fmt"
	"time"
)

// DefaultRequestTimeout bounds a single gateway round trip.
const DefaultRequestTimeout = 10 * time.Second

// RemainingTime is the server's answer to one probe.
type RemainingTime struct {
	SecondsLeft int
}

// Duration converts the answer into a local delay.
func (r RemainingTime) Duration() time.Duration {
	return time.Duration(r.SecondsLeft) * time.Second
}

// Expired reports whether the warning is due now.
func (r RemainingTime) Expired() bool {
	return r.SecondsLeft <= 0
}

// Probe asks the server how much time is left.
//
// The server is the only authority: the local countdown is a polling cadence
// and nothing more. Answers are relative seconds, so clock skew between client
// and server never enters a decision.
type Probe struct {
	gw      Gateway
	timeout time.Duration
}

// NewProbe creates a Probe. A non-positive timeout uses DefaultRequestTimeout.
func NewProbe(gw Gateway, timeout time.Duration) *Probe {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Probe{gw: gw, timeout: timeout}
}

// GetRemaining performs one probe. Errors wrap ErrAuthExpired or ErrUnreachable.
func (p *Probe) GetRemaining(ctx context.Context) (RemainingTime, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	secs, err := p.gw.TimeLeft(ctx)
	if err != nil {
		return RemainingTime{}, fmt.Errorf("%w: time left: %v", classify(err), err)
	}
	if secs < 0 {
		secs = 0
	}
	return RemainingTime{SecondsLeft: secs}, nil
}

// KeepAlive extends the session with the same deadline and error mapping.
func (p *Probe) KeepAlive(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.gw.KeepAlive(ctx); err != nil {
		return fmt.Errorf("%w: keep alive: %v", classify(err), err)
	}
	return nil
}

// Logout terminates the session with the same deadline and error mapping.
func (p *Probe) Logout(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.gw.Logout(ctx); err != nil {
		return fmt.Errorf("%w: logout: %v", classify(err), err)
	}
	return nil
}
