// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package autologout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrAlreadyRunning is returned by Run when the controller is already attached.
var ErrAlreadyRunning = errors.New("controller already running")

// eventBuffer bounds how many callbacks may queue while the loop is busy.
const eventBuffer = 16

// =============================================================================
// OPTIONS
// =============================================================================

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock Clock) Option {
	return func(c *Controller) {
		c.clock = NewTimeoutClock(clock)
	}
}

// WithRequestTimeout bounds each gateway round trip.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.requestTimeout = d
	}
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver registers fn to be called after every accepted event.
// fn runs on the controller goroutine and must not block.
func WithObserver(fn func(Transition)) Option {
	return func(c *Controller) {
		if fn != nil {
			c.observers = append(c.observers, fn)
		}
	}
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller runs the timeout state machine for one context.
//
// All transitions happen on the goroutine that called Run. Timer and dialog
// callbacks and gateway results are queued as events, so two transitions
// never interleave. At most one gateway call is in flight at a time.
type Controller struct {
	policy         Policy
	gateway        Gateway
	dialog         Dialog
	nav            Navigator
	clock          *TimeoutClock
	logger         *zap.Logger
	observers      []func(Transition)
	requestTimeout time.Duration

	probe   *Probe
	machine Machine
	dialogs map[uint64]DialogHandle

	events chan Event
	done   chan struct{}
	ctx    context.Context

	state   atomic.Int32
	running atomic.Bool
	wg      sync.WaitGroup
}

// NewController validates p and wires the collaborators. dialog may be nil
// only when p.SkipDialog or p.RefreshOnly is set.
func NewController(p Policy, gw Gateway, dialog Dialog, nav Navigator, opts ...Option) (*Controller, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if gw == nil {
		return nil, errors.New("gateway is required")
	}
	if nav == nil {
		return nil, errors.New("navigator is required")
	}
	if dialog == nil && !p.SkipDialog && !p.RefreshOnly {
		return nil, fmt.Errorf("%w: a dialog is required unless the dialog is skipped", ErrConfigInvalid)
	}

	c := &Controller{
		policy:  p,
		gateway: gw,
		dialog:  dialog,
		nav:     nav,
		logger:  zap.NewNop(),
		machine: NewMachine(p),
		dialogs: make(map[uint64]DialogHandle),
		events:  make(chan Event, eventBuffer),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.clock == nil {
		c.clock = NewTimeoutClock(nil)
	}
	c.probe = NewProbe(gw, c.requestTimeout)
	c.state.Store(int32(StateDetached))
	return c, nil
}

// Policy returns the policy the controller was created with.
func (c *Controller) Policy() Policy {
	return c.policy
}

// State returns the current state. Safe from any goroutine.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// NextWake returns when the main countdown fires, if armed.
func (c *Controller) NextWake() (time.Time, bool) {
	return c.clock.Deadline(SlotMain)
}

// Run attaches the context and processes events until the logout redirect
// has been issued (returns nil) or ctx is cancelled (returns ctx.Err()).
// On return no timer is armed and no dialog is open.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	ctx, cancelCalls := context.WithCancel(ctx)
	c.ctx = ctx
	defer func() {
		close(c.done)
		cancelCalls()
		c.wg.Wait()
	}()

	c.logger.Info("autologout attached",
		zap.Duration("idle_timeout", c.policy.IdleTimeout),
		zap.Duration("padding", c.policy.Padding),
		zap.Bool("refresh_only", c.policy.RefreshOnly),
		zap.Bool("skip_dialog", c.policy.SkipDialog),
	)
	c.apply(Event{Kind: EventAttach})

	for {
		select {
		case <-ctx.Done():
			c.apply(Event{Kind: EventDetach})
			c.logger.Info("autologout detached", zap.Error(ctx.Err()))
			return ctx.Err()

		case ev := <-c.events:
			c.apply(ev)
			if c.machine.State == StateLoggedOut && c.machine.Redirected {
				return nil
			}
		}
	}
}

// post queues ev for the loop. Events posted after Run returned are dropped.
func (c *Controller) post(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// apply runs one event through the machine and performs its effects.
func (c *Controller) apply(ev Event) {
	if ev.Kind == EventMainFired || ev.Kind == EventPaddingFired {
		// A timer that was cancelled or replaced after it fired is stale.
		if !c.clock.release(ev.Timer) {
			c.logger.Debug("dropped stale timer", zap.Stringer("slot", ev.Timer.Slot))
			return
		}
	}

	from := c.machine.State
	if !c.machine.Accepts(ev) {
		c.logger.Debug("ignored event",
			zap.Stringer("event", ev.Kind),
			zap.Stringer("state", from),
		)
		return
	}

	next, effects := c.machine.Step(ev)
	c.machine = next
	c.state.Store(int32(next.State))

	for _, eff := range effects {
		c.perform(eff)
	}

	t := Transition{From: from, To: next.State, Event: ev.Kind, Err: ev.Err, At: c.clock.Now()}
	if wake, ok := c.clock.Deadline(SlotMain); ok {
		t.NextWake = wake
	}
	c.logTransition(t)
	for _, fn := range c.observers {
		fn(t)
	}
}

func (c *Controller) perform(eff Effect) {
	switch eff.Kind {
	case EffectArm:
		kind := EventMainFired
		if eff.Slot == SlotPadding {
			kind = EventPaddingFired
		}
		c.clock.Schedule(eff.Slot, eff.After, func(h TimerHandle) {
			c.post(Event{Kind: kind, Timer: h})
		})

	case EffectCancel:
		c.clock.Cancel(eff.Slot)

	case EffectProbe:
		c.call(func(ctx context.Context) Event {
			r, err := c.probe.GetRemaining(ctx)
			return Event{Kind: EventProbeDone, Remaining: r, Err: err}
		})

	case EffectKeepAlive:
		c.call(func(ctx context.Context) Event {
			return Event{Kind: EventKeepAliveDone, Err: c.probe.KeepAlive(ctx)}
		})

	case EffectLogout:
		c.call(func(ctx context.Context) Event {
			return Event{Kind: EventLogoutDone, Err: c.probe.Logout(ctx)}
		})

	case EffectOpenDialog:
		seq := eff.Dialog
		h := c.dialog.Open(eff.Prompt, DialogCallbacks{
			OnExtend:  func() { c.post(Event{Kind: EventExtend, Dialog: seq}) },
			OnLogout:  func() { c.post(Event{Kind: EventLogout, Dialog: seq}) },
			OnDismiss: func() { c.post(Event{Kind: EventDismiss, Dialog: seq}) },
		})
		c.dialogs[seq] = h

	case EffectCloseDialog:
		if h, ok := c.dialogs[eff.Dialog]; ok {
			delete(c.dialogs, eff.Dialog)
			c.dialog.Close(h)
		}

	case EffectRedirect:
		c.logger.Info("autologout redirect", zap.String("url", eff.URL))
		c.nav.Redirect(eff.URL, eff.Message)
	}
}

// call runs one gateway round trip off the loop and posts its result.
func (c *Controller) call(fn func(ctx context.Context) Event) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.post(fn(c.ctx))
	}()
}

func (c *Controller) logTransition(t Transition) {
	fields := []zap.Field{
		zap.Stringer("event", t.Event),
		zap.Stringer("from", t.From),
		zap.Stringer("to", t.To),
	}
	if t.Err != nil {
		fields = append(fields, zap.Error(t.Err))
	}
	if !t.NextWake.IsZero() {
		fields = append(fields, zap.Time("next_wake", t.NextWake))
	}
	c.logger.Debug("autologout transition", fields...)
}
