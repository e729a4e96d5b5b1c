// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package autologout

import (
	"context"
	"sort"
	"sync"
	"time"
)

// =============================================================================
// MANUAL CLOCK
// =============================================================================

type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward by d, firing due timers in deadline order.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		var due []*manualTimer
		for _, t := range c.timers {
			if !t.stopped && !t.fired && !t.at.After(target) {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			break
		}
		sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
		next := due[0]
		next.fired = true
		c.now = next.at
		c.mu.Unlock()
		next.fn()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

// pending counts timers that have neither fired nor been stopped.
func (c *manualClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// =============================================================================
// FAKE GATEWAY
// =============================================================================

type probeReply struct {
	secs int
	err  error
}

type fakeGateway struct {
	mu           sync.Mutex
	replies      []probeReply
	keepAliveErr error
	logoutErr    error

	timeLeftCalls  int
	keepAliveCalls int
	logoutCalls    int
}

// reply queues probe answers; the last one repeats.
func (g *fakeGateway) reply(r ...probeReply) *fakeGateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.replies = append(g.replies, r...)
	return g
}

func (g *fakeGateway) TimeLeft(ctx context.Context) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.timeLeftCalls++
	if len(g.replies) == 0 {
		return 0, nil
	}
	r := g.replies[0]
	if len(g.replies) > 1 {
		g.replies = g.replies[1:]
	}
	return r.secs, r.err
}

func (g *fakeGateway) KeepAlive(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.keepAliveCalls++
	return g.keepAliveErr
}

func (g *fakeGateway) Logout(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.logoutCalls++
	if g.logoutCalls > 1 {
		return ErrAuthExpired
	}
	return g.logoutErr
}

func (g *fakeGateway) counts() (timeLeft, keepAlive, logout int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.timeLeftCalls, g.keepAliveCalls, g.logoutCalls
}

// =============================================================================
// FAKE DIALOG AND NAVIGATOR
// =============================================================================

type fakeDialog struct {
	mu     sync.Mutex
	next   DialogHandle
	open   map[DialogHandle]DialogCallbacks
	last   DialogCallbacks
	opens  int
	closes int
	prompt Prompt
}

func newFakeDialog() *fakeDialog {
	return &fakeDialog{open: make(map[DialogHandle]DialogCallbacks)}
}

func (d *fakeDialog) Open(p Prompt, cb DialogCallbacks) DialogHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	d.open[d.next] = cb
	d.last = cb
	d.opens++
	d.prompt = p
	return d.next
}

func (d *fakeDialog) Close(h DialogHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.open[h]; ok {
		delete(d.open, h)
		d.closes++
	}
}

func (d *fakeDialog) stats() (opens, closes, openNow int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens, d.closes, len(d.open)
}

func (d *fakeDialog) callbacks() DialogCallbacks {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

type redirect struct {
	url     string
	message string
}

type recordingNavigator struct {
	mu        sync.Mutex
	redirects []redirect
}

func (n *recordingNavigator) Redirect(url, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.redirects = append(n.redirects, redirect{url: url, message: message})
}

func (n *recordingNavigator) all() []redirect {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]redirect(nil), n.redirects...)
}

// testPolicy mirrors the 60s/10s scenario used throughout the tests.
func testPolicy() Policy {
	return Policy{
		IdleTimeout:       60 * time.Second,
		Padding:           10 * time.Second,
		RedirectURL:       "/user/login",
		Title:             "Session timeout",
		Message:           "Your session is about to expire. Do you want to reset it?",
		InactivityMessage: "You have been logged out due to inactivity.",
	}
}
