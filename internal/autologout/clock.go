// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package autologout

import (
	"sync"
	"time"
)

// =============================================================================
// TIME SOURCE
// =============================================================================

// Timer is a pending wake-up.
type Timer interface {
	Stop() bool
}

// Clock is the time source behind TimeoutClock.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock returns the wall clock.
func SystemClock() Clock {
	return systemClock{}
}

// =============================================================================
// TIMER SLOTS
// =============================================================================

// Slot names one of the controller's countdowns.
type Slot int

const (
	// SlotMain is the idle countdown that triggers a probe.
	SlotMain Slot = iota
	// SlotPadding is the grace countdown that forces a decision.
	SlotPadding

	slotCount
)

// String returns the slot name.
func (s Slot) String() string {
	switch s {
	case SlotMain:
		return "main"
	case SlotPadding:
		return "padding"
	default:
		return "unknown"
	}
}

// TimerHandle identifies one arming of a slot. The zero handle means nothing
// is armed.
type TimerHandle struct {
	Slot Slot
	Gen  uint64
}

type slotState struct {
	gen      uint64
	timer    Timer
	deadline time.Time
}

// TimeoutClock keeps at most one pending wake-up per slot.
//
// Scheduling a slot always cancels what was armed there before, so a slot can
// never hold two timers. Every arming gets a fresh generation; Current tells
// a firing callback whether it is still the live one.
type TimeoutClock struct {
	mu      sync.Mutex
	clock   Clock
	nextGen uint64
	slots   [slotCount]slotState
}

// NewTimeoutClock creates a TimeoutClock on the given time source.
// A nil clock means the wall clock.
func NewTimeoutClock(clock Clock) *TimeoutClock {
	if clock == nil {
		clock = SystemClock()
	}
	return &TimeoutClock{clock: clock}
}

// Now returns the current time of the underlying clock.
func (c *TimeoutClock) Now() time.Time {
	return c.clock.Now()
}

// Schedule arms slot to call onFire after d, replacing any earlier arming.
// onFire receives the handle it was armed with.
func (c *TimeoutClock) Schedule(slot Slot, d time.Duration, onFire func(TimerHandle)) TimerHandle {
	if d < 0 {
		d = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelLocked(slot)

	c.nextGen++
	h := TimerHandle{Slot: slot, Gen: c.nextGen}
	st := &c.slots[slot]
	st.gen = h.Gen
	st.deadline = c.clock.Now().Add(d)
	st.timer = c.clock.AfterFunc(d, func() { onFire(h) })
	return h
}

// Cancel disarms slot. Cancelling an idle slot is a no-op.
func (c *TimeoutClock) Cancel(slot Slot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked(slot)
}

// CancelAll disarms every slot.
func (c *TimeoutClock) CancelAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for s := Slot(0); s < slotCount; s++ {
		c.cancelLocked(s)
	}
}

func (c *TimeoutClock) cancelLocked(slot Slot) {
	st := &c.slots[slot]
	if st.timer != nil {
		st.timer.Stop()
	}
	*st = slotState{}
}

// Current returns the live handle of slot, or the zero handle.
func (c *TimeoutClock) Current(slot Slot) TimerHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.slots[slot].gen == 0 {
		return TimerHandle{}
	}
	return TimerHandle{Slot: slot, Gen: c.slots[slot].gen}
}

// IsLive reports whether h is still the armed handle of its slot.
func (c *TimeoutClock) IsLive(h TimerHandle) bool {
	return h.Gen != 0 && c.Current(h.Slot) == h
}

// Deadline returns when slot will fire and whether it is armed.
func (c *TimeoutClock) Deadline(slot Slot) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.slots[slot]
	return st.deadline, st.gen != 0
}

// Armed reports whether any slot is armed.
func (c *TimeoutClock) Armed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, st := range c.slots {
		if st.gen != 0 {
			return true
		}
	}
	return false
}

// release marks slot as fired so later queries see it idle. It only clears
// the slot if h is still the live arming.
func (c *TimeoutClock) release(h TimerHandle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := &c.slots[h.Slot]
	if st.gen == 0 || st.gen != h.Gen {
		return false
	}
	*st = slotState{}
	return true
}
