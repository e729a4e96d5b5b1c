// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package watch

import (
	"sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/autologout/internal/autologout"
)

// Sender is the part of *tea.Program the bridge needs.
type Sender interface {
	Send(msg tea.Msg)
}

// Bridge turns controller effects into Bubble Tea messages.
//
// It is created before the program so the controller can be built first;
// messages sent before Attach are dropped.
type Bridge struct {
	mu     sync.RWMutex
	sender Sender
	next   atomic.Uint64
}

// NewBridge creates an unattached bridge.
func NewBridge() *Bridge {
	return &Bridge{}
}

// Attach connects the bridge to a running program.
func (b *Bridge) Attach(s Sender) {
	b.mu.Lock()
	b.sender = s
	b.mu.Unlock()
}

func (b *Bridge) send(msg tea.Msg) {
	b.mu.RLock()
	s := b.sender
	b.mu.RUnlock()
	if s != nil {
		s.Send(msg)
	}
}

// Open implements autologout.Dialog.
func (b *Bridge) Open(p autologout.Prompt, cb autologout.DialogCallbacks) autologout.DialogHandle {
	h := autologout.DialogHandle(b.next.Add(1))
	b.send(OpenDialogMsg{Handle: h, Prompt: p, Callbacks: cb})
	return h
}

// Close implements autologout.Dialog.
func (b *Bridge) Close(h autologout.DialogHandle) {
	b.send(CloseDialogMsg{Handle: h})
}

// Redirect implements autologout.Navigator.
func (b *Bridge) Redirect(url, message string) {
	b.send(RedirectMsg{URL: url, Message: message})
}

// Observe is an autologout.WithObserver callback.
func (b *Bridge) Observe(t autologout.Transition) {
	b.send(TransitionMsg{Transition: t})
}

// Stopped reports the controller's return value to the program.
func (b *Bridge) Stopped(err error) {
	b.send(StoppedMsg{Err: err})
}

var (
	_ autologout.Dialog    = (*Bridge)(nil)
	_ autologout.Navigator = (*Bridge)(nil)
)
