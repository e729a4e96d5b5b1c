// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package watch

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/autologout/internal/autologout"
	"github.com/jeranaias/autologout/internal/ui/components"
)

type answers struct {
	extend, logout, dismiss int
}

func (a *answers) callbacks() autologout.DialogCallbacks {
	return autologout.DialogCallbacks{
		OnExtend:  func() { a.extend++ },
		OnLogout:  func() { a.logout++ },
		OnDismiss: func() { a.dismiss++ },
	}
}

func newTestModel() Model {
	m := NewModel("session abc")
	m.now = func() time.Time { return time.Unix(5000, 0) }
	return m
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func openWarning(t *testing.T, m Model, h autologout.DialogHandle, a *answers) Model {
	t.Helper()
	m, _ = update(t, m, OpenDialogMsg{
		Handle:    h,
		Prompt:    autologout.Prompt{Title: "Session timeout", Message: "Reset it?", Padding: 20 * time.Second},
		Callbacks: a.callbacks(),
	})
	return m
}

// press delivers a key and feeds the resulting choice back into the model,
// as the Bubble Tea runtime would.
func press(t *testing.T, m Model, k tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	m, cmd := update(t, m, k)
	require.NotNil(t, cmd)
	return update(t, m, cmd())
}

func TestModel_ExtendRunsCallbackInCommand(t *testing.T) {
	a := &answers{}
	m := openWarning(t, newTestModel(), 1, a)
	assert.Contains(t, m.View(), "Reset it?")

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Zero(t, a.extend, "callbacks never run inside Update")
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, 1, a.extend)
	assert.NotContains(t, m.View(), "Reset it?")
}

func TestModel_LogoutAndDismiss(t *testing.T) {
	a := &answers{}
	m := openWarning(t, newTestModel(), 1, a)
	_, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	cmd()

	m = openWarning(t, newTestModel(), 2, a)
	_, cmd = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	cmd()

	assert.Equal(t, answers{logout: 1, dismiss: 1}, *a)
}

func TestModel_ChoiceAfterCloseIsDropped(t *testing.T) {
	a := &answers{}
	m := openWarning(t, newTestModel(), 1, a)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	choice := cmd()

	// The controller closed the dialog before the answer arrived.
	m, _ = update(t, m, CloseDialogMsg{Handle: 1})
	_, cmd = update(t, m, choice)
	assert.Nil(t, cmd)
	assert.Zero(t, a.extend)
}

func TestModel_CloseStaleHandleKeepsDialog(t *testing.T) {
	a := &answers{}
	m := openWarning(t, newTestModel(), 2, a)
	m, _ = update(t, m, CloseDialogMsg{Handle: 1})
	assert.Contains(t, m.View(), "Reset it?")
}

func TestModel_Transitions(t *testing.T) {
	m := newTestModel()
	m, _ = update(t, m, TransitionMsg{Transition: autologout.Transition{
		From:     autologout.StateDetached,
		To:       autologout.StateActive,
		Event:    autologout.EventAttach,
		At:       time.Unix(5000, 0),
		NextWake: time.Unix(5000, 0).Add(30 * time.Minute),
	}})

	assert.Equal(t, autologout.StateActive, m.State())
	view := m.View()
	assert.Contains(t, view, "ACTIVE")
	assert.Contains(t, view, "next check in 30m")
	assert.Contains(t, view, "attach")

	for i := 0; i < maxHistory+3; i++ {
		m, _ = update(t, m, TransitionMsg{Transition: autologout.Transition{
			From: autologout.StateActive, To: autologout.StateAwaitingProbe, Event: autologout.EventMainFired,
		}})
	}
	assert.Len(t, m.history, maxHistory)
	assert.Equal(t, autologout.StateAwaitingProbe, m.State())
}

func TestModel_TransitionShowsError(t *testing.T) {
	m := newTestModel()
	m, _ = update(t, m, TransitionMsg{Transition: autologout.Transition{
		From: autologout.StateAwaitingProbe, To: autologout.StateActive,
		Event: autologout.EventProbeDone, Err: errors.New("server unreachable"),
	}})
	assert.Contains(t, m.View(), "server unreachable")
}

func TestModel_RedirectHidesDialog(t *testing.T) {
	a := &answers{}
	m := openWarning(t, newTestModel(), 1, a)
	m, _ = update(t, m, RedirectMsg{URL: "/user/login", Message: "You have been logged out due to inactivity."})

	r, ok := m.Redirected()
	require.True(t, ok)
	assert.Equal(t, "/user/login", r.URL)

	view := m.View()
	assert.Contains(t, view, "logged out due to inactivity")
	assert.Contains(t, view, "/user/login")
	assert.NotContains(t, view, "Reset it?")
}

func TestModel_StoppedQuits(t *testing.T) {
	m := newTestModel()
	m, cmd := update(t, m, StoppedMsg{Err: errors.New("context canceled")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Contains(t, m.View(), "stopped watching")
}

func TestModel_QuitKey(t *testing.T) {
	m := newTestModel()
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	// While the warning is up, q is not an answer and does not quit.
	m = openWarning(t, newTestModel(), 1, &answers{})
	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.Nil(t, cmd)
}

func TestModel_TickAdvancesCountdown(t *testing.T) {
	m := openWarning(t, newTestModel(), 1, &answers{})
	m, cmd := update(t, m, tickMsg(time.Unix(5012, 0)))
	assert.NotNil(t, cmd, "ticks keep coming")
	assert.Contains(t, m.View(), "0:08")
}

func TestAnswer_NilCallback(t *testing.T) {
	assert.Nil(t, answer(autologout.DialogCallbacks{}, components.ChoiceExtend))
}
