// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/autologout/internal/autologout"
)

var testPrompt = autologout.Prompt{
	Title:   "Session timeout",
	Message: "Your session is about to expire. Do you want to reset it?",
	Padding: 20 * time.Second,
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func shown(t *testing.T) WarningDialog {
	t.Helper()
	d := NewWarningDialog()
	d.Show(7, testPrompt, time.Unix(1000, 0))
	require.True(t, d.IsVisible())
	return d
}

func TestWarningDialog_HiddenByDefault(t *testing.T) {
	d := NewWarningDialog()
	assert.False(t, d.IsVisible())
	assert.Empty(t, d.View())

	d, cmd := d.Update(runes("y"))
	assert.Nil(t, cmd, "keys are ignored while hidden")
	assert.False(t, d.IsVisible())
}

func TestWarningDialog_Choices(t *testing.T) {
	tests := []struct {
		name string
		key  tea.KeyMsg
		want DialogChoice
	}{
		{"enter extends", tea.KeyMsg{Type: tea.KeyEnter}, ChoiceExtend},
		{"y extends", runes("y"), ChoiceExtend},
		{"n logs out", runes("n"), ChoiceLogout},
		{"l logs out", runes("l"), ChoiceLogout},
		{"esc dismisses", tea.KeyMsg{Type: tea.KeyEsc}, ChoiceDismiss},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := shown(t)
			d, cmd := d.Update(tt.key)
			require.NotNil(t, cmd)
			assert.False(t, d.IsVisible(), "answering hides the dialog")

			msg, ok := cmd().(DialogChoiceMsg)
			require.True(t, ok)
			assert.Equal(t, autologout.DialogHandle(7), msg.Handle)
			assert.Equal(t, tt.want, msg.Choice)
		})
	}
}

func TestWarningDialog_OtherKeysIgnored(t *testing.T) {
	d := shown(t)
	d, cmd := d.Update(runes("x"))
	assert.Nil(t, cmd)
	assert.True(t, d.IsVisible())
}

func TestWarningDialog_HideOnlyMatchingHandle(t *testing.T) {
	d := shown(t)
	assert.False(t, d.Hide(3), "stale handle")
	assert.True(t, d.IsVisible())
	assert.True(t, d.Hide(7))
	assert.False(t, d.IsVisible())
	assert.Equal(t, autologout.DialogHandle(0), d.Handle())
	assert.False(t, d.Hide(7), "already hidden")
}

func TestWarningDialog_Countdown(t *testing.T) {
	d := shown(t)
	assert.Equal(t, 20*time.Second, d.Remaining())

	d, _ = d.Update(DialogTickMsg{Time: time.Unix(1005, 0)})
	assert.Equal(t, 15*time.Second, d.Remaining())
	assert.Contains(t, d.View(), "0:15")

	d, _ = d.Update(DialogTickMsg{Time: time.Unix(1100, 0)})
	assert.Equal(t, time.Duration(0), d.Remaining())
	assert.Contains(t, d.View(), "0:00")
}

func TestWarningDialog_View(t *testing.T) {
	d := shown(t)
	d, _ = d.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	view := d.View()
	assert.Contains(t, view, "Session timeout")
	assert.Contains(t, view, "about to expire")
	assert.Contains(t, view, "stay logged in")
	assert.Equal(t, 30, strings.Count(view, "\n")+1, "centered in the full height")
}

func TestWarningDialog_NoPaddingHidesCountdown(t *testing.T) {
	d := NewWarningDialog()
	d.Show(1, autologout.Prompt{Title: "Heads up"}, time.Unix(0, 0))
	view := d.View()
	assert.Contains(t, view, "Heads up")
	assert.NotContains(t, view, "Logging out in")
}

func TestFormatTimeRemaining(t *testing.T) {
	assert.Equal(t, "0:00", formatTimeRemaining(-time.Second))
	assert.Equal(t, "0:09", formatTimeRemaining(9*time.Second))
	assert.Equal(t, "2:05", formatTimeRemaining(125*time.Second))
}

func TestDialogChoice_String(t *testing.T) {
	assert.Equal(t, "extend", ChoiceExtend.String())
	assert.Equal(t, "logout", ChoiceLogout.String())
	assert.Equal(t, "dismiss", ChoiceDismiss.String())
	assert.Equal(t, "unknown", DialogChoice(9).String())
}
