// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/autologout/internal/autologout"
	"github.com/jeranaias/autologout/internal/ui/styles"
)

// =============================================================================
// KEY MAP
// =============================================================================

// WarningKeyMap holds the dialog's key bindings.
type WarningKeyMap struct {
	Extend  key.Binding
	Logout  key.Binding
	Dismiss key.Binding
}

// DefaultWarningKeyMap returns the default dialog bindings.
func DefaultWarningKeyMap() WarningKeyMap {
	return WarningKeyMap{
		Extend: key.NewBinding(
			key.WithKeys("enter", "y"),
			key.WithHelp("enter/y", "stay logged in"),
		),
		Logout: key.NewBinding(
			key.WithKeys("n", "l"),
			key.WithHelp("n/l", "log out"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k WarningKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Extend, k.Logout, k.Dismiss}
}

// FullHelp implements help.KeyMap.
func (k WarningKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// =============================================================================
// MESSAGES
// =============================================================================

// DialogChoice is the user's answer to the warning.
type DialogChoice int

const (
	ChoiceExtend DialogChoice = iota
	ChoiceLogout
	ChoiceDismiss
)

// String returns the choice name.
func (c DialogChoice) String() string {
	switch c {
	case ChoiceExtend:
		return "extend"
	case ChoiceLogout:
		return "logout"
	case ChoiceDismiss:
		return "dismiss"
	default:
		return "unknown"
	}
}

// DialogChoiceMsg is emitted once per shown dialog when the user answers.
type DialogChoiceMsg struct {
	Handle autologout.DialogHandle
	Choice DialogChoice
}

// DialogTickMsg advances the countdown.
type DialogTickMsg struct {
	Time time.Time
}

// =============================================================================
// WARNING DIALOG
// =============================================================================

// WarningDialog renders the inactivity warning with a padding countdown.
type WarningDialog struct {
	visible bool
	handle  autologout.DialogHandle
	prompt  autologout.Prompt
	opened  time.Time
	now     time.Time

	keys WarningKeyMap
	help help.Model

	width  int
	height int
}

// NewWarningDialog creates a hidden dialog.
func NewWarningDialog() WarningDialog {
	return WarningDialog{
		keys: DefaultWarningKeyMap(),
		help: help.New(),
	}
}

// SetSize sets the area the dialog is centered in.
func (d *WarningDialog) SetSize(width, height int) {
	d.width = width
	d.height = height
}

// Show opens the dialog for handle. Showing a new handle replaces the old one.
func (d *WarningDialog) Show(h autologout.DialogHandle, p autologout.Prompt, now time.Time) {
	d.visible = true
	d.handle = h
	d.prompt = p
	d.opened = now
	d.now = now
}

// Hide closes the dialog if h is the one showing. It reports whether it did.
func (d *WarningDialog) Hide(h autologout.DialogHandle) bool {
	if !d.visible || d.handle != h {
		return false
	}
	d.visible = false
	d.handle = 0
	return true
}

// IsVisible reports whether the dialog is showing.
func (d WarningDialog) IsVisible() bool {
	return d.visible
}

// Handle returns the handle of the showing dialog, or 0.
func (d WarningDialog) Handle() autologout.DialogHandle {
	return d.handle
}

// Remaining returns how much of the padding period is left.
func (d WarningDialog) Remaining() time.Duration {
	left := d.prompt.Padding - d.now.Sub(d.opened)
	if left < 0 {
		return 0
	}
	return left
}

// Init implements the Bubble Tea component convention.
func (d WarningDialog) Init() tea.Cmd {
	return nil
}

// Update handles keys, ticks, and resizes.
func (d WarningDialog) Update(msg tea.Msg) (WarningDialog, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		d.SetSize(msg.Width, msg.Height)

	case DialogTickMsg:
		if d.visible {
			d.now = msg.Time
		}

	case tea.KeyMsg:
		if !d.visible {
			return d, nil
		}
		var choice DialogChoice
		switch {
		case key.Matches(msg, d.keys.Extend):
			choice = ChoiceExtend
		case key.Matches(msg, d.keys.Logout):
			choice = ChoiceLogout
		case key.Matches(msg, d.keys.Dismiss):
			choice = ChoiceDismiss
		default:
			return d, nil
		}
		h := d.handle
		d.Hide(h)
		return d, func() tea.Msg {
			return DialogChoiceMsg{Handle: h, Choice: choice}
		}
	}
	return d, nil
}

// View renders the dialog centered in its area, or "" when hidden.
func (d WarningDialog) View() string {
	if !d.visible {
		return ""
	}

	width := d.width
	if width == 0 {
		width = 60
	}
	height := d.height
	if height == 0 {
		height = 20
	}
	maxWidth := width - 8
	if maxWidth < 40 {
		maxWidth = 40
	}
	if maxWidth > 64 {
		maxWidth = 64
	}
	inner := maxWidth - 8

	title := d.prompt.Title
	if title == "" {
		title = "Session timeout"
	}

	var parts []string
	parts = append(parts, lipgloss.NewStyle().
		Foreground(styles.Amber).
		Bold(true).
		Render(styles.StatusIndicators.Warning+" "+title))
	parts = append(parts, "")

	if d.prompt.Message != "" {
		parts = append(parts, lipgloss.NewStyle().
			Foreground(styles.TextPrimary).
			Width(inner).
			Align(lipgloss.Center).
			Render(d.prompt.Message))
		parts = append(parts, "")
	}

	if d.prompt.Padding > 0 {
		left := d.Remaining()
		timeStyle := lipgloss.NewStyle().Foreground(styles.Amber).Bold(true)
		parts = append(parts, lipgloss.NewStyle().
			Foreground(styles.TextSecondary).
			Render("Logging out in "+timeStyle.Render(formatTimeRemaining(left))))

		elapsed := 100 * float64(d.prompt.Padding-left) / float64(d.prompt.Padding)
		parts = append(parts, lipgloss.NewStyle().
			Foreground(styles.TextMuted).
			Render(styles.RenderProgressBar(inner, elapsed)))
		parts = append(parts, "")
	}

	parts = append(parts, d.help.View(d.keys))

	box := lipgloss.NewStyle().
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(styles.Amber).
		Padding(1, 3).
		Width(maxWidth).
		Align(lipgloss.Center).
		Render(lipgloss.JoinVertical(lipgloss.Center, parts...))

	return lipgloss.Place(
		width, height,
		lipgloss.Center, lipgloss.Center,
		box,
		lipgloss.WithWhitespaceBackground(styles.SurfaceDim),
	)
}

// formatTimeRemaining formats a duration as M:SS.
func formatTimeRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
