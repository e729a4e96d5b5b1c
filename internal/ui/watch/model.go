// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/autologout/internal/autologout"
	"github.com/jeranaias/autologout/internal/ui/components"
	"github.com/jeranaias/autologout/internal/ui/styles"
	"github.com/jeranaias/autologout/internal/util"
)

// maxHistory bounds the transition log shown under the status line.
const maxHistory = 8

// Model is the Bubble Tea model of the watch screen.
type Model struct {
	title string
	now   func() time.Time

	dialog    components.WarningDialog
	callbacks map[autologout.DialogHandle]autologout.DialogCallbacks
	spinner   spinner.Model
	quit      key.Binding

	state    autologout.State
	nextWake time.Time
	history  []string

	redirect *RedirectMsg
	stopErr  error
	stopped  bool

	width  int
	height int
}

// NewModel creates the watch screen. title names the watched session.
func NewModel(title string) Model {
	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = lipgloss.NewStyle().Foreground(styles.Cyan)

	return Model{
		title:     title,
		now:       time.Now,
		dialog:    components.NewWarningDialog(),
		callbacks: make(map[autologout.DialogHandle]autologout.DialogCallbacks),
		spinner:   s,
		quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "stop watching"),
		),
		state: autologout.StateDetached,
	}
}

// State returns the last reported controller state.
func (m Model) State() autologout.State {
	return m.state
}

// Redirected returns the final redirect, if one arrived.
func (m Model) Redirected() (RedirectMsg, bool) {
	if m.redirect == nil {
		return RedirectMsg{}, false
	}
	return *m.redirect, true
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init starts the spinner and the countdown tick.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.dialog.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if m.dialog.IsVisible() {
			var cmd tea.Cmd
			m.dialog, cmd = m.dialog.Update(msg)
			return m, cmd
		}
		if key.Matches(msg, m.quit) || m.stopped {
			return m, tea.Quit
		}
		return m, nil

	case components.DialogChoiceMsg:
		cb, ok := m.callbacks[msg.Handle]
		if !ok {
			return m, nil
		}
		delete(m.callbacks, msg.Handle)
		return m, answer(cb, msg.Choice)

	case OpenDialogMsg:
		m.callbacks[msg.Handle] = msg.Callbacks
		m.dialog.Show(msg.Handle, msg.Prompt, m.now())
		return m, nil

	case CloseDialogMsg:
		delete(m.callbacks, msg.Handle)
		m.dialog.Hide(msg.Handle)
		return m, nil

	case TransitionMsg:
		t := msg.Transition
		m.state = t.To
		m.nextWake = t.NextWake
		m.history = append(m.history, formatTransition(t))
		if len(m.history) > maxHistory {
			m.history = m.history[len(m.history)-maxHistory:]
		}
		return m, nil

	case RedirectMsg:
		m.redirect = &msg
		m.dialog.Hide(m.dialog.Handle())
		return m, nil

	case StoppedMsg:
		m.stopped = true
		m.stopErr = msg.Err
		return m, tea.Quit

	case tickMsg:
		m.dialog, _ = m.dialog.Update(components.DialogTickMsg{Time: time.Time(msg)})
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// answer runs the dialog callback off the update loop.
func answer(cb autologout.DialogCallbacks, choice components.DialogChoice) tea.Cmd {
	var fn func()
	switch choice {
	case components.ChoiceExtend:
		fn = cb.OnExtend
	case components.ChoiceLogout:
		fn = cb.OnLogout
	default:
		fn = cb.OnDismiss
	}
	if fn == nil {
		return nil
	}
	return func() tea.Msg {
		fn()
		return nil
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if m.dialog.IsVisible() {
		return m.dialog.View()
	}

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(styles.TextPrimary).Render("autologout"))
	if m.title != "" {
		b.WriteString(lipgloss.NewStyle().Foreground(styles.TextMuted).Render("  " + m.title))
	}
	b.WriteString("\n\n")

	switch {
	case m.redirect != nil:
		b.WriteString(styles.RenderError(m.redirect.Message))
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(styles.TextSecondary).Render("    redirect: " + m.redirect.URL))
	case m.stopped:
		b.WriteString(styles.RenderInfo("stopped watching"))
		if m.stopErr != nil {
			b.WriteString(lipgloss.NewStyle().Foreground(styles.TextMuted).Render(" (" + m.stopErr.Error() + ")"))
		}
	default:
		b.WriteString(m.spinner.View() + " " + m.statusLine())
	}
	b.WriteString("\n")

	if len(m.history) > 0 {
		b.WriteString("\n")
		muted := lipgloss.NewStyle().Foreground(styles.TextMuted)
		for _, line := range m.history {
			b.WriteString(muted.Render(util.TruncateWidth(line, m.lineWidth())))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(styles.TextMuted).Render("q stop watching"))
	return b.String()
}

func (m Model) statusLine() string {
	state := m.state.String()
	switch m.state {
	case autologout.StateActive, autologout.StateRefreshOnlyIdle:
		state = lipgloss.NewStyle().Foreground(styles.Emerald).Render(state)
	case autologout.StateAwaitingProbe, autologout.StateConfirmingLogout, autologout.StateWarningOpen:
		state = lipgloss.NewStyle().Foreground(styles.Amber).Render(state)
	}
	if m.nextWake.IsZero() {
		return state
	}
	return fmt.Sprintf("%s, next check in %s", state, util.FormatDuration(m.nextWake.Sub(m.now())))
}

func (m Model) lineWidth() int {
	if m.width <= 0 {
		return 80
	}
	return m.width
}

func formatTransition(t autologout.Transition) string {
	line := fmt.Sprintf("%s  %-16s %s -> %s", t.At.Format("15:04:05"), t.Event, t.From, t.To)
	if t.Err != nil {
		line += "  (" + t.Err.Error() + ")"
	}
	return line
}
