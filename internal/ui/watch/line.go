// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package watch

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jeranaias/autologout/internal/autologout"
	"github.com/jeranaias/autologout/internal/ui/styles"
	"github.com/jeranaias/autologout/internal/util"
)

// LineDialog asks the warning question on plain text streams.
//
// Answers: empty, "y" or "yes" extends; "n", "no", "l" or "logout" logs out.
// Anything else repeats the question. Lines typed while no warning is open
// are ignored.
type LineDialog struct {
	out   io.Writer
	width int

	mu   sync.Mutex
	next autologout.DialogHandle
	open autologout.DialogHandle
	cb   autologout.DialogCallbacks

	done     chan struct{}
	doneOnce sync.Once
}

// NewLineDialog starts reading answers from in. width wraps the message;
// values below 20 mean 80.
func NewLineDialog(in io.Reader, out io.Writer, width int) *LineDialog {
	if width < 20 {
		width = 80
	}
	d := &LineDialog{out: out, width: width, done: make(chan struct{})}
	go d.read(in)
	return d
}

// Done is closed once the redirect was printed.
func (d *LineDialog) Done() <-chan struct{} {
	return d.done
}

func (d *LineDialog) read(in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		d.answer(scanner.Text())
	}
}

func (d *LineDialog) printf(format string, args ...interface{}) {
	fmt.Fprintf(d.out, format, args...)
}

// Open implements autologout.Dialog.
func (d *LineDialog) Open(p autologout.Prompt, cb autologout.DialogCallbacks) autologout.DialogHandle {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.next++
	d.open = d.next
	d.cb = cb

	title := p.Title
	if title == "" {
		title = "Session timeout"
	}
	d.printf("\n%s\n", styles.RenderWarning(title))
	for _, line := range util.WrapWidth(p.Message, d.width-4) {
		d.printf("    %s\n", line)
	}
	if p.Padding > 0 {
		d.printf("    Logging out in %s unless you answer.\n", util.FormatDuration(p.Padding))
	}
	d.printf("Stay logged in? [Y/n]: ")
	return d.open
}

// Close implements autologout.Dialog.
func (d *LineDialog) Close(h autologout.DialogHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open != h {
		return
	}
	d.open = 0
	d.cb = autologout.DialogCallbacks{}
	d.printf("\n")
}

// Redirect implements autologout.Navigator.
func (d *LineDialog) Redirect(url, message string) {
	d.mu.Lock()
	if message != "" {
		d.printf("%s\n", styles.RenderError(message))
	}
	d.printf("    redirect: %s\n", url)
	d.mu.Unlock()
	d.doneOnce.Do(func() { close(d.done) })
}

func (d *LineDialog) answer(line string) {
	d.mu.Lock()
	if d.open == 0 {
		d.mu.Unlock()
		return
	}

	var fn func()
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "", "y", "yes":
		fn = d.cb.OnExtend
		d.printf("%s\n", styles.RenderSuccess("session kept alive"))
	case "n", "no", "l", "logout":
		fn = d.cb.OnLogout
	default:
		d.printf("Please answer y or n: ")
		d.mu.Unlock()
		return
	}
	d.open = 0
	d.cb = autologout.DialogCallbacks{}
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}

var (
	_ autologout.Dialog    = (*LineDialog)(nil)
	_ autologout.Navigator = (*LineDialog)(nil)
)
