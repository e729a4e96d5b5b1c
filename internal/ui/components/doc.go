// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components provides reusable Bubble Tea components.

# WarningDialog

WarningDialog is the inactivity warning. It shows the prompt title and
message, a countdown of the padding period, and the key hints:

	Enter / y   stay logged in
	n / l       log out now
	Esc         close the warning (same as logging out)

The dialog never talks to the server. A key press hides it and emits a
DialogChoiceMsg carrying the handle it was opened with, so the owning model
can tell a fresh answer from one meant for a dialog that is already gone.

Usage:

	d := components.NewWarningDialog()
	d.Show(handle, prompt, time.Now())

	// in Update
	d, cmd = d.Update(msg)

	// in View
	if d.IsVisible() {
		return d.View()
	}
*/
package components
