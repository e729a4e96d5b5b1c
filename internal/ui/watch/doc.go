// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package watch renders a running autologout controller in the terminal.

Two front ends implement autologout.Dialog and autologout.Navigator:

  - Bridge forwards controller effects into a Bubble Tea program running
    Model, which shows the session state and the WarningDialog component.
  - LineDialog prompts on plain text streams, for pipes and dumb terminals.

Controller callbacks run on the controller goroutine and Bubble Tea updates
run on the program goroutine. The only link between them is messages: the
Bridge sends effects to the program and the Model invokes dialog callbacks
from a tea.Cmd, never from Update itself.
*/
package watch
