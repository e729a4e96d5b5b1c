// autologout - session inactivity timeout server and client.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"os"

	"github.com/jeranaias/autologout/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
