// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package cli implements the autologout command line.

Commands:

	autologout serve                 run the session authority
	autologout watch                 attach a timeout controller to one session
	autologout session open          create a session (admin token required)
	autologout session status        show a session's remaining time
	autologout config show           print the effective configuration
	autologout config validate       check a configuration file
	autologout config init           write a default configuration file
	autologout version               print version information

Global flags:

	--config PATH    configuration file (default ~/.autologout/config.toml)
	--env-file PATH  dotenv file loaded before environment overrides (default .env)

Configuration is read in this order: defaults, the TOML file, the dotenv file,
then AUTOLOGOUT_* environment variables.
*/
package cli
