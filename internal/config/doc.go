// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for autologout.
//
// The format is TOML, with defaults, environment variable overrides and
// validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - AutologoutConfig: Timeout policy, role timeouts, page rules
//   - PagePolicy: The resolved policy a client receives for one page
//   - Watcher: Hot reload of the config file with fsnotify
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (AUTOLOGOUT_*)
//   - --config path or ~/.autologout/config.toml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	policy := cfg.Autologout.Resolve([]string{"editor"}, "/node/1").Policy()
//
// Validation failures are returned as ValidateErrors, which match
// autologout.ErrConfigInvalid with errors.Is.
package config
