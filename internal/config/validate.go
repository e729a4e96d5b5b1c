// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/jeranaias/autologout/internal/autologout"
	"go.uber.org/zap/zapcore"
)

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
// It matches autologout.ErrConfigInvalid with errors.Is.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Is reports whether target is autologout.ErrConfigInvalid.
func (e ValidateErrors) Is(target error) bool {
	return target == autologout.ErrConfigInvalid
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// ==========================================================================
	// Autologout
	// ==========================================================================

	a := c.Autologout
	minSecs := int(autologout.MinIdleTimeout.Seconds())

	if a.MaxTimeoutSecs < minSecs {
		add("autologout.max_timeout", "must be at least %d seconds, got %d", minSecs, a.MaxTimeoutSecs)
	}
	if a.TimeoutSecs < minSecs {
		add("autologout.timeout", "must be at least %d seconds, got %d", minSecs, a.TimeoutSecs)
	} else if a.TimeoutSecs > a.MaxTimeoutSecs {
		add("autologout.timeout", "must be at most max_timeout (%d), got %d", a.MaxTimeoutSecs, a.TimeoutSecs)
	}
	if a.PaddingSecs < 0 {
		add("autologout.padding", "cannot be negative, got %d", a.PaddingSecs)
	}
	if !strings.HasPrefix(a.RedirectURL, "/") {
		add("autologout.redirect_url", "must be a local path starting with '/', got %q", a.RedirectURL)
	}

	roles := make([]string, 0, len(a.Roles))
	for name := range a.Roles {
		roles = append(roles, name)
	}
	sort.Strings(roles)
	for _, name := range roles {
		rc := a.Roles[name]
		field := "autologout.roles." + name + ".timeout"
		if rc.TimeoutSecs == 0 {
			continue
		}
		if rc.TimeoutSecs < minSecs || rc.TimeoutSecs > a.MaxTimeoutSecs {
			add(field, "must be 0 or between %d and %d, got %d", minSecs, a.MaxTimeoutSecs, rc.TimeoutSecs)
		}
	}

	for _, pattern := range a.RefreshOnlyPaths {
		if _, err := path.Match(pattern, "/"); err != nil {
			add("autologout.refresh_only_paths", "invalid pattern %q: %v", pattern, err)
		}
	}

	// ==========================================================================
	// Server
	// ==========================================================================

	if c.Server.Addr == "" {
		add("server.addr", "cannot be empty")
	}
	if c.Server.RateLimitPerSec < 0 {
		add("server.rate_limit_per_sec", "cannot be negative")
	}
	if c.Server.RateLimitPerSec > 0 && c.Server.RateLimitBurst < 1 {
		add("server.rate_limit_burst", "must be at least 1 when rate limiting is on")
	}

	// ==========================================================================
	// Storage
	// ==========================================================================

	switch c.Storage.Driver {
	case "memory":
	case "sqlite", "postgres":
		if c.Storage.DSN == "" {
			add("storage.dsn", "required for driver %q", c.Storage.Driver)
		}
	default:
		add("storage.driver", "invalid driver %q, must be one of: memory, sqlite, postgres", c.Storage.Driver)
	}
	if c.Storage.SweepIntervalSecs < 1 {
		add("storage.sweep_interval_secs", "must be at least 1, got %d", c.Storage.SweepIntervalSecs)
	}

	// ==========================================================================
	// Logging and client
	// ==========================================================================

	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		add("logging.level", "%v", err)
	}

	if u, err := url.Parse(c.Client.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		add("client.base_url", "must be an absolute URL, got %q", c.Client.BaseURL)
	}
	if c.Client.RequestTimeoutSecs < 1 {
		add("client.request_timeout_secs", "must be at least 1, got %d", c.Client.RequestTimeoutSecs)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
