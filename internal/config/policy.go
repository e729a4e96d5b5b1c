// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"path"
	"strings"
	"time"

	"github.com/jeranaias/autologout/internal/autologout"
)

// AltLogoutPath is the page that logs a session out when navigated to.
const AltLogoutPath = "/autologout/logout/alt"

// PagePolicy is the policy a client receives for one session on one page.
// It is the body of GET /autologout/settings.
type PagePolicy struct {
	Enabled           bool   `json:"enabled"`
	TimeoutSecs       int    `json:"timeout"`
	PaddingSecs       int    `json:"padding"`
	RedirectURL       string `json:"redirect_url"`
	Title             string `json:"title"`
	Message           string `json:"message"`
	InactivityMessage string `json:"inactivity_message"`
	NoDialog          bool   `json:"no_dialog"`
	RefreshOnly       bool   `json:"refresh_only"`
	AltLogoutURL      string `json:"alt_logout_url,omitempty"`
}

// Policy converts the page policy into a controller policy.
func (p PagePolicy) Policy() autologout.Policy {
	return autologout.Policy{
		IdleTimeout:       time.Duration(p.TimeoutSecs) * time.Second,
		Padding:           time.Duration(p.PaddingSecs) * time.Second,
		RedirectURL:       p.RedirectURL,
		Title:             p.Title,
		Message:           p.Message,
		InactivityMessage: p.InactivityMessage,
		SkipDialog:        p.NoDialog,
		RefreshOnly:       p.RefreshOnly,
		AltLogoutURL:      p.AltLogoutURL,
	}
}

// UserTimeout returns the idle timeout in seconds for a user holding roles.
// With role_logout on, the lowest timeout among the user's enabled roles
// wins. A result of 0 means the user is never logged out.
func (a AutologoutConfig) UserTimeout(roles []string) int {
	if !a.RoleLogout {
		return a.TimeoutSecs
	}

	best, found := 0, false
	for _, r := range roles {
		rc, ok := a.Roles[r]
		if !ok || !rc.Enabled {
			continue
		}
		if !found || rc.TimeoutSecs < best {
			best, found = rc.TimeoutSecs, true
		}
	}
	if !found {
		return a.TimeoutSecs
	}
	return best
}

// IsRefreshOnly reports whether pagePath matches a refresh-only glob.
func (a AutologoutConfig) IsRefreshOnly(pagePath string) bool {
	for _, pattern := range a.RefreshOnlyPaths {
		if ok, _ := path.Match(pattern, pagePath); ok {
			return true
		}
	}
	return false
}

// IsAdminPath reports whether p is an administrative page.
func IsAdminPath(p string) bool {
	return p == "/admin" || strings.HasPrefix(p, "/admin/")
}

// Resolve builds the policy for a user with roles on pagePath.
func (a AutologoutConfig) Resolve(roles []string, pagePath string) PagePolicy {
	timeout := a.UserTimeout(roles)
	p := PagePolicy{
		Enabled:           timeout > 0 && (a.EnforceAdmin || !IsAdminPath(pagePath)),
		TimeoutSecs:       timeout,
		PaddingSecs:       a.PaddingSecs,
		RedirectURL:       a.RedirectURL,
		Title:             a.Title,
		Message:           a.Message,
		InactivityMessage: a.InactivityMessage,
		NoDialog:          a.NoDialog,
		RefreshOnly:       a.IsRefreshOnly(pagePath),
	}
	if a.UseAltLogoutMethod {
		p.AltLogoutURL = AltLogoutPath
	}
	return p
}
