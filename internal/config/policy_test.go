// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func roleConfig() AutologoutConfig {
	a := Default().Autologout
	a.TimeoutSecs = 1800
	a.RoleLogout = true
	a.Roles = map[string]RoleConfig{
		"editor":  {Enabled: true, TimeoutSecs: 900},
		"auditor": {Enabled: true, TimeoutSecs: 300},
		"guest":   {Enabled: false, TimeoutSecs: 60},
		"admin":   {Enabled: true, TimeoutSecs: 0},
	}
	return a
}

func TestUserTimeout(t *testing.T) {
	a := roleConfig()

	tests := []struct {
		name  string
		roles []string
		want  int
	}{
		{"no roles uses default", nil, 1800},
		{"unknown role uses default", []string{"member"}, 1800},
		{"single role", []string{"editor"}, 900},
		{"lowest enabled wins", []string{"editor", "auditor"}, 300},
		{"disabled role ignored", []string{"editor", "guest"}, 900},
		{"zero disables", []string{"editor", "admin"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.UserTimeout(tt.roles))
		})
	}

	a.RoleLogout = false
	assert.Equal(t, 1800, a.UserTimeout([]string{"auditor"}), "roles ignored when role_logout is off")
}

func TestResolve(t *testing.T) {
	a := roleConfig()
	a.RefreshOnlyPaths = []string{"/node/*/edit"}

	p := a.Resolve([]string{"editor"}, "/node/1")
	assert.True(t, p.Enabled)
	assert.Equal(t, 900, p.TimeoutSecs)
	assert.False(t, p.RefreshOnly)
	assert.Empty(t, p.AltLogoutURL)

	assert.True(t, a.Resolve(nil, "/node/7/edit").RefreshOnly)
	assert.False(t, a.Resolve([]string{"admin"}, "/node/1").Enabled, "timeout 0 disables")

	assert.False(t, a.Resolve(nil, "/admin/config").Enabled, "admin pages exempt")
	assert.True(t, a.Resolve(nil, "/administrator").Enabled)
	a.EnforceAdmin = true
	assert.True(t, a.Resolve(nil, "/admin").Enabled)

	a.UseAltLogoutMethod = true
	assert.Equal(t, AltLogoutPath, a.Resolve(nil, "/").AltLogoutURL)
}

func TestPagePolicy_Policy(t *testing.T) {
	p := PagePolicy{
		Enabled:      true,
		TimeoutSecs:  120,
		PaddingSecs:  15,
		RedirectURL:  "/user/login",
		Message:      "m",
		NoDialog:     true,
		AltLogoutURL: AltLogoutPath,
	}

	got := p.Policy()
	assert.Equal(t, 2*time.Minute, got.IdleTimeout)
	assert.Equal(t, 15*time.Second, got.Padding)
	assert.True(t, got.SkipDialog)
	assert.Equal(t, AltLogoutPath, got.AltLogoutURL)
	assert.NoError(t, got.Validate())
}
