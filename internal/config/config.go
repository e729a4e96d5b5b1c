// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/jeranaias/autologout/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete autologout configuration.
type Config struct {
	// Server is the session authority's HTTP listener.
	Server ServerConfig `toml:"server" json:"server"`

	// Storage selects where sessions live.
	Storage StorageConfig `toml:"storage" json:"storage"`

	// Autologout is the timeout policy handed to clients.
	Autologout AutologoutConfig `toml:"autologout" json:"autologout"`

	// Logging controls the zap logger.
	Logging LoggingConfig `toml:"logging" json:"logging"`

	// Client configures `autologout watch`.
	Client ClientConfig `toml:"client" json:"client"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8787".
	Addr string `toml:"addr" json:"addr"`
	// AdminToken guards POST /autologout/sessions. Empty disables the endpoint.
	AdminToken string `toml:"admin_token" json:"admin_token"`
	// CORSOrigins lists origins allowed to call the API from a browser.
	CORSOrigins []string `toml:"cors_origins" json:"cors_origins"`
	// RateLimitPerSec bounds requests per session. 0 disables limiting.
	RateLimitPerSec float64 `toml:"rate_limit_per_sec" json:"rate_limit_per_sec"`
	// RateLimitBurst is the token bucket size for each session.
	RateLimitBurst int `toml:"rate_limit_burst" json:"rate_limit_burst"`
	// ReadTimeoutSecs and WriteTimeoutSecs bound each request.
	ReadTimeoutSecs  int `toml:"read_timeout_secs" json:"read_timeout_secs"`
	WriteTimeoutSecs int `toml:"write_timeout_secs" json:"write_timeout_secs"`
}

// StorageConfig contains session store configuration.
type StorageConfig struct {
	// Driver is "memory", "sqlite" or "postgres".
	Driver string `toml:"driver" json:"driver"`
	// DSN is the driver-specific data source. For sqlite it is a file path.
	DSN string `toml:"dsn" json:"dsn"`
	// SweepIntervalSecs is how often expired sessions are deleted.
	SweepIntervalSecs int `toml:"sweep_interval_secs" json:"sweep_interval_secs"`
}

// AutologoutConfig contains the inactivity policy.
type AutologoutConfig struct {
	// TimeoutSecs is the idle timeout in seconds (60..MaxTimeoutSecs).
	TimeoutSecs int `toml:"timeout" json:"timeout"`
	// MaxTimeoutSecs caps every timeout, including role timeouts.
	MaxTimeoutSecs int `toml:"max_timeout" json:"max_timeout"`
	// PaddingSecs is how long the warning stays up before a forced logout.
	PaddingSecs int `toml:"padding" json:"padding"`

	// RoleLogout enables per-role timeouts from Roles.
	RoleLogout bool `toml:"role_logout" json:"role_logout"`
	// Roles maps a role name to its timeout.
	Roles map[string]RoleConfig `toml:"roles" json:"roles,omitempty"`

	// RedirectURL is where a context goes after logout. Must start with "/".
	RedirectURL string `toml:"redirect_url" json:"redirect_url"`
	// NoDialog logs out without showing the warning.
	NoDialog bool `toml:"no_dialog" json:"no_dialog"`
	// UseAltLogoutMethod logs out by navigating to the alternate logout page.
	UseAltLogoutMethod bool `toml:"use_alt_logout_method" json:"use_alt_logout_method"`

	// Title, Message and InactivityMessage are user-facing strings.
	Title             string `toml:"title" json:"title"`
	Message           string `toml:"message" json:"message"`
	InactivityMessage string `toml:"inactivity_message" json:"inactivity_message"`

	// UseWatchdog writes an audit record for every logout.
	UseWatchdog bool `toml:"use_watchdog" json:"use_watchdog"`
	// EnforceAdmin applies autologout on /admin pages too.
	EnforceAdmin bool `toml:"enforce_admin" json:"enforce_admin"`
	// RefreshOnlyPaths are page globs that only keep the session alive.
	RefreshOnlyPaths []string `toml:"refresh_only_paths" json:"refresh_only_paths"`
}

// RoleConfig is the timeout of one role.
type RoleConfig struct {
	Enabled bool `toml:"enabled" json:"enabled"`
	// TimeoutSecs of 0 disables autologout for users with this role.
	TimeoutSecs int `toml:"timeout" json:"timeout"`
}

// LoggingConfig contains logger configuration.
type LoggingConfig struct {
	// Level is a zap level name: debug, info, warn, error.
	Level string `toml:"level" json:"level"`
	// Path is the log file. Empty logs to stderr.
	Path string `toml:"path" json:"path"`
	// AuditPath is the watchdog log. Empty writes audit records to the main log.
	AuditPath  string `toml:"audit_path" json:"audit_path"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days"`
	Compress   bool   `toml:"compress" json:"compress"`
}

// ClientConfig contains the watch client configuration.
type ClientConfig struct {
	// BaseURL is the session authority, e.g. "http://127.0.0.1:8787".
	BaseURL string `toml:"base_url" json:"base_url"`
	// SessionID identifies the session to watch.
	SessionID string `toml:"session_id" json:"session_id"`
	// Path is the page the client pretends to be on.
	Path string `toml:"path" json:"path"`
	// RequestTimeoutSecs bounds each round trip to the server.
	RequestTimeoutSecs int `toml:"request_timeout_secs" json:"request_timeout_secs"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:             "127.0.0.1:8787",
			RateLimitPerSec:  5,
			RateLimitBurst:   10,
			ReadTimeoutSecs:  15,
			WriteTimeoutSecs: 15,
		},

		Storage: StorageConfig{
			Driver:            "memory",
			SweepIntervalSecs: 60,
		},

		Autologout: AutologoutConfig{
			TimeoutSecs:       1800,   // 30 minutes
			MaxTimeoutSecs:    172800, // 48 hours
			PaddingSecs:       20,
			RedirectURL:       "/user/login",
			Title:             "Session timeout",
			Message:           "Your session is about to expire. Do you want to reset it?",
			InactivityMessage: "You have been logged out due to inactivity.",
		},

		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Compress:   true,
		},

		Client: ClientConfig{
			BaseURL:            "http://127.0.0.1:8787",
			Path:               "/",
			RequestTimeoutSecs: 10,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the autologout configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".autologout"), nil
}

// ConfigPathTOML returns the path to the default TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: the file may hold the admin token.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	mode := info.Mode().Perm()
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from path, or from the default location when
// path is empty. A missing default file is not an error: defaults are used.
// Environment overrides are applied last, then the result is validated.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := ConfigPathTOML()
		if err != nil {
			return nil, err
		}
		path = p
	}

	if _, err := os.Stat(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		cfg := Default()
		cfg.ApplyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		return cfg, nil
	}

	return LoadFromPath(path)
}

// LoadTOML decodes a TOML file into cfg and fills unset values.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		fmt.Fprintf(os.Stderr, "Warning: unknown config keys in %s: %s\n", path, strings.Join(keys, ", "))
	}
	return fillDefaults(cfg)
}

// LoadFromPath loads configuration from a specific file with full validation.
// Keys missing from the file keep their default values.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := LoadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults fills in any missing values with defaults.
// Booleans are left alone: false is a meaningful setting.
func fillDefaults(cfg *Config) error {
	defaults := Default()

	// Server
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaults.Server.Addr
	}
	if cfg.Server.RateLimitBurst == 0 {
		cfg.Server.RateLimitBurst = defaults.Server.RateLimitBurst
	}
	if cfg.Server.ReadTimeoutSecs == 0 {
		cfg.Server.ReadTimeoutSecs = defaults.Server.ReadTimeoutSecs
	}
	if cfg.Server.WriteTimeoutSecs == 0 {
		cfg.Server.WriteTimeoutSecs = defaults.Server.WriteTimeoutSecs
	}

	// Storage
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = defaults.Storage.Driver
	}
	if cfg.Storage.SweepIntervalSecs == 0 {
		cfg.Storage.SweepIntervalSecs = defaults.Storage.SweepIntervalSecs
	}

	// Autologout
	a := &cfg.Autologout
	if a.TimeoutSecs == 0 {
		a.TimeoutSecs = defaults.Autologout.TimeoutSecs
	}
	if a.MaxTimeoutSecs == 0 {
		a.MaxTimeoutSecs = defaults.Autologout.MaxTimeoutSecs
	}
	if a.RedirectURL == "" {
		a.RedirectURL = defaults.Autologout.RedirectURL
	}
	if a.Title == "" {
		a.Title = defaults.Autologout.Title
	}
	if a.Message == "" {
		a.Message = defaults.Autologout.Message
	}
	if a.InactivityMessage == "" {
		a.InactivityMessage = defaults.Autologout.InactivityMessage
	}

	// Logging
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
	if cfg.Logging.MaxSizeMB == 0 {
		cfg.Logging.MaxSizeMB = defaults.Logging.MaxSizeMB
	}

	// Client
	if cfg.Client.BaseURL == "" {
		cfg.Client.BaseURL = defaults.Client.BaseURL
	}
	if cfg.Client.Path == "" {
		cfg.Client.Path = defaults.Client.Path
	}
	if cfg.Client.RequestTimeoutSecs == 0 {
		cfg.Client.RequestTimeoutSecs = defaults.Client.RequestTimeoutSecs
	}

	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML writes cfg to path atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# autologout configuration file")
	fmt.Fprintln(&buf, "# Generated by autologout - edit with care")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, buf.Bytes(), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported variables:
//   - AUTOLOGOUT_ADDR: overrides server.addr
//   - AUTOLOGOUT_ADMIN_TOKEN: overrides server.admin_token
//   - AUTOLOGOUT_STORAGE_DRIVER: overrides storage.driver
//   - AUTOLOGOUT_STORAGE_DSN: overrides storage.dsn
//   - AUTOLOGOUT_TIMEOUT: overrides autologout.timeout (seconds)
//   - AUTOLOGOUT_PADDING: overrides autologout.padding (seconds)
//   - AUTOLOGOUT_REDIRECT_URL: overrides autologout.redirect_url
//   - AUTOLOGOUT_NO_DIALOG: overrides autologout.no_dialog
//   - AUTOLOGOUT_LOG_LEVEL: overrides logging.level
//   - AUTOLOGOUT_LOG_PATH: overrides logging.path
//   - AUTOLOGOUT_BASE_URL: overrides client.base_url
//   - AUTOLOGOUT_SESSION_ID: overrides client.session_id
//
// Numeric values that do not parse are ignored.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("AUTOLOGOUT_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("AUTOLOGOUT_ADMIN_TOKEN"); v != "" {
		c.Server.AdminToken = v
	}
	if v := os.Getenv("AUTOLOGOUT_STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("AUTOLOGOUT_STORAGE_DSN"); v != "" {
		c.Storage.DSN = v
	}
	if n, ok := envInt("AUTOLOGOUT_TIMEOUT"); ok {
		c.Autologout.TimeoutSecs = n
	}
	if n, ok := envInt("AUTOLOGOUT_PADDING"); ok {
		c.Autologout.PaddingSecs = n
	}
	if v := os.Getenv("AUTOLOGOUT_REDIRECT_URL"); v != "" {
		c.Autologout.RedirectURL = v
	}
	if v := os.Getenv("AUTOLOGOUT_NO_DIALOG"); v != "" {
		c.Autologout.NoDialog = v == "1" || strings.ToLower(v) == "true"
	}
	if v := os.Getenv("AUTOLOGOUT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("AUTOLOGOUT_LOG_PATH"); v != "" {
		c.Logging.Path = v
	}
	if v := os.Getenv("AUTOLOGOUT_BASE_URL"); v != "" {
		c.Client.BaseURL = v
	}
	if v := os.Getenv("AUTOLOGOUT_SESSION_ID"); v != "" {
		c.Client.SessionID = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

// =============================================================================
// COPY AND DISPLAY
// =============================================================================

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	clone := *c

	if c.Server.CORSOrigins != nil {
		clone.Server.CORSOrigins = append([]string(nil), c.Server.CORSOrigins...)
	}
	if c.Autologout.RefreshOnlyPaths != nil {
		clone.Autologout.RefreshOnlyPaths = append([]string(nil), c.Autologout.RefreshOnlyPaths...)
	}
	if c.Autologout.Roles != nil {
		clone.Autologout.Roles = make(map[string]RoleConfig, len(c.Autologout.Roles))
		for k, v := range c.Autologout.Roles {
			clone.Autologout.Roles[k] = v
		}
	}
	return &clone
}

// String returns the config as indented JSON with secrets redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Server.AdminToken != "" {
		safe.Server.AdminToken = "[REDACTED]"
	}
	if safe.Storage.DSN != "" && safe.Storage.Driver == "postgres" {
		safe.Storage.DSN = "[REDACTED]"
	}

	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
