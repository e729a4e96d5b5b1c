// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jeranaias/autologout/internal/config"
)

// =============================================================================
// WATCHDOG AUDIT LOG
// =============================================================================

// Logout reasons recorded by the watchdog.
const (
	ReasonUser       = "user"
	ReasonInactivity = "inactivity"
	ReasonExpired    = "expired"
)

// Audit records session lifecycle events. A nil *Audit discards everything,
// which is what the server uses when use_watchdog is off.
type Audit struct {
	logger *zap.Logger
}

// NewAudit creates the watchdog logger. Without an audit_path the records go
// to fallback under the "watchdog" name.
func NewAudit(cfg config.LoggingConfig, fallback *zap.Logger) *Audit {
	if cfg.AuditPath == "" {
		if fallback == nil {
			fallback = zap.NewNop()
		}
		return &Audit{logger: fallback.Named("watchdog")}
	}

	// Audit records are always INFO, whatever the application level.
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		zapcore.AddSync(rotator(cfg, cfg.AuditPath)),
		zapcore.InfoLevel,
	)
	return &Audit{logger: zap.New(core).Named("watchdog")}
}

// NewAuditLogger wraps an existing logger.
func NewAuditLogger(logger *zap.Logger) *Audit {
	return &Audit{logger: logger}
}

// SessionOpened records a new session.
func (a *Audit) SessionOpened(userID, sessionID string, roles []string) {
	if a == nil {
		return
	}
	a.logger.Info("session opened",
		zap.String("user", userID),
		zap.String("session_id", sessionID),
		zap.Strings("roles", roles),
	)
}

// Logout records the end of a session. Inactivity logouts are recorded at
// the same level as explicit ones.
func (a *Audit) Logout(userID, sessionID, reason string) {
	if a == nil {
		return
	}
	msg := "session closed"
	if reason == ReasonInactivity || reason == ReasonExpired {
		msg = "session closed by autologout"
	}
	a.logger.Info(msg,
		zap.String("user", userID),
		zap.String("session_id", sessionID),
		zap.String("reason", reason),
	)
}

// Sync flushes buffered records.
func (a *Audit) Sync() error {
	if a == nil {
		return nil
	}
	return a.logger.Sync()
}
