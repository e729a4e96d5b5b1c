// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/autologout/internal/logging"
	"github.com/jeranaias/autologout/internal/metrics"
	"github.com/jeranaias/autologout/internal/session"
)

// ============================================================================
// RESPONSE TYPES
// ============================================================================

// TimeResponse is the body of time-left and keep-alive.
type TimeResponse struct {
	Time int `json:"time"`
}

// LogoutResponse tells the client where to go after logging out.
type LogoutResponse struct {
	Redirect string `json:"redirect"`
	Message  string `json:"message"`
}

// OpenSessionRequest is the body of POST /autologout/sessions.
type OpenSessionRequest struct {
	User  string   `json:"user"`
	Roles []string `json:"roles"`
}

// OpenSessionResponse is returned for a new session.
type OpenSessionResponse struct {
	ID      string `json:"id"`
	Timeout int    `json:"timeout"`
}

// WhoAmIResponse describes the caller's session.
type WhoAmIResponse struct {
	SessionID string   `json:"session_id"`
	User      string   `json:"user"`
	Roles     []string `json:"roles"`
}

// HealthResponse is the liveness response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ============================================================================
// SESSION ENDPOINTS
// ============================================================================

// handleTimeLeft answers GET /autologout/time-left. Probing is not activity.
func (s *Server) handleTimeLeft(w http.ResponseWriter, r *http.Request) {
	left, err := s.manager.TimeLeft(r.Context(), sessionID(r))
	if err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	metrics.TimeLeftChecks.Inc()
	writeJSON(w, http.StatusOK, TimeResponse{Time: ceilSeconds(left)})
}

// handleKeepAlive answers POST /autologout/keep-alive.
func (s *Server) handleKeepAlive(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Touch(r.Context(), sessionID(r))
	if err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	metrics.KeepAlives.Inc()
	writeJSON(w, http.StatusOK, TimeResponse{Time: int(sess.Timeout / time.Second)})
}

// handleLogout answers POST /autologout/logout. The reason query parameter
// is "inactivity" (the default) or "user".
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	reason := logging.ReasonInactivity
	if r.URL.Query().Get("reason") == logging.ReasonUser {
		reason = logging.ReasonUser
	}

	sess, err := s.manager.Terminate(r.Context(), sessionID(r))
	if err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	metrics.Logouts.WithLabelValues(reason).Inc()
	s.auditLogout(sess, reason)

	policy := s.config.Current().Autologout
	writeJSON(w, http.StatusOK, LogoutResponse{
		Redirect: policy.RedirectURL,
		Message:  policy.InactivityMessage,
	})
}

// handleAltLogout logs out by navigation. It lands on the redirect page
// even when the session has already expired.
func (s *Server) handleAltLogout(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Terminate(r.Context(), sessionID(r))
	switch {
	case err == nil:
		metrics.Logouts.WithLabelValues(logging.ReasonInactivity).Inc()
		s.auditLogout(sess, logging.ReasonInactivity)
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrExpired):
	default:
		s.writeSessionError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	http.Redirect(w, r, s.config.Current().Autologout.RedirectURL, http.StatusSeeOther)
}

// handleSettings answers GET /autologout/settings?path=/page. A session
// keeps the timeout it was opened with, so a config reload changes the
// messages and flags but not a live session's countdown.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Lookup(r.Context(), sessionID(r))
	if err != nil {
		s.writeSessionError(w, r, err)
		return
	}

	page := r.URL.Query().Get("path")
	if page == "" {
		page = "/"
	}
	policy := s.config.Current().Autologout.Resolve(sess.Roles, page)
	policy.TimeoutSecs = int(sess.Timeout / time.Second)
	policy.PaddingSecs = int(sess.Padding / time.Second)
	if sess.Timeout <= 0 {
		policy.Enabled = false
	}
	writeJSON(w, http.StatusOK, policy)
}

// handleWhoAmI is an ordinary application page: it counts as activity.
func (s *Server) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Touch(r.Context(), sessionID(r))
	if err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, WhoAmIResponse{
		SessionID: sess.ID,
		User:      sess.UserID,
		Roles:     sess.Roles,
	})
}

// ============================================================================
// ADMIN ENDPOINTS
// ============================================================================

// handleOpenSession answers POST /autologout/sessions.
func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req OpenSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.User == "" {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}

	policy := s.config.Current().Autologout
	timeout := time.Duration(policy.UserTimeout(req.Roles)) * time.Second
	padding := time.Duration(policy.PaddingSecs) * time.Second

	sess, err := s.manager.Open(r.Context(), req.User, req.Roles, timeout, padding)
	if err != nil {
		s.logger.Error("open session failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	metrics.SessionsOpened.Inc()
	if policy.UseWatchdog {
		s.audit.SessionOpened(sess.UserID, sess.ID, sess.Roles)
	}

	writeJSON(w, http.StatusCreated, OpenSessionResponse{
		ID:      sess.ID,
		Timeout: int(timeout / time.Second),
	})
}

// handleHealth answers GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{Status: "ok", Version: Version}
	if _, err := s.manager.Count(r.Context()); err != nil {
		s.logger.Warn("health check: store unavailable", zap.Error(err))
		health.Status = "degraded"
		writeJSON(w, http.StatusServiceUnavailable, health)
		return
	}
	writeJSON(w, http.StatusOK, health)
}

// ============================================================================
// HELPERS
// ============================================================================

// writeSessionError maps a session failure to a response. A missing or
// dead session is 403, which clients treat as "already logged out".
func (s *Server) writeSessionError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrExpired) {
		writeError(w, http.StatusForbidden, "session expired")
		return
	}
	s.logger.Error("session request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal error")
}

// ceilSeconds rounds up so a client is never told 0 while idle time remains.
func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"code":    status,
		},
	})
}
