// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gateway is the HTTP client of the session server.
//
// Client implements autologout.Gateway. A 403 from the server becomes
// autologout.ErrAuthExpired; any other failure (refused connection, timeout,
// unexpected status, undecodable body) becomes autologout.ErrUnreachable.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jeranaias/autologout/internal/autologout"
	"github.com/jeranaias/autologout/internal/config"
	"github.com/jeranaias/autologout/internal/server"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// RequestError describes a failed call. It unwraps to ErrAuthExpired or
// ErrUnreachable.
type RequestError struct {
	Op         string
	StatusCode int // 0 when no response arrived
	Cause      error
	Detail     error
}

func (e *RequestError) Error() string {
	msg := e.Op + ": " + e.Cause.Error()
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Detail != nil {
		msg += ": " + e.Detail.Error()
	}
	return msg
}

func (e *RequestError) Unwrap() []error {
	if e.Detail != nil {
		return []error{e.Cause, e.Detail}
	}
	return []error{e.Cause}
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the client.
type ClientConfig struct {
	// BaseURL is the server root, e.g. "http://127.0.0.1:8787".
	BaseURL string

	// SessionID is sent in the X-Session-Id header.
	SessionID string

	// AdminToken authorizes OpenSession.
	AdminToken string

	// Timeout bounds every request (default: 10s). The controller applies
	// its own per-call deadline on top.
	Timeout time.Duration

	// HTTPClient replaces the default client.
	HTTPClient *http.Client
}

// FromConfig builds a ClientConfig from the client section.
func FromConfig(cfg *config.Config) *ClientConfig {
	return &ClientConfig{
		BaseURL:    cfg.Client.BaseURL,
		SessionID:  cfg.Client.SessionID,
		AdminToken: cfg.Server.AdminToken,
		Timeout:    time.Duration(cfg.Client.RequestTimeoutSecs) * time.Second,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to one session on one server. It is safe for concurrent use.
type Client struct {
	base       *url.URL
	sessionID  string
	adminToken string
	httpClient *http.Client
}

// NewClient validates cfg and creates a client.
func NewClient(cfg *ClientConfig) (*Client, error) {
	if cfg == nil || cfg.BaseURL == "" {
		return nil, errors.New("gateway: base url is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("gateway: invalid base url %q", cfg.BaseURL)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{
			Timeout: timeout,
			// A redirect from the API means the session is gone.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}

	return &Client{
		base:       base,
		sessionID:  cfg.SessionID,
		adminToken: cfg.AdminToken,
		httpClient: hc,
	}, nil
}

// WithSession returns a copy of c bound to another session.
func (c *Client) WithSession(id string) *Client {
	cp := *c
	cp.sessionID = id
	return &cp
}

// SessionID returns the bound session.
func (c *Client) SessionID() string {
	return c.sessionID
}

// =============================================================================
// GATEWAY OPERATIONS
// =============================================================================

// TimeLeft implements autologout.Gateway.
func (c *Client) TimeLeft(ctx context.Context) (int, error) {
	var resp server.TimeResponse
	if err := c.call(ctx, "time left", http.MethodGet, "/autologout/time-left", nil, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Time, nil
}

// KeepAlive implements autologout.Gateway.
func (c *Client) KeepAlive(ctx context.Context) error {
	return c.call(ctx, "keep alive", http.MethodPost, "/autologout/keep-alive", nil, nil, nil)
}

// Logout implements autologout.Gateway. A 403 here means the session was
// already gone, which the controller treats the same as success.
func (c *Client) Logout(ctx context.Context) error {
	return c.call(ctx, "logout", http.MethodPost, "/autologout/logout", nil, nil, nil)
}

// =============================================================================
// EXTRA OPERATIONS
// =============================================================================

// Settings fetches the policy of the bound session on pagePath.
func (c *Client) Settings(ctx context.Context, pagePath string) (config.PagePolicy, error) {
	var p config.PagePolicy
	q := url.Values{"path": {pagePath}}
	err := c.call(ctx, "settings", http.MethodGet, "/autologout/settings", q, nil, &p)
	return p, err
}

// Activity loads an application page, which counts as user activity.
func (c *Client) Activity(ctx context.Context) error {
	return c.call(ctx, "activity", http.MethodGet, "/whoami", nil, nil, nil)
}

// OpenSession creates a session with the admin token. The returned client
// is not rebound; use WithSession.
func (c *Client) OpenSession(ctx context.Context, user string, roles []string) (server.OpenSessionResponse, error) {
	var resp server.OpenSessionResponse
	body := server.OpenSessionRequest{User: user, Roles: roles}
	err := c.call(ctx, "open session", http.MethodPost, "/autologout/sessions", nil, body, &resp)
	return resp, err
}

// Navigate loads a page the way a browser would and returns where the
// server sent the session next. Used for the alternate logout method, whose
// page answers with a redirect.
func (c *Client) Navigate(ctx context.Context, target string) (string, error) {
	u, err := c.base.Parse(target)
	if err != nil {
		return "", &RequestError{Op: "navigate", Cause: autologout.ErrUnreachable, Detail: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", &RequestError{Op: "navigate", Cause: autologout.ErrUnreachable, Detail: err}
	}
	if c.sessionID != "" {
		req.Header.Set(server.SessionHeader, c.sessionID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &RequestError{Op: "navigate", Cause: autologout.ErrUnreachable, Detail: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	switch {
	case resp.StatusCode >= 300 && resp.StatusCode <= 399:
		return resp.Header.Get("Location"), nil
	case resp.StatusCode == http.StatusForbidden:
		return "", &RequestError{Op: "navigate", StatusCode: resp.StatusCode, Cause: autologout.ErrAuthExpired}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", &RequestError{Op: "navigate", StatusCode: resp.StatusCode, Cause: autologout.ErrUnreachable}
	}
	return u.Path, nil
}

// URL resolves a server path, e.g. the alternate logout page.
func (c *Client) URL(p string) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + p
	return u.String()
}

// =============================================================================
// TRANSPORT
// =============================================================================

func (c *Client) call(ctx context.Context, op, method, p string, query url.Values, in, out interface{}) error {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + p
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &RequestError{Op: op, Cause: autologout.ErrUnreachable, Detail: err}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return &RequestError{Op: op, Cause: autologout.ErrUnreachable, Detail: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.sessionID != "" {
		req.Header.Set(server.SessionHeader, c.sessionID)
	}
	if c.adminToken != "" && p == "/autologout/sessions" {
		req.Header.Set("Authorization", "Bearer "+c.adminToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RequestError{Op: op, Cause: autologout.ErrUnreachable, Detail: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return &RequestError{Op: op, StatusCode: resp.StatusCode, Cause: autologout.ErrAuthExpired}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &RequestError{Op: op, StatusCode: resp.StatusCode, Cause: autologout.ErrUnreachable}
	}

	if out == nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(out); err != nil {
		return &RequestError{Op: op, StatusCode: resp.StatusCode, Cause: autologout.ErrUnreachable, Detail: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

var _ autologout.Gateway = (*Client)(nil)
