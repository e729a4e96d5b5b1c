// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jeranaias/autologout/internal/config"
	"github.com/jeranaias/autologout/internal/logging"
	"github.com/jeranaias/autologout/internal/metrics"
	"github.com/jeranaias/autologout/internal/session"
)

const testToken = "secret-token"

type fakeNow struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeNow) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeNow) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

type harness struct {
	srv     *Server
	mgr     *session.Manager
	clock   *fakeNow
	cfg     *config.Config
	expired []string
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.AdminToken = testToken
	cfg.Server.RateLimitPerSec = 0
	cfg.Autologout.TimeoutSecs = 60
	cfg.Autologout.PaddingSecs = 10
	return cfg
}

func newHarness(t *testing.T, cfg *config.Config, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		clock: &fakeNow{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)},
		cfg:   cfg,
	}
	h.mgr = session.NewManager(session.NewMemoryStore(),
		session.WithNow(h.clock.Now),
		session.WithExpireHook(func(s *session.Session) {
			h.expired = append(h.expired, s.ID)
			h.srv.SessionExpired(s)
		}),
	)
	h.srv = New(StaticConfig{Config: cfg}, h.mgr, opts...)
	return h
}

func (h *harness) do(t *testing.T, method, path, sid string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if sid != "" {
		req.Header.Set(SessionHeader, sid)
	}
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (h *harness) open(t *testing.T, user string, roles ...string) string {
	t.Helper()
	body, err := json.Marshal(OpenSessionRequest{User: user, Roles: roles})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/autologout/sessions", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp OpenSessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.ID
}

func timeOf(t *testing.T, rec *httptest.ResponseRecorder) int {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp TimeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Time
}

// =============================================================================
// SESSION ENDPOINT TESTS
// =============================================================================

func TestTimeLeft_DoesNotCountAsActivity(t *testing.T) {
	h := newHarness(t, testConfig())
	sid := h.open(t, "alice")

	h.clock.Advance(20 * time.Second)
	assert.Equal(t, 40, timeOf(t, h.do(t, http.MethodGet, "/autologout/time-left", sid, nil)))

	h.clock.Advance(20 * time.Second)
	assert.Equal(t, 20, timeOf(t, h.do(t, http.MethodGet, "/autologout/time-left", sid, nil)))
}

func TestKeepAlive_ResetsIdleClock(t *testing.T) {
	h := newHarness(t, testConfig())
	sid := h.open(t, "alice")

	h.clock.Advance(50 * time.Second)
	assert.Equal(t, 60, timeOf(t, h.do(t, http.MethodPost, "/autologout/keep-alive", sid, nil)))
	assert.Equal(t, 60, timeOf(t, h.do(t, http.MethodGet, "/autologout/time-left", sid, nil)))
}

func TestWhoAmI_CountsAsActivity(t *testing.T) {
	h := newHarness(t, testConfig())
	sid := h.open(t, "alice", "editor")

	h.clock.Advance(30 * time.Second)
	rec := h.do(t, http.MethodGet, "/whoami", sid, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var who WhoAmIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&who))
	assert.Equal(t, "alice", who.User)
	assert.Equal(t, []string{"editor"}, who.Roles)

	assert.Equal(t, 60, timeOf(t, h.do(t, http.MethodGet, "/autologout/time-left", sid, nil)))
}

func TestTimeLeft_ZeroDuringPaddingThen403(t *testing.T) {
	h := newHarness(t, testConfig())
	sid := h.open(t, "alice")

	h.clock.Advance(65 * time.Second)
	assert.Equal(t, 0, timeOf(t, h.do(t, http.MethodGet, "/autologout/time-left", sid, nil)))

	h.clock.Advance(5 * time.Second)
	rec := h.do(t, http.MethodGet, "/autologout/time-left", sid, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, []string{sid}, h.expired)

	rec = h.do(t, http.MethodPost, "/autologout/keep-alive", sid, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "an expired session cannot be revived")
}

func TestTimeLeft_RoundsUpPartialSeconds(t *testing.T) {
	h := newHarness(t, testConfig())
	sid := h.open(t, "alice")

	h.clock.Advance(14500 * time.Millisecond)
	assert.Equal(t, 46, timeOf(t, h.do(t, http.MethodGet, "/autologout/time-left", sid, nil)))

	// 59.5s idle: the warning is not due yet.
	h.clock.Advance(45 * time.Second)
	assert.Equal(t, 1, timeOf(t, h.do(t, http.MethodGet, "/autologout/time-left", sid, nil)))

	h.clock.Advance(500 * time.Millisecond)
	assert.Equal(t, 0, timeOf(t, h.do(t, http.MethodGet, "/autologout/time-left", sid, nil)))
}

func TestCeilSeconds(t *testing.T) {
	testCases := []struct {
		d    time.Duration
		want int
	}{
		{-time.Second, 0},
		{0, 0},
		{time.Nanosecond, 1},
		{500 * time.Millisecond, 1},
		{time.Second, 1},
		{time.Second + time.Nanosecond, 2},
		{45 * time.Second, 45},
	}
	for _, tc := range testCases {
		if got := ceilSeconds(tc.d); got != tc.want {
			t.Errorf("ceilSeconds(%v) = %d, want %d", tc.d, got, tc.want)
		}
	}
}

func TestSession_MissingOrUnknown(t *testing.T) {
	h := newHarness(t, testConfig())

	assert.Equal(t, http.StatusForbidden, h.do(t, http.MethodGet, "/autologout/time-left", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, h.do(t, http.MethodGet, "/autologout/time-left", "nope", nil).Code)
	assert.Equal(t, http.StatusForbidden, h.do(t, http.MethodPost, "/autologout/logout", "nope", nil).Code)
}

func TestSession_CookieFallback(t *testing.T) {
	h := newHarness(t, testConfig())
	sid := h.open(t, "alice")

	req := httptest.NewRequest(http.MethodGet, "/autologout/time-left", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: sid})
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, 60, timeOf(t, rec))
}

func TestLogout_TwiceIs403(t *testing.T) {
	h := newHarness(t, testConfig())
	sid := h.open(t, "alice")

	rec := h.do(t, http.MethodPost, "/autologout/logout", sid, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp LogoutResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "/user/login", resp.Redirect)
	assert.Equal(t, h.cfg.Autologout.InactivityMessage, resp.Message)

	assert.Equal(t, http.StatusForbidden, h.do(t, http.MethodPost, "/autologout/logout", sid, nil).Code)
	assert.Equal(t, http.StatusForbidden, h.do(t, http.MethodGet, "/autologout/time-left", sid, nil).Code)
	assert.Empty(t, h.expired, "explicit logout is not an expiry")
}

func TestLogout_CountsReason(t *testing.T) {
	h := newHarness(t, testConfig())
	before := testutil.ToFloat64(metrics.Logouts.WithLabelValues(logging.ReasonUser))

	sid := h.open(t, "alice")
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/autologout/logout?reason=user", sid, nil).Code)

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.Logouts.WithLabelValues(logging.ReasonUser)))
}

func TestAltLogout_Redirects(t *testing.T) {
	h := newHarness(t, testConfig())
	sid := h.open(t, "alice")

	for i := 0; i < 2; i++ {
		rec := h.do(t, http.MethodGet, config.AltLogoutPath, sid, nil)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/user/login", rec.Header().Get("Location"))
	}
	assert.Equal(t, http.StatusForbidden, h.do(t, http.MethodGet, "/autologout/time-left", sid, nil).Code)
}

func TestMethodsAreEnforced(t *testing.T) {
	h := newHarness(t, testConfig())
	sid := h.open(t, "alice")

	assert.Equal(t, http.StatusMethodNotAllowed, h.do(t, http.MethodGet, "/autologout/keep-alive", sid, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/nowhere", sid, nil).Code)
}

// =============================================================================
// SETTINGS TESTS
// =============================================================================

func settingsOf(t *testing.T, h *harness, sid, page string) config.PagePolicy {
	t.Helper()
	rec := h.do(t, http.MethodGet, "/autologout/settings?path="+page, sid, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var p config.PagePolicy
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	return p
}

func TestSettings(t *testing.T) {
	cfg := testConfig()
	cfg.Autologout.RefreshOnlyPaths = []string{"/node/*/edit"}
	cfg.Autologout.UseAltLogoutMethod = true
	h := newHarness(t, cfg)
	sid := h.open(t, "alice")

	p := settingsOf(t, h, sid, "/node/1")
	assert.True(t, p.Enabled)
	assert.Equal(t, 60, p.TimeoutSecs)
	assert.Equal(t, 10, p.PaddingSecs)
	assert.False(t, p.RefreshOnly)
	assert.Equal(t, config.AltLogoutPath, p.AltLogoutURL)

	assert.True(t, settingsOf(t, h, sid, "/node/1/edit").RefreshOnly)
	assert.False(t, settingsOf(t, h, sid, "/admin/config").Enabled, "admin pages are exempt")
}

func TestSettings_EnforceAdmin(t *testing.T) {
	cfg := testConfig()
	cfg.Autologout.EnforceAdmin = true
	h := newHarness(t, cfg)
	sid := h.open(t, "alice")

	assert.True(t, settingsOf(t, h, sid, "/admin").Enabled)
}

func TestSettings_SessionKeepsItsTimeout(t *testing.T) {
	cfg := testConfig()
	h := newHarness(t, cfg)
	sid := h.open(t, "alice")

	cfg.Autologout.TimeoutSecs = 900
	cfg.Autologout.Message = "changed"
	p := settingsOf(t, h, sid, "/")
	assert.Equal(t, 60, p.TimeoutSecs)
	assert.Equal(t, "changed", p.Message)
}

// =============================================================================
// ADMIN TESTS
// =============================================================================

func TestOpenSession_Auth(t *testing.T) {
	h := newHarness(t, testConfig())
	body := strings.NewReader(`{"user":"alice"}`)

	req := httptest.NewRequest(http.MethodPost, "/autologout/sessions", body)
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/autologout/sessions", strings.NewReader(`{"user":"alice"}`))
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOpenSession_DisabledWithoutToken(t *testing.T) {
	cfg := testConfig()
	cfg.Server.AdminToken = ""
	h := newHarness(t, cfg)

	req := httptest.NewRequest(http.MethodPost, "/autologout/sessions", strings.NewReader(`{"user":"alice"}`))
	req.Header.Set("Authorization", "Bearer ")
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOpenSession_BadBody(t *testing.T) {
	h := newHarness(t, testConfig())
	for _, body := range []string{`not json`, `{"roles":["a"]}`} {
		req := httptest.NewRequest(http.MethodPost, "/autologout/sessions", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+testToken)
		rec := httptest.NewRecorder()
		h.srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestOpenSession_RoleTimeouts(t *testing.T) {
	cfg := testConfig()
	cfg.Autologout.RoleLogout = true
	cfg.Autologout.Roles = map[string]config.RoleConfig{
		"editor": {Enabled: true, TimeoutSecs: 600},
		"viewer": {Enabled: true, TimeoutSecs: 300},
		"admin":  {Enabled: true, TimeoutSecs: 0},
	}
	h := newHarness(t, cfg)

	editor := h.open(t, "e", "editor")
	assert.Equal(t, 600, timeOf(t, h.do(t, http.MethodGet, "/autologout/time-left", editor, nil)))

	both := h.open(t, "b", "editor", "viewer")
	assert.Equal(t, 300, timeOf(t, h.do(t, http.MethodGet, "/autologout/time-left", both, nil)), "lowest wins")

	admin := h.open(t, "a", "admin", "editor")
	assert.Equal(t, int(session.NeverExpires/time.Second),
		timeOf(t, h.do(t, http.MethodGet, "/autologout/time-left", admin, nil)))
	assert.False(t, settingsOf(t, h, admin, "/").Enabled, "0 disables autologout")
}

// =============================================================================
// MIDDLEWARE TESTS
// =============================================================================

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Server.RateLimitPerSec = 0.001
	cfg.Server.RateLimitBurst = 2
	h := newHarness(t, cfg)
	sid := h.open(t, "alice")

	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/autologout/time-left", sid, nil).Code)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/autologout/time-left", sid, nil).Code)
	rec := h.do(t, http.MethodGet, "/autologout/time-left", sid, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	other := h.open(t, "bob")
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/autologout/time-left", other, nil).Code,
		"buckets are per session")
}

func TestRateLimiter_DisabledAndPrune(t *testing.T) {
	off := NewRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		assert.True(t, off.Allow("k"))
	}
	assert.Equal(t, 0, off.Len())

	rl := NewRateLimiter(1, 1)
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.Equal(t, 1, rl.Len())
	assert.Equal(t, 0, rl.Prune(time.Now()))
	assert.Equal(t, 1, rl.Prune(time.Now().Add(limiterIdleTTL+time.Second)))
	assert.Equal(t, 0, rl.Len())
}

func TestSecurityHeaders(t *testing.T) {
	h := newHarness(t, testConfig())
	rec := h.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")
}

func TestCORS(t *testing.T) {
	cfg := testConfig()
	cfg.Server.CORSOrigins = []string{"https://app.example.com"}
	h := newHarness(t, cfg)

	req := httptest.NewRequest(http.MethodOptions, "/autologout/time-left", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", strings.ToLower(SessionHeader))
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/autologout/time-left", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec = httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	h := newHarness(t, testConfig(), WithLogger(zap.New(core)))

	handler := h.srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "boom", logs.All()[0].ContextMap()["error"])
}

func TestValidateBearerToken(t *testing.T) {
	assert.True(t, ValidateBearerToken("abc", "abc"))
	assert.False(t, ValidateBearerToken("abc", "abd"))
	assert.False(t, ValidateBearerToken("", ""))
	assert.False(t, ValidateBearerToken("abc", ""))
}

// =============================================================================
// WATCHDOG TESTS
// =============================================================================

func TestWatchdog(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	cfg := testConfig()
	cfg.Autologout.UseWatchdog = true
	h := newHarness(t, cfg, WithAudit(logging.NewAuditLogger(zap.New(core))))

	sid := h.open(t, "alice")
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/autologout/logout", sid, nil).Code)

	idle := h.open(t, "bob")
	h.clock.Advance(2 * time.Minute)
	require.Equal(t, http.StatusForbidden, h.do(t, http.MethodGet, "/autologout/time-left", idle, nil).Code)

	var reasons []string
	for _, e := range logs.FilterMessageSnippet("session closed").All() {
		reasons = append(reasons, e.ContextMap()["reason"].(string))
	}
	assert.Equal(t, []string{logging.ReasonInactivity, logging.ReasonExpired}, reasons)
	assert.Equal(t, 2, logs.FilterMessage("session opened").Len())
}

func TestWatchdog_Off(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := newHarness(t, testConfig(), WithAudit(logging.NewAuditLogger(zap.New(core))))

	sid := h.open(t, "alice")
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/autologout/logout", sid, nil).Code)
	assert.Zero(t, logs.Len())
}

// =============================================================================
// LIFECYCLE TESTS
// =============================================================================

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, testConfig())
	sid := h.open(t, "alice")
	h.do(t, http.MethodPost, "/autologout/keep-alive", sid, nil)

	rec := h.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "autologout_keep_alives_total")
	assert.Contains(t, rec.Body.String(), `route="/autologout/keep-alive"`)
}

func TestSweep(t *testing.T) {
	h := newHarness(t, testConfig())
	h.open(t, "alice")
	h.open(t, "bob")

	h.clock.Advance(2 * time.Minute)
	h.open(t, "carol")
	h.srv.sweep(context.Background())

	n, err := h.mgr.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ActiveSessions))
}

func TestRunSweeperStops(t *testing.T) {
	h := newHarness(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.srv.RunSweeper(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	h := newHarness(t, testConfig())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.srv.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout):
		t.Fatal("server did not stop")
	}
}
