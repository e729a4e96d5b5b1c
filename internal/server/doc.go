// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server is the HTTP front of the session authority.
//
// # Endpoints
//
//   - GET  /autologout/time-left  - Seconds until the session warns; not activity
//   - POST /autologout/keep-alive - Reset the idle clock
//   - POST /autologout/logout     - End the session
//   - GET  /autologout/logout/alt - End the session and 303 to the redirect page
//   - GET  /autologout/settings   - Policy for this session on ?path=
//   - POST /autologout/sessions   - Open a session (admin bearer token)
//   - GET  /whoami                - Sample application page; counts as activity
//   - GET  /healthz               - Liveness
//   - GET  /metrics               - Prometheus
//
// The session travels in the X-Session-Id header or the autologout_session
// cookie. Unknown, terminated and expired sessions all answer 403.
//
// # Usage
//
//	mgr := session.NewManager(store)
//	srv := server.New(watcher, mgr, server.WithLogger(logger))
//	g.Go(func() error { return srv.Run(ctx) })
//	g.Go(func() error { return srv.RunSweeper(ctx) })
package server
