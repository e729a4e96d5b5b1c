// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics defines the Prometheus metrics of the session server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts API requests by route and status code.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autologout_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autologout_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		},
		[]string{"route"},
	)

	TimeLeftChecks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autologout_time_left_checks_total",
		Help: "Total number of time-left probes answered",
	})

	KeepAlives = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autologout_keep_alives_total",
		Help: "Total number of successful keep-alives",
	})

	// Logouts counts ended sessions; reason is user, inactivity or expired.
	Logouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autologout_logouts_total",
			Help: "Total number of ended sessions",
		},
		[]string{"reason"},
	)

	SessionsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autologout_sessions_opened_total",
		Help: "Total number of sessions opened",
	})

	SessionsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autologout_sessions_swept_total",
		Help: "Total number of expired sessions deleted by the sweeper",
	})

	// ActiveSessions is the stored session count, refreshed by the sweeper.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "autologout_sessions_stored",
		Help: "Number of sessions currently stored",
	})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autologout_rate_limited_total",
		Help: "Total number of requests rejected by the rate limiter",
	})

	ConfigReloads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autologout_config_reloads_total",
		Help: "Total number of applied configuration reloads",
	})
)
