// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

// Package metrics provides Prometheus instrumentation for the ingest
// pipeline, scoring, fusion, persistence, and the HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingest Pipeline Metrics
	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harbinger_events_ingested_total",
			Help: "Total number of signal events accepted for processing",
		},
		[]string{"source"},
	)

	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harbinger_events_processed_total",
			Help: "Total number of signal events fully processed",
		},
		[]string{"source", "outcome"}, // "alert", "suppressed", "no_signal", "error"
	)

	EventProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harbinger_event_processing_duration_seconds",
			Help:    "End-to-end processing time per signal event",
			Buckets: prometheus.DefBuckets,
		},
	)

	PoisonedMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harbinger_poisoned_messages_total",
			Help: "Total number of messages routed to the poison queue",
		},
	)

	WALPendingEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harbinger_wal_pending_entries",
			Help: "Current number of unconfirmed write-ahead log entries",
		},
	)

	// Scoring Metrics
	ScoresComputed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harbinger_scores_computed_total",
			Help: "Total number of domain scores computed",
		},
		[]string{"domain"},
	)

	ScoreValues = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harbinger_score_values",
			Help:    "Distribution of computed domain scores",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
		[]string{"domain"},
	)

	// Fusion Metrics
	AlertsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harbinger_alerts_created_total",
			Help: "Total number of fused alerts stored",
		},
		[]string{"severity", "primary_type"},
	)

	AlertsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harbinger_alerts_suppressed_total",
			Help: "Total number of alerts suppressed as near-duplicates",
		},
	)

	AlertsRequiringApproval = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harbinger_alerts_requiring_approval_total",
			Help: "Total number of critical alerts gated on manual approval",
		},
	)

	DedupeCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harbinger_dedupe_cache_entries",
			Help: "Current number of dedupe cache entries",
		},
	)

	DedupeCacheEvictions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harbinger_dedupe_cache_evictions",
			Help: "Cumulative number of dedupe cache capacity evictions",
		},
	)

	// Notification Metrics
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harbinger_notifications_sent_total",
			Help: "Total number of alert notifications delivered",
		},
		[]string{"channel"},
	)

	NotificationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harbinger_notifications_failed_total",
			Help: "Total number of alert notification failures",
		},
		[]string{"channel"},
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harbinger_db_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harbinger_db_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harbinger_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harbinger_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harbinger_api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)

	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harbinger_rate_limit_rejections_total",
			Help: "Total number of requests rejected by the per-org rate limiter",
		},
		[]string{"org"},
	)

	// WebSocket Metrics
	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harbinger_websocket_clients",
			Help: "Current number of connected alert stream clients",
		},
	)

	WebSocketDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harbinger_websocket_dropped_clients_total",
			Help: "Total number of clients dropped for slow consumption",
		},
	)
)

// RecordScore records one scorer invocation.
func RecordScore(domain string, score float64) {
	ScoresComputed.WithLabelValues(domain).Inc()
	ScoreValues.WithLabelValues(domain).Observe(score)
}

// RecordAlertCreated records a stored alert.
func RecordAlertCreated(severity, primaryType string, requiresApproval bool) {
	AlertsCreated.WithLabelValues(severity, primaryType).Inc()
	if requiresApproval {
		AlertsRequiringApproval.Inc()
	}
}

// RecordEventProcessed records the outcome of one pipeline pass.
func RecordEventProcessed(source, outcome string, duration time.Duration) {
	EventsProcessed.WithLabelValues(source, outcome).Inc()
	EventProcessingDuration.Observe(duration.Seconds())
}

// RecordDBQuery records a database operation and its duration.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records one completed HTTP request.
func RecordAPIRequest(method, endpoint, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordNotification records a notification attempt per channel.
func RecordNotification(channel string, err error) {
	if err != nil {
		NotificationsFailed.WithLabelValues(channel).Inc()
		return
	}
	NotificationsSent.WithLabelValues(channel).Inc()
}

// UpdateDedupeCacheStats publishes dedupe cache occupancy gauges.
func UpdateDedupeCacheStats(size int, evictions int64) {
	DedupeCacheSize.Set(float64(size))
	DedupeCacheEvictions.Set(float64(evictions))
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
		return
	}
	APIActiveRequests.Dec()
}
