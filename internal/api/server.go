// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

// Package api is the HTTP surface: event ingest, alert workflow, model
// inspection, feedback, stats and operational endpoints, served by a chi
// router behind JWT auth and per-organization rate limiting.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rcalloway/harbinger/internal/audit"
	"github.com/rcalloway/harbinger/internal/config"
	"github.com/rcalloway/harbinger/internal/models"
	"github.com/rcalloway/harbinger/internal/scoring"
	"github.com/rcalloway/harbinger/internal/websocket"
)

// AlertStore is the alert workflow surface of the database.
type AlertStore interface {
	GetAlert(ctx context.Context, id uuid.UUID) (*models.AlertDraft, error)
	ListAlerts(ctx context.Context, filter models.AlertFilter) ([]*models.AlertDraft, error)
	AcknowledgeAlert(ctx context.Context, id uuid.UUID, notes string, now time.Time) (*models.AlertDraft, error)
	AssignAlert(ctx context.Context, id uuid.UUID, assignee string, now time.Time) (*models.AlertDraft, error)
	InsertAuditEntry(ctx context.Context, entry *audit.Entry) error
}

// FeedbackStore persists operator feedback.
type FeedbackStore interface {
	InsertFeedback(ctx context.Context, fb *models.Feedback) error
}

// StatsStore reads aggregate system counters.
type StatsStore interface {
	GetSystemStats(ctx context.Context) (*models.SystemStats, error)
}

// Pinger reports storage liveness for readiness checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ingestor accepts raw events into the pipeline.
type Ingestor interface {
	Ingest(ctx context.Context, source, eventType, locationID string, payload map[string]interface{}) (*models.SignalEvent, error)
}

// PipelineHealth reports broker connectivity for readiness checks.
type PipelineHealth interface {
	Connected() bool
}

// Server holds the HTTP handlers and their collaborators.
type Server struct {
	cfg       config.Config
	alerts    AlertStore
	feedback  FeedbackStore
	stats     StatsStore
	pinger    Pinger
	ingestor  Ingestor
	registry  *scoring.Registry
	hub       *websocket.Hub
	pipeline  PipelineHealth
	clock     clockwork.Clock
	startedAt time.Time
}

// ServerDeps collects the server's collaborators.
type ServerDeps struct {
	Config   config.Config
	Alerts   AlertStore
	Feedback FeedbackStore
	Stats    StatsStore
	Pinger   Pinger
	Ingestor Ingestor
	Registry *scoring.Registry
	Hub      *websocket.Hub
	Pipeline PipelineHealth
	Clock    clockwork.Clock
}

// NewServer wires the HTTP layer.
func NewServer(deps ServerDeps) *Server {
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Server{
		cfg:       deps.Config,
		alerts:    deps.Alerts,
		feedback:  deps.Feedback,
		stats:     deps.Stats,
		pinger:    deps.Pinger,
		ingestor:  deps.Ingestor,
		registry:  deps.Registry,
		hub:       deps.Hub,
		pipeline:  deps.Pipeline,
		clock:     clock,
		startedAt: clock.Now(),
	}
}

// Router assembles the route tree. Operational endpoints sit outside the
// authenticated group so probes and scrapers need no token.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.Recoverer)
	r.Use(CORSHandler(s.cfg.Security.CORSOrigins))
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Authenticator(s.cfg.Security.JWTSecret))
		r.Use(OrgRateLimiter(s.cfg.Security.RateLimitPerOrg))

		r.Post("/events", s.handleIngestEvent)

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", s.handleListAlerts)
			r.Get("/stream", s.handleAlertStream)
			r.Get("/{id}", s.handleGetAlert)
			r.Post("/{id}/ack", s.handleAcknowledgeAlert)
			r.Post("/{id}/assign", s.handleAssignAlert)
		})

		r.Route("/models", func(r chi.Router) {
			r.Get("/", s.handleListModels)
			r.Post("/predict", s.handlePredict)
		})

		r.Post("/feedback", s.handleSubmitFeedback)
		r.Get("/stats", s.handleGetStats)
	})

	return r
}
