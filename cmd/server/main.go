// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

// Package main is the entry point for the Harbinger server.
//
// Harbinger ingests raw signal events from weather, crime, and fraud
// feeds, scores each active domain, fuses the scores into severity-tiered
// alerts, and fans the alerts out to operators over webhooks (CAP
// payloads) and websockets.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered defaults, YAML file, HARBINGER_* env (Koanf v2)
//  2. Database: DuckDB alert, feedback, and audit storage
//  3. Write-ahead log: BadgerDB ingest durability (optional)
//  4. Scoring registry and fusion engine with the dedupe cache
//  5. NATS JetStream pipeline: embedded or external broker, Watermill router
//  6. WebSocket hub: real-time alert stream to connected clients
//  7. HTTP server: REST API behind JWT auth and per-org rate limiting
//
// All long-running components run under a suture v4 supervision tree;
// a crash in the pipeline layer restarts it with backoff while the API
// layer keeps serving from storage.
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP server drains
// in-flight requests, the pipeline closes its subscriptions, and the
// database and WAL close last.
//
// # Example Usage
//
// Development with the embedded broker and no auth:
//
//	export HARBINGER_NATS_EMBEDDED_SERVER=true
//	./harbinger
//
// Production against an external broker:
//
//	export HARBINGER_NATS_URL=nats://broker:4222
//	export HARBINGER_SECURITY_JWT_SECRET=$(openssl rand -base64 32)
//	export HARBINGER_NOTIFY_WEBHOOK_URL=https://ops.example.com/hooks/harbinger
//	./harbinger
//
// API-only node against a shared broker, with signal processing on a
// separate node; the live alert stream is fed from the fused-alert
// subject:
//
//	export HARBINGER_SERVER_MODE=api
//	export HARBINGER_NATS_URL=nats://broker:4222
//	./harbinger
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rcalloway/harbinger/internal/api"
	"github.com/rcalloway/harbinger/internal/cache"
	"github.com/rcalloway/harbinger/internal/config"
	"github.com/rcalloway/harbinger/internal/database"
	"github.com/rcalloway/harbinger/internal/eventprocessor"
	"github.com/rcalloway/harbinger/internal/fusion"
	"github.com/rcalloway/harbinger/internal/logging"
	"github.com/rcalloway/harbinger/internal/models"
	"github.com/rcalloway/harbinger/internal/notify"
	"github.com/rcalloway/harbinger/internal/scoring"
	"github.com/rcalloway/harbinger/internal/supervisor"
	"github.com/rcalloway/harbinger/internal/supervisor/services"
	"github.com/rcalloway/harbinger/internal/wal"
	ws "github.com/rcalloway/harbinger/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	apiOnly := cfg.Server.Mode == config.ModeAPI

	logging.Info().
		Str("mode", cfg.Server.Mode).
		Str("db_path", cfg.Database.Path).
		Str("nats_url", cfg.NATS.URL).
		Bool("embedded_broker", cfg.NATS.EmbeddedServer).
		Bool("wal_enabled", cfg.WAL.Enabled).
		Bool("auth_enabled", cfg.Security.JWTSecret != "").
		Msg("Configuration loaded")

	if cfg.Security.JWTSecret == "" {
		logging.Warn().Msg("JWT secret not configured; API runs unauthenticated (dev mode)")
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	var eventLog *wal.BadgerWAL
	switch {
	case cfg.WAL.Enabled && apiOnly:
		// WAL entries are confirmed by the processing node, which owns
		// a different log. A local WAL would grow without bound.
		logging.Warn().Msg("Write-ahead log not used in api mode; ingest durability relies on the broker")
	case cfg.WAL.Enabled:
		eventLog, err = wal.Open(wal.Config{
			Path:       cfg.WAL.Path,
			SyncWrites: cfg.WAL.SyncMode,
		})
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to open write-ahead log")
		}
		defer func() {
			if err := eventLog.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing write-ahead log")
			}
		}()
	default:
		logging.Warn().Msg("Write-ahead log disabled; unprocessed events are lost on crash")
	}

	clock := clockwork.NewRealClock()
	registry := scoring.NewRegistry(clock)
	hub := ws.NewHub()

	// In api mode the processing side (scoring, fusion, notification)
	// lives in another process; this binary only publishes and serves.
	var processor *eventprocessor.Processor
	if !apiOnly {
		dedupe := cache.NewDedupeCache(cache.Options{
			ShardCount:       cfg.Dedupe.ShardCount,
			PerShardCapacity: cfg.Dedupe.PerShardCapacity,
			SweepInterval:    cfg.Dedupe.SweepInterval,
			MaxEntryAge:      2 * cfg.Fusion.DedupeWindow(),
		})
		defer dedupe.Close()

		engine := fusion.NewEngine(fusionConfig(cfg.Fusion), dedupe, clock)

		notifiers := []notify.Notifier{notify.NewLogNotifier()}
		if cfg.Notify.WebhookURL != "" {
			notifiers = append(notifiers, notify.NewWebhookNotifier(cfg.Notify, clock))
			logging.Info().Str("url", cfg.Notify.WebhookURL).Msg("Webhook notifier enabled")
		}
		dispatcher := notify.NewDispatcher(notifiers...)

		processor, err = eventprocessor.NewProcessor(eventprocessor.ProcessorDeps{
			Registry:    registry,
			Engine:      engine,
			Store:       db,
			WAL:         walOrNil(eventLog),
			Notifier:    dispatcher,
			Broadcaster: hub,
			Clock:       clock,
		})
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to build event processor")
		}
	}

	pipeline, err := eventprocessor.NewPipeline(cfg.NATS, processor)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize NATS pipeline")
	}
	defer func() {
		if err := pipeline.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing pipeline")
		}
	}()

	// Without an in-process processor the live stream is fed from the
	// fused-alert subject instead.
	var bridge *ws.AlertSubscriber
	if apiOnly {
		feed, err := pipeline.AlertFeed()
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to open fused-alert feed")
		}
		defer func() {
			if err := feed.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing fused-alert feed")
			}
		}()
		bridge = ws.NewAlertSubscriber(hub, feed, eventprocessor.TopicAlertsFused)
		logging.Info().Str("topic", eventprocessor.TopicAlertsFused).Msg("Alert stream bridged from broker")
	}

	ingestor := eventprocessor.NewIngestor(walOrNil(eventLog), pipeline.Publisher(), clock)

	server := api.NewServer(api.ServerDeps{
		Config:   *cfg,
		Alerts:   db,
		Feedback: db,
		Stats:    db,
		Pinger:   db,
		Ingestor: ingestor,
		Registry: registry,
		Hub:      hub,
		Pipeline: pipeline,
		Clock:    clock,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if eventLog != nil {
		tree.AddDataService(services.NewWALGCService(eventLog, 0))
	}
	tree.AddPipelineService(services.NewHubService(hub))
	tree.AddPipelineService(services.NewPipelineService(pipeline))
	if bridge != nil {
		tree.AddPipelineService(services.NewBridgeService(bridge))
	}
	tree.AddAPIService(services.NewHTTPService(httpServer, 10*time.Second))
	logging.Info().Str("addr", httpServer.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Harbinger stopped gracefully")
}

// fusionConfig maps the koanf config section onto the fusion engine's
// domain-keyed configuration.
func fusionConfig(cfg config.FusionConfig) fusion.Config {
	return fusion.Config{
		Weights: map[models.Domain]float64{
			models.DomainWeather: cfg.Weights.Weather,
			models.DomainCrime:   cfg.Weights.Crime,
			models.DomainFraud:   cfg.Weights.Fraud,
		},
		Thresholds: map[models.Severity]float64{
			models.SeverityCritical: cfg.Thresholds.Critical,
			models.SeverityWarning:  cfg.Thresholds.Warning,
			models.SeverityWatch:    cfg.Thresholds.Watch,
			models.SeverityInfo:     cfg.Thresholds.Info,
		},
		RequiredCorroboration:    cfg.RequiredCorroboration,
		AutoEscalationEnabled:    cfg.AutoEscalationEnabled,
		AutoEscalationConfidence: cfg.AutoEscalationConfidence,
		DedupeWindow:             cfg.DedupeWindow(),
	}
}

// walOrNil avoids handing collaborators a non-nil interface wrapping a
// nil *BadgerWAL.
func walOrNil(w *wal.BadgerWAL) wal.WAL {
	if w == nil {
		return nil
	}
	return w
}
