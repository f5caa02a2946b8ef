// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

//go:build integration

package eventprocessor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rcalloway/harbinger/internal/audit"
	"github.com/rcalloway/harbinger/internal/cache"
	"github.com/rcalloway/harbinger/internal/config"
	"github.com/rcalloway/harbinger/internal/fusion"
	"github.com/rcalloway/harbinger/internal/models"
	"github.com/rcalloway/harbinger/internal/scoring"
	"github.com/rcalloway/harbinger/internal/testinfra"
)

type syncedStore struct {
	mu      sync.Mutex
	alerts  []*models.AlertDraft
	entries []*audit.Entry
}

func (s *syncedStore) InsertAlert(_ context.Context, alert *models.AlertDraft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alert)
	return nil
}

func (s *syncedStore) InsertAuditEntry(_ context.Context, entry *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *syncedStore) alertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts)
}

// TestPipelineAgainstContainerBroker runs the full ingest-to-alert path
// against a real containerized nats-server instead of the embedded one.
func TestPipelineAgainstContainerBroker(t *testing.T) {
	testinfra.SkipIfNoDocker(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker, err := testinfra.NewNATSContainer(ctx)
	if err != nil {
		t.Fatalf("start nats container: %v", err)
	}
	defer testinfra.CleanupContainer(t, ctx, broker.Container)

	clock := clockwork.NewRealClock()
	dedupe := cache.NewDedupeCache(cache.Options{})
	defer dedupe.Close()

	engine := fusion.NewEngine(fusion.Config{
		Weights: map[models.Domain]float64{
			models.DomainWeather: 0.4,
			models.DomainCrime:   0.35,
			models.DomainFraud:   0.25,
		},
		Thresholds: map[models.Severity]float64{
			models.SeverityCritical: 0.85,
			models.SeverityWarning:  0.65,
			models.SeverityWatch:    0.45,
			models.SeverityInfo:     0.0,
		},
		RequiredCorroboration: 2,
		DedupeWindow:          30 * time.Minute,
	}, dedupe, clock)

	store := &syncedStore{}
	processor, err := NewProcessor(ProcessorDeps{
		Registry: scoring.NewRegistry(clock),
		Engine:   engine,
		Store:    store,
		Clock:    clock,
	})
	if err != nil {
		t.Fatalf("NewProcessor() error = %v", err)
	}

	cfg := config.NATSConfig{
		URL:              broker.URL,
		DurableName:      "harbinger-test",
		QueueGroup:       "harbinger-test",
		SubscribersCount: 1,
		RetryCount:       1,
		RetryInterval:    100 * time.Millisecond,
		CloseTimeout:     10 * time.Second,
	}
	pipeline, err := NewPipeline(cfg, processor)
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	defer pipeline.Close()

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		_ = pipeline.Run(runCtx)
	}()

	if !pipeline.Connected() {
		t.Fatal("pipeline not connected to container broker")
	}

	ingestor := NewIngestor(nil, pipeline.Publisher(), clock)
	if _, err := ingestor.Ingest(ctx, "weather", "observation", "zone-12",
		map[string]interface{}{"rain_1h": 30.0}); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	deadline := time.After(30 * time.Second)
	for store.alertCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("no alert stored within 30s")
		case <-time.After(100 * time.Millisecond):
		}
	}
}
