// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package eventprocessor

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/jonboulle/clockwork"

	"github.com/rcalloway/harbinger/internal/audit"
	"github.com/rcalloway/harbinger/internal/fusion"
	"github.com/rcalloway/harbinger/internal/logging"
	"github.com/rcalloway/harbinger/internal/metrics"
	"github.com/rcalloway/harbinger/internal/models"
	"github.com/rcalloway/harbinger/internal/scoring"
	"github.com/rcalloway/harbinger/internal/wal"
)

// replayMaxAttempts caps startup replays per WAL entry. An entry that
// keeps failing to publish stays in the log for manual inspection but
// stops being retried.
const replayMaxAttempts = 5

// AlertStore persists fused alerts and their audit trail.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert *models.AlertDraft) error
	InsertAuditEntry(ctx context.Context, entry *audit.Entry) error
}

// AlertNotifier fans a stored alert out to notification channels.
type AlertNotifier interface {
	Dispatch(ctx context.Context, alert *models.AlertDraft)
}

// AlertBroadcaster pushes a stored alert to live stream clients.
type AlertBroadcaster interface {
	BroadcastAlert(alert *models.AlertDraft)
}

// AlertPublisher re-publishes stored alerts on the fused alert topic.
type AlertPublisher interface {
	PublishAlert(topic string, alert *models.AlertDraft) error
}

// Processor consumes raw signal events, scores the activated domains,
// fuses the scores and persists any resulting alert. It is the single
// consumer handler on the raw signal topic.
type Processor struct {
	registry    *scoring.Registry
	engine      *fusion.Engine
	store       AlertStore
	wal         wal.WAL
	notifier    AlertNotifier
	broadcaster AlertBroadcaster
	publisher   AlertPublisher
	clock       clockwork.Clock
}

// ProcessorDeps collects the processor's collaborators. WAL, notifier,
// broadcaster and publisher are optional.
type ProcessorDeps struct {
	Registry    *scoring.Registry
	Engine      *fusion.Engine
	Store       AlertStore
	WAL         wal.WAL
	Notifier    AlertNotifier
	Broadcaster AlertBroadcaster
	Publisher   AlertPublisher
	Clock       clockwork.Clock
}

// NewProcessor wires a processor. Registry, Engine and Store are required.
func NewProcessor(deps ProcessorDeps) (*Processor, error) {
	if deps.Registry == nil || deps.Engine == nil || deps.Store == nil {
		return nil, fmt.Errorf("registry, engine and store are required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Processor{
		registry:    deps.Registry,
		engine:      deps.Engine,
		store:       deps.Store,
		wal:         deps.WAL,
		notifier:    deps.Notifier,
		broadcaster: deps.Broadcaster,
		publisher:   deps.Publisher,
		clock:       clock,
	}, nil
}

// domainActivation decides which scorers run for an event: a domain is
// activated when the event source names it or the payload carries its
// marker key. Fraud events are marked by a transaction.
var domainActivation = []struct {
	domain models.Domain
	source string
	key    string
}{
	{models.DomainWeather, "weather", "weather"},
	{models.DomainCrime, "crime", "crime"},
	{models.DomainFraud, "fraud", "transaction"},
}

// ActiveDomains returns the domains a signal event activates, in
// canonical order.
func ActiveDomains(event *models.SignalEvent) []models.Domain {
	var domains []models.Domain
	for _, rule := range domainActivation {
		if event.Source == rule.source {
			domains = append(domains, rule.domain)
			continue
		}
		if _, ok := event.Payload[rule.key]; ok {
			domains = append(domains, rule.domain)
		}
	}
	return domains
}

// HandleMessage is the router handler for the raw signal topic. A nil
// return acks the message; an error triggers retry and eventually the
// poison queue.
func (p *Processor) HandleMessage(msg *message.Message) error {
	start := p.clock.Now()

	event, err := UnmarshalEvent(msg)
	if err != nil {
		metrics.RecordEventProcessed("unknown", "error", p.clock.Since(start))
		return err
	}

	ctx := logging.ContextWithCorrelationID(msg.Context(), event.EventID.String())
	outcome, err := p.Process(ctx, event)
	if err != nil {
		metrics.RecordEventProcessed(event.Source, "error", p.clock.Since(start))
		return err
	}
	metrics.RecordEventProcessed(event.Source, outcome, p.clock.Since(start))

	if walID := msg.Metadata.Get(MetadataWALID); walID != "" && p.wal != nil {
		if err := p.wal.Confirm(ctx, walID); err != nil {
			// The event is already processed; a missing WAL entry only
			// means it was confirmed earlier.
			logging.CtxWarn(ctx).Err(err).Str("wal_id", walID).Msg("WAL confirm failed")
		}
	}
	return nil
}

type domainScore struct {
	domain models.Domain
	result models.ScoreResult
	record scoring.FeatureRecord
}

// Process scores and fuses one event. The returned outcome is one of
// "alert", "suppressed" or "no_signal".
func (p *Processor) Process(ctx context.Context, event *models.SignalEvent) (string, error) {
	domains := ActiveDomains(event)
	if len(domains) == 0 {
		logging.CtxDebug(ctx).Str("source", event.Source).Msg("Event activates no domain")
		return "no_signal", nil
	}

	results := make([]domainScore, len(domains))
	var wg sync.WaitGroup
	errs := make([]error, len(domains))
	for i, domain := range domains {
		wg.Add(1)
		go func(i int, domain models.Domain) {
			defer wg.Done()
			result, record, err := p.registry.Predict(domain, event.Payload)
			if err != nil {
				errs[i] = fmt.Errorf("score %s: %w", domain, err)
				return
			}
			results[i] = domainScore{domain: domain, result: result, record: record}
		}(i, domain)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return "", err
		}
	}

	scores := make(map[models.Domain]float64, len(results))
	confidences := make(map[models.Domain]float64, len(results))
	evidence := make([]models.Evidence, 0, len(results))
	now := p.clock.Now().UTC()
	for _, r := range results {
		scores[r.domain] = r.result.Score
		confidences[r.domain] = r.result.Confidence
		metrics.RecordScore(string(r.domain), r.result.Score)

		data, err := json.Marshal(map[string]interface{}{
			"features":   r.record,
			"prediction": r.result,
		})
		if err != nil {
			return "", fmt.Errorf("marshal evidence for %s: %w", r.domain, err)
		}
		evidence = append(evidence, models.Evidence{
			Type:      string(r.domain) + "_analysis",
			Source:    event.Source,
			Timestamp: now,
			Data:      data,
		})
	}

	alert := p.engine.Fuse(scores, confidences, evidence, event.LocationID)
	if alert == nil {
		metrics.AlertsSuppressed.Inc()
		logging.CtxDebug(ctx).
			Str("location_id", event.LocationID).
			Msg("Fusion suppressed duplicate alert")
		return "suppressed", nil
	}

	if err := p.store.InsertAlert(ctx, alert); err != nil {
		return "", fmt.Errorf("persist alert: %w", err)
	}
	entry := audit.NewEntry(audit.ActionCreateAlert, alert.ID, "system",
		fmt.Sprintf("alert created from event %s", event.EventID), now)
	if err := p.store.InsertAuditEntry(ctx, entry); err != nil {
		logging.CtxWarn(ctx).Err(err).Str("alert_id", alert.ID.String()).Msg("Audit write failed")
	}

	metrics.RecordAlertCreated(string(alert.Severity), string(alert.PrimaryType), alert.RequiresApproval)
	logging.CtxInfo(ctx).
		Str("alert_id", alert.ID.String()).
		Str("severity", string(alert.Severity)).
		Str("primary_type", string(alert.PrimaryType)).
		Float64("final_score", alert.FinalScore).
		Msg("Alert created")

	if p.notifier != nil {
		p.notifier.Dispatch(ctx, alert)
	}
	if p.broadcaster != nil {
		p.broadcaster.BroadcastAlert(alert)
	}
	if p.publisher != nil {
		if err := p.publisher.PublishAlert(TopicAlertsFused, alert); err != nil {
			logging.CtxWarn(ctx).Err(err).Str("alert_id", alert.ID.String()).Msg("Fused alert publish failed")
		}
	}
	return "alert", nil
}

// ReplayPending republishes unconfirmed WAL entries onto the raw signal
// topic. Called once at startup, after the publisher is connected.
func (p *Processor) ReplayPending(ctx context.Context, w wal.WAL, pub message.Publisher) error {
	if w == nil || pub == nil {
		return nil
	}
	pending, err := w.GetPending(ctx)
	if err != nil {
		return fmt.Errorf("read pending WAL entries: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	replayed := 0
	for _, entry := range pending {
		if entry.Attempts >= replayMaxAttempts {
			logging.Warn().Str("wal_id", entry.ID).Int("attempts", entry.Attempts).Msg("Skipping WAL entry past replay attempt limit")
			continue
		}
		var event models.SignalEvent
		if err := entry.UnmarshalPayload(&event); err != nil {
			logging.Warn().Err(err).Str("wal_id", entry.ID).Msg("Skipping undecodable WAL entry")
			continue
		}
		msg, err := MarshalEvent(&event)
		if err != nil {
			logging.Warn().Err(err).Str("wal_id", entry.ID).Msg("Skipping unmarshalable WAL entry")
			continue
		}
		msg.Metadata.Set(MetadataWALID, entry.ID)
		if err := pub.Publish(TopicSignalsRaw, msg); err != nil {
			if markErr := w.MarkAttempt(ctx, entry.ID); markErr != nil {
				logging.Warn().Err(markErr).Str("wal_id", entry.ID).Msg("Could not record failed replay attempt")
			}
			return fmt.Errorf("replay WAL entry %s: %w", entry.ID, err)
		}
		replayed++
	}

	logging.Info().Int("replayed", replayed).Int("pending", len(pending)).Msg("Replayed unconfirmed WAL entries")
	return nil
}
