// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

// Package fusion combines per-domain scores into a single severity
// decision and emits alert drafts.
//
// The engine is pure given its inputs and injected collaborators: the
// dedupe store decides suppression, the clock supplies timestamps, and
// the configuration carries weights, thresholds, and the approval gate
// parameters. No globals, no hidden state.
package fusion

import (
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/rcalloway/harbinger/internal/models"
)

// activeScoreThreshold marks a domain as actively signaling for the
// corroboration count.
const activeScoreThreshold = 0.3

// dedupeScoreDelta is the score band within which a repeat alert for the
// same (location, domain) key counts as a duplicate.
const dedupeScoreDelta = 0.15

// Config carries the fusion parameters. Build one from the application
// configuration or start from DefaultConfig.
type Config struct {
	// Weights blend per-domain scores into the weighted score. Domains
	// absent from the map contribute nothing.
	Weights map[models.Domain]float64

	// Thresholds map severity tiers to minimum adjusted scores. Checked
	// in descending severity order with >= semantics.
	Thresholds map[models.Severity]float64

	// RequiredCorroboration is the number of actively signaling domains
	// needed before a critical alert may auto-escalate.
	RequiredCorroboration int

	// AutoEscalationEnabled gates automatic escalation of critical
	// alerts entirely.
	AutoEscalationEnabled bool

	// AutoEscalationConfidence is the minimum average confidence for
	// auto-escalation.
	AutoEscalationConfidence float64

	// DedupeWindow is how long a prior alert suppresses near-identical
	// repeats for the same (location, domain) key.
	DedupeWindow time.Duration
}

// DefaultConfig returns the stock fusion parameters.
func DefaultConfig() Config {
	return Config{
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
		RequiredCorroboration:    2,
		AutoEscalationEnabled:    true,
		AutoEscalationConfidence: 0.85,
		DedupeWindow:             30 * time.Minute,
	}
}

// Engine fuses component scores into alert drafts.
type Engine struct {
	cfg    Config
	dedupe DedupeStore
	clock  clockwork.Clock
}

// NewEngine creates a fusion engine. A nil dedupe store disables
// suppression; a nil clock falls back to the wall clock.
func NewEngine(cfg Config, dedupe DedupeStore, clock clockwork.Clock) *Engine {
	if dedupe == nil {
		dedupe = nopDedupeStore{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Engine{cfg: cfg, dedupe: dedupe, clock: clock}
}

// Fuse combines component scores and confidences into an alert draft.
// Returns nil when there is nothing to alert on: empty scores, or a
// near-duplicate suppressed by the dedupe store. A nil return is not an
// error.
func (e *Engine) Fuse(
	scores map[models.Domain]float64,
	confidences map[models.Domain]float64,
	evidence []models.Evidence,
	locationID string,
) *models.AlertDraft {
	if len(scores) == 0 {
		return nil
	}

	weighted := 0.0
	for d, s := range scores {
		weighted += s * e.cfg.Weights[d]
	}

	avgConf := 0.0
	if len(confidences) > 0 {
		for _, c := range confidences {
			avgConf += c
		}
		avgConf /= float64(len(confidences))
	}

	adjusted := weighted * avgConf
	severity := e.severityFor(adjusted)

	active := 0
	for _, s := range scores {
		if s > activeScoreThreshold {
			active++
		}
	}

	requiresApproval := severity == models.SeverityCritical &&
		(!e.cfg.AutoEscalationEnabled ||
			active < e.cfg.RequiredCorroboration ||
			avgConf < e.cfg.AutoEscalationConfidence)

	primary := primaryDomain(scores)

	if locationID != "" {
		key := dedupeKey(locationID, primary)
		if e.dedupe.CheckAndSet(key, weighted, e.cfg.DedupeWindow, dedupeScoreDelta) {
			return nil
		}
	}

	now := e.clock.Now().UTC()
	componentScores := make(map[models.Domain]float64, len(scores))
	for d, s := range scores {
		componentScores[d] = s
	}

	return &models.AlertDraft{
		ID:                uuid.New(),
		PrimaryType:       primary,
		ComponentScores:   componentScores,
		FinalScore:        weighted,
		Severity:          severity,
		LocationID:        locationID,
		Evidence:          evidence,
		RecommendedAction: Recommendation(primary, severity),
		RequiresApproval:  requiresApproval,
		Status:            models.StatusOpen,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// severityFor returns the first tier whose threshold the adjusted score
// meets, checking from critical down. Boundary values map to the higher
// tier. Info is the floor.
func (e *Engine) severityFor(adjusted float64) models.Severity {
	for _, sev := range models.SeveritiesDescending {
		threshold, ok := e.cfg.Thresholds[sev]
		if !ok {
			continue
		}
		if adjusted >= threshold {
			return sev
		}
	}
	return models.SeverityInfo
}

// primaryDomain picks the domain with the highest raw score. Iteration
// follows canonical domain order with strict greater-than replacement,
// so ties resolve to the earlier domain deterministically.
func primaryDomain(scores map[models.Domain]float64) models.Domain {
	var primary models.Domain
	best := 0.0
	found := false
	for _, d := range models.KnownDomains {
		s, ok := scores[d]
		if !ok {
			continue
		}
		if !found || s > best {
			primary = d
			best = s
			found = true
		}
	}
	return primary
}

func dedupeKey(locationID string, primary models.Domain) string {
	return locationID + "|" + string(primary)
}
