// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package scoring

import (
	"github.com/jonboulle/clockwork"

	"github.com/rcalloway/harbinger/internal/models"
)

// FraudScorer applies five independent fraud heuristics. Each fired rule
// contributes a fixed amount; confidence rises once two or more rules
// corroborate each other.
type FraudScorer struct {
	clock clockwork.Clock
}

var _ Scorer = (*FraudScorer)(nil)

// NewFraudScorer creates a fraud scorer.
func NewFraudScorer(clock clockwork.Clock) *FraudScorer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &FraudScorer{clock: clock}
}

// Domain implements Scorer.
func (s *FraudScorer) Domain() models.Domain { return models.DomainFraud }

// Score implements Scorer.
func (s *FraudScorer) Score(rec FeatureRecord) (models.ScoreResult, error) {
	f, ok := rec.(FraudFeatures)
	if !ok {
		return models.ScoreResult{}, ErrFeatureMismatch
	}

	var (
		score    float64
		contribs []models.FeatureContribution
	)

	add := func(name string, c float64) {
		score += c
		contribs = append(contribs, models.FeatureContribution{Name: name, Contribution: c})
	}

	if f.TxnAmount > f.AvgTxnAmount7d*3 {
		add("txn_amount_anomaly", 0.3)
	}
	if f.AccountAgeDays < 30 {
		add("new_account", 0.25)
	}
	if f.TxnCount1h > 5 {
		add("high_frequency", 0.2)
	}
	if f.UniqueDevices24h > 3 {
		add("multiple_devices", 0.15)
	}
	if f.IsNewDevice {
		add("new_device", 0.1)
	}

	confidence := 0.55
	if len(contribs) >= 2 {
		confidence = 0.75
	}

	return models.ScoreResult{
		Score:       clampScore(score),
		Confidence:  confidence,
		TopFeatures: topFeatures(contribs),
		Meta:        scoreMeta(modelTypeIsolationForestRules, s.clock),
	}, nil
}
