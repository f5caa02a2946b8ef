// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package scoring

import (
	"github.com/jonboulle/clockwork"

	"github.com/rcalloway/harbinger/internal/models"
)

// Crime scoring is a fixed-weight linear ensemble over a normalized
// feature vector. Element order is significant and mirrors the trained
// model's input layout.
var (
	crimeScales  = [7]float64{10, 30, 100, 24, 7, 1, 20}
	crimeWeights = [7]float64{0.35, 0.25, 0.15, 0.05, 0.05, 0.10, 0.05}
)

// crimeScaleEps keeps the normalization division well-defined for a
// zero scale.
const crimeScaleEps = 1e-6

// CrimeScorer applies the weighted-ensemble crime model.
type CrimeScorer struct {
	clock clockwork.Clock
}

var _ Scorer = (*CrimeScorer)(nil)

// NewCrimeScorer creates a crime scorer.
func NewCrimeScorer(clock clockwork.Clock) *CrimeScorer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CrimeScorer{clock: clock}
}

// Domain implements Scorer.
func (s *CrimeScorer) Domain() models.Domain { return models.DomainCrime }

// Score implements Scorer.
func (s *CrimeScorer) Score(rec FeatureRecord) (models.ScoreResult, error) {
	f, ok := rec.(CrimeFeatures)
	if !ok {
		return models.ScoreResult{}, ErrFeatureMismatch
	}

	vector := [7]float64{
		f.IncidentsLast1h,
		f.IncidentsLast3h,
		f.IncidentsLast24h,
		f.HourOfDay,
		f.Weekday,
		f.KDEDensity,
		f.NeighborIncidents,
	}

	var normalized [7]float64
	var score float64
	for i, v := range vector {
		n := v / (crimeScales[i] + crimeScaleEps)
		if n < 0 {
			n = 0
		} else if n > 1 {
			n = 1
		}
		normalized[i] = n
		score += n * crimeWeights[i]
	}

	confidence := 0.6
	if f.IncidentsLast1h > 0 {
		confidence = 0.8
	}

	// Time-of-day and weekday terms count toward the score but are not
	// reported as contributions.
	contribs := []models.FeatureContribution{
		{Name: "incidents_last_1h", Contribution: normalized[0] * crimeWeights[0]},
		{Name: "incidents_last_3h", Contribution: normalized[1] * crimeWeights[1]},
		{Name: "kde_density", Contribution: normalized[5] * crimeWeights[5]},
		{Name: "incidents_last_24h", Contribution: normalized[2] * crimeWeights[2]},
		{Name: "neighbor_incidents", Contribution: normalized[6] * crimeWeights[6]},
	}

	return models.ScoreResult{
		Score:       clampScore(score),
		Confidence:  confidence,
		TopFeatures: topFeatures(contribs),
		Meta:        scoreMeta(modelTypeWeightedEnsemble, s.clock),
	}, nil
}
