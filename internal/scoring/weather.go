// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package scoring

import (
	"github.com/jonboulle/clockwork"

	"github.com/rcalloway/harbinger/internal/models"
)

// WeatherScorer applies the rule-based rainfall ladder.
//
// Rules are additive with tiered thresholds: heavy short-term rain
// dominates, sustained and forecast rain add, and a recent-anomaly
// z-score tops up. The sum is clamped to 1.0.
type WeatherScorer struct {
	clock clockwork.Clock
}

var _ Scorer = (*WeatherScorer)(nil)

// NewWeatherScorer creates a weather scorer.
func NewWeatherScorer(clock clockwork.Clock) *WeatherScorer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &WeatherScorer{clock: clock}
}

// Domain implements Scorer.
func (s *WeatherScorer) Domain() models.Domain { return models.DomainWeather }

// Score implements Scorer.
func (s *WeatherScorer) Score(rec FeatureRecord) (models.ScoreResult, error) {
	f, ok := rec.(WeatherFeatures)
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

	switch {
	case f.Rain1h > 25:
		add("rain_1h", 0.4)
	case f.Rain1h > 15:
		add("rain_1h", 0.25)
	}

	switch {
	case f.Rain3h > 50:
		add("rain_3h", 0.3)
	case f.Rain3h > 30:
		add("rain_3h", 0.15)
	}

	if f.ForecastRain3h > 40 {
		add("forecast_rain_3h", 0.2)
	}

	if f.ZScoreRecent > 2.5 {
		add("zscore_recent", 0.15)
	}

	confidence := 0.5
	if f.Rain1h > 0 {
		confidence = 0.7
	}

	return models.ScoreResult{
		Score:       clampScore(score),
		Confidence:  confidence,
		TopFeatures: topFeatures(contribs),
		Meta:        scoreMeta(modelTypeRuleBased, s.clock),
	}, nil
}
