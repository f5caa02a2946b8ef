// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

// Package scoring implements the per-domain risk scorers and the feature
// normalizer that feeds them.
//
// Each domain (weather, crime, fraud) has a pure, stateless scorer that
// maps a typed feature record to a ScoreResult with score and confidence
// in [0,1] plus the top contributing features. Scorers are safe to call
// concurrently; the Registry dispatches raw payloads to the right
// normalizer and scorer pair.
package scoring

import (
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rcalloway/harbinger/internal/models"
)

// Scorer produces a risk score for one domain's feature record.
// Implementations must be stateless and safe for concurrent use.
type Scorer interface {
	// Domain identifies which feature variant this scorer accepts.
	Domain() models.Domain

	// Score evaluates a feature record. Returns ErrFeatureMismatch if
	// the record belongs to a different domain.
	Score(rec FeatureRecord) (models.ScoreResult, error)
}

// ModelInfo describes one registered scoring model for the models API.
type ModelInfo struct {
	Name       string    `json:"name"`
	Version    string    `json:"version"`
	Type       string    `json:"type"`
	Status     string    `json:"status"`
	DeployedAt time.Time `json:"deployed_at"`
}

// Registry holds the normalizer and one scorer per domain.
type Registry struct {
	normalizer *Normalizer
	scorers    map[models.Domain]Scorer
	deployedAt time.Time
}

// NewRegistry creates a registry with the three built-in rule scorers.
// The clock drives scorer meta timestamps and crime-feature time defaults.
func NewRegistry(clock clockwork.Clock) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Registry{
		normalizer: NewNormalizer(clock),
		scorers: map[models.Domain]Scorer{
			models.DomainWeather: NewWeatherScorer(clock),
			models.DomainCrime:   NewCrimeScorer(clock),
			models.DomainFraud:   NewFraudScorer(clock),
		},
		deployedAt: clock.Now().UTC(),
	}
}

// Normalizer exposes the registry's feature normalizer.
func (r *Registry) Normalizer() *Normalizer {
	return r.normalizer
}

// Scorer returns the scorer for a domain, or ErrUnknownDomain.
func (r *Registry) Scorer(domain models.Domain) (Scorer, error) {
	s, ok := r.scorers[domain]
	if !ok {
		return nil, ErrUnknownDomain
	}
	return s, nil
}

// Predict normalizes a raw payload and scores it in one step. This is
// the path behind the standalone predict endpoint.
func (r *Registry) Predict(domain models.Domain, payload map[string]interface{}) (models.ScoreResult, FeatureRecord, error) {
	rec, err := r.normalizer.Normalize(domain, payload)
	if err != nil {
		return models.ScoreResult{}, nil, err
	}
	result, err := r.scorers[domain].Score(rec)
	if err != nil {
		return models.ScoreResult{}, nil, err
	}
	return result, rec, nil
}

// Models lists the registered models in canonical domain order.
func (r *Registry) Models() []ModelInfo {
	infos := make([]ModelInfo, 0, len(r.scorers))
	for _, d := range models.KnownDomains {
		s, ok := r.scorers[d]
		if !ok {
			continue
		}
		infos = append(infos, ModelInfo{
			Name:       string(d),
			Version:    "v1",
			Type:       modelType(s),
			Status:     "active",
			DeployedAt: r.deployedAt,
		})
	}
	return infos
}

func modelType(s Scorer) string {
	switch s.(type) {
	case *WeatherScorer:
		return modelTypeRuleBased
	case *CrimeScorer:
		return modelTypeWeightedEnsemble
	case *FraudScorer:
		return modelTypeIsolationForestRules
	default:
		return "unknown"
	}
}

const (
	modelTypeRuleBased            = "rule_based"
	modelTypeWeightedEnsemble     = "weighted_ensemble"
	modelTypeIsolationForestRules = "isolation_forest_rules"
)

// clampScore caps a score at 1.0. Scorer rules are additive so sums can
// exceed the unit interval.
func clampScore(s float64) float64 {
	if s > 1.0 {
		return 1.0
	}
	return s
}

// topFeatures sorts contributions descending and caps the list at five.
// The sort is stable so equal contributions keep insertion order.
func topFeatures(contribs []models.FeatureContribution) []models.FeatureContribution {
	sort.SliceStable(contribs, func(i, j int) bool {
		return contribs[i].Contribution > contribs[j].Contribution
	})
	if len(contribs) > 5 {
		contribs = contribs[:5]
	}
	return contribs
}

// scoreMeta builds the common result metadata.
func scoreMeta(modelType string, clock clockwork.Clock) map[string]string {
	return map[string]string{
		"model_type": modelType,
		"timestamp":  clock.Now().UTC().Format(time.RFC3339Nano),
	}
}
