// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package fusion

import (
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rcalloway/harbinger/internal/models"
)

// recordingDedupe is a scripted DedupeStore for engine tests.
type recordingDedupe struct {
	suppress bool
	calls    []dedupeCall
}

type dedupeCall struct {
	key    string
	score  float64
	window time.Duration
	delta  float64
}

func (r *recordingDedupe) CheckAndSet(key string, score float64, window time.Duration, delta float64) bool {
	r.calls = append(r.calls, dedupeCall{key, score, window, delta})
	return r.suppress
}

func newTestEngine(t *testing.T, cfg Config, dedupe DedupeStore) *Engine {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC))
	return NewEngine(cfg, dedupe, clock)
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestFuseEmptyScores(t *testing.T) {
	dedupe := &recordingDedupe{}
	engine := newTestEngine(t, DefaultConfig(), dedupe)

	draft := engine.Fuse(nil, nil, nil, "L1")
	if draft != nil {
		t.Fatalf("Fuse(empty) = %+v, want nil", draft)
	}
	if len(dedupe.calls) != 0 {
		t.Errorf("dedupe consulted on empty scores: %d calls", len(dedupe.calls))
	}
}

func TestFuseSingleDomainDilution(t *testing.T) {
	engine := newTestEngine(t, DefaultConfig(), nil)

	draft := engine.Fuse(
		map[models.Domain]float64{models.DomainWeather: 0.9},
		map[models.Domain]float64{models.DomainWeather: 0.9},
		nil, "",
	)
	if draft == nil {
		t.Fatal("Fuse() = nil, want draft")
	}
	// 0.9 * 0.4 = 0.36 weighted; 0.36 * 0.9 = 0.324 adjusted, below the
	// 0.45 watch threshold.
	if !almostEqual(draft.FinalScore, 0.36) {
		t.Errorf("FinalScore = %v, want 0.36", draft.FinalScore)
	}
	if draft.Severity != models.SeverityInfo {
		t.Errorf("Severity = %v, want info", draft.Severity)
	}
	if draft.PrimaryType != models.DomainWeather {
		t.Errorf("PrimaryType = %v, want weather", draft.PrimaryType)
	}
	if draft.Status != models.StatusOpen {
		t.Errorf("Status = %v, want open", draft.Status)
	}
	if draft.RequiresApproval {
		t.Error("info severity must not require approval")
	}
}

func TestFuseSeverityBoundaries(t *testing.T) {
	cfg := DefaultConfig()
	// Single weather domain with weight 1 and confidence 1 makes
	// adjusted equal to the raw score.
	cfg.Weights = map[models.Domain]float64{models.DomainWeather: 1.0}
	engine := newTestEngine(t, cfg, nil)

	tests := []struct {
		name  string
		score float64
		want  models.Severity
	}{
		{"zero is info", 0.0, models.SeverityInfo},
		{"below watch", 0.44, models.SeverityInfo},
		{"watch boundary maps up", 0.45, models.SeverityWatch},
		{"warning boundary maps up", 0.65, models.SeverityWarning},
		{"below critical", 0.84, models.SeverityWarning},
		{"critical boundary maps up", 0.85, models.SeverityCritical},
		{"above critical", 0.99, models.SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft := engine.Fuse(
				map[models.Domain]float64{models.DomainWeather: tt.score},
				map[models.Domain]float64{models.DomainWeather: 1.0},
				nil, "",
			)
			if draft == nil {
				t.Fatal("Fuse() = nil, want draft")
			}
			if draft.Severity != tt.want {
				t.Errorf("Severity = %v, want %v (adjusted %v)", draft.Severity, tt.want, tt.score)
			}
		})
	}
}

func TestFuseNoConfidences(t *testing.T) {
	engine := newTestEngine(t, DefaultConfig(), nil)

	draft := engine.Fuse(
		map[models.Domain]float64{models.DomainCrime: 0.9},
		nil, nil, "",
	)
	if draft == nil {
		t.Fatal("Fuse() = nil, want draft")
	}
	// avgConf 0 zeroes the adjusted score.
	if draft.Severity != models.SeverityInfo {
		t.Errorf("Severity = %v, want info with zero confidence", draft.Severity)
	}
	// FinalScore stays the weighted (pre-confidence) score.
	if !almostEqual(draft.FinalScore, 0.9*0.35) {
		t.Errorf("FinalScore = %v, want %v", draft.FinalScore, 0.9*0.35)
	}
}

func TestFuseApprovalGate(t *testing.T) {
	// Weight and confidence chosen so severity lands on critical.
	baseScores := map[models.Domain]float64{
		models.DomainWeather: 0.95,
		models.DomainCrime:   0.95,
		models.DomainFraud:   0.95,
	}
	highConf := map[models.Domain]float64{
		models.DomainWeather: 0.95,
		models.DomainCrime:   0.95,
		models.DomainFraud:   0.95,
	}

	tests := []struct {
		name        string
		mutate      func(*Config) (map[models.Domain]float64, map[models.Domain]float64)
		wantApprove bool
	}{
		{
			name: "full corroboration and confidence auto-escalates",
			mutate: func(cfg *Config) (map[models.Domain]float64, map[models.Domain]float64) {
				return baseScores, highConf
			},
			wantApprove: false,
		},
		{
			name: "escalation disabled forces approval",
			mutate: func(cfg *Config) (map[models.Domain]float64, map[models.Domain]float64) {
				cfg.AutoEscalationEnabled = false
				return baseScores, highConf
			},
			wantApprove: true,
		},
		{
			name: "low corroboration forces approval",
			mutate: func(cfg *Config) (map[models.Domain]float64, map[models.Domain]float64) {
				// Only weather actively signals; weight 1 keeps it critical.
				cfg.Weights = map[models.Domain]float64{models.DomainWeather: 1.0}
				return map[models.Domain]float64{models.DomainWeather: 0.95},
					map[models.Domain]float64{models.DomainWeather: 0.95}
			},
			wantApprove: true,
		},
		{
			name: "low confidence forces approval",
			mutate: func(cfg *Config) (map[models.Domain]float64, map[models.Domain]float64) {
				// Boost weights so adjusted clears critical despite the
				// sub-0.85 confidence.
				cfg.Weights = map[models.Domain]float64{
					models.DomainWeather: 0.5,
					models.DomainCrime:   0.5,
					models.DomainFraud:   0.5,
				}
				lowConf := map[models.Domain]float64{
					models.DomainWeather: 0.8,
					models.DomainCrime:   0.8,
					models.DomainFraud:   0.8,
				}
				return baseScores, lowConf
			},
			wantApprove: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			scores, confs := tt.mutate(&cfg)
			engine := newTestEngine(t, cfg, nil)

			draft := engine.Fuse(scores, confs, nil, "")
			if draft == nil {
				t.Fatal("Fuse() = nil, want draft")
			}
			if draft.Severity != models.SeverityCritical {
				t.Fatalf("Severity = %v, want critical (test setup)", draft.Severity)
			}
			if draft.RequiresApproval != tt.wantApprove {
				t.Errorf("RequiresApproval = %v, want %v", draft.RequiresApproval, tt.wantApprove)
			}
		})
	}
}

func TestFuseNonCriticalNeverRequiresApproval(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoEscalationEnabled = false
	engine := newTestEngine(t, cfg, nil)

	draft := engine.Fuse(
		map[models.Domain]float64{models.DomainFraud: 0.5},
		map[models.Domain]float64{models.DomainFraud: 0.6},
		nil, "",
	)
	if draft == nil {
		t.Fatal("Fuse() = nil, want draft")
	}
	if draft.Severity == models.SeverityCritical {
		t.Fatalf("unexpected critical severity in setup")
	}
	if draft.RequiresApproval {
		t.Error("non-critical severity must not require approval")
	}
}

func TestFusePrimaryTieBreak(t *testing.T) {
	engine := newTestEngine(t, DefaultConfig(), nil)

	tests := []struct {
		name   string
		scores map[models.Domain]float64
		want   models.Domain
	}{
		{
			name: "highest raw score wins",
			scores: map[models.Domain]float64{
				models.DomainWeather: 0.2,
				models.DomainFraud:   0.8,
			},
			want: models.DomainFraud,
		},
		{
			name: "tie resolves to canonical order",
			scores: map[models.Domain]float64{
				models.DomainCrime: 0.5,
				models.DomainFraud: 0.5,
			},
			want: models.DomainCrime,
		},
		{
			name: "three way tie picks weather",
			scores: map[models.Domain]float64{
				models.DomainWeather: 0.5,
				models.DomainCrime:   0.5,
				models.DomainFraud:   0.5,
			},
			want: models.DomainWeather,
		},
		{
			name: "zero score single domain still primary",
			scores: map[models.Domain]float64{
				models.DomainFraud: 0.0,
			},
			want: models.DomainFraud,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft := engine.Fuse(tt.scores, map[models.Domain]float64{models.DomainWeather: 1.0}, nil, "")
			if draft == nil {
				t.Fatal("Fuse() = nil, want draft")
			}
			if draft.PrimaryType != tt.want {
				t.Errorf("PrimaryType = %v, want %v", draft.PrimaryType, tt.want)
			}
		})
	}
}

func TestFuseDedupe(t *testing.T) {
	t.Run("suppressed returns nil", func(t *testing.T) {
		dedupe := &recordingDedupe{suppress: true}
		engine := newTestEngine(t, DefaultConfig(), dedupe)

		draft := engine.Fuse(
			map[models.Domain]float64{models.DomainCrime: 0.6},
			map[models.Domain]float64{models.DomainCrime: 0.8},
			nil, "L1",
		)
		if draft != nil {
			t.Fatalf("Fuse() = %+v, want nil on suppression", draft)
		}
		if len(dedupe.calls) != 1 {
			t.Fatalf("dedupe calls = %d, want 1", len(dedupe.calls))
		}
		call := dedupe.calls[0]
		if call.key != "L1|crime" {
			t.Errorf("dedupe key = %q, want L1|crime", call.key)
		}
		// The weighted (pre-confidence) score is what gets compared.
		if !almostEqual(call.score, 0.6*0.35) {
			t.Errorf("dedupe score = %v, want weighted %v", call.score, 0.6*0.35)
		}
		if call.window != 30*time.Minute {
			t.Errorf("dedupe window = %v, want 30m", call.window)
		}
		if !almostEqual(call.delta, 0.15) {
			t.Errorf("dedupe delta = %v, want 0.15", call.delta)
		}
	})

	t.Run("no location skips dedupe", func(t *testing.T) {
		dedupe := &recordingDedupe{suppress: true}
		engine := newTestEngine(t, DefaultConfig(), dedupe)

		draft := engine.Fuse(
			map[models.Domain]float64{models.DomainCrime: 0.6},
			map[models.Domain]float64{models.DomainCrime: 0.8},
			nil, "",
		)
		if draft == nil {
			t.Fatal("Fuse() = nil, want draft without location")
		}
		if len(dedupe.calls) != 0 {
			t.Errorf("dedupe consulted without location: %d calls", len(dedupe.calls))
		}
	})
}

func TestFuseRecommendedAction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights = map[models.Domain]float64{models.DomainWeather: 1.0}
	engine := newTestEngine(t, cfg, nil)

	draft := engine.Fuse(
		map[models.Domain]float64{models.DomainWeather: 0.95},
		map[models.Domain]float64{models.DomainWeather: 1.0},
		nil, "",
	)
	if draft == nil {
		t.Fatal("Fuse() = nil, want draft")
	}
	want := "Immediate evacuation recommended. Flash flood conditions imminent."
	if draft.RecommendedAction != want {
		t.Errorf("RecommendedAction = %q, want %q", draft.RecommendedAction, want)
	}
}

func TestRecommendationFallback(t *testing.T) {
	if got := Recommendation("seismic", models.SeverityCritical); got != defaultRecommendation {
		t.Errorf("Recommendation(unknown) = %q, want fallback", got)
	}
	if got := Recommendation(models.DomainCrime, "catastrophic"); got != defaultRecommendation {
		t.Errorf("Recommendation(unknown severity) = %q, want fallback", got)
	}
}

func TestFuseEvidencePassthrough(t *testing.T) {
	engine := newTestEngine(t, DefaultConfig(), nil)

	evidence := []models.Evidence{
		{Type: "weather_analysis", Source: "weather"},
		{Type: "crime_analysis", Source: "crime"},
	}
	draft := engine.Fuse(
		map[models.Domain]float64{models.DomainWeather: 0.4, models.DomainCrime: 0.2},
		map[models.Domain]float64{models.DomainWeather: 0.7, models.DomainCrime: 0.6},
		evidence, "",
	)
	if draft == nil {
		t.Fatal("Fuse() = nil, want draft")
	}
	if len(draft.Evidence) != 2 {
		t.Fatalf("Evidence length = %d, want 2", len(draft.Evidence))
	}
	if len(draft.ComponentScores) != 2 {
		t.Fatalf("ComponentScores length = %d, want 2", len(draft.ComponentScores))
	}
	if draft.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("draft ID not assigned")
	}
	if draft.CreatedAt.IsZero() || !draft.CreatedAt.Equal(draft.UpdatedAt) {
		t.Errorf("timestamps: created %v updated %v", draft.CreatedAt, draft.UpdatedAt)
	}
}
