// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Fusion.Weights.Weather != 0.4 || cfg.Fusion.Weights.Crime != 0.35 || cfg.Fusion.Weights.Fraud != 0.25 {
		t.Errorf("default weights = %+v", cfg.Fusion.Weights)
	}
	th := cfg.Fusion.Thresholds
	if th.Critical != 0.85 || th.Warning != 0.65 || th.Watch != 0.45 || th.Info != 0.0 {
		t.Errorf("default thresholds = %+v", th)
	}
	if cfg.Fusion.RequiredCorroboration != 2 {
		t.Errorf("required_corroboration = %d, want 2", cfg.Fusion.RequiredCorroboration)
	}
	if !cfg.Fusion.AutoEscalationEnabled || cfg.Fusion.AutoEscalationConfidence != 0.85 {
		t.Errorf("auto escalation = %v / %v", cfg.Fusion.AutoEscalationEnabled, cfg.Fusion.AutoEscalationConfidence)
	}
	if cfg.Fusion.DedupeRadiusMeters != 1000 || cfg.Fusion.DedupeWindowMinutes != 30 {
		t.Errorf("dedupe params = %v / %v", cfg.Fusion.DedupeRadiusMeters, cfg.Fusion.DedupeWindowMinutes)
	}
	if cfg.Server.Mode != ModeAll {
		t.Errorf("server.mode = %q, want %q", cfg.Server.Mode, ModeAll)
	}
	if cfg.Security.RateLimitPerOrg != 100 {
		t.Errorf("rate_limit_per_org = %d, want 100", cfg.Security.RateLimitPerOrg)
	}
	if got := cfg.Fusion.DedupeWindow(); got != 30*time.Minute {
		t.Errorf("DedupeWindow() = %v, want 30m", got)
	}
	if warnings := cfg.Sanitize(); len(warnings) != 0 {
		t.Errorf("defaults must sanitize clean, got %v", warnings)
	}
}

func TestDedupeWindowFractionalMinutes(t *testing.T) {
	tests := []struct {
		minutes float64
		want    time.Duration
	}{
		{0.5, 30 * time.Second},
		{1.5, 90 * time.Second},
		{30, 30 * time.Minute},
	}
	for _, tt := range tests {
		f := FusionConfig{DedupeWindowMinutes: tt.minutes}
		if got := f.DedupeWindow(); got != tt.want {
			t.Errorf("DedupeWindow(%v) = %v, want %v", tt.minutes, got, tt.want)
		}
		cfg := defaultConfig()
		cfg.Fusion.DedupeWindowMinutes = tt.minutes
		if warnings := cfg.Sanitize(); len(warnings) != 0 {
			t.Errorf("window %v must sanitize clean, got %v", tt.minutes, warnings)
		}
	}
}

func TestSanitizeSubstitutesDefaults(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		check  func(*testing.T, *Config)
	}{
		{
			name:   "negative weight",
			mutate: func(c *Config) { c.Fusion.Weights.Crime = -1 },
			check: func(t *testing.T, c *Config) {
				if c.Fusion.Weights.Crime != 0.35 {
					t.Errorf("crime weight = %v, want default 0.35", c.Fusion.Weights.Crime)
				}
			},
		},
		{
			name:   "unordered thresholds reset as a block",
			mutate: func(c *Config) { c.Fusion.Thresholds.Watch = 0.95 },
			check: func(t *testing.T, c *Config) {
				if c.Fusion.Thresholds != Default().Fusion.Thresholds {
					t.Errorf("thresholds = %+v, want defaults", c.Fusion.Thresholds)
				}
			},
		},
		{
			name:   "threshold above one",
			mutate: func(c *Config) { c.Fusion.Thresholds.Critical = 1.5 },
			check: func(t *testing.T, c *Config) {
				if c.Fusion.Thresholds.Critical != 0.85 {
					t.Errorf("critical threshold = %v, want 0.85", c.Fusion.Thresholds.Critical)
				}
			},
		},
		{
			name:   "unknown server mode",
			mutate: func(c *Config) { c.Server.Mode = "worker" },
			check: func(t *testing.T, c *Config) {
				if c.Server.Mode != ModeAll {
					t.Errorf("server.mode = %q, want %q", c.Server.Mode, ModeAll)
				}
			},
		},
		{
			name:   "zero dedupe window",
			mutate: func(c *Config) { c.Fusion.DedupeWindowMinutes = 0 },
			check: func(t *testing.T, c *Config) {
				if c.Fusion.DedupeWindowMinutes != 30 {
					t.Errorf("dedupe window = %v, want 30", c.Fusion.DedupeWindowMinutes)
				}
			},
		},
		{
			name:   "bad port",
			mutate: func(c *Config) { c.Server.Port = -80 },
			check: func(t *testing.T, c *Config) {
				if c.Server.Port != 8600 {
					t.Errorf("port = %d, want 8600", c.Server.Port)
				}
			},
		},
		{
			name:   "bad log level",
			mutate: func(c *Config) { c.Logging.Level = "loud" },
			check: func(t *testing.T, c *Config) {
				if c.Logging.Level != "info" {
					t.Errorf("level = %q, want info", c.Logging.Level)
				}
			},
		},
		{
			name:   "zero org rate limit",
			mutate: func(c *Config) { c.Security.RateLimitPerOrg = 0 },
			check: func(t *testing.T, c *Config) {
				if c.Security.RateLimitPerOrg != 100 {
					t.Errorf("rate_limit_per_org = %d, want 100", c.Security.RateLimitPerOrg)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			warnings := cfg.Sanitize()
			if len(warnings) == 0 {
				t.Fatal("expected at least one warning")
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoadLayering(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 9100
fusion:
  required_corroboration: 3
  weights:
    weather: 0.5
`
	if err := os.WriteFile(configPath, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(ConfigPathEnvVar, configPath)
	t.Setenv("HARBINGER_FUSION_WEIGHTS_WEATHER", "0.6")
	t.Setenv("HARBINGER_SECURITY_RATE_LIMIT_PER_ORG", "250")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// File overrides defaults.
	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d, want file value 9100", cfg.Server.Port)
	}
	if cfg.Fusion.RequiredCorroboration != 3 {
		t.Errorf("required_corroboration = %d, want file value 3", cfg.Fusion.RequiredCorroboration)
	}
	// Env overrides file.
	if cfg.Fusion.Weights.Weather != 0.6 {
		t.Errorf("weather weight = %v, want env value 0.6", cfg.Fusion.Weights.Weather)
	}
	if cfg.Security.RateLimitPerOrg != 250 {
		t.Errorf("rate_limit_per_org = %d, want env value 250", cfg.Security.RateLimitPerOrg)
	}
	// Untouched values keep defaults.
	if cfg.Fusion.Weights.Crime != 0.35 {
		t.Errorf("crime weight = %v, want default 0.35", cfg.Fusion.Weights.Crime)
	}
}

func TestLoadInvalidFileFallsBack(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("{{not yaml"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want fallback to defaults", err)
	}
	if cfg.Server.Port != 8600 {
		t.Errorf("port = %d, want default 8600", cfg.Server.Port)
	}
}

func TestLoadSanitizesEnvValues(t *testing.T) {
	t.Setenv("HARBINGER_FUSION_DEDUPE_WINDOW_MINUTES", "-5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Fusion.DedupeWindowMinutes != 30 {
		t.Errorf("dedupe window = %v, want sanitized default 30", cfg.Fusion.DedupeWindowMinutes)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"HARBINGER_SERVER_PORT", "server.port"},
		{"HARBINGER_FUSION_WEIGHTS_WEATHER", "fusion.weights.weather"},
		{"HARBINGER_FUSION_DEDUPE_WINDOW_MINUTES", "fusion.dedupe_window_minutes"},
		{"HARBINGER_SECURITY_JWT_SECRET", "security.jwt_secret"},
		{"HARBINGER_DATABASE_PATH", "database.path"},
		{"HARBINGER_NATS_URL", "nats.url"},
	}
	for _, tt := range tests {
		if got := envTransformFunc(tt.in); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestProcessSliceFieldsFromEnv(t *testing.T) {
	t.Setenv("HARBINGER_SECURITY_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Security.CORSOrigins) != 2 ||
		cfg.Security.CORSOrigins[0] != "https://a.example" ||
		cfg.Security.CORSOrigins[1] != "https://b.example" {
		t.Errorf("CORSOrigins = %v", cfg.Security.CORSOrigins)
	}
	for _, origin := range cfg.Security.CORSOrigins {
		if strings.Contains(origin, " ") {
			t.Errorf("origin %q not trimmed", origin)
		}
	}
}
