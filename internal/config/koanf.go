// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/rcalloway/harbinger/internal/logging"
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/harbinger/config.yaml",
	"/etc/harbinger/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// envPrefix is stripped from environment variable overrides:
// HARBINGER_FUSION_REQUIRED_CORROBORATION -> fusion.required_corroboration.
const envPrefix = "HARBINGER_"

// defaultConfig returns the full default configuration. Defaults load
// first and are overridden by the config file and environment.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8600,
			Timeout:     30 * time.Second,
			Environment: "development",
			Mode:        ModeAll,
		},
		Database: DatabaseConfig{
			Path:      "/data/harbinger.duckdb",
			MaxMemory: "2GB",
			Threads:   0,
		},
		NATS: NATSConfig{
			URL:              "nats://127.0.0.1:4222",
			EmbeddedServer:   true,
			StoreDir:         "/data/nats/jetstream",
			MaxMemory:        1 << 30,
			MaxStore:         10 << 30,
			DurableName:      "signal-processor",
			QueueGroup:       "processors",
			SubscribersCount: 4,
			RetryCount:       3,
			RetryInterval:    100 * time.Millisecond,
			ThrottlePerSec:   0,
			PoisonQueueTopic: "signals.dlq",
			CloseTimeout:     30 * time.Second,
		},
		WAL: WALConfig{
			Enabled:  true,
			Path:     "/data/wal",
			SyncMode: false,
		},
		Fusion: FusionConfig{
			Weights: FusionWeights{
				Weather: 0.4,
				Crime:   0.35,
				Fraud:   0.25,
			},
			Thresholds: FusionThresholds{
				Critical: 0.85,
				Warning:  0.65,
				Watch:    0.45,
				Info:     0.0,
			},
			RequiredCorroboration:    2,
			AutoEscalationEnabled:    true,
			AutoEscalationConfidence: 0.85,
			DedupeRadiusMeters:       1000,
			DedupeWindowMinutes:      30,
		},
		Dedupe: DedupeConfig{
			ShardCount:       16,
			PerShardCapacity: 1024,
			SweepInterval:    5 * time.Minute,
		},
		Security: SecurityConfig{
			JWTSecret:       "",
			RateLimitPerOrg: 100,
			CORSOrigins:     []string{"*"},
		},
		Notify: NotifyConfig{
			WebhookURL:     "",
			WebhookSecret:  "",
			WebhookTimeout: 10 * time.Second,
			RatePerSecond:  5,
			RetryMax:       2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Default returns the stock configuration without touching files or
// the environment.
func Default() *Config {
	return defaultConfig()
}

// Load builds the configuration from layered sources:
//  1. Struct defaults
//  2. Optional YAML config file (CONFIG_PATH or default search paths)
//  3. HARBINGER_* environment variables (highest priority)
//
// A missing or unreadable file and any invalid value degrade to the
// defaults with a logged warning; Load only fails on programming
// errors (unmarshalable layering).
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			logging.Warn().
				Err(err).
				Str("path", configPath).
				Msg("Failed to load config file, continuing with defaults")
		} else {
			logging.Info().Str("path", configPath).Msg("Loaded config file")
		}
	}

	envProvider := env.Provider(envPrefix, ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	for _, warning := range cfg.Sanitize() {
		logging.Warn().Str("detail", warning).Msg("Invalid config value substituted")
	}

	return cfg, nil
}

// findConfigFile returns the first config file that exists, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps HARBINGER_* environment variables to koanf
// paths. Section names are single words, so the first underscore-
// separated token selects the section and the rest is the key.
//
//	HARBINGER_SERVER_PORT                  -> server.port
//	HARBINGER_FUSION_DEDUPE_WINDOW_MINUTES -> fusion.dedupe_window_minutes
//	HARBINGER_FUSION_WEIGHTS_WEATHER       -> fusion.weights.weather
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))

	// Explicit mappings for keys whose nesting a naive split cannot
	// recover.
	explicit := map[string]string{
		"fusion_weights_weather":            "fusion.weights.weather",
		"fusion_weights_crime":              "fusion.weights.crime",
		"fusion_weights_fraud":              "fusion.weights.fraud",
		"fusion_thresholds_critical":        "fusion.thresholds.critical",
		"fusion_thresholds_warning":         "fusion.thresholds.warning",
		"fusion_thresholds_watch":           "fusion.thresholds.watch",
		"fusion_thresholds_info":            "fusion.thresholds.info",
		"fusion_required_corroboration":     "fusion.required_corroboration",
		"fusion_auto_escalation_enabled":    "fusion.auto_escalation_enabled",
		"fusion_auto_escalation_confidence": "fusion.auto_escalation_confidence",
		"fusion_dedupe_radius_meters":       "fusion.dedupe_radius_meters",
		"fusion_dedupe_window_minutes":      "fusion.dedupe_window_minutes",
		"security_jwt_secret":               "security.jwt_secret",
		"security_rate_limit_per_org":       "security.rate_limit_per_org",
		"security_cors_origins":             "security.cors_origins",
		"notify_webhook_url":                "notify.webhook_url",
		"notify_webhook_secret":             "notify.webhook_secret",
		"notify_webhook_timeout":            "notify.webhook_timeout",
		"notify_rate_per_second":            "notify.rate_per_second",
		"notify_retry_max":                  "notify.retry_max",
		"nats_embedded_server":              "nats.embedded_server",
		"nats_store_dir":                    "nats.store_dir",
		"nats_max_memory":                   "nats.max_memory",
		"nats_max_store":                    "nats.max_store",
		"nats_durable_name":                 "nats.durable_name",
		"nats_queue_group":                  "nats.queue_group",
		"nats_subscribers_count":            "nats.subscribers_count",
		"nats_retry_count":                  "nats.retry_count",
		"nats_retry_interval":               "nats.retry_interval",
		"nats_throttle_per_second":          "nats.throttle_per_second",
		"nats_poison_queue_topic":           "nats.poison_queue_topic",
		"nats_close_timeout":                "nats.close_timeout",
		"wal_sync_mode":                     "wal.sync_mode",
		"database_max_memory":               "database.max_memory",
		"dedupe_shard_count":                "dedupe.shard_count",
		"dedupe_per_shard_capacity":         "dedupe.per_shard_capacity",
		"dedupe_sweep_interval":             "dedupe.sweep_interval",
	}
	if path, ok := explicit[key]; ok {
		return path
	}

	// Generic fallback: first token is the section.
	parts := strings.SplitN(key, "_", 2)
	if len(parts) == 2 {
		return parts[0] + "." + parts[1]
	}
	return key
}

// sliceConfigPaths lists paths parsed from comma-separated strings when
// set via environment variables.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values into slices
// for the known slice fields. Values already loaded as slices from YAML
// are left alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}
