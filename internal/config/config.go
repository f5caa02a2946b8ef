// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

// Package config defines the typed application configuration and its
// layered loader (struct defaults, optional YAML file, environment
// overrides).
//
// Invalid values never kill the process: Load logs a warning per bad
// value and substitutes the hardcoded default.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration, assembled by Load and passed by
// value into components. No package holds a config global.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	NATS     NATSConfig     `koanf:"nats"`
	WAL      WALConfig      `koanf:"wal"`
	Fusion   FusionConfig   `koanf:"fusion"`
	Dedupe   DedupeConfig   `koanf:"dedupe"`
	Security SecurityConfig `koanf:"security"`
	Notify   NotifyConfig   `koanf:"notify"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// Process modes. ModeAll runs ingest, processing, and the API in one
// binary. ModeAPI serves only the HTTP surfaces against an external
// broker; alert processing runs in a separate process and the live
// stream is fed from the fused-alert subject instead of in-process.
const (
	ModeAll = "all"
	ModeAPI = "api"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment" validate:"oneof=development production"`
	Mode        string        `koanf:"mode" validate:"oneof=all api"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path" validate:"required"`
	MaxMemory string `koanf:"max_memory"`

	// Threads 0 means use runtime.NumCPU().
	Threads int `koanf:"threads" validate:"min=0"`
}

// NATSConfig holds broker and ingest pipeline settings.
type NATSConfig struct {
	URL              string        `koanf:"url" validate:"required"`
	EmbeddedServer   bool          `koanf:"embedded_server"`
	StoreDir         string        `koanf:"store_dir"`
	MaxMemory        int64         `koanf:"max_memory"`
	MaxStore         int64         `koanf:"max_store"`
	DurableName      string        `koanf:"durable_name"`
	QueueGroup       string        `koanf:"queue_group"`
	SubscribersCount int           `koanf:"subscribers_count" validate:"min=1"`
	RetryCount       int           `koanf:"retry_count" validate:"min=0"`
	RetryInterval    time.Duration `koanf:"retry_interval"`
	ThrottlePerSec   int64         `koanf:"throttle_per_second" validate:"min=0"`
	PoisonQueueTopic string        `koanf:"poison_queue_topic"`
	CloseTimeout     time.Duration `koanf:"close_timeout"`
}

// WALConfig holds the ingest write-ahead log settings.
type WALConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Path     string `koanf:"path"`
	SyncMode bool   `koanf:"sync_mode"`
}

// FusionConfig holds the signal fusion parameters.
type FusionConfig struct {
	Weights                  FusionWeights    `koanf:"weights"`
	Thresholds               FusionThresholds `koanf:"thresholds"`
	RequiredCorroboration    int              `koanf:"required_corroboration" validate:"min=1"`
	AutoEscalationEnabled    bool             `koanf:"auto_escalation_enabled"`
	AutoEscalationConfidence float64          `koanf:"auto_escalation_confidence" validate:"min=0,max=1"`

	// DedupeRadiusMeters is declared and validated but not used by the
	// matching logic; dedup keys on exact location ID.
	DedupeRadiusMeters  float64 `koanf:"dedupe_radius_meters" validate:"min=0"`
	DedupeWindowMinutes float64 `koanf:"dedupe_window_minutes" validate:"gt=0"`
}

// FusionWeights blends per-domain scores into the weighted score.
type FusionWeights struct {
	Weather float64 `koanf:"weather" validate:"min=0"`
	Crime   float64 `koanf:"crime" validate:"min=0"`
	Fraud   float64 `koanf:"fraud" validate:"min=0"`
}

// FusionThresholds maps severity tiers to minimum adjusted scores.
// Must be ordered critical >= warning >= watch >= info.
type FusionThresholds struct {
	Critical float64 `koanf:"critical" validate:"min=0,max=1"`
	Warning  float64 `koanf:"warning" validate:"min=0,max=1"`
	Watch    float64 `koanf:"watch" validate:"min=0,max=1"`
	Info     float64 `koanf:"info" validate:"min=0,max=1"`
}

// DedupeConfig bounds the in-memory dedupe cache.
type DedupeConfig struct {
	ShardCount       int           `koanf:"shard_count" validate:"min=0"`
	PerShardCapacity int           `koanf:"per_shard_capacity" validate:"min=0"`
	SweepInterval    time.Duration `koanf:"sweep_interval"`
}

// SecurityConfig holds auth and rate limiting settings. An empty JWT
// secret disables bearer auth (dev mode).
type SecurityConfig struct {
	JWTSecret       string   `koanf:"jwt_secret"`
	RateLimitPerOrg int      `koanf:"rate_limit_per_org" validate:"min=1"`
	CORSOrigins     []string `koanf:"cors_origins"`
}

// NotifyConfig holds webhook notification settings. An empty URL keeps
// fan-out on the log notifier only.
type NotifyConfig struct {
	WebhookURL     string        `koanf:"webhook_url"`
	WebhookSecret  string        `koanf:"webhook_secret"`
	WebhookTimeout time.Duration `koanf:"webhook_timeout"`
	RatePerSecond  float64       `koanf:"rate_per_second" validate:"min=0"`
	RetryMax       int           `koanf:"retry_max" validate:"min=0"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// DedupeWindow returns the fusion dedupe window as a duration.
// Fractional minutes are honored, so sub-minute windows work.
func (f FusionConfig) DedupeWindow() time.Duration {
	return time.Duration(f.DedupeWindowMinutes * float64(time.Minute))
}

// Sanitize replaces invalid values with defaults and returns one
// warning message per substitution. Called by Load so bad configuration
// degrades instead of failing startup.
func (c *Config) Sanitize() []string {
	var warnings []string
	d := defaultConfig()

	warn := func(field string, got interface{}, def interface{}) {
		warnings = append(warnings, fmt.Sprintf("%s: invalid value %v, using default %v", field, got, def))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		warn("server.port", c.Server.Port, d.Server.Port)
		c.Server.Port = d.Server.Port
	}
	if c.Server.Environment != "development" && c.Server.Environment != "production" {
		warn("server.environment", c.Server.Environment, d.Server.Environment)
		c.Server.Environment = d.Server.Environment
	}
	if c.Server.Mode != ModeAll && c.Server.Mode != ModeAPI {
		warn("server.mode", c.Server.Mode, d.Server.Mode)
		c.Server.Mode = d.Server.Mode
	}
	if c.Server.Timeout <= 0 {
		warn("server.timeout", c.Server.Timeout, d.Server.Timeout)
		c.Server.Timeout = d.Server.Timeout
	}

	if c.Database.Path == "" {
		warn("database.path", `""`, d.Database.Path)
		c.Database.Path = d.Database.Path
	}
	if c.NATS.URL == "" {
		warn("nats.url", `""`, d.NATS.URL)
		c.NATS.URL = d.NATS.URL
	}
	if c.NATS.SubscribersCount < 1 {
		warn("nats.subscribers_count", c.NATS.SubscribersCount, d.NATS.SubscribersCount)
		c.NATS.SubscribersCount = d.NATS.SubscribersCount
	}

	w := &c.Fusion.Weights
	dw := d.Fusion.Weights
	if w.Weather < 0 {
		warn("fusion.weights.weather", w.Weather, dw.Weather)
		w.Weather = dw.Weather
	}
	if w.Crime < 0 {
		warn("fusion.weights.crime", w.Crime, dw.Crime)
		w.Crime = dw.Crime
	}
	if w.Fraud < 0 {
		warn("fusion.weights.fraud", w.Fraud, dw.Fraud)
		w.Fraud = dw.Fraud
	}

	th := c.Fusion.Thresholds
	outOfRange := func(v float64) bool { return v < 0 || v > 1 }
	ordered := th.Critical >= th.Warning && th.Warning >= th.Watch && th.Watch >= th.Info
	if outOfRange(th.Critical) || outOfRange(th.Warning) || outOfRange(th.Watch) || outOfRange(th.Info) || !ordered {
		warn("fusion.thresholds", th, d.Fusion.Thresholds)
		c.Fusion.Thresholds = d.Fusion.Thresholds
	}

	if c.Fusion.RequiredCorroboration < 1 {
		warn("fusion.required_corroboration", c.Fusion.RequiredCorroboration, d.Fusion.RequiredCorroboration)
		c.Fusion.RequiredCorroboration = d.Fusion.RequiredCorroboration
	}
	if c.Fusion.AutoEscalationConfidence < 0 || c.Fusion.AutoEscalationConfidence > 1 {
		warn("fusion.auto_escalation_confidence", c.Fusion.AutoEscalationConfidence, d.Fusion.AutoEscalationConfidence)
		c.Fusion.AutoEscalationConfidence = d.Fusion.AutoEscalationConfidence
	}
	if c.Fusion.DedupeRadiusMeters < 0 {
		warn("fusion.dedupe_radius_meters", c.Fusion.DedupeRadiusMeters, d.Fusion.DedupeRadiusMeters)
		c.Fusion.DedupeRadiusMeters = d.Fusion.DedupeRadiusMeters
	}
	if c.Fusion.DedupeWindowMinutes <= 0 {
		warn("fusion.dedupe_window_minutes", c.Fusion.DedupeWindowMinutes, d.Fusion.DedupeWindowMinutes)
		c.Fusion.DedupeWindowMinutes = d.Fusion.DedupeWindowMinutes
	}

	if c.Security.RateLimitPerOrg < 1 {
		warn("security.rate_limit_per_org", c.Security.RateLimitPerOrg, d.Security.RateLimitPerOrg)
		c.Security.RateLimitPerOrg = d.Security.RateLimitPerOrg
	}
	if c.Notify.RatePerSecond < 0 {
		warn("notify.rate_per_second", c.Notify.RatePerSecond, d.Notify.RatePerSecond)
		c.Notify.RatePerSecond = d.Notify.RatePerSecond
	}
	if c.Notify.RetryMax < 0 {
		warn("notify.retry_max", c.Notify.RetryMax, d.Notify.RetryMax)
		c.Notify.RetryMax = d.Notify.RetryMax
	}

	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		warn("logging.level", c.Logging.Level, d.Logging.Level)
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		warn("logging.format", c.Logging.Format, d.Logging.Format)
		c.Logging.Format = d.Logging.Format
	}

	return warnings
}
