// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

// Package models defines the shared data types exchanged between the
// scoring engine, fusion engine, persistence layer, and HTTP API.
package models

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Domain identifies one of the three signal categories.
type Domain string

const (
	DomainWeather Domain = "weather"
	DomainCrime   Domain = "crime"
	DomainFraud   Domain = "fraud"
)

// KnownDomains lists all valid domains in canonical order.
// Fusion iterates this slice (not a map) so tie-breaks are deterministic.
var KnownDomains = []Domain{DomainWeather, DomainCrime, DomainFraud}

// IsKnownDomain reports whether d is one of the three signal categories.
func IsKnownDomain(d Domain) bool {
	switch d {
	case DomainWeather, DomainCrime, DomainFraud:
		return true
	}
	return false
}

// Severity ranks a fused alert. Ordering: critical > warning > watch > info.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityWatch    Severity = "watch"
	SeverityInfo     Severity = "info"
)

// SeveritiesDescending lists severity tiers from most to least severe.
// The fusion engine checks thresholds in this order (first match wins).
var SeveritiesDescending = []Severity{
	SeverityCritical,
	SeverityWarning,
	SeverityWatch,
	SeverityInfo,
}

// AlertStatus tracks an alert through its workflow lifecycle.
type AlertStatus string

const (
	StatusOpen         AlertStatus = "open"
	StatusAcknowledged AlertStatus = "acknowledged"
	StatusInProgress   AlertStatus = "in_progress"
	StatusResolved     AlertStatus = "resolved"
	StatusDismissed    AlertStatus = "dismissed"
)

// IsValidStatus reports whether s is a recognized workflow status.
func IsValidStatus(s AlertStatus) bool {
	switch s {
	case StatusOpen, StatusAcknowledged, StatusInProgress, StatusResolved, StatusDismissed:
		return true
	}
	return false
}

// FeatureContribution names one feature's additive share of a score.
type FeatureContribution struct {
	Name         string  `json:"name"`
	Contribution float64 `json:"contribution"`
}

// ScoreResult is the output of a single domain scorer invocation.
// Score and Confidence are always in [0,1]; TopFeatures is sorted by
// descending contribution and capped at five entries.
type ScoreResult struct {
	Score       float64               `json:"score"`
	Confidence  float64               `json:"confidence"`
	TopFeatures []FeatureContribution `json:"top_features"`
	Meta        map[string]string     `json:"meta,omitempty"`
}

// Evidence records one domain analysis that contributed to a fused alert.
type Evidence struct {
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// AlertDraft is a fused alert decision produced by the fusion engine.
// Ownership passes to the store on emission; the engine holds no
// reference after returning it.
type AlertDraft struct {
	ID                uuid.UUID          `json:"id"`
	PrimaryType       Domain             `json:"primary_type"`
	ComponentScores   map[Domain]float64 `json:"component_scores"`
	FinalScore        float64            `json:"final_score"`
	Severity          Severity           `json:"severity"`
	LocationID        string             `json:"location_id,omitempty"`
	Evidence          []Evidence         `json:"evidence"`
	RecommendedAction string             `json:"recommended_action"`
	RequiresApproval  bool               `json:"requires_approval"`
	Status            AlertStatus        `json:"status"`
	AssignedTo        string             `json:"assigned_to,omitempty"`
	Notes             string             `json:"notes,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// AlertFilter defines filtering options for alert list queries.
type AlertFilter struct {
	Domain     Domain        `json:"domain,omitempty"`
	Severities []Severity    `json:"severities,omitempty"`
	Statuses   []AlertStatus `json:"statuses,omitempty"`
	LocationID string        `json:"location_id,omitempty"`
	Since      *time.Time    `json:"since,omitempty"`
	Until      *time.Time    `json:"until,omitempty"`
	Limit      int           `json:"limit,omitempty"`
	Offset     int           `json:"offset,omitempty"`
}

// FeedbackOutcome labels an operator's verdict on a fired alert.
type FeedbackOutcome string

const (
	OutcomeTruePositive  FeedbackOutcome = "true_positive"
	OutcomeFalsePositive FeedbackOutcome = "false_positive"
	OutcomePartial       FeedbackOutcome = "partial"
)

// IsValidOutcome reports whether o is a recognized feedback outcome.
func IsValidOutcome(o FeedbackOutcome) bool {
	switch o {
	case OutcomeTruePositive, OutcomeFalsePositive, OutcomePartial:
		return true
	}
	return false
}

// Feedback records operator feedback against a stored alert.
type Feedback struct {
	ID        uuid.UUID       `json:"id"`
	AlertID   uuid.UUID       `json:"alert_id"`
	Outcome   FeedbackOutcome `json:"outcome"`
	Notes     string          `json:"notes,omitempty"`
	Actor     string          `json:"actor,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// SignalEvent is a raw ingested event before scoring.
type SignalEvent struct {
	EventID    uuid.UUID              `json:"event_id"`
	Source     string                 `json:"source"`
	EventType  string                 `json:"event_type,omitempty"`
	LocationID string                 `json:"location_id,omitempty"`
	Payload    map[string]interface{} `json:"payload"`
	ReceivedAt time.Time              `json:"received_at"`
}

// SystemStats aggregates operational counters for the stats endpoint.
// FalsePositiveRate and AverageLeadTime are nil until derivable.
type SystemStats struct {
	AlertsCount       int64              `json:"alerts_count"`
	AlertsBySeverity  map[Severity]int64 `json:"alerts_by_severity"`
	FalsePositiveRate *float64           `json:"false_positive_rate"`
	AverageLeadTime   *float64           `json:"average_lead_time"`
	SystemUptime      float64            `json:"system_uptime"`
}
