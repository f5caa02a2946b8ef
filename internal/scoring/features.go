// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package scoring

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rcalloway/harbinger/internal/models"
)

// FeatureRecord is the sealed tagged union of normalized feature sets.
// Exactly one variant exists per domain; the discriminator is Domain().
type FeatureRecord interface {
	Domain() models.Domain

	// sealed prevents variants outside this package.
	sealed()
}

// WeatherFeatures holds normalized rainfall and temperature signals.
// rain_6h and temp_max_24h are carried for evidence completeness but do
// not participate in scoring.
type WeatherFeatures struct {
	Rain1h         float64 `json:"rain_1h"`
	Rain3h         float64 `json:"rain_3h"`
	Rain6h         float64 `json:"rain_6h"`
	ForecastRain3h float64 `json:"forecast_rain_3h"`
	TempMax24h     float64 `json:"temp_max_24h"`
	ZScoreRecent   float64 `json:"zscore_recent"`
}

func (WeatherFeatures) Domain() models.Domain { return models.DomainWeather }
func (WeatherFeatures) sealed()               {}

// CrimeFeatures holds normalized incident counts and spatial density.
type CrimeFeatures struct {
	IncidentsLast1h   float64 `json:"incidents_last_1h"`
	IncidentsLast3h   float64 `json:"incidents_last_3h"`
	IncidentsLast24h  float64 `json:"incidents_last_24h"`
	HourOfDay         float64 `json:"hour_of_day"`
	Weekday           float64 `json:"weekday"`
	KDEDensity        float64 `json:"kde_density"`
	NeighborIncidents float64 `json:"neighbor_incidents"`
}

func (CrimeFeatures) Domain() models.Domain { return models.DomainCrime }
func (CrimeFeatures) sealed()               {}

// FraudFeatures holds normalized transaction and account signals.
type FraudFeatures struct {
	TxnAmount        float64 `json:"txn_amount"`
	AccountAgeDays   float64 `json:"account_age_days"`
	TxnCount1h       float64 `json:"txn_count_1h"`
	UniqueDevices24h float64 `json:"unique_devices_24h"`
	AvgTxnAmount7d   float64 `json:"avg_txn_amount_7d"`
	IsNewDevice      bool    `json:"is_new_device_flag"`
}

func (FraudFeatures) Domain() models.Domain { return models.DomainFraud }
func (FraudFeatures) sealed()               {}

// Normalizer converts raw event payloads into typed feature records.
// Conversion is total for known domains: malformed values fall back to
// the field default and unknown keys are ignored. The clock supplies
// hour-of-day and weekday defaults for crime records.
type Normalizer struct {
	clock clockwork.Clock
}

// NewNormalizer creates a Normalizer using the given clock.
func NewNormalizer(clock clockwork.Clock) *Normalizer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Normalizer{clock: clock}
}

// Normalize builds the feature record for the given domain from a raw
// payload. Returns ErrUnknownDomain for a domain no variant covers.
func (n *Normalizer) Normalize(domain models.Domain, payload map[string]interface{}) (FeatureRecord, error) {
	switch domain {
	case models.DomainWeather:
		return n.normalizeWeather(payload), nil
	case models.DomainCrime:
		return n.normalizeCrime(payload), nil
	case models.DomainFraud:
		return n.normalizeFraud(payload), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDomain, domain)
	}
}

func (n *Normalizer) normalizeWeather(payload map[string]interface{}) WeatherFeatures {
	return WeatherFeatures{
		Rain1h:         numField(payload, "rain_1h", 0),
		Rain3h:         numField(payload, "rain_3h", 0),
		Rain6h:         numField(payload, "rain_6h", 0),
		ForecastRain3h: numField(payload, "forecast_rain_3h", 0),
		TempMax24h:     numField(payload, "temp_max_24h", 20),
		ZScoreRecent:   numField(payload, "zscore_recent", 0),
	}
}

func (n *Normalizer) normalizeCrime(payload map[string]interface{}) CrimeFeatures {
	now := n.clock.Now().UTC()
	return CrimeFeatures{
		IncidentsLast1h:   numField(payload, "incidents_last_1h", 0),
		IncidentsLast3h:   numField(payload, "incidents_last_3h", 0),
		IncidentsLast24h:  numField(payload, "incidents_last_24h", 0),
		HourOfDay:         numField(payload, "hour_of_day", float64(now.Hour())),
		Weekday:           numField(payload, "weekday", float64(isoWeekday(now.Weekday()))),
		KDEDensity:        numField(payload, "kde_density", 0),
		NeighborIncidents: numField(payload, "neighbor_incidents", 0),
	}
}

func (n *Normalizer) normalizeFraud(payload map[string]interface{}) FraudFeatures {
	return FraudFeatures{
		TxnAmount:        numField(payload, "txn_amount", 0),
		AccountAgeDays:   numField(payload, "account_age_days", 365),
		TxnCount1h:       numField(payload, "txn_count_1h", 0),
		UniqueDevices24h: numField(payload, "unique_devices_24h", 1),
		AvgTxnAmount7d:   numField(payload, "avg_txn_amount_7d", 100),
		IsNewDevice:      boolField(payload, "is_new_device_flag", false),
	}
}

// numField extracts a numeric payload value. JSON numbers arrive as
// float64; integers and numeric strings are accepted too. Anything else
// falls back to def.
func numField(payload map[string]interface{}, key string, def float64) float64 {
	v, ok := payload[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return f
		}
		return def
	default:
		return def
	}
}

// boolField extracts a boolean payload value, tolerating "true"/"false"
// strings. Anything else falls back to def.
func boolField(payload map[string]interface{}, key string, def bool) bool {
	v, ok := payload[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		if b, err := strconv.ParseBool(t); err == nil {
			return b
		}
		return def
	default:
		return def
	}
}

// isoWeekday maps Go's Sunday-based weekday to Monday=0..Sunday=6,
// matching the convention of the upstream crime feeds.
func isoWeekday(d time.Weekday) int {
	return (int(d) + 6) % 7
}
