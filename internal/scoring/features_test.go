// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package scoring

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rcalloway/harbinger/internal/models"
)

func TestNormalizeWeather(t *testing.T) {
	n := NewNormalizer(testClock(t))

	tests := []struct {
		name    string
		payload map[string]interface{}
		want    WeatherFeatures
	}{
		{
			name:    "empty payload uses defaults",
			payload: map[string]interface{}{},
			want:    WeatherFeatures{TempMax24h: 20},
		},
		{
			name: "explicit values",
			payload: map[string]interface{}{
				"rain_1h":          float64(12.5),
				"rain_3h":          float64(40),
				"forecast_rain_3h": float64(45),
				"temp_max_24h":     float64(31),
				"zscore_recent":    float64(2.8),
			},
			want: WeatherFeatures{Rain1h: 12.5, Rain3h: 40, ForecastRain3h: 45, TempMax24h: 31, ZScoreRecent: 2.8},
		},
		{
			name: "malformed values fall back to defaults",
			payload: map[string]interface{}{
				"rain_1h":      "not a number",
				"temp_max_24h": map[string]interface{}{"nested": true},
			},
			want: WeatherFeatures{TempMax24h: 20},
		},
		{
			name: "numeric strings and ints accepted",
			payload: map[string]interface{}{
				"rain_1h": "30",
				"rain_3h": 55,
			},
			want: WeatherFeatures{Rain1h: 30, Rain3h: 55, TempMax24h: 20},
		},
		{
			name: "unknown keys ignored",
			payload: map[string]interface{}{
				"rain_1h":   float64(5),
				"windspeed": float64(99),
			},
			want: WeatherFeatures{Rain1h: 5, TempMax24h: 20},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := n.Normalize(models.DomainWeather, tt.payload)
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			got, ok := rec.(WeatherFeatures)
			if !ok {
				t.Fatalf("record type = %T, want WeatherFeatures", rec)
			}
			if got != tt.want {
				t.Errorf("Normalize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNormalizeCrimeClockDefaults(t *testing.T) {
	// Saturday 15:00 UTC; Monday-based weekday index 5.
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC))
	n := NewNormalizer(clock)

	rec, err := n.Normalize(models.DomainCrime, map[string]interface{}{})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	got := rec.(CrimeFeatures)
	if got.HourOfDay != 15 {
		t.Errorf("HourOfDay = %v, want 15", got.HourOfDay)
	}
	if got.Weekday != 5 {
		t.Errorf("Weekday = %v, want 5", got.Weekday)
	}

	// Explicit values override the clock.
	rec, err = n.Normalize(models.DomainCrime, map[string]interface{}{
		"hour_of_day": float64(3),
		"weekday":     float64(0),
	})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	got = rec.(CrimeFeatures)
	if got.HourOfDay != 3 || got.Weekday != 0 {
		t.Errorf("explicit time fields not honored: %+v", got)
	}
}

func TestNormalizeFraudDefaults(t *testing.T) {
	n := NewNormalizer(testClock(t))

	rec, err := n.Normalize(models.DomainFraud, map[string]interface{}{})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	got := rec.(FraudFeatures)
	want := FraudFeatures{AccountAgeDays: 365, UniqueDevices24h: 1, AvgTxnAmount7d: 100}
	if got != want {
		t.Errorf("defaults = %+v, want %+v", got, want)
	}

	rec, err = n.Normalize(models.DomainFraud, map[string]interface{}{
		"is_new_device_flag": true,
		"txn_amount":         float64(250),
	})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	got = rec.(FraudFeatures)
	if !got.IsNewDevice || got.TxnAmount != 250 {
		t.Errorf("explicit fraud fields not honored: %+v", got)
	}

	// Bool accepts string forms, rejects garbage.
	rec, _ = n.Normalize(models.DomainFraud, map[string]interface{}{"is_new_device_flag": "true"})
	if !rec.(FraudFeatures).IsNewDevice {
		t.Error(`string "true" should parse as true`)
	}
	rec, _ = n.Normalize(models.DomainFraud, map[string]interface{}{"is_new_device_flag": 42})
	if rec.(FraudFeatures).IsNewDevice {
		t.Error("non-bool value should fall back to false")
	}
}

func TestNormalizeUnknownDomain(t *testing.T) {
	n := NewNormalizer(testClock(t))

	_, err := n.Normalize("seismic", map[string]interface{}{})
	if !errors.Is(err, ErrUnknownDomain) {
		t.Errorf("Normalize(seismic) err = %v, want ErrUnknownDomain", err)
	}
}
