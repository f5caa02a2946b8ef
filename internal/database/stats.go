// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/rcalloway/harbinger/internal/metrics"
	"github.com/rcalloway/harbinger/internal/models"
)

// GetSystemStats assembles the operational aggregates for the stats
// endpoint. SystemUptime is filled in by the caller; AverageLeadTime
// stays nil, nothing derivable records outcome lead times yet.
func (db *DB) GetSystemStats(ctx context.Context) (*models.SystemStats, error) {
	start := time.Now()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT severity, COUNT(*) FROM alerts GROUP BY severity`)
	metrics.RecordDBQuery("select", "alerts", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	// All four severity keys are always present in the response.
	bySeverity := map[models.Severity]int64{
		models.SeverityCritical: 0,
		models.SeverityWarning:  0,
		models.SeverityWatch:    0,
		models.SeverityInfo:     0,
	}
	var total int64
	for rows.Next() {
		var severity models.Severity
		var count int64
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, fmt.Errorf("failed to scan severity count: %w", err)
		}
		bySeverity[severity] = count
		total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("severity count iteration failed: %w", err)
	}

	fpRate, err := db.FalsePositiveRate(ctx)
	if err != nil {
		return nil, err
	}

	return &models.SystemStats{
		AlertsCount:       total,
		AlertsBySeverity:  bySeverity,
		FalsePositiveRate: fpRate,
		AverageLeadTime:   nil,
	}, nil
}
