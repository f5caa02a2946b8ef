// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package database

import (
	"context"
	"fmt"
)

// schemaStatements holds the DDL executed at startup. All statements
// are idempotent so restarts are safe.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS alerts (
		id VARCHAR PRIMARY KEY,
		primary_type VARCHAR NOT NULL,
		component_scores VARCHAR NOT NULL,
		final_score DOUBLE NOT NULL,
		severity VARCHAR NOT NULL,
		location_id VARCHAR,
		evidence VARCHAR,
		recommended_action VARCHAR,
		requires_approval BOOLEAN NOT NULL DEFAULT FALSE,
		status VARCHAR NOT NULL DEFAULT 'open',
		assigned_to VARCHAR,
		notes VARCHAR,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts (created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_severity ON alerts (severity)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_status ON alerts (status)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_location ON alerts (location_id)`,

	`CREATE TABLE IF NOT EXISTS feedback (
		id VARCHAR PRIMARY KEY,
		alert_id VARCHAR NOT NULL,
		outcome VARCHAR NOT NULL,
		notes VARCHAR,
		actor VARCHAR,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_feedback_alert ON feedback (alert_id)`,

	`CREATE TABLE IF NOT EXISTS audit_log (
		id VARCHAR PRIMARY KEY,
		action VARCHAR NOT NULL,
		alert_id VARCHAR,
		actor VARCHAR,
		detail VARCHAR,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_alert ON audit_log (alert_id)`,
}

// createTables applies the schema.
func (db *DB) createTables(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
