// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rcalloway/harbinger/internal/audit"
	"github.com/rcalloway/harbinger/internal/metrics"
)

// InsertAuditEntry appends one record to the audit log.
func (db *DB) InsertAuditEntry(ctx context.Context, entry *audit.Entry) error {
	start := time.Now()

	var alertID sql.NullString
	if entry.AlertID != uuid.Nil {
		alertID = sql.NullString{String: entry.AlertID.String(), Valid: true}
	}

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO audit_log (id, action, alert_id, actor, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID.String(),
		string(entry.Action),
		alertID,
		nullable(entry.Actor),
		nullable(entry.Detail),
		entry.CreatedAt,
	)
	metrics.RecordDBQuery("insert", "audit_log", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// ListAuditEntries returns the audit trail for one alert, oldest first.
func (db *DB) ListAuditEntries(ctx context.Context, alertID uuid.UUID) ([]*audit.Entry, error) {
	start := time.Now()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, action, alert_id, actor, detail, created_at
		FROM audit_log WHERE alert_id = ? ORDER BY created_at`,
		alertID.String())
	metrics.RecordDBQuery("select", "audit_log", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*audit.Entry
	for rows.Next() {
		var (
			entry      audit.Entry
			idStr      string
			alertIDStr sql.NullString
			actor      sql.NullString
			detail     sql.NullString
		)
		if err := rows.Scan(&idStr, &entry.Action, &alertIDStr, &actor, &detail, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		if entry.ID, err = uuid.Parse(idStr); err != nil {
			return nil, fmt.Errorf("invalid audit id %q: %w", idStr, err)
		}
		if alertIDStr.Valid {
			if entry.AlertID, err = uuid.Parse(alertIDStr.String); err != nil {
				return nil, fmt.Errorf("invalid audit alert id %q: %w", alertIDStr.String, err)
			}
		}
		entry.Actor = actor.String
		entry.Detail = detail.String
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit row iteration failed: %w", err)
	}
	return entries, nil
}
