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

	"github.com/rcalloway/harbinger/internal/metrics"
	"github.com/rcalloway/harbinger/internal/models"
)

// InsertFeedback stores operator feedback for an existing alert.
// Returns ErrNotFound when the referenced alert does not exist.
func (db *DB) InsertFeedback(ctx context.Context, fb *models.Feedback) error {
	if _, err := db.GetAlert(ctx, fb.AlertID); err != nil {
		return err
	}

	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO feedback (id, alert_id, outcome, notes, actor, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		fb.ID.String(),
		fb.AlertID.String(),
		string(fb.Outcome),
		nullable(fb.Notes),
		nullable(fb.Actor),
		fb.CreatedAt,
	)
	metrics.RecordDBQuery("insert", "feedback", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	return nil
}

// ListFeedback returns all feedback for an alert, oldest first.
func (db *DB) ListFeedback(ctx context.Context, alertID uuid.UUID) ([]*models.Feedback, error) {
	start := time.Now()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, alert_id, outcome, notes, actor, created_at
		FROM feedback WHERE alert_id = ? ORDER BY created_at`,
		alertID.String())
	metrics.RecordDBQuery("select", "feedback", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []*models.Feedback
	for rows.Next() {
		var (
			fb         models.Feedback
			idStr      string
			alertIDStr string
			notes      sql.NullString
			actor      sql.NullString
		)
		if err := rows.Scan(&idStr, &alertIDStr, &fb.Outcome, &notes, &actor, &fb.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback row: %w", err)
		}
		if fb.ID, err = uuid.Parse(idStr); err != nil {
			return nil, fmt.Errorf("invalid feedback id %q: %w", idStr, err)
		}
		if fb.AlertID, err = uuid.Parse(alertIDStr); err != nil {
			return nil, fmt.Errorf("invalid feedback alert id %q: %w", alertIDStr, err)
		}
		fb.Notes = notes.String
		fb.Actor = actor.String
		fb.CreatedAt = fb.CreatedAt.UTC()
		items = append(items, &fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("feedback row iteration failed: %w", err)
	}
	return items, nil
}

// FalsePositiveRate computes the share of feedback marked
// false_positive. Returns nil until any feedback exists.
func (db *DB) FalsePositiveRate(ctx context.Context) (*float64, error) {
	start := time.Now()

	var total, falsePositives int64
	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE outcome = ?)
		FROM feedback`,
		string(models.OutcomeFalsePositive)).Scan(&total, &falsePositives)
	metrics.RecordDBQuery("select", "feedback", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to compute false positive rate: %w", err)
	}
	if total == 0 {
		return nil, nil
	}
	rate := float64(falsePositives) / float64(total)
	return &rate, nil
}
