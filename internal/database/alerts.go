// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/rcalloway/harbinger/internal/metrics"
	"github.com/rcalloway/harbinger/internal/models"
)

const alertColumns = `id, primary_type, component_scores, final_score, severity,
	location_id, evidence, recommended_action, requires_approval, status,
	assigned_to, notes, created_at, updated_at`

// InsertAlert persists a fused alert draft.
func (db *DB) InsertAlert(ctx context.Context, alert *models.AlertDraft) error {
	start := time.Now()

	scores, err := json.Marshal(alert.ComponentScores)
	if err != nil {
		return fmt.Errorf("failed to marshal component scores: %w", err)
	}
	evidence, err := json.Marshal(alert.Evidence)
	if err != nil {
		return fmt.Errorf("failed to marshal evidence: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO alerts (`+alertColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.ID.String(),
		string(alert.PrimaryType),
		string(scores),
		alert.FinalScore,
		string(alert.Severity),
		nullable(alert.LocationID),
		string(evidence),
		alert.RecommendedAction,
		alert.RequiresApproval,
		string(alert.Status),
		nullable(alert.AssignedTo),
		nullable(alert.Notes),
		alert.CreatedAt,
		alert.UpdatedAt,
	)
	metrics.RecordDBQuery("insert", "alerts", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// GetAlert fetches one alert by ID. Returns ErrNotFound when absent.
func (db *DB) GetAlert(ctx context.Context, id uuid.UUID) (*models.AlertDraft, error) {
	start := time.Now()

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id.String())

	alert, err := scanAlert(row)
	metrics.RecordDBQuery("select", "alerts", time.Since(start), ignoreNotFound(err))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return alert, nil
}

// ListAlerts returns alerts matching the filter, newest first.
func (db *DB) ListAlerts(ctx context.Context, filter models.AlertFilter) ([]*models.AlertDraft, error) {
	start := time.Now()

	var (
		clauses []string
		args    []interface{}
	)
	if filter.Domain != "" {
		clauses = append(clauses, "primary_type = ?")
		args = append(args, string(filter.Domain))
	}
	if len(filter.Severities) > 0 {
		placeholders := make([]string, len(filter.Severities))
		for i, s := range filter.Severities {
			placeholders[i] = "?"
			args = append(args, string(s))
		}
		clauses = append(clauses, "severity IN ("+strings.Join(placeholders, ", ")+")")
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, string(s))
		}
		clauses = append(clauses, "status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.LocationID != "" {
		clauses = append(clauses, "location_id = ?")
		args = append(args, filter.LocationID)
	}
	if filter.Since != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, *filter.Since)
	}
	if filter.Until != nil {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, *filter.Until)
	}

	query := `SELECT ` + alertColumns + ` FROM alerts`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("select", "alerts", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var alerts []*models.AlertDraft
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert row: %w", err)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("alert row iteration failed: %w", err)
	}
	return alerts, nil
}

// AcknowledgeAlert moves an alert to acknowledged and appends the
// operator's notes. Returns the updated alert.
func (db *DB) AcknowledgeAlert(ctx context.Context, id uuid.UUID, notes string, now time.Time) (*models.AlertDraft, error) {
	return db.updateAlert(ctx, id, func(args *[]interface{}) string {
		set := "status = ?, updated_at = ?"
		*args = append(*args, string(models.StatusAcknowledged), now)
		if notes != "" {
			set += ", notes = ?"
			*args = append(*args, notes)
		}
		return set
	})
}

// AssignAlert assigns an alert and moves it to in_progress. Returns
// the updated alert.
func (db *DB) AssignAlert(ctx context.Context, id uuid.UUID, assignee string, now time.Time) (*models.AlertDraft, error) {
	return db.updateAlert(ctx, id, func(args *[]interface{}) string {
		*args = append(*args, string(models.StatusInProgress), now, assignee)
		return "status = ?, updated_at = ?, assigned_to = ?"
	})
}

func (db *DB) updateAlert(ctx context.Context, id uuid.UUID, build func(*[]interface{}) string) (*models.AlertDraft, error) {
	start := time.Now()

	var args []interface{}
	set := build(&args)
	args = append(args, id.String())

	result, err := db.conn.ExecContext(ctx, "UPDATE alerts SET "+set+" WHERE id = ?", args...)
	metrics.RecordDBQuery("update", "alerts", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to update alert: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}
	return db.GetAlert(ctx, id)
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAlert(row rowScanner) (*models.AlertDraft, error) {
	var (
		alert      models.AlertDraft
		idStr      string
		scores     string
		evidence   sql.NullString
		locationID sql.NullString
		assignedTo sql.NullString
		notes      sql.NullString
	)

	err := row.Scan(
		&idStr,
		&alert.PrimaryType,
		&scores,
		&alert.FinalScore,
		&alert.Severity,
		&locationID,
		&evidence,
		&alert.RecommendedAction,
		&alert.RequiresApproval,
		&alert.Status,
		&assignedTo,
		&notes,
		&alert.CreatedAt,
		&alert.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	alert.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid alert id %q: %w", idStr, err)
	}
	if err := json.Unmarshal([]byte(scores), &alert.ComponentScores); err != nil {
		return nil, fmt.Errorf("invalid component scores for alert %s: %w", idStr, err)
	}
	if evidence.Valid && evidence.String != "" {
		if err := json.Unmarshal([]byte(evidence.String), &alert.Evidence); err != nil {
			return nil, fmt.Errorf("invalid evidence for alert %s: %w", idStr, err)
		}
	}
	alert.LocationID = locationID.String
	alert.AssignedTo = assignedTo.String
	alert.Notes = notes.String
	alert.CreatedAt = alert.CreatedAt.UTC()
	alert.UpdatedAt = alert.UpdatedAt.UTC()

	return &alert, nil
}

// nullable maps "" to SQL NULL.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// ignoreNotFound keeps expected ErrNoRows out of the error metrics.
func ignoreNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return err
}
