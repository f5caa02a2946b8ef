// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

// Package audit defines the audit trail entries recorded for alert
// workflow actions.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action identifies the kind of audited operation.
type Action string

const (
	ActionCreateAlert      Action = "CREATE_ALERT"
	ActionAcknowledgeAlert Action = "ACKNOWLEDGE_ALERT"
	ActionAssignAlert      Action = "ASSIGN_ALERT"
	ActionSubmitFeedback   Action = "SUBMIT_FEEDBACK"
)

// Entry is one audit record. Actor is the authenticated subject, or
// "anonymous" in dev mode.
type Entry struct {
	ID        uuid.UUID `json:"id"`
	Action    Action    `json:"action"`
	AlertID   uuid.UUID `json:"alert_id,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewEntry builds an entry with a fresh ID.
func NewEntry(action Action, alertID uuid.UUID, actor, detail string, now time.Time) *Entry {
	return &Entry{
		ID:        uuid.New(),
		Action:    action,
		AlertID:   alertID,
		Actor:     actor,
		Detail:    detail,
		CreatedAt: now,
	}
}
