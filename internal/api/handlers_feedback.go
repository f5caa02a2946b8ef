// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package api

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/rcalloway/harbinger/internal/audit"
	"github.com/rcalloway/harbinger/internal/database"
	"github.com/rcalloway/harbinger/internal/logging"
	"github.com/rcalloway/harbinger/internal/models"
)

// FeedbackRequest is the body of POST /api/v1/feedback.
type FeedbackRequest struct {
	AlertID string `json:"alert_id" validate:"required,uuid"`
	Outcome string `json:"outcome" validate:"required"`
	Notes   string `json:"notes" validate:"max=2000"`
}

// FeedbackResponse acknowledges a stored feedback entry.
type FeedbackResponse struct {
	FeedbackID uuid.UUID `json:"feedback_id"`
	Status     string    `json:"status"`
}

// handleSubmitFeedback serves POST /api/v1/feedback. Feedback is the
// raw material for threshold tuning, so unknown alerts are rejected
// rather than stored dangling.
func (s *Server) handleSubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "invalid JSON body")
		return
	}

	alertID, err := uuid.Parse(req.AlertID)
	if err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "alert_id must be a UUID")
		return
	}
	outcome := models.FeedbackOutcome(req.Outcome)
	if !models.IsValidOutcome(outcome) {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "unknown outcome: "+req.Outcome)
		return
	}

	actor := SubjectFromContext(r.Context())
	if actor == "" {
		actor = OrgFromContext(r.Context())
	}
	now := s.clock.Now().UTC()
	fb := &models.Feedback{
		ID:        uuid.New(),
		AlertID:   alertID,
		Outcome:   outcome,
		Notes:     req.Notes,
		Actor:     actor,
		CreatedAt: now,
	}

	if err := s.feedback.InsertFeedback(r.Context(), fb); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, models.ErrCodeNotFound, "alert not found")
			return
		}
		logging.CtxWarn(r.Context()).Err(err).Msg("Feedback insert failed")
		respondError(w, http.StatusInternalServerError, models.ErrCodeDatabase, "failed to store feedback")
		return
	}

	s.recordWorkflowAudit(r, audit.ActionSubmitFeedback, alertID, "feedback: "+req.Outcome, now)
	respondJSON(w, http.StatusCreated, FeedbackResponse{FeedbackID: fb.ID, Status: "submitted"}, nil)
}
