// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/rcalloway/harbinger/internal/audit"
	"github.com/rcalloway/harbinger/internal/database"
	"github.com/rcalloway/harbinger/internal/logging"
	"github.com/rcalloway/harbinger/internal/models"
	"github.com/rcalloway/harbinger/internal/websocket"
)

const (
	defaultAlertLimit = 50
	maxAlertLimit     = 500
)

// AcknowledgeRequest is the body of POST /api/v1/alerts/{id}/ack.
type AcknowledgeRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

// AssignRequest is the body of POST /api/v1/alerts/{id}/assign.
type AssignRequest struct {
	Assignee string `json:"assignee" validate:"required,max=128"`
}

// handleListAlerts serves GET /api/v1/alerts with optional filters:
// domain, severity (CSV), status (CSV), location_id, since, until,
// limit, offset.
func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	filter, ok := s.parseAlertFilter(w, r)
	if !ok {
		return
	}

	alerts, err := s.alerts.ListAlerts(r.Context(), filter)
	if err != nil {
		logging.CtxWarn(r.Context()).Err(err).Msg("Alert list query failed")
		respondError(w, http.StatusInternalServerError, models.ErrCodeDatabase, "failed to list alerts")
		return
	}

	count := len(alerts)
	respondJSON(w, http.StatusOK, map[string]interface{}{"alerts": alerts}, &count)
}

func (s *Server) parseAlertFilter(w http.ResponseWriter, r *http.Request) (models.AlertFilter, bool) {
	q := r.URL.Query()
	filter := models.AlertFilter{
		LocationID: q.Get("location_id"),
		Limit:      getIntParam(r, "limit", defaultAlertLimit, 1, maxAlertLimit),
		Offset:     getIntParam(r, "offset", 0, 0, 1<<30),
	}

	if raw := q.Get("domain"); raw != "" {
		domain := models.Domain(raw)
		if !models.IsKnownDomain(domain) {
			respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "unknown domain: "+raw)
			return filter, false
		}
		filter.Domain = domain
	}

	for _, raw := range parseCommaSeparated(q.Get("severity")) {
		severity := models.Severity(raw)
		if !severityKnown(severity) {
			respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "unknown severity: "+raw)
			return filter, false
		}
		filter.Severities = append(filter.Severities, severity)
	}

	for _, raw := range parseCommaSeparated(q.Get("status")) {
		status := models.AlertStatus(raw)
		if !models.IsValidStatus(status) {
			respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "unknown status: "+raw)
			return filter, false
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	for name, dst := range map[string]**time.Time{"since": &filter.Since, "until": &filter.Until} {
		if raw := q.Get(name); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				respondError(w, http.StatusBadRequest, models.ErrCodeValidation, name+" must be RFC3339")
				return filter, false
			}
			*dst = &t
		}
	}

	return filter, true
}

func severityKnown(s models.Severity) bool {
	for _, known := range models.SeveritiesDescending {
		if s == known {
			return true
		}
	}
	return false
}

// handleGetAlert serves GET /api/v1/alerts/{id}.
func (s *Server) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := alertIDFromURL(w, r)
	if !ok {
		return
	}

	alert, err := s.alerts.GetAlert(r.Context(), id)
	if err != nil {
		respondAlertLookupError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, alert, nil)
}

// handleAcknowledgeAlert serves POST /api/v1/alerts/{id}/ack.
func (s *Server) handleAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := alertIDFromURL(w, r)
	if !ok {
		return
	}

	var req AcknowledgeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "invalid JSON body")
			return
		}
	}

	now := s.clock.Now().UTC()
	alert, err := s.alerts.AcknowledgeAlert(r.Context(), id, req.Notes, now)
	if err != nil {
		respondAlertLookupError(w, r, err)
		return
	}
	s.recordWorkflowAudit(r, audit.ActionAcknowledgeAlert, id, req.Notes, now)
	respondJSON(w, http.StatusOK, alert, nil)
}

// handleAssignAlert serves POST /api/v1/alerts/{id}/assign.
func (s *Server) handleAssignAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := alertIDFromURL(w, r)
	if !ok {
		return
	}

	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "invalid JSON body")
		return
	}
	if req.Assignee == "" {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "assignee is required")
		return
	}

	now := s.clock.Now().UTC()
	alert, err := s.alerts.AssignAlert(r.Context(), id, req.Assignee, now)
	if err != nil {
		respondAlertLookupError(w, r, err)
		return
	}
	s.recordWorkflowAudit(r, audit.ActionAssignAlert, id, "assigned to "+req.Assignee, now)
	respondJSON(w, http.StatusOK, alert, nil)
}

// handleAlertStream upgrades GET /api/v1/alerts/stream to a websocket
// fed by the hub.
func (s *Server) handleAlertStream(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		respondError(w, http.StatusServiceUnavailable, models.ErrCodeInternal, "alert stream is not enabled")
		return
	}
	websocket.ServeWS(s.hub, w, r)
}

func (s *Server) recordWorkflowAudit(r *http.Request, action audit.Action, alertID uuid.UUID, detail string, now time.Time) {
	actor := SubjectFromContext(r.Context())
	if actor == "" {
		actor = OrgFromContext(r.Context())
	}
	entry := audit.NewEntry(action, alertID, actor, detail, now)
	if err := s.alerts.InsertAuditEntry(r.Context(), entry); err != nil {
		logging.CtxWarn(r.Context()).Err(err).Str("alert_id", alertID.String()).Msg("Audit write failed")
	}
}

func alertIDFromURL(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "alert id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func respondAlertLookupError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, models.ErrCodeNotFound, "alert not found")
		return
	}
	logging.CtxWarn(r.Context()).Err(err).Msg("Alert query failed")
	respondError(w, http.StatusInternalServerError, models.ErrCodeDatabase, "alert query failed")
}
