// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package api

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/rcalloway/harbinger/internal/logging"
	"github.com/rcalloway/harbinger/internal/models"
	"github.com/rcalloway/harbinger/internal/validation"
)

// IngestEventRequest is the body of POST /api/v1/events.
type IngestEventRequest struct {
	Source     string                 `json:"source" validate:"required,max=64"`
	EventType  string                 `json:"event_type" validate:"max=64"`
	LocationID string                 `json:"location_id" validate:"max=128"`
	Payload    map[string]interface{} `json:"payload" validate:"required"`
}

// IngestEventResponse acknowledges an accepted event.
type IngestEventResponse struct {
	EventID string `json:"event_id"`
	Status  string `json:"status"`
}

// handleIngestEvent accepts a raw signal event. The event is durably
// queued, not yet processed, hence 202.
func (s *Server) handleIngestEvent(w http.ResponseWriter, r *http.Request) {
	var req IngestEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "invalid JSON body")
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		var reqErr *validation.RequestValidationError
		if errors.As(err, &reqErr) {
			respondAPIError(w, http.StatusBadRequest, reqErr.ToAPIError())
			return
		}
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, err.Error())
		return
	}

	event, err := s.ingestor.Ingest(r.Context(), req.Source, req.EventType, req.LocationID, req.Payload)
	if err != nil {
		logging.CtxWarn(r.Context()).Err(err).Str("source", req.Source).Msg("Event ingest failed")
		respondError(w, http.StatusServiceUnavailable, models.ErrCodePublish, "event could not be queued")
		return
	}

	respondJSON(w, http.StatusAccepted, IngestEventResponse{
		EventID: event.EventID.String(),
		Status:  "ingested",
	}, nil)
}
