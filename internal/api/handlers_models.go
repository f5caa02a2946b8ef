// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package api

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/rcalloway/harbinger/internal/models"
	"github.com/rcalloway/harbinger/internal/scoring"
	"github.com/rcalloway/harbinger/internal/validation"
)

// PredictRequest is the body of POST /api/v1/models/predict. Model
// names the domain scorer to run.
type PredictRequest struct {
	Model    string                 `json:"model" validate:"required"`
	Features map[string]interface{} `json:"features" validate:"required"`
}

// PredictResponse pairs a score with the normalized features that
// produced it.
type PredictResponse struct {
	Domain   models.Domain         `json:"domain"`
	Result   models.ScoreResult    `json:"result"`
	Features scoring.FeatureRecord `json:"features"`
}

// handleListModels serves GET /api/v1/models.
func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	infos := s.registry.Models()
	count := len(infos)
	respondJSON(w, http.StatusOK, map[string]interface{}{"models": infos}, &count)
}

// handlePredict serves POST /api/v1/models/predict. It runs a single
// payload through normalization and the domain scorer without touching
// the pipeline or stores.
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
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

	domain := models.Domain(req.Model)
	result, rec, err := s.registry.Predict(domain, req.Features)
	if err != nil {
		if errors.Is(err, scoring.ErrUnknownDomain) {
			respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "unknown model: "+req.Model)
			return
		}
		respondError(w, http.StatusUnprocessableEntity, models.ErrCodeValidation, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, PredictResponse{
		Domain:   domain,
		Result:   result,
		Features: rec,
	}, nil)
}
