// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package api

import (
	"net/http"

	"github.com/rcalloway/harbinger/internal/logging"
	"github.com/rcalloway/harbinger/internal/models"
)

// handleGetStats serves GET /api/v1/stats. Uptime is computed here
// rather than in storage so the stats store stays a pure aggregate.
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.GetSystemStats(r.Context())
	if err != nil {
		logging.CtxWarn(r.Context()).Err(err).Msg("Stats query failed")
		respondError(w, http.StatusInternalServerError, models.ErrCodeDatabase, "failed to compute stats")
		return
	}

	stats.SystemUptime = s.clock.Since(s.startedAt).Seconds()
	respondJSON(w, http.StatusOK, stats, nil)
}
