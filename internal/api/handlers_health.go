// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rcalloway/harbinger/internal/logging"
)

const readinessProbeTimeout = 2 * time.Second

type healthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// handleHealthz is the liveness probe. It answers as long as the
// process can serve HTTP.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthStatus{Status: "ok"})
}

// handleReadyz is the readiness probe. Storage and the broker must
// both answer before traffic is admitted.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessProbeTimeout)
	defer cancel()

	checks := map[string]string{
		"database": "ok",
		"pipeline": "ok",
	}
	ready := true

	if s.pinger != nil {
		if err := s.pinger.Ping(ctx); err != nil {
			logging.CtxWarn(r.Context()).Err(err).Msg("Readiness database ping failed")
			checks["database"] = err.Error()
			ready = false
		}
	}
	if s.pipeline != nil && !s.pipeline.Connected() {
		checks["pipeline"] = "disconnected"
		ready = false
	}

	if !ready {
		writeJSON(w, http.StatusServiceUnavailable, healthStatus{Status: "unavailable", Checks: checks})
		return
	}
	writeJSON(w, http.StatusOK, healthStatus{Status: "ready", Checks: checks})
}
