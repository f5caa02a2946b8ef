// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package services

import (
	"context"
	"errors"
	"fmt"
)

// PipelineRunner is the run surface of the event pipeline: replay
// pending WAL entries, then consume until the context is canceled.
type PipelineRunner interface {
	Run(ctx context.Context) error
}

// PipelineService supervises the NATS processing pipeline. A broker
// failure surfaces as a returned error, and suture restarts the run
// loop with backoff.
type PipelineService struct {
	pipeline PipelineRunner
}

// NewPipelineService wraps the event pipeline.
func NewPipelineService(pipeline PipelineRunner) *PipelineService {
	return &PipelineService{pipeline: pipeline}
}

// Serve implements suture.Service.
func (s *PipelineService) Serve(ctx context.Context) error {
	err := s.pipeline.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("pipeline stopped: %w", err)
	}
	return ctx.Err()
}

// String identifies the service in supervisor logs.
func (s *PipelineService) String() string { return "event-pipeline" }
