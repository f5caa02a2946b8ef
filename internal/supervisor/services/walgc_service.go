// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package services

import (
	"context"
	"time"

	"github.com/rcalloway/harbinger/internal/logging"
)

const defaultGCInterval = 5 * time.Minute

// GarbageCollector is the maintenance surface of the write-ahead log.
type GarbageCollector interface {
	RunGC(gcRatio float64) error
}

// WALGCService periodically reclaims value log space from confirmed
// WAL entries. GC failures are logged, not fatal; a full value log
// degrades disk usage, not correctness.
type WALGCService struct {
	wal      GarbageCollector
	interval time.Duration
	gcRatio  float64
}

// NewWALGCService wraps a WAL garbage collection loop.
func NewWALGCService(wal GarbageCollector, interval time.Duration) *WALGCService {
	if interval <= 0 {
		interval = defaultGCInterval
	}
	return &WALGCService{wal: wal, interval: interval, gcRatio: 0.5}
}

// Serve implements suture.Service.
func (s *WALGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.wal.RunGC(s.gcRatio); err != nil {
				logging.Warn().Err(err).Msg("WAL garbage collection failed")
			}
		}
	}
}

// String identifies the service in supervisor logs.
func (s *WALGCService) String() string { return "wal-gc" }
