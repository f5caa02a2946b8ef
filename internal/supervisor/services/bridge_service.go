// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package services

import "context"

// BridgeService supervises the broker-to-hub alert stream bridge used
// in api mode. Satisfied by *websocket.AlertSubscriber.
type BridgeService struct {
	bridge ContextRunner
}

// NewBridgeService wraps an alert stream bridge.
func NewBridgeService(bridge ContextRunner) *BridgeService {
	return &BridgeService{bridge: bridge}
}

// Serve implements suture.Service.
func (s *BridgeService) Serve(ctx context.Context) error {
	return s.bridge.RunWithContext(ctx)
}

// String identifies the service in supervisor logs.
func (s *BridgeService) String() string { return "alert-stream-bridge" }
