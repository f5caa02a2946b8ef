// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package services

import "context"

// ContextRunner is any component whose main loop takes a context and
// runs until canceled. Satisfied by *websocket.Hub.
type ContextRunner interface {
	RunWithContext(ctx context.Context) error
}

// HubService supervises the websocket broadcast hub. The hub's run
// loop already follows the suture contract, so this only adds a name.
type HubService struct {
	hub ContextRunner
}

// NewHubService wraps a websocket hub.
func NewHubService(hub ContextRunner) *HubService {
	return &HubService{hub: hub}
}

// Serve implements suture.Service.
func (s *HubService) Serve(ctx context.Context) error {
	return s.hub.RunWithContext(ctx)
}

// String identifies the service in supervisor logs.
func (s *HubService) String() string { return "websocket-hub" }
