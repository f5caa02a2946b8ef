// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package websocket

import (
	"context"
	"sync"

	"github.com/goccy/go-json"

	"github.com/rcalloway/harbinger/internal/logging"
	"github.com/rcalloway/harbinger/internal/models"
)

// AlertSource delivers fused alert payloads from a broker subject. It
// lets the hub be fed from a broker when the pipeline runs in another
// process; in the single-binary layout the processor feeds the hub
// directly and no subscriber is needed.
type AlertSource interface {
	// Subscribe returns a channel of raw alert payloads for the topic.
	// The channel closes when the source shuts down.
	Subscribe(ctx context.Context, topic string) (<-chan []byte, error)
	Close() error
}

// AlertSubscriber bridges a broker alert subject to hub broadcasts.
type AlertSubscriber struct {
	hub    *Hub
	source AlertSource
	topic  string

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewAlertSubscriber creates a broker-to-hub bridge for the given topic.
func NewAlertSubscriber(hub *Hub, source AlertSource, topic string) *AlertSubscriber {
	return &AlertSubscriber{
		hub:    hub,
		source: source,
		topic:  topic,
	}
}

// Start subscribes to the alert topic and begins forwarding to the hub.
// Calling Start on a running subscriber is a no-op. A stopped
// subscriber can be started again.
func (s *AlertSubscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	messages, err := s.source.Subscribe(ctx, s.topic)
	if err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	}

	go s.forward(ctx, messages, stopCh, doneCh)

	logging.Info().Str("topic", s.topic).Msg("Alert stream subscriber started")
	return nil
}

// Stop halts forwarding and waits for the worker to exit.
func (s *AlertSubscriber) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)
	<-doneCh
	logging.Info().Str("topic", s.topic).Msg("Alert stream subscriber stopped")
}

// RunWithContext runs the bridge until ctx is canceled. Designed to run
// under a supervisor alongside the hub.
func (s *AlertSubscriber) RunWithContext(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return ctx.Err()
}

func (s *AlertSubscriber) forward(ctx context.Context, messages <-chan []byte, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case data, ok := <-messages:
			if !ok {
				return
			}
			s.handlePayload(data)
		}
	}
}

func (s *AlertSubscriber) handlePayload(data []byte) {
	var alert models.AlertDraft
	if err := json.Unmarshal(data, &alert); err != nil {
		logging.Warn().Err(err).Str("topic", s.topic).Msg("Discarding undecodable alert payload")
		return
	}
	s.hub.BroadcastAlert(&alert)
}
