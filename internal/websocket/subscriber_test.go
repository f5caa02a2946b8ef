// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package websocket

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

type mockAlertSource struct {
	messages  chan []byte
	subscribe error
	topic     string
	closed    bool
}

func (m *mockAlertSource) Subscribe(_ context.Context, topic string) (<-chan []byte, error) {
	if m.subscribe != nil {
		return nil, m.subscribe
	}
	m.topic = topic
	return m.messages, nil
}

func (m *mockAlertSource) Close() error {
	m.closed = true
	return nil
}

func TestAlertSubscriberForwardsToHub(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.RunWithContext(ctx) }()

	client := testClient()
	hub.Register <- client
	waitForClientCount(t, hub, 1)

	source := &mockAlertSource{messages: make(chan []byte, 4)}
	sub := NewAlertSubscriber(hub, source, "alerts.fused")
	if err := sub.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer sub.Stop()

	if source.topic != "alerts.fused" {
		t.Errorf("subscribed topic = %q, want alerts.fused", source.topic)
	}

	alert := testAlert()
	payload, err := json.Marshal(alert)
	if err != nil {
		t.Fatalf("marshal alert: %v", err)
	}
	source.messages <- payload

	select {
	case msg := <-client.send:
		if msg.Type != MessageTypeAlert {
			t.Errorf("message type = %q, want %q", msg.Type, MessageTypeAlert)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("alert not forwarded to client")
	}
}

func TestAlertSubscriberSkipsGarbage(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.RunWithContext(ctx) }()

	client := testClient()
	hub.Register <- client
	waitForClientCount(t, hub, 1)

	source := &mockAlertSource{messages: make(chan []byte, 4)}
	sub := NewAlertSubscriber(hub, source, "alerts.fused")
	if err := sub.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer sub.Stop()

	source.messages <- []byte("not json")

	select {
	case msg := <-client.send:
		t.Errorf("unexpected message forwarded: %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestAlertSubscriberSubscribeFailure(t *testing.T) {
	wantErr := errors.New("broker down")
	sub := NewAlertSubscriber(NewHub(), &mockAlertSource{subscribe: wantErr}, "alerts.fused")

	if err := sub.Start(context.Background()); !errors.Is(err, wantErr) {
		t.Errorf("Start() error = %v, want %v", err, wantErr)
	}
}

func TestAlertSubscriberRunWithContext(t *testing.T) {
	hub := NewHub()
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go func() { _ = hub.RunWithContext(hubCtx) }()

	client := testClient()
	hub.Register <- client
	waitForClientCount(t, hub, 1)

	source := &mockAlertSource{messages: make(chan []byte, 4)}
	sub := NewAlertSubscriber(hub, source, "alerts.fused")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.RunWithContext(ctx) }()

	payload, err := json.Marshal(testAlert())
	if err != nil {
		t.Fatalf("marshal alert: %v", err)
	}
	source.messages <- payload
	select {
	case <-client.send:
	case <-time.After(2 * time.Second):
		t.Fatal("alert not forwarded while running")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("RunWithContext() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RunWithContext did not return after cancel")
	}
}

func TestAlertSubscriberRestartAfterStop(t *testing.T) {
	source := &mockAlertSource{messages: make(chan []byte, 1)}
	sub := NewAlertSubscriber(NewHub(), source, "alerts.fused")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sub.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	sub.Stop()

	if err := sub.Start(ctx); err != nil {
		t.Fatalf("restart Start() error = %v", err)
	}
	sub.Stop()
}

func TestAlertSubscriberStartIdempotent(t *testing.T) {
	source := &mockAlertSource{messages: make(chan []byte)}
	sub := NewAlertSubscriber(NewHub(), source, "alerts.fused")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sub.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := sub.Start(ctx); err != nil {
		t.Errorf("second Start() error = %v", err)
	}
	sub.Stop()
	// Stop after stop is a no-op.
	sub.Stop()
}
