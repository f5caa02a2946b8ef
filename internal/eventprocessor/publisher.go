// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package eventprocessor

import (
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rcalloway/harbinger/internal/config"
	"github.com/rcalloway/harbinger/internal/models"
)

// Publisher wraps a watermill NATS publisher with circuit breaker
// protection. The message UUID doubles as the Nats-Msg-Id so the stream's
// deduplication window suppresses republished events.
type Publisher struct {
	publisher message.Publisher
	cb        *gobreaker.CircuitBreaker[struct{}]
	mu        sync.RWMutex
	closed    bool
}

// NewPublisher connects a JetStream publisher with reconnect handling.
func NewPublisher(cfg config.NATSConfig, logger watermill.LoggerAdapter) (*Publisher, error) {
	if logger == nil {
		logger = NewWatermillLogger()
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(time.Second),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	wmConfig := wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:    "nats-publish",
		Timeout: 10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Publisher{publisher: pub, cb: cb}, nil
}

var _ message.Publisher = (*Publisher)(nil)

// Publish sends messages to the topic through the circuit breaker.
func (p *Publisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return fmt.Errorf("publisher is closed")
	}
	p.mu.RUnlock()

	for _, msg := range messages {
		if msg.Metadata.Get(natsgo.MsgIdHdr) == "" {
			msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
		}
	}

	_, err := p.cb.Execute(func() (struct{}, error) {
		return struct{}{}, p.publisher.Publish(topic, messages...)
	})
	return err
}

// PublishEvent serializes and publishes a raw signal event.
func (p *Publisher) PublishEvent(topic string, event *models.SignalEvent) error {
	msg, err := MarshalEvent(event)
	if err != nil {
		return err
	}
	return p.Publish(topic, msg)
}

// PublishAlert serializes and publishes a fused alert.
func (p *Publisher) PublishAlert(topic string, alert *models.AlertDraft) error {
	msg, err := MarshalAlert(alert)
	if err != nil {
		return err
	}
	return p.Publish(topic, msg)
}

// Close shuts the publisher down. Further publishes fail fast.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
