// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package eventprocessor

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/rcalloway/harbinger/internal/config"
)

// messageSource is the subscriber surface AlertFeed consumes. Narrowed
// so tests can feed messages without a broker.
type messageSource interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
	Close() error
}

// AlertFeed adapts a broker subscription to a raw payload channel for
// the websocket hub's stream subscriber. Used in api mode, where fused
// alerts arrive over the broker instead of in-process. Messages are
// acked on hand-off; a dropped frame is acceptable for a live stream.
type AlertFeed struct {
	source messageSource
}

// NewAlertFeed binds a dedicated durable subscriber for the fused alert
// subject. The durable and queue group get a "-stream" suffix so the
// feed never competes with the signal processor's queue group.
func NewAlertFeed(cfg config.NATSConfig, logger watermill.LoggerAdapter) (*AlertFeed, error) {
	feedCfg := cfg
	feedCfg.DurableName = cfg.DurableName + "-stream"
	feedCfg.QueueGroup = cfg.QueueGroup + "-stream"
	feedCfg.SubscribersCount = 1

	sub, err := NewSubscriber(feedCfg, logger)
	if err != nil {
		return nil, err
	}
	return &AlertFeed{source: sub}, nil
}

// Subscribe returns a channel of raw alert payloads for the topic. The
// channel closes when the subscription ends or ctx is canceled.
func (f *AlertFeed) Subscribe(ctx context.Context, topic string) (<-chan []byte, error) {
	messages, err := f.source.Subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}

	out := make(chan []byte)
	go func() {
		defer close(out)
		for msg := range messages {
			select {
			case out <- msg.Payload:
				msg.Ack()
			case <-ctx.Done():
				msg.Nack()
				return
			}
		}
	}()
	return out, nil
}

// Close shuts the underlying subscription down.
func (f *AlertFeed) Close() error {
	return f.source.Close()
}
