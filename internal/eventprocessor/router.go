// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package eventprocessor

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/rcalloway/harbinger/internal/config"
	"github.com/rcalloway/harbinger/internal/metrics"
)

// Router wraps the watermill router with the pipeline middleware chain:
// panic recovery, exponential backoff retry, optional throttling, and a
// poison queue for messages that exhaust their retries.
type Router struct {
	router *message.Router
	logger watermill.LoggerAdapter
}

// NewRouter builds the router from pipeline config. poisonPublisher may be
// nil to disable the poison queue.
func NewRouter(cfg config.NATSConfig, poisonPublisher message.Publisher, logger watermill.LoggerAdapter) (*Router, error) {
	if logger == nil {
		logger = NewWatermillLogger()
	}

	closeTimeout := cfg.CloseTimeout
	if closeTimeout <= 0 {
		closeTimeout = 30 * time.Second
	}

	wmRouter, err := message.NewRouter(message.RouterConfig{CloseTimeout: closeTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	wmRouter.AddMiddleware(middleware.Recoverer)

	retry := middleware.Retry{
		MaxRetries:      cfg.RetryCount,
		InitialInterval: cfg.RetryInterval,
		MaxInterval:     time.Minute,
		Multiplier:      2.0,
		Logger:          logger,
	}
	wmRouter.AddMiddleware(retry.Middleware)

	if cfg.ThrottlePerSec > 0 {
		throttle := middleware.NewThrottle(cfg.ThrottlePerSec, time.Second)
		wmRouter.AddMiddleware(throttle.Middleware)
	}

	if poisonPublisher != nil && cfg.PoisonQueueTopic != "" {
		poison, err := middleware.PoisonQueue(&countingPublisher{inner: poisonPublisher}, cfg.PoisonQueueTopic)
		if err != nil {
			return nil, fmt.Errorf("create poison queue middleware: %w", err)
		}
		wmRouter.AddMiddleware(poison)
	}

	return &Router{router: wmRouter, logger: logger}, nil
}

// countingPublisher counts every message routed to the poison queue.
type countingPublisher struct {
	inner message.Publisher
}

func (p *countingPublisher) Publish(topic string, messages ...*message.Message) error {
	if err := p.inner.Publish(topic, messages...); err != nil {
		return err
	}
	metrics.PoisonedMessages.Add(float64(len(messages)))
	return nil
}

func (p *countingPublisher) Close() error {
	return p.inner.Close()
}

// AddConsumerHandler registers a no-output handler for a topic.
func (r *Router) AddConsumerHandler(name, topic string, subscriber message.Subscriber, handler message.NoPublishHandlerFunc) {
	r.router.AddConsumerHandler(name, topic, subscriber, handler)
}

// Run starts the router and blocks until the context is canceled.
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Running returns a channel closed once all handlers are started.
func (r *Router) Running() chan struct{} {
	return r.router.Running()
}

// Close stops the router, waiting up to the close timeout for in-flight
// handlers.
func (r *Router) Close() error {
	return r.router.Close()
}
