// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package eventprocessor

import (
	"context"
	"fmt"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/rcalloway/harbinger/internal/config"
	"github.com/rcalloway/harbinger/internal/logging"
)

// Pipeline owns the messaging side of the service: the optional embedded
// broker, the stream, the publisher, the subscriber and the router with
// the processor handler. It is run as one supervised service.
type Pipeline struct {
	cfg        config.NATSConfig
	embedded   *EmbeddedServer
	conn       *natsgo.Conn
	publisher  *Publisher
	subscriber *Subscriber
	router     *Router
	processor  *Processor
}

// NewPipeline starts the broker (when configured as embedded), ensures
// the stream exists and wires the router. The pipeline does not consume
// until Run is called. A nil processor builds a publish-only pipeline
// for api mode: no subscriber, no router, alerts are consumed elsewhere.
func NewPipeline(cfg config.NATSConfig, processor *Processor) (*Pipeline, error) {
	p := &Pipeline{cfg: cfg, processor: processor}

	url := cfg.URL
	if cfg.EmbeddedServer {
		embedded, err := NewEmbeddedServer(cfg)
		if err != nil {
			return nil, err
		}
		p.embedded = embedded
		url = embedded.ClientURL()
		p.cfg.URL = url
	}

	conn, err := natsgo.Connect(url,
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
	)
	if err != nil {
		p.shutdownEmbedded()
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	p.conn = conn

	js, err := jetstream.New(conn)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}
	init, err := NewStreamInitializer(js, DefaultStreamConfig())
	if err != nil {
		p.Close()
		return nil, err
	}
	if _, err := init.EnsureStream(context.Background()); err != nil {
		p.Close()
		return nil, err
	}

	logger := NewWatermillLogger()
	publisher, err := NewPublisher(p.cfg, logger)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.publisher = publisher
	if processor == nil {
		return p, nil
	}
	if processor.publisher == nil {
		// The publisher does not exist until the pipeline connects, so
		// fused-alert publishing is wired here rather than in NewProcessor.
		processor.publisher = publisher
	}

	subscriber, err := NewSubscriber(p.cfg, logger)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.subscriber = subscriber

	router, err := NewRouter(p.cfg, publisher, logger)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.router = router

	router.AddConsumerHandler("signal-processor", TopicSignalsRaw, subscriber, processor.HandleMessage)
	return p, nil
}

// AlertFeed opens a dedicated fused-alert subscription against the
// pipeline's broker. The caller owns the feed and closes it.
func (p *Pipeline) AlertFeed() (*AlertFeed, error) {
	return NewAlertFeed(p.cfg, nil)
}

// Publisher exposes the pipeline publisher for the ingest API.
func (p *Pipeline) Publisher() *Publisher {
	return p.publisher
}

// Connected reports broker connectivity for readiness checks.
func (p *Pipeline) Connected() bool {
	return p.conn != nil && p.conn.IsConnected()
}

// Run replays unconfirmed WAL entries and consumes until ctx is
// canceled. A publish-only pipeline has no router and just holds the
// connection open.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.processor != nil && p.processor.wal != nil {
		if err := p.processor.ReplayPending(ctx, p.processor.wal, p.publisher); err != nil {
			logging.Warn().Err(err).Msg("WAL replay incomplete")
		}
	}
	if p.router == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	return p.router.Run(ctx)
}

// Close tears the pipeline down in reverse construction order.
func (p *Pipeline) Close() error {
	var firstErr error
	if p.router != nil {
		if err := p.router.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if p.subscriber != nil {
		if err := p.subscriber.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if p.publisher != nil {
		if err := p.publisher.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if p.conn != nil {
		p.conn.Close()
	}
	p.shutdownEmbedded()
	return firstErr
}

func (p *Pipeline) shutdownEmbedded() {
	if p.embedded != nil {
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.CloseTimeout)
		defer cancel()
		if err := p.embedded.Shutdown(ctx); err != nil {
			logging.Warn().Err(err).Msg("Embedded NATS shutdown interrupted")
		}
	}
}
