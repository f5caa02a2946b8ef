// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

// Package testinfra provides container-backed infrastructure for
// integration tests, built on testcontainers-go.
//
// Everything here is behind the integration build tag; unit tests use
// the embedded NATS server and in-memory stores instead.
//
// # NATS Container
//
// NATSContainer runs a real nats-server with JetStream enabled:
//
//	func TestPipelineAgainstRealBroker(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    broker, err := testinfra.NewNATSContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, broker.Container)
//
//	    cfg := config.NATSConfig{URL: broker.URL, ...}
//	    // exercise the pipeline against broker.URL
//	}
package testinfra
