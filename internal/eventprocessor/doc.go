// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

/*
Package eventprocessor is the signal ingest pipeline.

Raw events enter on the signals.raw subject of an embedded (or external)
NATS JetStream broker and are consumed by a durable queue subscriber
through a watermill router. The router chain is panic recovery, retry with
exponential backoff, optional throttling, and a poison queue for messages
that exhaust their retries.

The Processor handler scores every domain an event activates, fuses the
scores into at most one alert, persists it, and fans it out to the
notification channels, the live alert stream and the alerts.fused subject.
When a write-ahead log is configured the handler confirms each event's WAL
entry after processing, and replays unconfirmed entries at startup.
*/
package eventprocessor
