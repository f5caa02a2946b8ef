// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package eventprocessor

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jonboulle/clockwork"

	"github.com/rcalloway/harbinger/internal/logging"
	"github.com/rcalloway/harbinger/internal/metrics"
	"github.com/rcalloway/harbinger/internal/models"
	"github.com/rcalloway/harbinger/internal/wal"
)

// Ingestor is the write path from the ingest API into the pipeline. An
// event is appended to the WAL before it is published; its WAL entry
// travels in message metadata and is confirmed by the processor. Events
// survive a crash between accept and publish.
type Ingestor struct {
	wal   wal.WAL
	pub   message.Publisher
	clock clockwork.Clock
}

// NewIngestor wires an ingestor. wal may be nil to skip durability.
func NewIngestor(w wal.WAL, pub message.Publisher, clock clockwork.Clock) *Ingestor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Ingestor{wal: w, pub: pub, clock: clock}
}

// Ingest accepts a raw event and hands it to the pipeline. The stamped
// event is returned for the API response.
func (i *Ingestor) Ingest(ctx context.Context, source, eventType, locationID string, payload map[string]interface{}) (*models.SignalEvent, error) {
	event := NewSignalEvent(source, payload, i.clock.Now())
	event.EventType = eventType
	event.LocationID = locationID

	var walID string
	if i.wal != nil {
		id, err := i.wal.Write(ctx, event)
		if err != nil {
			return nil, fmt.Errorf("append event to WAL: %w", err)
		}
		walID = id
	}

	msg, err := MarshalEvent(event)
	if err != nil {
		return nil, err
	}
	if walID != "" {
		msg.Metadata.Set(MetadataWALID, walID)
	}
	if corrID := logging.CorrelationIDFromContext(ctx); corrID != "" {
		msg.Metadata.Set(MetadataCorrelationID, corrID)
	}

	if err := i.pub.Publish(TopicSignalsRaw, msg); err != nil {
		// The WAL still holds the entry; startup replay will retry it.
		return nil, fmt.Errorf("publish event: %w", err)
	}

	metrics.EventsIngested.WithLabelValues(source).Inc()
	return event, nil
}
