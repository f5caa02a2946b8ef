// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package eventprocessor

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/rcalloway/harbinger/internal/models"
)

// NATS subjects used by the pipeline. Raw signal events go in on
// TopicSignalsRaw; fused alerts come out on TopicAlertsFused. Messages
// that exhaust their retries land on the configured poison queue topic.
const (
	TopicSignalsRaw  = "signals.raw"
	TopicAlertsFused = "alerts.fused"
)

// Message metadata keys.
const (
	MetadataWALID         = "wal_id"
	MetadataCorrelationID = "correlation_id"
	MetadataSource        = "source"
)

// NewSignalEvent stamps a raw event with an ID and receive time.
func NewSignalEvent(source string, payload map[string]interface{}, now time.Time) *models.SignalEvent {
	return &models.SignalEvent{
		EventID:    uuid.New(),
		Source:     source,
		Payload:    payload,
		ReceivedAt: now.UTC(),
	}
}

// MarshalEvent wraps a signal event in a watermill message. The event ID
// becomes the message UUID so JetStream deduplication sees a stable key.
func MarshalEvent(event *models.SignalEvent) (*message.Message, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal signal event: %w", err)
	}
	msg := message.NewMessage(event.EventID.String(), body)
	msg.Metadata.Set(MetadataSource, event.Source)
	return msg, nil
}

// UnmarshalEvent decodes a signal event from a watermill message.
func UnmarshalEvent(msg *message.Message) (*models.SignalEvent, error) {
	var event models.SignalEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return nil, fmt.Errorf("unmarshal signal event %s: %w", msg.UUID, err)
	}
	if event.EventID == uuid.Nil {
		if id, err := uuid.Parse(msg.UUID); err == nil {
			event.EventID = id
		} else {
			event.EventID = uuid.New()
		}
	}
	return &event, nil
}

// MarshalAlert wraps a stored alert for the fused alert topic.
func MarshalAlert(alert *models.AlertDraft) (*message.Message, error) {
	body, err := json.Marshal(alert)
	if err != nil {
		return nil, fmt.Errorf("marshal alert %s: %w", alert.ID, err)
	}
	return message.NewMessage(alert.ID.String(), body), nil
}
