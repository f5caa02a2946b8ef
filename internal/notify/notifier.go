// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

// Package notify delivers fused alerts to external channels. Every alert
// is rendered as a CAP 1.2 style payload before leaving the process.
package notify

import (
	"context"

	"github.com/rcalloway/harbinger/internal/logging"
	"github.com/rcalloway/harbinger/internal/metrics"
	"github.com/rcalloway/harbinger/internal/models"
)

// Notifier delivers a single alert to one channel.
type Notifier interface {
	// Name identifies the channel in logs and metrics.
	Name() string

	// Notify delivers the alert. Implementations must respect ctx
	// cancellation and return the last delivery error.
	Notify(ctx context.Context, alert *models.AlertDraft) error
}

// Dispatcher fans an alert out to all configured notifiers. A failure on
// one channel never blocks the others; failures are logged and counted.
type Dispatcher struct {
	notifiers []Notifier
}

// NewDispatcher creates a dispatcher over the given notifiers.
func NewDispatcher(notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{notifiers: notifiers}
}

// Dispatch sends the alert to every channel in order.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *models.AlertDraft) {
	if alert == nil {
		return
	}
	for _, n := range d.notifiers {
		err := n.Notify(ctx, alert)
		metrics.RecordNotification(n.Name(), err)
		if err != nil {
			logging.Warn().
				Err(err).
				Str("channel", n.Name()).
				Str("alert_id", alert.ID.String()).
				Msg("Alert notification failed")
		}
	}
}
