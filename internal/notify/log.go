// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package notify

import (
	"context"

	"github.com/rcalloway/harbinger/internal/logging"
	"github.com/rcalloway/harbinger/internal/models"
)

// LogNotifier writes every alert to the structured log. It is always
// configured so that alerts are visible even without a webhook receiver.
type LogNotifier struct{}

var _ Notifier = (*LogNotifier)(nil)

// NewLogNotifier creates the log channel.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Name returns the channel name.
func (n *LogNotifier) Name() string {
	return "log"
}

// Notify logs the alert at a level matching its severity.
func (n *LogNotifier) Notify(_ context.Context, alert *models.AlertDraft) error {
	evt := logging.Info()
	if alert.Severity == models.SeverityCritical || alert.Severity == models.SeverityWarning {
		evt = logging.Warn()
	}
	evt.
		Str("alert_id", alert.ID.String()).
		Str("severity", string(alert.Severity)).
		Str("primary_type", string(alert.PrimaryType)).
		Float64("final_score", alert.FinalScore).
		Bool("requires_approval", alert.RequiresApproval).
		Str("location_id", alert.LocationID).
		Msg("Alert raised")
	return nil
}
