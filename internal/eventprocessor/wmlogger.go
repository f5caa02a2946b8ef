// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package eventprocessor

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"

	"github.com/rcalloway/harbinger/internal/logging"
)

// zerologAdapter routes watermill's internal logs through the process-wide
// zerolog logger so pipeline logs share one output and format.
type zerologAdapter struct {
	fields watermill.LogFields
}

// NewWatermillLogger returns a watermill.LoggerAdapter backed by zerolog.
func NewWatermillLogger() watermill.LoggerAdapter {
	return &zerologAdapter{}
}

func (a *zerologAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.emit(logging.Error().Err(err), msg, fields)
}

func (a *zerologAdapter) Info(msg string, fields watermill.LogFields) {
	a.emit(logging.Info(), msg, fields)
}

func (a *zerologAdapter) Debug(msg string, fields watermill.LogFields) {
	a.emit(logging.Debug(), msg, fields)
}

func (a *zerologAdapter) Trace(msg string, fields watermill.LogFields) {
	a.emit(logging.Debug(), msg, fields)
}

func (a *zerologAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &zerologAdapter{fields: a.fields.Add(fields)}
}

func (a *zerologAdapter) emit(evt *zerolog.Event, msg string, fields watermill.LogFields) {
	for k, v := range a.fields {
		evt = evt.Interface(k, v)
	}
	for k, v := range fields {
		evt = evt.Interface(k, v)
	}
	evt.Str("component", "watermill").Msg(msg)
}
