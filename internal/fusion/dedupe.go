// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package fusion

import "time"

// DedupeStore suppresses near-duplicate alerts for a (location, domain)
// key. The engine declares the interface it needs; the cache package
// provides the bounded in-memory implementation.
type DedupeStore interface {
	// CheckAndSet reports whether an alert with the given score should
	// be suppressed as a duplicate: an entry for key exists, is younger
	// than window, and its score is within delta of score. On
	// suppression the stored entry is left untouched; otherwise it is
	// overwritten with (now, score). The check and update are atomic
	// per key.
	CheckAndSet(key string, score float64, window time.Duration, delta float64) bool
}

// nopDedupeStore never suppresses. Used when no cache is injected.
type nopDedupeStore struct{}

func (nopDedupeStore) CheckAndSet(string, float64, time.Duration, float64) bool { return false }
