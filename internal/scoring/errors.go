// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package scoring

import "errors"

// Sentinel errors for the scoring package.
// Check with errors.Is.
var (
	// ErrUnknownDomain indicates a request for a domain no scorer handles.
	ErrUnknownDomain = errors.New("unknown scoring domain")

	// ErrFeatureMismatch indicates a feature record of the wrong variant
	// was passed to a scorer.
	ErrFeatureMismatch = errors.New("feature record does not match scorer domain")
)
