// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package database

import "errors"

// ErrNotFound indicates the requested record does not exist.
// Check with errors.Is; the HTTP layer maps it to NOT_FOUND.
var ErrNotFound = errors.New("record not found")
