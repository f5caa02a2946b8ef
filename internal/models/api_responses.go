// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package models

import (
	"time"
)

// APIResponse is the standardized response envelope used by all HTTP
// endpoints. Status is "success" or "error"; Error is populated only
// for error responses.
//
// Example successful response:
//
//	{
//	  "status": "success",
//	  "data": {"alerts": [...]},
//	  "metadata": {"timestamp": "2026-08-29T12:00:00Z", "count": 3}
//	}
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "error": {"code": "NOT_FOUND", "message": "alert not found"},
//	  "metadata": {"timestamp": "2026-08-29T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response metadata: server timestamp and, for list
// endpoints, the number of returned items.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	Count     *int      `json:"count,omitempty"`
}

// APIError is a structured error with a machine-readable code.
//
// Common codes:
//   - VALIDATION_ERROR: invalid input parameters
//   - NOT_FOUND: resource doesn't exist
//   - UNAUTHORIZED: invalid/missing credentials
//   - RATE_LIMIT_EXCEEDED: too many requests
//   - DATABASE_ERROR: query execution failure
//   - PUBLISH_ERROR: event could not be handed to the pipeline
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Machine-readable API error codes.
const (
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeRateLimit    = "RATE_LIMIT_EXCEEDED"
	ErrCodeDatabase     = "DATABASE_ERROR"
	ErrCodePublish      = "PUBLISH_ERROR"
	ErrCodeInternal     = "INTERNAL_ERROR"
)
