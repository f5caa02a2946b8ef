// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/jonboulle/clockwork"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/rcalloway/harbinger/internal/config"
	"github.com/rcalloway/harbinger/internal/logging"
	"github.com/rcalloway/harbinger/internal/models"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body when a
// webhook secret is configured.
const SignatureHeader = "X-Harbinger-Signature"

const (
	defaultWebhookTimeout = 10 * time.Second
	defaultRatePerSecond  = 5
	retryBackoff          = 200 * time.Millisecond
)

// WebhookNotifier POSTs CAP envelopes to a downstream receiver. Deliveries
// go through a token-bucket rate limiter and a circuit breaker; transient
// failures are retried a bounded number of times.
type WebhookNotifier struct {
	url      string
	secret   string
	retryMax int
	client   *http.Client
	limiter  *rate.Limiter
	cb       *gobreaker.CircuitBreaker[struct{}]
	clock    clockwork.Clock
}

var _ Notifier = (*WebhookNotifier)(nil)

// NewWebhookNotifier builds a notifier from config. The circuit breaker
// opens after 60% failures over at least 5 requests and probes again after
// 30 seconds.
func NewWebhookNotifier(cfg config.NotifyConfig, clock clockwork.Clock) *WebhookNotifier {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	timeout := cfg.WebhookTimeout
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	perSec := cfg.RatePerSecond
	if perSec <= 0 {
		perSec = defaultRatePerSecond
	}

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "alert-webhook",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Webhook circuit breaker state change")
		},
	})

	return &WebhookNotifier{
		url:      cfg.WebhookURL,
		secret:   cfg.WebhookSecret,
		retryMax: cfg.RetryMax,
		client:   &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Limit(perSec), 1),
		cb:       cb,
		clock:    clock,
	}
}

// Name returns the channel name.
func (n *WebhookNotifier) Name() string {
	return "webhook"
}

// Notify delivers the alert as a CAP envelope.
func (n *WebhookNotifier) Notify(ctx context.Context, alert *models.AlertDraft) error {
	if n.url == "" {
		return nil
	}

	body, err := json.Marshal(BuildCAP(alert, n.clock.Now()))
	if err != nil {
		return fmt.Errorf("failed to marshal CAP payload: %w", err)
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("webhook rate limit wait: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= n.retryMax; attempt++ {
		if attempt > 0 {
			select {
			case <-n.clock.After(retryBackoff * time.Duration(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		_, lastErr = n.cb.Execute(func() (struct{}, error) {
			return struct{}{}, n.post(ctx, body)
		})
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, gobreaker.ErrOpenState) || errors.Is(lastErr, gobreaker.ErrTooManyRequests) {
			// Open circuit: retrying immediately cannot succeed.
			return fmt.Errorf("webhook circuit open: %w", lastErr)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("webhook delivery failed after %d attempts: %w", n.retryMax+1, lastErr)
}

func (n *WebhookNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.secret != "" {
		req.Header.Set(SignatureHeader, signBody(n.secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
