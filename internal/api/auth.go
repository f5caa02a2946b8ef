// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rcalloway/harbinger/internal/models"
)

type authContextKey string

const (
	orgContextKey     authContextKey = "org"
	subjectContextKey authContextKey = "subject"
)

// anonymousOrg is the organization assigned when no JWT secret is
// configured. Development deployments run unauthenticated under it.
const anonymousOrg = "anonymous"

// Claims are the token claims Harbinger issues: standard registered
// claims plus the caller's organization.
type Claims struct {
	Org string `json:"org"`
	jwt.RegisteredClaims
}

// OrgFromContext returns the authenticated organization, or anonymousOrg.
func OrgFromContext(ctx context.Context) string {
	if org, ok := ctx.Value(orgContextKey).(string); ok && org != "" {
		return org
	}
	return anonymousOrg
}

// SubjectFromContext returns the authenticated subject, if any.
func SubjectFromContext(ctx context.Context) string {
	sub, _ := ctx.Value(subjectContextKey).(string)
	return sub
}

// Authenticator validates HS256 bearer tokens and stores the org and
// subject claims on the request context. An empty secret disables
// authentication entirely; every request then runs as anonymousOrg.
func Authenticator(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				respondError(w, http.StatusUnauthorized, models.ErrCodeUnauthorized, err.Error())
				return
			}

			claims := &Claims{}
			parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !parsed.Valid {
				respondError(w, http.StatusUnauthorized, models.ErrCodeUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), subjectContextKey, claims.Subject)
			if claims.Org != "" {
				ctx = context.WithValue(ctx, orgContextKey, claims.Org)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("missing authorization header")
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", fmt.Errorf("authorization header is not a bearer token")
	}
	return strings.TrimPrefix(header, prefix), nil
}
