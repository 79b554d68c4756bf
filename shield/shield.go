// Package shield provides reusable HTTP security middleware. It
// consolidates security headers, rate limiting, body limits, request
// tracing, and HEAD method handling into a single importable package.
//
// Usage:
//
//	r := chi.NewRouter()
//	r.Use(shield.SecurityHeaders(shield.DefaultHeaders()))
//	r.Use(shield.TraceID)
//	r.Use(shield.NewRateLimiter(db).Middleware)
//	r.Use(shield.HeadToGet)
//
// Or apply the default API stack in one call:
//
//	for _, mw := range shield.DefaultAPIStack(db) {
//	    r.Use(mw)
//	}
package shield

import (
	"database/sql"
	"net/http"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// DefaultAPIStack returns the standard middleware stack for a JSON API
// service. Ordered: HeadToGet, SecurityHeaders, MaxFormBody, TraceID,
// RateLimiter. Pass a nil db to run without rate limiting.
func DefaultAPIStack(db *sql.DB) []func(http.Handler) http.Handler {
	stack := []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxFormBody(64 * 1024),
		TraceID,
	}
	if db != nil {
		stack = append(stack, NewRateLimiter(db).Middleware)
	}
	return stack
}
