// Package logtrace provides logging and tracing utilities for the application.
// It integrates with zerolog for structured logging and supports wire-level tracing.
package logtrace

import (
	"context"
	"os"
)

// requestIdContextKey is a custom type for context key to store request IDs.
type requestIdContextKey string

const requestIdKey = requestIdContextKey("requestId")

// WithRequestId returns a context carrying the given request ID.
func WithRequestId(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIdKey, id)
}

// RequestIdFromContext extracts the request ID from the context.
// Returns an empty string if the context is nil or if no request ID is found.
func RequestIdFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	r, ok := ctx.Value(requestIdKey).(string)
	if !ok {
		return ""
	}
	return r
}

// IsTraceEnabled reports whether wire-level tracing is enabled. When enabled,
// the server logs raw datagram contents at trace level. Controlled by the
// SESSIOND_TRACE environment variable.
func IsTraceEnabled() bool {
	return traceEnabled
}

var traceEnabled = os.Getenv("SESSIOND_TRACE") == "1"
