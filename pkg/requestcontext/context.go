// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; services read them without importing net/http.
//
//	operator := requestcontext.OperatorID(ctx)
//	now := requestcontext.Now(ctx)
//
// Tests inject a fixed clock with WithTime:
//
//	ctx = requestcontext.WithTime(ctx, time.Date(2025, 5, 1, 14, 0, 0, 0, time.UTC))
package requestcontext

import (
	"context"
	"time"

	id "dunning/pkg/domain"
)

type (
	operatorIDKey  struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	clientNameKey  struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyOperatorID  = operatorIDKey{}
	ContextKeyClientIP    = clientIPKey{}
	ContextKeyUserAgent   = userAgentKey{}
	ContextKeyClientName  = clientNameKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// OperatorID retrieves the authenticated operator from the context.
// Returns the zero value if not set.
func OperatorID(ctx context.Context) id.OperatorID {
	if v, ok := ctx.Value(ContextKeyOperatorID).(id.OperatorID); ok {
		return v
	}
	return id.OperatorID{}
}

// WithOperatorID injects an operator ID into the context.
func WithOperatorID(ctx context.Context, operatorID id.OperatorID) context.Context {
	return context.WithValue(ctx, ContextKeyOperatorID, operatorID)
}

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the raw User-Agent from the context.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// ClientName retrieves the parsed client name ("Chrome 120", "curl") from the context.
func ClientName(ctx context.Context) string {
	if name, ok := ctx.Value(ContextKeyClientName).(string); ok {
		return name
	}
	return ""
}

// WithClientMetadata injects client IP, User-Agent and parsed client name into a context.
func WithClientMetadata(ctx context.Context, clientIP, userAgent, clientName string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	ctx = context.WithValue(ctx, ContextKeyUserAgent, userAgent)
	ctx = context.WithValue(ctx, ContextKeyClientName, clientName)
	return ctx
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() for workers, CLI commands and webhooks without the middleware.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
