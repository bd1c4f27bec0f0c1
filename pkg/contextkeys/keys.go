// Package contextkeys provides centralized context key definitions
//
// All context keys shared between packages are defined here so that key
// usage stays discoverable.
//
//	ctx = context.WithValue(ctx, contextkeys.RequestIDKey, id)
//	id, _ := ctx.Value(contextkeys.RequestIDKey).(string)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// RequestIDKey contains the request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: request logging, validation responses
	RequestIDKey Key = "request_id"

	// ClientKey contains the rate limit key of the caller
	// Set by: middleware.RateLimitMiddleware
	// Type: string
	ClientKey Key = "client"
)

// String returns the string representation of the key
func (k Key) String() string {
	return string(k)
}

// RequestID returns the request ID stored in ctx, or ""
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// WithRequestID stores a request ID in ctx
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// Client returns the rate limit key stored in ctx, or ""
func Client(ctx context.Context) string {
	key, _ := ctx.Value(ClientKey).(string)
	return key
}

// WithClient stores the caller's rate limit key in ctx
func WithClient(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, ClientKey, key)
}
