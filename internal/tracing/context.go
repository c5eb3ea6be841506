package tracing

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// RequestIDKey is the context key for a gateway JSON-RPC request ID
	RequestIDKey ContextKey = "request_id"
	// ClientIDKey is the context key for the gateway client that issued the call
	ClientIDKey ContextKey = "client_id"
	// DrawerIDKey is the context key for the drawer being operated on
	DrawerIDKey ContextKey = "drawer_id"
	// ScopeKey is the context key for the owning navigation scope
	ScopeKey ContextKey = "scope"
)

// TraceContext holds tracing information
type TraceContext struct {
	TraceID   string
	RequestID string
	ClientID  string
	DrawerID  string
	Scope     string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithClientID adds a gateway client ID to the context
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, ClientIDKey, clientID)
}

// WithDrawer adds the drawer id and its scope to the context
func WithDrawer(ctx context.Context, drawerID, scope string) context.Context {
	ctx = context.WithValue(ctx, DrawerIDKey, drawerID)
	return context.WithValue(ctx, ScopeKey, scope)
}

func value(ctx context.Context, key ContextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string { return value(ctx, TraceIDKey) }

// GetRequestID retrieves the request ID from the context
func GetRequestID(ctx context.Context) string { return value(ctx, RequestIDKey) }

// GetClientID retrieves the gateway client ID from the context
func GetClientID(ctx context.Context) string { return value(ctx, ClientIDKey) }

// GetDrawerID retrieves the drawer ID from the context
func GetDrawerID(ctx context.Context) string { return value(ctx, DrawerIDKey) }

// GetScope retrieves the scope from the context
func GetScope(ctx context.Context) string { return value(ctx, ScopeKey) }

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID:   GetTraceID(ctx),
		RequestID: GetRequestID(ctx),
		ClientID:  GetClientID(ctx),
		DrawerID:  GetDrawerID(ctx),
		Scope:     GetScope(ctx),
	}
}

// NewRequestContext creates a new context for a request with a new trace ID
func NewRequestContext(ctx context.Context) context.Context {
	return WithTraceID(ctx, NewTraceID())
}
