package hook

import "context"

type contextKey int

const (
	fromAuthorityKey contextKey = iota
	traceIDKey
)

// WithFromAuthority marks the request context as an authenticated delivery
// from the payment authority. Carried explicitly through the context instead
// of process-global state so concurrent requests cannot observe each other's
// marker.
func WithFromAuthority(ctx context.Context) context.Context {
	return context.WithValue(ctx, fromAuthorityKey, true)
}

// FromAuthority reports whether the request was authenticated as coming from
// the authority.
func FromAuthority(ctx context.Context) bool {
	v, _ := ctx.Value(fromAuthorityKey).(bool)
	return v
}

// WithTraceID attaches the authority's delivery trace ID to the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		return ctx
	}
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID returns the authority's delivery trace ID, if present.
func TraceID(ctx context.Context) string {
	v, _ := ctx.Value(traceIDKey).(string)
	return v
}
