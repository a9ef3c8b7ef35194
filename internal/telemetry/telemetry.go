package telemetry

import (
	"context"

	"github.com/rs/zerolog/log"
)

type requestIDKey struct{}

// WithRequestID returns a new context with the given request ID attached.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID retrieves the request ID from context if present.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// Event logs a telemetry event with optional fields. Sensitive values should be omitted by callers.
func Event(name string, fields map[string]string) {
	e := log.Info().Str("event", name)
	for k, v := range fields {
		e = e.Str(k, v)
	}
	e.Msg("telemetry")
}

// EventCtx is Event tagged with the request ID carried by ctx.
func EventCtx(ctx context.Context, name string, fields map[string]string) {
	e := log.Info().Str("event", name)
	if id := RequestID(ctx); id != "" {
		e = e.Str("requestId", id)
	}
	for k, v := range fields {
		e = e.Str(k, v)
	}
	e.Msg("telemetry")
}
