package logging

import (
	"context"
	"log/slog"
)

// Shared structured field names.
const (
	FieldComponent = "component"
	FieldCallID    = "call_id"
	FieldStatus    = "status"
	FieldAttempt   = "attempt"
	FieldSequence  = "sequence"
)

type contextKey string

const (
	callIDKey    contextKey = "logging.call_id"
	componentKey contextKey = "logging.component"
)

// WithCallID stores a call id for later log enrichment.
func WithCallID(ctx context.Context, callID string) context.Context {
	if callID == "" {
		return ctx
	}
	return context.WithValue(ctx, callIDKey, callID)
}

// CallIDFrom returns the call id carried by ctx, if any.
func CallIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(callIDKey).(string); ok {
		return v
	}
	return ""
}

// WithComponent stores a component name on the context.
func WithComponent(ctx context.Context, component string) context.Context {
	if component == "" {
		return ctx
	}
	return context.WithValue(ctx, componentKey, component)
}

// ContextFields extracts log attrs from ctx values.
func ContextFields(ctx context.Context) []Attr {
	if ctx == nil {
		return nil
	}
	var fields []Attr
	if callID := CallIDFrom(ctx); callID != "" {
		fields = append(fields, String(FieldCallID, callID))
	}
	if component, ok := ctx.Value(componentKey).(string); ok && component != "" {
		fields = append(fields, String(FieldComponent, component))
	}
	return fields
}

// WithContext returns a logger enriched with the fields stored on ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
