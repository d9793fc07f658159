package logging

import (
	"context"
	"log/slog"
)

// Structured keys shared across packages.
const (
	FieldComponent = "component"
	FieldRunID     = "run_id"
	// FieldTree is "original" or "flattened".
	FieldTree = "tree"
	// FieldPath is relative to the tree root.
	FieldPath = "path"

	FieldEventType = "event_type"
	FieldErrorHint = "error_hint"
	FieldImpact    = "impact"

	FieldDecisionType   = "decision_type"
	FieldDecisionResult = "decision_result"
	FieldDecisionReason = "decision_reason"
)

type runIDKey struct{}

// WithRunID stores the run identifier on ctx.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// WithContext tags logger with the run identifier carried by ctx, if any.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if ctx == nil {
		return logger
	}
	if id, ok := ctx.Value(runIDKey{}).(string); ok && id != "" {
		return logger.With(String(FieldRunID, id))
	}
	return logger
}
