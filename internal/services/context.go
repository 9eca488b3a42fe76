package services

import "context"

type contextKey string

const (
	caseIDKey     contextKey = "case_id"
	stageKey      contextKey = "stage"
	stageIndexKey contextKey = "stage_index"
	requestIDKey  contextKey = "request_id"
)

// WithCaseID annotates context with the case identifier.
func WithCaseID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, caseIDKey, id)
}

// CaseIDFromContext extracts the case identifier if present.
func CaseIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(caseIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithStageIndex annotates context with the 0-based stage index.
func WithStageIndex(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, stageIndexKey, index)
}

// StageIndexFromContext returns the stage index if present.
func StageIndexFromContext(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(stageIndexKey).(int)
	return v, ok
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
