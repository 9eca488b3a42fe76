package logging

import (
	"context"
	"log/slog"

	"lexcase/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldCaseID is the standardized structured logging key for case identifiers.
	FieldCaseID = "case_id"
	// FieldStage is the standardized structured logging key for stage names.
	FieldStage = "stage"
	// FieldStageIndex is the 0-based position of the stage in the catalog.
	FieldStageIndex = "stage_index"
	// FieldAttempt is the 1-based attempt counter for a stage.
	FieldAttempt = "attempt"
	// FieldModel is the Gemini model used for a request.
	FieldModel = "model"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint carries a short remediation hint on warnings and errors.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.CaseIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCaseID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if idx, ok := services.StageIndexFromContext(ctx); ok {
		fields = append(fields, slog.Int(FieldStageIndex, idx))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
