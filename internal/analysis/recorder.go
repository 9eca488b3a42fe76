package analysis

import (
	"context"
	"log/slog"

	"lexcase/internal/logging"
	"lexcase/internal/store"
)

// StageWriter persists stage results. *store.Store implements it.
type StageWriter interface {
	PutStage(ctx context.Context, result store.StageResult) (*store.StageResult, error)
}

// Recorder is an Observer that saves finished stages of one case.
type Recorder struct {
	writer StageWriter
	caseID string
	logger *slog.Logger
}

// NewRecorder returns a recorder writing to caseID.
func NewRecorder(writer StageWriter, caseID string, logger *slog.Logger) *Recorder {
	return &Recorder{
		writer: writer,
		caseID: caseID,
		logger: logging.NewComponentLogger(logger, "stage-recorder").With(logging.String(logging.FieldCaseID, caseID)),
	}
}

// ProgressChanged implements Observer.
func (r *Recorder) ProgressChanged(context.Context, Progress) {}

// StageFinished implements Observer. Writes outlive a stopped run so the last
// finished stage is not lost.
func (r *Recorder) StageFinished(ctx context.Context, state StageState) {
	if r == nil || r.writer == nil {
		return
	}
	status, ok := storeStatus(state.Status)
	if !ok {
		return
	}
	result := store.StageResult{
		CaseID:       r.caseID,
		Index:        state.Index,
		Name:         state.Name,
		Input:        state.Input,
		Output:       state.Output,
		Status:       status,
		RetryCount:   state.RetryCount,
		Duration:     state.Duration,
		ErrorMessage: state.Error,
	}
	if _, err := r.writer.PutStage(context.WithoutCancel(ctx), result); err != nil {
		logging.WarnWithContext(r.logger, "failed to save stage result", "stage_save_failed",
			logging.String(logging.FieldStage, state.Name),
			logging.Int(logging.FieldStageIndex, state.Index),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check database access"),
			logging.String(logging.FieldImpact, "the stage must be analysed again after a restart"),
		)
	}
}

func storeStatus(status Status) (store.StageStatus, bool) {
	switch status {
	case StatusCompleted:
		return store.StageCompleted, true
	case StatusFailed:
		return store.StageFailed, true
	case StatusSkipped:
		return store.StageSkipped, true
	}
	return "", false
}
