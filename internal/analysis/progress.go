package analysis

import (
	"context"
	"time"
)

// Status is the lifecycle state of one stage within a run.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusRetrying   Status = "retrying"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
)

// StageState tracks one stage of a run.
type StageState struct {
	Index        int           `json:"index"`
	Name         string        `json:"name"`
	Status       Status        `json:"status"`
	Input        string        `json:"-"`
	Output       string        `json:"output,omitempty"`
	Error        string        `json:"error,omitempty"`
	RetryCount   int           `json:"retryCount"`
	Critical     bool          `json:"isCritical"`
	Dependencies []int         `json:"dependencies,omitempty"`
	Dependents   []int         `json:"dependents,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
	FinishedAt   time.Time     `json:"finishedAt,omitzero"`
}

// Active reports whether the stage is being worked on.
func (s StageState) Active() bool {
	return s.Status == StatusProcessing || s.Status == StatusRetrying
}

// StageSnapshot is the per-stage part of a Progress report.
type StageSnapshot struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	RetryCount int    `json:"retryCount"`
	Critical   bool   `json:"isCritical"`
}

// Progress is a point-in-time view of a run.
type Progress struct {
	CurrentStage int             `json:"currentStage"`
	TotalStages  int             `json:"totalStages"`
	Completed    int             `json:"completedStages"`
	Failed       int             `json:"failedStages"`
	Skipped      int             `json:"skippedStages"`
	Processing   int             `json:"processingStages"`
	Percent      int             `json:"progress"`
	Running      bool            `json:"isRunning"`
	Paused       bool            `json:"isPaused"`
	ETA          time.Duration   `json:"estimatedTimeRemaining,omitempty"`
	LastError    string          `json:"lastError,omitempty"`
	Stages       []StageSnapshot `json:"stages,omitempty"`
}

// Observer receives run updates. Calls happen on the run goroutine.
type Observer interface {
	ProgressChanged(ctx context.Context, progress Progress)
	StageFinished(ctx context.Context, state StageState)
}

// ObserverFuncs adapts optional callbacks to Observer.
type ObserverFuncs struct {
	OnProgress func(Progress)
	OnStage    func(StageState)
}

// ProgressChanged implements Observer.
func (o ObserverFuncs) ProgressChanged(_ context.Context, progress Progress) {
	if o.OnProgress != nil {
		o.OnProgress(progress)
	}
}

// StageFinished implements Observer.
func (o ObserverFuncs) StageFinished(_ context.Context, state StageState) {
	if o.OnStage != nil {
		o.OnStage(state)
	}
}

// buildProgress counts stage states into a Progress report. currentStage is
// the first active stage, or -1.
func buildProgress(states []StageState) Progress {
	p := Progress{
		CurrentStage: -1,
		TotalStages:  len(states),
		Stages:       make([]StageSnapshot, 0, len(states)),
	}
	for _, s := range states {
		switch s.Status {
		case StatusCompleted:
			p.Completed++
		case StatusFailed:
			p.Failed++
		case StatusSkipped:
			p.Skipped++
		case StatusProcessing, StatusRetrying:
			p.Processing++
			if p.CurrentStage < 0 {
				p.CurrentStage = s.Index
			}
		}
		p.Stages = append(p.Stages, StageSnapshot{
			Name:       s.Name,
			Status:     s.Status,
			RetryCount: s.RetryCount,
			Critical:   s.Critical,
		})
	}
	p.Percent = percent(p.Completed, p.TotalStages)
	return p
}

func percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(float64(part)*100/float64(total) + 0.5)
}
