package analysis

import (
	"fmt"
	"time"
)

// Recommendation texts attached to a Result.
const (
	RecommendRetryFailed   = "يُنصح بمراجعة المراحل الفاشلة وإعادة تشغيلها"
	RecommendManualReview  = "تم تخطي بعض المراحل - قد تحتاج إلى تحليل يدوي"
	RecommendCriticalCheck = "فشل في مراحل حرجة - قد يؤثر على جودة النتائج"
)

// StageError records a stage that exhausted its attempts.
type StageError struct {
	StageIndex int    `json:"stageIndex"`
	Error      string `json:"error"`
	RetryCount int    `json:"retryCount"`
}

// Summary counts the stage outcomes of a run.
type Summary struct {
	Completed   int    `json:"completed"`
	Failed      int    `json:"failed"`
	Skipped     int    `json:"skipped"`
	Total       int    `json:"total"`
	SuccessRate int    `json:"successRate"`
	TotalTime   string `json:"totalDuration"`
}

// Result is the outcome of a run.
type Result struct {
	Success         bool          `json:"success"`
	Stopped         bool          `json:"stopped,omitempty"`
	Summary         Summary       `json:"summary"`
	Stages          []StageState  `json:"stages"`
	Errors          []StageError  `json:"errors,omitempty"`
	Recommendations []string      `json:"recommendations,omitempty"`
	Duration        time.Duration `json:"duration"`
}

// Outputs returns the outputs of completed stages in index order.
func (r *Result) Outputs() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.Stages))
	for _, s := range r.Stages {
		if s.Status == StatusCompleted && s.Output != "" {
			out = append(out, s.Output)
		}
	}
	return out
}

func newResult(states []StageState, errs []StageError, elapsed time.Duration, stopped bool) *Result {
	stages := make([]StageState, len(states))
	copy(stages, states)

	summary := Summary{Total: len(stages), TotalTime: FormatDuration(elapsed)}
	criticalFailed := false
	for _, s := range stages {
		switch s.Status {
		case StatusCompleted:
			summary.Completed++
		case StatusFailed:
			summary.Failed++
			if s.Critical {
				criticalFailed = true
			}
		case StatusSkipped:
			summary.Skipped++
		}
	}
	summary.SuccessRate = percent(summary.Completed, summary.Total)

	var recs []string
	if summary.Failed > 0 {
		recs = append(recs, RecommendRetryFailed)
	}
	if summary.Skipped > 0 {
		recs = append(recs, RecommendManualReview)
	}
	if criticalFailed {
		recs = append(recs, RecommendCriticalCheck)
	}

	return &Result{
		Success:         summary.Failed == 0,
		Stopped:         stopped,
		Summary:         summary,
		Stages:          stages,
		Errors:          errs,
		Recommendations: recs,
		Duration:        elapsed,
	}
}

// FormatDuration renders d in Arabic short units.
func FormatDuration(d time.Duration) string {
	seconds := int(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60
	switch {
	case hours > 0:
		return fmt.Sprintf("%dس %dد %dث", hours, minutes%60, seconds%60)
	case minutes > 0:
		return fmt.Sprintf("%dد %dث", minutes, seconds%60)
	default:
		return fmt.Sprintf("%dث", seconds)
	}
}
