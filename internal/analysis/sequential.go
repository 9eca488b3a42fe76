package analysis

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"lexcase/internal/logging"
	"lexcase/internal/stage"
)

// sequentialDefaultOutput stands in for an empty successful analysis.
const sequentialDefaultOutput = "تم تحليل هذه المرحلة بنجاح"

// StageRecord is one entry of a sequential run's result list.
type StageRecord struct {
	ID         string        `json:"id"`
	StageIndex int           `json:"stageIndex"`
	Stage      string        `json:"stage"`
	Input      string        `json:"input"`
	Output     string        `json:"output"`
	Date       time.Time     `json:"date"`
	Duration   time.Duration `json:"duration,omitempty"`
	RetryCount int           `json:"retryCount"`
	Failed     bool          `json:"failed,omitempty"`
}

// SequentialManager runs the stages one after another with a fixed retry
// budget, pacing requests to stay under API rate limits.
type SequentialManager struct {
	runner

	cfg      SequentialConfig
	analyzer Analyzer
	catalog  *stage.Catalog

	stateMu sync.RWMutex
	states  []StageState
	records []StageRecord
	errs    []StageError
	current int
	began   time.Time
}

// NewSequentialManager constructs a sequential manager over catalog.
func NewSequentialManager(analyzer Analyzer, catalog *stage.Catalog, cfg SequentialConfig, opts ...Option) *SequentialManager {
	if catalog == nil {
		catalog = stage.Default()
	}
	m := &SequentialManager{
		runner:   newRunner("sequential-analysis", opts),
		cfg:      cfg.normalized(),
		analyzer: analyzer,
		catalog:  catalog,
	}
	m.reset()
	return m
}

// Config returns the effective configuration.
func (m *SequentialManager) Config() SequentialConfig {
	return m.cfg
}

func (m *SequentialManager) reset() {
	names := m.catalog.Names()
	states := make([]StageState, len(names))
	for i, name := range names {
		states[i] = StageState{Index: i, Name: name, Status: StatusPending, Critical: stage.IsCritical(i)}
	}
	m.stateMu.Lock()
	m.states = states
	m.records = nil
	m.errs = nil
	m.current = 0
	m.stateMu.Unlock()
}

// Run analyses every stage in order.
func (m *SequentialManager) Run(ctx context.Context, in Input) (*Result, error) {
	return m.ResumeFromStage(ctx, in, 0, nil)
}

// ResumeFromStage runs the stages from start onwards. Non-empty entries of
// previous below start count as completed results and feed later prompts.
func (m *SequentialManager) ResumeFromStage(ctx context.Context, in Input, start int, previous []string) (*Result, error) {
	if start < 0 || start >= m.catalog.Len() {
		return nil, ErrInvalidStage
	}
	runCtx, err := m.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer m.end()

	m.reset()
	m.seed(in, start, previous)
	began := m.now()
	m.stateMu.Lock()
	m.began = began
	m.current = start
	m.stateMu.Unlock()

	m.logger.Info("sequential analysis started",
		logging.String(logging.FieldEventType, "analysis_start"),
		logging.Int("start_stage", start),
		logging.Int("total_stages", m.catalog.Len()),
	)

	last := m.catalog.Len() - 1
	for i := start; i <= last; i++ {
		if err := m.waitIfPaused(runCtx); err != nil {
			break
		}
		m.stateMu.Lock()
		m.current = i
		m.stateMu.Unlock()

		if !m.analyzeWithRetry(runCtx, in, i) {
			break
		}
		if i < last {
			if err := m.sleep(runCtx, m.interStageDelay(i)); err != nil {
				break
			}
		}
		m.publish(runCtx)
	}

	result := newResult(m.snapshot(), m.stageErrors(), m.now().Sub(began), m.wasStopped())
	// Stages never reached count as skipped.
	result.Summary.Skipped = result.Summary.Total - result.Summary.Completed - result.Summary.Failed
	m.logger.Info("sequential analysis finished",
		logging.String(logging.FieldEventType, "analysis_complete"),
		logging.Int("completed", result.Summary.Completed),
		logging.Int("failed", result.Summary.Failed),
		logging.String("duration", result.Summary.TotalTime),
	)
	return result, m.finish(ctx, runCtx)
}

func (m *SequentialManager) seed(in Input, start int, previous []string) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	for i, output := range previous {
		if i >= start || i >= len(m.states) || strings.TrimSpace(output) == "" {
			continue
		}
		m.states[i].Status = StatusCompleted
		m.states[i].Output = output
		m.records = append(m.records, StageRecord{
			ID:         newRecordID("sequential", i),
			StageIndex: i,
			Stage:      m.states[i].Name,
			Input:      in.Text,
			Output:     output,
			Date:       m.now(),
		})
	}
}

// analyzeWithRetry runs stage i until it succeeds or the retry budget is
// spent. It returns false when the run was interrupted.
func (m *SequentialManager) analyzeWithRetry(ctx context.Context, in Input, i int) bool {
	m.stateMu.RLock()
	state := m.states[i]
	m.stateMu.RUnlock()
	logger := m.logger.With(
		logging.String(logging.FieldStage, state.Name),
		logging.Int(logging.FieldStageIndex, i),
	)

	retryCount := 0
	var lastErr error
	for retryCount < m.cfg.MaxRetries {
		if ctx.Err() != nil {
			m.updateState(i, func(s *StageState) { s.Status = StatusPending })
			return false
		}
		m.updateState(i, func(s *StageState) {
			s.RetryCount = retryCount
			s.Status = StatusProcessing
			if retryCount > 0 {
				s.Status = StatusRetrying
			}
		})
		m.publish(ctx)

		started := m.now()
		output, err := m.attempt(ctx, in, state)
		if err == nil {
			if strings.TrimSpace(output) == "" {
				output = sequentialDefaultOutput
			}
			record := StageRecord{
				ID:         newRecordID("sequential", i),
				StageIndex: i,
				Stage:      state.Name,
				Input:      in.Text,
				Output:     output,
				Date:       m.now(),
				Duration:   m.now().Sub(started),
				RetryCount: retryCount,
			}
			m.stateMu.Lock()
			m.records = append(m.records, record)
			m.states[i].Status = StatusCompleted
			m.states[i].Input = in.Text
			m.states[i].Output = output
			m.states[i].Error = ""
			m.states[i].Duration = record.Duration
			m.states[i].FinishedAt = record.Date
			finished := m.states[i]
			m.stateMu.Unlock()
			logger.Info("stage completed",
				logging.String(logging.FieldEventType, "stage_complete"),
				logging.Int(logging.FieldAttempt, retryCount+1),
				logging.Duration("stage_duration", record.Duration),
			)
			if m.cfg.EnableProgressSave {
				m.notifyStage(ctx, finished)
			}
			return true
		}
		if ctx.Err() != nil {
			m.updateState(i, func(s *StageState) { s.Status = StatusPending })
			return false
		}

		retryCount++
		lastErr = err
		m.setLastError(err)
		m.updateState(i, func(s *StageState) { s.Error = err.Error() })
		logger.Warn("stage attempt failed",
			logging.String(logging.FieldEventType, "stage_attempt_failed"),
			logging.Int(logging.FieldAttempt, retryCount),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the stage is retried until the attempt budget is spent"),
			logging.String(logging.FieldImpact, "stage delayed"),
		)
		// Rate limits back off after the last attempt too.
		var delay time.Duration
		switch {
		case IsRateLimit(err):
			delay = min(m.cfg.MaxDelay, time.Duration(float64(m.cfg.BaseDelay)*math.Pow(2, float64(retryCount))))
		case retryCount < m.cfg.MaxRetries:
			delay = time.Duration(retryCount) * 2 * time.Second
		default:
			continue
		}
		if err := m.sleep(ctx, delay); err != nil {
			m.updateState(i, func(s *StageState) { s.Status = StatusPending })
			return false
		}
	}

	message := ""
	if lastErr != nil {
		message = lastErr.Error()
	}
	placeholder := StageRecord{
		ID:         newRecordID("sequential-error", i),
		StageIndex: i,
		Stage:      state.Name,
		Input:      in.Text,
		Output:     fmt.Sprintf("فشل في تحليل هذه المرحلة بعد %d محاولات. آخر خطأ: %s", m.cfg.MaxRetries, message),
		Date:       m.now(),
		RetryCount: retryCount - 1,
		Failed:     true,
	}
	m.stateMu.Lock()
	m.errs = append(m.errs, StageError{StageIndex: i, Error: message, RetryCount: retryCount - 1})
	m.records = append(m.records, placeholder)
	m.states[i].Status = StatusFailed
	m.states[i].Output = placeholder.Output
	m.states[i].RetryCount = retryCount - 1
	m.states[i].FinishedAt = placeholder.Date
	finished := m.states[i]
	m.stateMu.Unlock()
	logging.WarnWithContext(logger, "stage failed after all attempts", "stage_exhausted",
		logging.Int("attempts", m.cfg.MaxRetries),
		logging.Error(lastErr),
		logging.String(logging.FieldErrorHint, "resume from this stage once the cause is fixed"),
		logging.String(logging.FieldImpact, "a failure placeholder was recorded"),
	)
	if m.cfg.EnableProgressSave {
		m.notifyStage(ctx, finished)
	}
	return true
}

func (m *SequentialManager) attempt(ctx context.Context, in Input, state StageState) (string, error) {
	if m.analyzer == nil {
		return "", fmt.Errorf("analysis: no analyzer configured")
	}
	attemptCtx, cancel := context.WithTimeout(ctx, m.cfg.TimeoutPerStage)
	defer cancel()
	resp, err := m.analyzer.Analyze(attemptCtx, Request{
		Text:              in.Text,
		StageIndex:        state.Index,
		StageName:         state.Name,
		APIKey:            in.APIKey,
		Model:             in.Model,
		PartyRole:         in.PartyRole,
		PreviousSummaries: m.successfulOutputs(),
	})
	if err != nil {
		return "", attemptError(ctx, err)
	}
	return resp.Analysis, nil
}

func (m *SequentialManager) successfulOutputs() []string {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	var out []string
	for _, s := range m.states {
		if s.Status == StatusCompleted && s.Output != "" {
			out = append(out, s.Output)
		}
	}
	return out
}

// interStageDelay grows with progress through the run and with recent errors.
func (m *SequentialManager) interStageDelay(i int) time.Duration {
	m.stateMu.RLock()
	recent := 0
	for _, e := range m.errs {
		if e.StageIndex >= i-2 {
			recent++
		}
	}
	total := len(m.states)
	m.stateMu.RUnlock()

	progress := float64(i+1) / float64(total)
	delay := float64(m.cfg.BaseDelay) + float64(m.cfg.MaxDelay-m.cfg.BaseDelay)*progress*0.3
	delay += float64(time.Duration(recent) * 2 * time.Second)
	return min(time.Duration(delay), m.cfg.MaxDelay)
}

func (m *SequentialManager) updateState(i int, fn func(*StageState)) {
	m.stateMu.Lock()
	fn(&m.states[i])
	m.stateMu.Unlock()
}

func (m *SequentialManager) snapshot() []StageState {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	out := make([]StageState, len(m.states))
	copy(out, m.states)
	return out
}

func (m *SequentialManager) stageErrors() []StageError {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return append([]StageError(nil), m.errs...)
}

// Records returns the result list of the current or last run, failure
// placeholders included.
func (m *SequentialManager) Records() []StageRecord {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return append([]StageRecord(nil), m.records...)
}

// Progress returns the current run view including the remaining-time estimate.
func (m *SequentialManager) Progress() Progress {
	states := m.snapshot()
	p := buildProgress(states)
	m.stateMu.RLock()
	p.CurrentStage = m.current
	done := len(m.records)
	began := m.began
	if n := len(m.errs); n > 0 {
		p.LastError = m.errs[n-1].Error
	}
	m.stateMu.RUnlock()
	p.Running = m.Running()
	p.Paused = m.Paused()
	if done > 0 && p.Running {
		average := m.now().Sub(began) / time.Duration(done)
		p.ETA = time.Duration(p.TotalStages-done) * average
	}
	return p
}

func (m *SequentialManager) publish(ctx context.Context) {
	m.notifyProgress(ctx, m.Progress())
}

func newRecordID(prefix string, index int) string {
	return fmt.Sprintf("%s-%s-%d", prefix, uuid.NewString(), index)
}
