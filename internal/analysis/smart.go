package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"lexcase/internal/logging"
	"lexcase/internal/stage"
	"lexcase/internal/textutil"
)

const (
	// defaultOutput stands in for an empty successful analysis.
	defaultOutput = "تم التحليل بنجاح"

	dependencySummaryRunes = 300
	keySummaryRunes        = 200

	dependencyHeader = "\n\n--- معلومات من المراحل السابقة ---\n"
	failureHeader    = "\n\n--- تحديات في المراحل السابقة ---\n"
	guidanceHeader   = "\n\n--- توجيهات للمرحلة الحالية ---\n"
)

var baseGuidance = []string{
	"يرجى تقديم تحليل شامل ومفصل",
	"في حالة نقص المعلومات، قم بالتحليل بناءً على المعلومات المتاحة",
}

const (
	criticalGuidance   = "هذه مرحلة حرجة - يرجى التأكد من الدقة والاكتمال"
	compensateGuidance = "تعويض عن نقص المعلومات من المراحل السابقة مطلوب"
)

// Input is the case material a run analyses.
type Input struct {
	Text      string
	APIKey    string
	Model     string
	PartyRole string
}

// SmartManager runs every stage with per-error retry strategies, carries
// earlier results into later prompts and applies a recovery policy to stages
// that exhaust their attempts.
type SmartManager struct {
	runner

	cfg      SmartConfig
	analyzer Analyzer
	catalog  *stage.Catalog

	stateMu   sync.RWMutex
	stages    []StageState
	completed map[int]string
	failed    map[int]string
	skipped   map[int]struct{}
	notes     []string
}

// NewSmartManager constructs a smart manager over catalog.
func NewSmartManager(analyzer Analyzer, catalog *stage.Catalog, cfg SmartConfig, opts ...Option) *SmartManager {
	if catalog == nil {
		catalog = stage.Default()
	}
	m := &SmartManager{
		runner:   newRunner("smart-analysis", opts),
		cfg:      cfg.normalized(),
		analyzer: analyzer,
		catalog:  catalog,
	}
	m.reset()
	return m
}

// Config returns the effective configuration.
func (m *SmartManager) Config() SmartConfig {
	return m.cfg
}

func (m *SmartManager) reset() {
	names := m.catalog.Names()
	states := make([]StageState, len(names))
	for i, name := range names {
		states[i] = StageState{
			Index:        i,
			Name:         name,
			Status:       StatusPending,
			Critical:     stage.IsCritical(i),
			Dependencies: stage.Dependencies(i),
			Dependents:   stage.Dependents(i, len(names)),
		}
	}
	m.stateMu.Lock()
	m.stages = states
	m.completed = make(map[int]string)
	m.failed = make(map[int]string)
	m.skipped = make(map[int]struct{})
	m.notes = nil
	m.stateMu.Unlock()
}

// Run analyses every stage in order.
func (m *SmartManager) Run(ctx context.Context, in Input) (*Result, error) {
	return m.ResumeFromStage(ctx, in, 0, nil)
}

// ResumeFromStage runs from start. Non-empty entries of previous below start
// are treated as completed outputs and are not analysed again.
func (m *SmartManager) ResumeFromStage(ctx context.Context, in Input, start int, previous []string) (*Result, error) {
	if start < 0 || start >= m.catalog.Len() {
		return nil, ErrInvalidStage
	}
	runCtx, err := m.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer m.end()

	m.reset()
	seeded := m.seed(start, previous)
	began := m.now()
	m.logger.Info("smart analysis started",
		logging.String(logging.FieldEventType, "analysis_start"),
		logging.Int("start_stage", start),
		logging.Int("seeded_stages", seeded),
		logging.Int("total_stages", m.catalog.Len()),
		logging.String("recovery_mode", string(m.cfg.Recovery)),
	)

	last := m.catalog.Len() - 1
	for i := start; i <= last; i++ {
		if runCtx.Err() != nil {
			break
		}
		if err := m.waitIfPaused(runCtx); err != nil {
			break
		}
		if m.isCompleted(i) {
			continue
		}

		outcome := m.processStage(runCtx, in, i)
		if outcome == outcomeInterrupted {
			break
		}
		if outcome == outcomeFailed && m.handleFailure(runCtx, i) {
			break
		}
		m.publish(runCtx)

		if i < last {
			if err := m.sleep(runCtx, m.interStageDelay(i)); err != nil {
				break
			}
		}
	}

	result := newResult(m.snapshot(), m.stageErrors(), m.now().Sub(began), m.wasStopped())
	m.logger.Info("smart analysis finished",
		logging.String(logging.FieldEventType, "analysis_complete"),
		logging.Int("completed", result.Summary.Completed),
		logging.Int("failed", result.Summary.Failed),
		logging.Int("skipped", result.Summary.Skipped),
		logging.Int("success_rate", result.Summary.SuccessRate),
		logging.String("duration", result.Summary.TotalTime),
	)
	return result, m.finish(ctx, runCtx)
}

func (m *SmartManager) seed(start int, previous []string) int {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	count := 0
	for i, output := range previous {
		if i >= start || i >= len(m.stages) || strings.TrimSpace(output) == "" {
			continue
		}
		m.completed[i] = output
		m.stages[i].Status = StatusCompleted
		m.stages[i].Output = output
		count++
	}
	return count
}

func (m *SmartManager) isCompleted(i int) bool {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.stages[i].Status == StatusCompleted && m.stages[i].Output != ""
}

type stageOutcome int

const (
	outcomeCompleted stageOutcome = iota
	outcomeFailed
	outcomeInterrupted
)

func (m *SmartManager) processStage(ctx context.Context, in Input, i int) stageOutcome {
	m.stateMu.RLock()
	state := m.stages[i]
	m.stateMu.RUnlock()

	attempts := m.cfg.Attempts(state.Critical)
	logger := m.logger.With(
		logging.String(logging.FieldStage, state.Name),
		logging.Int(logging.FieldStageIndex, i),
		logging.Bool("critical", state.Critical),
	)
	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.Int("max_attempts", attempts),
	)

	began := m.now()
	for attempt := range attempts {
		if ctx.Err() != nil {
			m.updateStage(i, func(s *StageState) { s.Status = StatusPending })
			return outcomeInterrupted
		}
		m.updateStage(i, func(s *StageState) {
			s.RetryCount = attempt
			s.Status = StatusProcessing
			if attempt > 0 {
				s.Status = StatusRetrying
			}
		})
		m.publish(ctx)

		enhanced := m.enhancedInput(in.Text, i)
		output, err := m.attempt(ctx, in, state, enhanced)
		if err == nil {
			if strings.TrimSpace(output) == "" {
				output = defaultOutput
			}
			m.stateMu.Lock()
			m.completed[i] = output
			m.stages[i].Status = StatusCompleted
			m.stages[i].Input = enhanced
			m.stages[i].Output = output
			m.stages[i].Error = ""
			m.stages[i].Duration = m.now().Sub(began)
			m.stages[i].FinishedAt = m.now()
			m.notes = append(m.notes, fmt.Sprintf("[%s]: %s", state.Name, extractKeySummary(output)))
			finished := m.stages[i]
			m.stateMu.Unlock()
			logger.Info("stage completed",
				logging.String(logging.FieldEventType, "stage_complete"),
				logging.Int(logging.FieldAttempt, attempt+1),
				logging.Duration("stage_duration", finished.Duration),
			)
			m.notifyStage(ctx, finished)
			return outcomeCompleted
		}
		if ctx.Err() != nil {
			m.updateStage(i, func(s *StageState) { s.Status = StatusPending })
			logger.Debug("stage interrupted by stop")
			return outcomeInterrupted
		}

		message := err.Error()
		m.updateStage(i, func(s *StageState) { s.Error = message })
		m.setLastError(err)
		strategy := m.cfg.Strategy(err, attempt)
		if !strategy.Retry || attempt == attempts-1 {
			m.stateMu.Lock()
			m.failed[i] = message
			m.stages[i].Input = enhanced
			m.stages[i].Duration = m.now().Sub(began)
			m.stateMu.Unlock()
			logging.WarnWithContext(logger, "stage attempts exhausted", "stage_exhausted",
				logging.Int(logging.FieldAttempt, attempt+1),
				logging.String("error_kind", string(strategy.Kind)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the API key, quota and network, then resume from this stage"),
				logging.String(logging.FieldImpact, "recovery policy "+string(m.cfg.Recovery)+" applies"),
			)
			return outcomeFailed
		}
		logger.Info("stage attempt failed; retrying",
			logging.String(logging.FieldEventType, "stage_retry"),
			logging.Int(logging.FieldAttempt, attempt+1),
			logging.String("error_kind", string(strategy.Kind)),
			logging.Duration("retry_delay", strategy.Delay),
			logging.Error(err),
		)
		if err := m.sleep(ctx, strategy.Delay); err != nil {
			m.updateStage(i, func(s *StageState) { s.Status = StatusPending })
			return outcomeInterrupted
		}
	}
	return outcomeFailed
}

func (m *SmartManager) attempt(ctx context.Context, in Input, state StageState, text string) (string, error) {
	if m.analyzer == nil {
		return "", fmt.Errorf("analysis: no analyzer configured")
	}
	attemptCtx, cancel := context.WithTimeout(ctx, m.cfg.StageTimeout)
	defer cancel()
	resp, err := m.analyzer.Analyze(attemptCtx, Request{
		Text:       text,
		StageIndex: state.Index,
		StageName:  state.Name,
		APIKey:     in.APIKey,
		Model:      in.Model,
		PartyRole:  in.PartyRole,
	})
	if err != nil {
		return "", attemptError(ctx, err)
	}
	return resp.Analysis, nil
}

// handleFailure applies the recovery policy and reports whether the run must
// stop.
func (m *SmartManager) handleFailure(ctx context.Context, i int) bool {
	m.stateMu.Lock()
	stop := false
	switch m.cfg.Recovery {
	case RecoverySkip:
		m.stages[i].Status = StatusSkipped
		m.skipped[i] = struct{}{}
	case RecoveryBlockUntilSuccess:
		m.stages[i].Status = StatusFailed
		stop = true
	default:
		m.stages[i].Status = StatusFailed
	}
	m.stages[i].FinishedAt = m.now()
	finished := m.stages[i]
	m.stateMu.Unlock()

	if stop {
		logging.ErrorWithContext(m.logger, "stage failed; run blocked until it succeeds", "analysis_blocked",
			logging.String(logging.FieldStage, finished.Name),
			logging.Int(logging.FieldStageIndex, i),
			logging.String(logging.FieldErrorHint, "resume from this stage once the cause is fixed"),
		)
	}
	m.notifyStage(ctx, finished)
	return stop
}

// enhancedInput appends dependency results, earlier failures and stage
// guidance to the case text.
func (m *SmartManager) enhancedInput(text string, i int) string {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()

	var b strings.Builder
	b.WriteString(text)

	var deps []string
	for _, dep := range m.stages[i].Dependencies {
		output, ok := m.completed[dep]
		if !ok || output == "" {
			continue
		}
		deps = append(deps, m.stageName(dep)+": "+textutil.Truncate(output, dependencySummaryRunes, "..."))
	}
	if len(deps) > 0 {
		b.WriteString(dependencyHeader)
		b.WriteString(strings.Join(deps, "\n\n"))
	}

	var issues []string
	for _, idx := range sortedKeys(m.failed) {
		if idx < i {
			issues = append(issues, fmt.Sprintf("تحدي في %s: %s", m.stageName(idx), m.failed[idx]))
		}
	}
	for _, idx := range sortedKeys(m.skipped) {
		if idx < i {
			issues = append(issues, fmt.Sprintf("تم تخطي %s - يرجى التعويض في التحليل الحالي", m.stageName(idx)))
		}
	}
	if len(issues) > 0 {
		b.WriteString(failureHeader)
		b.WriteString(strings.Join(issues, "\n"))
	}

	guidance := append([]string(nil), baseGuidance...)
	if m.stages[i].Critical {
		guidance = append(guidance, criticalGuidance)
	}
	if len(m.failed) > 0 {
		guidance = append(guidance, compensateGuidance)
	}
	b.WriteString(guidanceHeader)
	b.WriteString(strings.Join(guidance, "\n"))
	return b.String()
}

func (m *SmartManager) stageName(i int) string {
	if i >= 0 && i < len(m.stages) {
		return m.stages[i].Name
	}
	return fmt.Sprintf("المرحلة %d", i+1)
}

// interStageDelay grows with recent failures and with the stage position.
func (m *SmartManager) interStageDelay(i int) time.Duration {
	m.stateMu.RLock()
	recent := 0
	for idx := range m.failed {
		if idx >= i-2 {
			recent++
		}
	}
	m.stateMu.RUnlock()

	delay := m.cfg.BaseDelay + time.Duration(recent)*2*time.Second
	switch {
	case i > 10:
		delay += 3 * time.Second
	case i > 5:
		delay += 1500 * time.Millisecond
	}
	return min(delay, m.cfg.MaxDelay)
}

func (m *SmartManager) updateStage(i int, fn func(*StageState)) {
	m.stateMu.Lock()
	fn(&m.stages[i])
	m.stateMu.Unlock()
}

func (m *SmartManager) snapshot() []StageState {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	out := make([]StageState, len(m.stages))
	copy(out, m.stages)
	return out
}

func (m *SmartManager) stageErrors() []StageError {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	out := make([]StageError, 0, len(m.failed))
	for _, idx := range sortedKeys(m.failed) {
		out = append(out, StageError{StageIndex: idx, Error: m.failed[idx], RetryCount: m.stages[idx].RetryCount})
	}
	return out
}

// Progress returns the current run view.
func (m *SmartManager) Progress() Progress {
	p := buildProgress(m.snapshot())
	p.Running = m.Running()
	p.Paused = m.Paused()
	if err := m.LastError(); err != nil {
		p.LastError = err.Error()
	}
	return p
}

// ContextNotes returns the key-summary line recorded for each completed stage.
func (m *SmartManager) ContextNotes() []string {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return append([]string(nil), m.notes...)
}

func (m *SmartManager) publish(ctx context.Context) {
	m.notifyProgress(ctx, m.Progress())
}

// extractKeySummary returns the first line of output, clipped.
func extractKeySummary(output string) string {
	return textutil.Truncate(textutil.FirstLine(output), keySummaryRunes, "...")
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
