package analysis

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"lexcase/internal/logging"
)

// Option configures a manager.
type Option func(*runner)

// WithLogger sets the manager logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithSleeper overrides how waits are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(r *runner) {
		r.sleeper = sleeper
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithObserver registers an observer for progress and stage results.
func WithObserver(observer Observer) Option {
	return func(r *runner) {
		if observer != nil {
			r.observers = append(r.observers, observer)
		}
	}
}

// runner holds the run lifecycle shared by both managers: the single-run
// guard, pause gate, stop cancellation and context-aware waits.
type runner struct {
	logger    *slog.Logger
	sleeper   func(time.Duration)
	now       func() time.Time
	observers []Observer

	mu      sync.RWMutex
	running bool
	paused  bool
	stopped bool
	gate    chan struct{}
	cancel  context.CancelFunc
	lastErr error
}

func newRunner(component string, opts []Option) runner {
	r := runner{
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&r)
	}
	r.logger = logging.NewComponentLogger(r.logger, component)
	return r
}

// begin marks a run active and returns its cancellable context.
func (r *runner) begin(ctx context.Context) (context.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil, ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.running = true
	r.paused = false
	r.stopped = false
	r.gate = nil
	r.cancel = cancel
	r.lastErr = nil
	return runCtx, nil
}

func (r *runner) end() {
	r.mu.Lock()
	cancel := r.cancel
	r.running = false
	r.paused = false
	r.cancel = nil
	if r.gate != nil {
		close(r.gate)
		r.gate = nil
	}
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Pause holds the run before its next stage.
func (r *runner) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running || r.paused {
		return
	}
	r.paused = true
	r.gate = make(chan struct{})
}

// Resume releases a paused run.
func (r *runner) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.paused {
		return
	}
	r.paused = false
	if r.gate != nil {
		close(r.gate)
		r.gate = nil
	}
}

// Stop ends the active run. In-flight attempts and waits are cancelled.
func (r *runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	cancel := r.cancel
	r.mu.Unlock()
	cancel()
}

// Running reports whether a run is active.
func (r *runner) Running() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// Paused reports whether the active run is paused.
func (r *runner) Paused() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.paused
}

// LastError returns the most recent stage failure of the current or last run.
func (r *runner) LastError() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

func (r *runner) wasStopped() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stopped
}

func (r *runner) setLastError(err error) {
	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()
}

// waitIfPaused blocks while the run is paused.
func (r *runner) waitIfPaused(ctx context.Context) error {
	r.mu.RLock()
	gate := r.gate
	paused := r.paused
	r.mu.RUnlock()
	if !paused || gate == nil {
		return ctx.Err()
	}
	r.logger.Info("analysis paused", logging.String(logging.FieldEventType, "analysis_paused"))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-gate:
		r.logger.Info("analysis resumed", logging.String(logging.FieldEventType, "analysis_resumed"))
		return ctx.Err()
	}
}

func (r *runner) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if r.sleeper != nil {
		r.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// finish converts the run context state into the error Run returns. A run
// ended by Stop is not an error.
func (r *runner) finish(ctx, runCtx context.Context) error {
	if runCtx.Err() == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.wasStopped() {
		return nil
	}
	return runCtx.Err()
}

func (r *runner) notifyProgress(ctx context.Context, progress Progress) {
	for _, observer := range r.observers {
		observer.ProgressChanged(ctx, progress)
	}
}

func (r *runner) notifyStage(ctx context.Context, state StageState) {
	for _, observer := range r.observers {
		observer.StageFinished(ctx, state)
	}
}
