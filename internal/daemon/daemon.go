package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"lexcase/internal/api"
	"lexcase/internal/config"
	"lexcase/internal/engine"
	"lexcase/internal/logging"
	"lexcase/internal/stage"
	"lexcase/internal/store"
)

const (
	cacheJanitorInterval   = 10 * time.Minute
	limiterJanitorInterval = time.Minute
)

// Daemon serves the analysis API and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	engine *engine.Engine
	server *apiServer

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt atomic.Int64
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, eng *engine.Engine, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || eng == nil {
		return nil, errors.New("daemon requires config, store, and engine")
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    st,
		engine:   eng,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.server = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock.
func (d *Daemon) Start(context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another lexcase daemon instance is already running")
	}
	d.startedAt.Store(time.Now().UnixNano())
	d.running.Store(true)
	d.logger.Info("lexcase daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath),
	)
	return nil
}

// Stop releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_unlock_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the lock file if no daemon is running"),
		)
	}
	d.running.Store(false)
	d.logger.Info("lexcase daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Serve starts the daemon, listens on the configured bind address and blocks
// until ctx is done or the server fails.
func (d *Daemon) Serve(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	defer d.Stop()

	listener, err := net.Listen("tcp", d.cfg.Server.Bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	return d.serve(ctx, listener)
}

// serve runs the HTTP server and the janitors until ctx is done.
func (d *Daemon) serve(ctx context.Context, listener net.Listener) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return d.server.serve(listener)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		return d.server.shutdown()
	})
	if cache := d.engine.Cache(); cache != nil {
		group.Go(func() error {
			return cache.Janitor(groupCtx, cacheJanitorInterval)
		})
	}
	if limiter := d.engine.Limiter(); limiter != nil {
		group.Go(func() error {
			return limiter.Janitor(groupCtx, limiterJanitorInterval)
		})
	}
	d.logger.Info("api server listening",
		logging.String(logging.FieldEventType, "api_listen"),
		logging.String("address", listener.Addr().String()),
	)
	return group.Wait()
}

// Health reports the readiness of the daemon dependencies.
func (d *Daemon) Health(ctx context.Context) []stage.Health {
	key := strings.TrimSpace(d.cfg.Gemini.APIKey)
	if key == "" {
		if stored, err := d.store.LoadAPIKey(ctx); err == nil {
			key = strings.TrimSpace(stored)
		}
	}
	return []stage.Health{
		stage.Check("database", d.store.Ping(ctx)),
		stage.Require("gemini", key != "", "no default API key; requests must carry apiKey"),
		stage.Require("analysis cache", d.engine.Cache() != nil, "disabled"),
	}
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Bind:         d.cfg.Server.Bind,
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		Model:        d.engine.DefaultModel(),
		StageCount:   d.engine.Catalog().Len(),
	}
	health := d.Health(ctx)
	status.Health = api.FromHealth(health)
	status.Ready = status.Running && stage.AllReady(health)
	if cache := d.engine.Cache(); cache != nil {
		status.CacheEntries = cache.Count()
	}
	if started := d.startedAt.Load(); started > 0 && status.Running {
		at := time.Unix(0, started)
		status.StartedAt = at.UTC().Format(time.RFC3339)
		status.Uptime = time.Since(at).Round(time.Second).String()
	}
	return status
}
