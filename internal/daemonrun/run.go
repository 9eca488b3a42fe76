package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"lexcase/internal/analysiscache"
	"lexcase/internal/config"
	"lexcase/internal/daemon"
	"lexcase/internal/engine"
	"lexcase/internal/logging"
	"lexcase/internal/services/gemini"
	"lexcase/internal/stage"
	"lexcase/internal/store"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the lexcase daemon and blocks until a signal or cmdCtx ends it.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("lexcased-%s.log", runID))
	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update lexcased.log link: %v\n", err)
	}

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	catalog, err := stage.Load(cfg.Paths.StagesFile)
	if err != nil {
		return fmt.Errorf("load stage catalog: %w", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open case store", logging.Error(err))
		return err
	}

	cache := analysiscache.NewFromConfig(cfg, logger)
	client := gemini.NewFromConfig(cfg)
	eng := engine.NewFromConfig(cfg, catalog, client, cache, logger)
	logConfigSnapshot(logger, cfg, catalog)

	d, err := daemon.New(cfg, st, eng, logger)
	if err != nil {
		st.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Serve(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon stopped with error", "daemon_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the bind address and that no other daemon holds the lock"),
		)
		return err
	}
	logger.Info("lexcase daemon shutting down")
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "lexcased.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config, catalog *stage.Catalog) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.Bool("gemini_key_present", strings.TrimSpace(cfg.Gemini.APIKey) != ""),
		logging.String(logging.FieldModel, cfg.Gemini.Model),
		logging.String("bind", cfg.Server.Bind),
		logging.Bool("api_token_set", cfg.Server.APIToken != ""),
		logging.Int("rate_limit_per_minute", cfg.Server.RateLimitPerMinute),
		logging.String("cache_file", cfg.AnalysisCachePath()),
		logging.Int("stage_count", catalog.Len()),
		logging.Bool("custom_stages", cfg.Paths.StagesFile != ""),
	)
}
