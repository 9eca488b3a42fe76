package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"lexcase/internal/api"
	"lexcase/internal/config"
	"lexcase/internal/stage"
)

const pollInterval = 200 * time.Millisecond

// StatusClient reads the daemon status. *api.Client implements it.
type StatusClient interface {
	Status(ctx context.Context) (api.DaemonStatus, error)
}

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State  StartState
	PID    int
	Status api.DaemonStatus
}

// Launch starts a detached lexcase daemon process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"serve"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForReady polls the daemon until it reports running or timeout passes.
func WaitForReady(ctx context.Context, client StatusClient, timeout time.Duration) (api.DaemonStatus, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		status, err := client.Status(ctx)
		if err == nil && status.Running {
			return status, nil
		}
		if err != nil {
			lastErr = err
		}
		select {
		case <-ctx.Done():
			return api.DaemonStatus{}, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return api.DaemonStatus{}, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon unless one already answers.
func EnsureStarted(ctx context.Context, client StatusClient, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	if status, err := client.Status(ctx); err == nil && status.Running {
		return StartResult{State: StartStateAlreadyRunning, PID: status.PID, Status: status}, nil
	}
	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	status, err := WaitForReady(ctx, client, waitTimeout)
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{State: StartStateStarted, PID: status.PID, Status: status}, nil
}

// ErrDaemonNotRunning indicates no daemon process was found.
var ErrDaemonNotRunning = errors.New("daemon not running")

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// ReadPID returns the pid recorded in pidPath.
func ReadPID(pidPath string) (int, error) {
	data, err := os.ReadFile(pidPath)
	if errors.Is(err, os.ErrNotExist) {
		return 0, ErrDaemonNotRunning
	}
	if err != nil {
		return 0, fmt.Errorf("read daemon pid file %q: %w", pidPath, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("daemon pid file %q is malformed", pidPath)
	}
	return pid, nil
}

// StopAndTerminate sends SIGTERM to the daemon and SIGKILL if it is still
// alive after gracePeriod.
func StopAndTerminate(cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	pidPath := cfg.PIDPath()
	pid, err := ReadPID(pidPath)
	if err != nil {
		return StopResult{}, err
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return StopResult{}, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			_ = os.Remove(pidPath)
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}

	result := StopResult{PID: pid}
	if waitForExit(proc, gracePeriod) {
		return result, nil
	}
	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return result, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return result, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	_ = os.Remove(cfg.LockPath())
	result.ForcedKill = true
	return result, nil
}

func waitForExit(proc *os.Process, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if err := proc.Signal(syscall.Signal(0)); err != nil {
			return true
		}
		time.Sleep(pollInterval)
	}
	return false
}

// BuildStatusSnapshot returns the live daemon status, or an offline view
// built from the configuration when the daemon does not answer.
func BuildStatusSnapshot(ctx context.Context, client StatusClient, cfg *config.Config) (api.DaemonStatus, error) {
	if cfg == nil {
		return api.DaemonStatus{}, errors.New("configuration not available")
	}
	if client != nil {
		queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		status, err := client.Status(queryCtx)
		cancel()
		if err == nil {
			return status, nil
		}
		if _, ok := api.AsStatusError(err); ok {
			return api.DaemonStatus{}, err
		}
	}

	status := api.DaemonStatus{
		Bind:         cfg.Server.Bind,
		DatabasePath: cfg.DatabasePath(),
		LockFilePath: cfg.LockPath(),
		Model:        cfg.Gemini.Model,
		Health:       api.FromHealth(offlineHealth(cfg)),
	}
	if pid, err := ReadPID(cfg.PIDPath()); err == nil {
		status.PID = pid
	}
	return status, nil
}

func offlineHealth(cfg *config.Config) []stage.Health {
	_, err := os.Stat(cfg.DatabasePath())
	return []stage.Health{
		stage.Require("database", err == nil, "not created yet"),
		stage.Require("gemini", strings.TrimSpace(cfg.Gemini.APIKey) != "", "gemini.api_key not set"),
	}
}
