package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"lexcase/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level            string
	Format           string
	OutputPaths      []string
	ErrorOutputPaths []string
	Development      bool
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	level := new(slog.LevelVar)
	level.Set(parseLevel(opts.Level))
	withSource := opts.Development || level.Level() <= slog.LevelDebug

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format != "" && format != "console" && format != "json" {
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	outputs := opts.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}
	errOutputs := opts.ErrorOutputPaths
	if len(errOutputs) == 0 {
		errOutputs = []string{"stderr"}
	}
	w, err := openSinks(append(slices.Clone(outputs), errOutputs...))
	if err != nil {
		return nil, err
	}

	if format == "json" {
		return slog.New(newJSONHandler(w, level, withSource)), nil
	}
	return slog.New(newConsoleHandler(w, level, withSource)), nil
}

// NewFromConfig creates the daemon-style logger: stdout plus lexcase.log in the
// configured log directory.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info"})
	}
	sinks, errSinks := []string{"stdout"}, []string{"stderr"}
	if cfg.Paths.LogDir != "" {
		sinks = append(sinks, cfg.LogPath())
		errSinks = append(errSinks, cfg.LogPath())
	}
	return New(Options{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		OutputPaths:      sinks,
		ErrorOutputPaths: errSinks,
	})
}

// NewCLI builds the quieter logger used by interactive commands: warnings and
// errors go to stderr, everything at the configured level goes to the log file.
func NewCLI(cfg *config.Config) (*slog.Logger, error) {
	console, err := New(Options{Level: "warn", OutputPaths: []string{"stderr"}})
	if err != nil {
		return nil, err
	}
	if cfg == nil || cfg.Paths.LogDir == "" {
		return console, nil
	}
	file, err := New(Options{
		Level:            cfg.Logging.Level,
		Format:           "json",
		OutputPaths:      []string{cfg.LogPath()},
		ErrorOutputPaths: []string{cfg.LogPath()},
	})
	if err != nil {
		return nil, err
	}
	return TeeLogger(file, console.Handler()), nil
}

func parseLevel(level string) slog.Level {
	var parsed slog.Level
	if err := parsed.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo
	}
	return parsed
}

// openSinks resolves sink names ("stdout", "stderr" or file paths) into one
// writer, opening each distinct sink once.
func openSinks(names []string) (io.Writer, error) {
	var writers []io.Writer
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		switch name {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
				return nil, fmt.Errorf("ensure log directory: %w", err)
			}
			f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
			if err != nil {
				return nil, fmt.Errorf("open log file %s: %w", name, err)
			}
			writers = append(writers, f)
		}
	}
	switch len(writers) {
	case 0:
		return os.Stdout, nil
	case 1:
		return writers[0], nil
	default:
		return io.MultiWriter(writers...), nil
	}
}
