package analysis

import (
	"context"
	"fmt"

	"lexcase/internal/config"
	"lexcase/internal/stage"
)

// Mode names.
const (
	ModeSmart      = "smart"
	ModeSequential = "sequential"
)

// Manager is the control surface shared by both orchestrators.
type Manager interface {
	Run(ctx context.Context, in Input) (*Result, error)
	ResumeFromStage(ctx context.Context, in Input, start int, previous []string) (*Result, error)
	Pause()
	Resume()
	Stop()
	Running() bool
	Paused() bool
	Progress() Progress
}

var (
	_ Manager = (*SmartManager)(nil)
	_ Manager = (*SequentialManager)(nil)
)

// Settings selects and tunes a manager.
type Settings struct {
	Mode         string
	Profile      string
	Recovery     string
	SaveProgress bool
}

// SettingsFromConfig reads the [analysis] section.
func SettingsFromConfig(cfg *config.Config) Settings {
	if cfg == nil {
		return Settings{Mode: ModeSmart, SaveProgress: true}
	}
	return Settings{
		Mode:         cfg.Analysis.Mode,
		Profile:      cfg.Analysis.Profile,
		Recovery:     cfg.Analysis.RecoveryMode,
		SaveProgress: cfg.Analysis.SaveProgress,
	}
}

// NewManager builds the manager named by settings.Mode.
func NewManager(settings Settings, analyzer Analyzer, catalog *stage.Catalog, opts ...Option) (Manager, error) {
	switch settings.Mode {
	case "", ModeSmart:
		cfg, err := Profile(settings.Profile)
		if err != nil {
			return nil, err
		}
		if settings.Recovery != "" {
			mode, err := ParseRecoveryMode(settings.Recovery)
			if err != nil {
				return nil, err
			}
			cfg.Recovery = mode
		}
		return NewSmartManager(analyzer, catalog, cfg, opts...), nil
	case ModeSequential:
		cfg := DefaultSequentialConfig()
		cfg.EnableProgressSave = settings.SaveProgress
		return NewSequentialManager(analyzer, catalog, cfg, opts...), nil
	}
	return nil, fmt.Errorf("unknown analysis mode %q", settings.Mode)
}
