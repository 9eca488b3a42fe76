package analysis

import (
	"fmt"
	"strings"
	"time"
)

// RecoveryMode is the policy applied after a stage exhausts its attempts.
type RecoveryMode string

const (
	// RecoverySkip marks the stage skipped and continues.
	RecoverySkip RecoveryMode = "skip"
	// RecoveryRetryWithContext marks the stage failed and continues; later
	// stages receive the failure as context.
	RecoveryRetryWithContext RecoveryMode = "retry_with_context"
	// RecoveryBlockUntilSuccess marks the stage failed and stops the run.
	RecoveryBlockUntilSuccess RecoveryMode = "block_until_success"
)

// ParseRecoveryMode accepts the config spellings of a recovery mode.
func ParseRecoveryMode(value string) (RecoveryMode, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "-", "_")
	switch RecoveryMode(normalized) {
	case RecoverySkip, RecoveryRetryWithContext, RecoveryBlockUntilSuccess:
		return RecoveryMode(normalized), nil
	}
	return "", fmt.Errorf("unknown recovery mode %q", value)
}

// SmartConfig tunes the smart manager.
type SmartConfig struct {
	MaxRetries           int
	BaseDelay            time.Duration
	MaxDelay             time.Duration
	ExponentialBackoff   bool
	CriticalStageRetries int
	Recovery             RecoveryMode
	StageTimeout         time.Duration
}

// DefaultSmartConfig returns the default smart profile.
func DefaultSmartConfig() SmartConfig {
	return SmartConfig{
		MaxRetries:           5,
		BaseDelay:            3 * time.Second,
		MaxDelay:             30 * time.Second,
		ExponentialBackoff:   true,
		CriticalStageRetries: 8,
		Recovery:             RecoveryRetryWithContext,
		StageTimeout:         2 * time.Minute,
	}
}

// RobustSmartConfig allows more attempts and longer waits.
func RobustSmartConfig() SmartConfig {
	cfg := DefaultSmartConfig()
	cfg.MaxRetries = 8
	cfg.BaseDelay = 5 * time.Second
	cfg.MaxDelay = 45 * time.Second
	cfg.CriticalStageRetries = 12
	return cfg
}

// PatientSmartConfig retries longest and stops the run on a failed stage.
func PatientSmartConfig() SmartConfig {
	cfg := DefaultSmartConfig()
	cfg.MaxRetries = 15
	cfg.BaseDelay = 8 * time.Second
	cfg.MaxDelay = time.Minute
	cfg.CriticalStageRetries = 20
	cfg.Recovery = RecoveryBlockUntilSuccess
	return cfg
}

// Profiles lists the named smart profiles.
func Profiles() []string {
	return []string{"default", "robust", "patient"}
}

// Profile returns the named smart profile.
func Profile(name string) (SmartConfig, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return DefaultSmartConfig(), nil
	case "robust":
		return RobustSmartConfig(), nil
	case "patient":
		return PatientSmartConfig(), nil
	}
	return SmartConfig{}, fmt.Errorf("unknown analysis profile %q", name)
}

func (c SmartConfig) normalized() SmartConfig {
	def := DefaultSmartConfig()
	if c.MaxRetries <= 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.CriticalStageRetries <= 0 {
		c.CriticalStageRetries = c.MaxRetries
	}
	if c.BaseDelay < 0 {
		c.BaseDelay = 0
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = def.MaxDelay
	}
	if c.Recovery == "" {
		c.Recovery = def.Recovery
	}
	if c.StageTimeout <= 0 {
		c.StageTimeout = def.StageTimeout
	}
	return c
}

// Attempts returns the attempt budget of a stage.
func (c SmartConfig) Attempts(critical bool) int {
	if critical {
		return c.CriticalStageRetries
	}
	return c.MaxRetries
}

// SequentialConfig tunes the sequential manager.
type SequentialConfig struct {
	BaseDelay          time.Duration
	MaxDelay           time.Duration
	MaxRetries         int
	TimeoutPerStage    time.Duration
	EnableProgressSave bool
}

// DefaultSequentialConfig returns the sequential defaults.
func DefaultSequentialConfig() SequentialConfig {
	return SequentialConfig{
		BaseDelay:          5 * time.Second,
		MaxDelay:           15 * time.Second,
		MaxRetries:         3,
		TimeoutPerStage:    time.Minute,
		EnableProgressSave: true,
	}
}

func (c SequentialConfig) normalized() SequentialConfig {
	def := DefaultSequentialConfig()
	if c.MaxRetries <= 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.BaseDelay < 0 {
		c.BaseDelay = 0
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = def.MaxDelay
	}
	if c.TimeoutPerStage <= 0 {
		c.TimeoutPerStage = def.TimeoutPerStage
	}
	return c
}
