package analysis

import (
	"testing"

	"lexcase/internal/config"
)

func TestNewManagerSelectsMode(t *testing.T) {
	manager, err := NewManager(Settings{Mode: ModeSmart, Profile: "patient", Recovery: "skip"}, newScripted(nil), nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	smart, ok := manager.(*SmartManager)
	if !ok {
		t.Fatalf("expected *SmartManager, got %T", manager)
	}
	if smart.Config().Recovery != RecoverySkip || smart.Config().CriticalStageRetries != 20 {
		t.Fatalf("unexpected config %+v", smart.Config())
	}

	manager, err = NewManager(Settings{Mode: ModeSequential, SaveProgress: false}, newScripted(nil), nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	sequential, ok := manager.(*SequentialManager)
	if !ok {
		t.Fatalf("expected *SequentialManager, got %T", manager)
	}
	if sequential.Config().EnableProgressSave {
		t.Fatal("progress saving should follow the settings")
	}
}

func TestNewManagerRejectsUnknownValues(t *testing.T) {
	for _, settings := range []Settings{
		{Mode: "parallel"},
		{Mode: ModeSmart, Profile: "reckless"},
		{Mode: ModeSmart, Recovery: "ignore"},
	} {
		if _, err := NewManager(settings, nil, nil); err == nil {
			t.Fatalf("expected error for %+v", settings)
		}
	}
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Analysis.Mode = ModeSequential
	cfg.Analysis.RecoveryMode = "skip"
	settings := SettingsFromConfig(&cfg)
	if settings.Mode != ModeSequential || settings.Recovery != "skip" || !settings.SaveProgress {
		t.Fatalf("unexpected settings %+v", settings)
	}
	if got := SettingsFromConfig(nil); got.Mode != ModeSmart {
		t.Fatalf("nil config should default to smart, got %+v", got)
	}
}
