package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"lexcase/internal/config"
)

func TestLoadDefaultConfigUsesEnvKeyAndExpandsPaths(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "lexcase")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Gemini.APIKey != "env-key" {
		t.Fatalf("expected Gemini key from env, got %q", cfg.Gemini.APIKey)
	}
	if cfg.Gemini.Model != "gemini-1.5-flash" {
		t.Fatalf("unexpected default model %q", cfg.Gemini.Model)
	}
	if cfg.Analysis.Mode != "smart" || cfg.Analysis.Profile != "default" {
		t.Fatalf("unexpected analysis defaults: %+v", cfg.Analysis)
	}
	if cfg.Server.RateLimitPerMinute != 10 || cfg.Server.MaxSummariesChars != 24000 {
		t.Fatalf("unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "lexcase.db") {
		t.Fatalf("unexpected database path %q", cfg.DatabasePath())
	}
	if cfg.AnalysisCachePath() != filepath.Join(wantData, "analysis_cache.json") {
		t.Fatalf("unexpected cache path %q", cfg.AnalysisCachePath())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "lexcase.toml")

	type payload struct {
		Gemini struct {
			APIKey string `toml:"api_key"`
			Model  string `toml:"model"`
		} `toml:"gemini"`
		Analysis struct {
			Mode         string `toml:"mode"`
			Profile      string `toml:"profile"`
			RecoveryMode string `toml:"recovery_mode"`
		} `toml:"analysis"`
		Paths struct {
			DataDir string `toml:"data_dir"`
		} `toml:"paths"`
	}
	custom := payload{}
	custom.Gemini.APIKey = "abc123"
	custom.Gemini.Model = " gemini-1.5-pro "
	custom.Analysis.Mode = "Sequential"
	custom.Analysis.Profile = "PATIENT"
	custom.Analysis.RecoveryMode = "block-until-success"
	custom.Paths.DataDir = filepath.Join(tempDir, "data")

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom path to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Gemini.APIKey != "abc123" {
		t.Fatalf("unexpected api key %q", cfg.Gemini.APIKey)
	}
	if cfg.Gemini.Model != "gemini-1.5-pro" {
		t.Fatalf("expected trimmed model, got %q", cfg.Gemini.Model)
	}
	if cfg.Analysis.Mode != "sequential" || cfg.Analysis.Profile != "patient" {
		t.Fatalf("expected lowercased analysis settings, got %+v", cfg.Analysis)
	}
	if cfg.Analysis.RecoveryMode != "block_until_success" {
		t.Fatalf("expected normalized recovery mode, got %q", cfg.Analysis.RecoveryMode)
	}
	if cfg.Paths.DataDir != filepath.Join(tempDir, "data") {
		t.Fatalf("unexpected data dir %q", cfg.Paths.DataDir)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "mode", content: "[analysis]\nmode = \"parallel\"\n", want: "analysis.mode"},
		{name: "profile", content: "[analysis]\nprofile = \"reckless\"\n", want: "analysis.profile"},
		{name: "recovery", content: "[analysis]\nrecovery_mode = \"ignore\"\n", want: "analysis.recovery_mode"},
		{name: "format", content: "[logging]\nformat = \"xml\"\n", want: "logging.format"},
		{name: "text bounds", content: "[server]\nmin_text_length = 500\nmax_text_length = 100\n", want: "min_text_length"},
		{name: "unknown key", content: "[server]\nport = 1\n", want: "parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "lexcase.toml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := config.Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestCreateSampleLoads(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Server.Bind != "127.0.0.1:3000" {
		t.Fatalf("unexpected bind %q", cfg.Server.Bind)
	}
}

func TestCacheFileNoneDisablesPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexcase.toml")
	if err := os.WriteFile(path, []byte("[server]\ncache_file = \"none\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.AnalysisCachePath(); got != "" {
		t.Fatalf("expected memory-only cache, got %q", got)
	}
}
