package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
	StagesFile string `toml:"stages_file"`
}

// Gemini contains connection settings for the Gemini API.
type Gemini struct {
	APIKey          string  `toml:"api_key"`
	Model           string  `toml:"model"`
	BaseURL         string  `toml:"base_url"`
	TimeoutSeconds  int     `toml:"timeout_seconds"`
	Temperature     float64 `toml:"temperature"`
	MaxOutputTokens int     `toml:"max_output_tokens"`
}

// Analysis contains orchestrator settings.
type Analysis struct {
	Mode         string `toml:"mode"`
	Profile      string `toml:"profile"`
	RecoveryMode string `toml:"recovery_mode"`
	SaveProgress bool   `toml:"save_progress"`
}

// Server contains the analyze endpoint and daemon settings.
type Server struct {
	Bind               string `toml:"bind"`
	Endpoint           string `toml:"endpoint"`
	APIToken           string `toml:"api_token"`
	RateLimitPerMinute int    `toml:"rate_limit_per_minute"`
	CacheTTLHours      int    `toml:"cache_ttl_hours"`
	CacheMaxEntries    int    `toml:"cache_max_entries"`
	CacheFile          string `toml:"cache_file"`
	MinTextLength      int    `toml:"min_text_length"`
	MaxTextLength      int    `toml:"max_text_length"`
	MaxSummariesChars  int    `toml:"max_summaries_chars"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for lexcase.
//
// Configuration sections by subsystem:
//   - Paths: data, log and stage catalog locations
//   - Gemini: model connection settings
//   - Analysis: orchestrator mode, retry profile and recovery policy
//   - Server: analyze endpoint limits and daemon bind address
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Gemini   Gemini   `toml:"gemini"`
	Analysis Analysis `toml:"analysis"`
	Server   Server   `toml:"server"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("lexcase.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "lexcase.db")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "lexcased.lock")
}

// PIDPath returns where a running daemon records its process id.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "lexcased.pid")
}

// LogPath returns the main log file location.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "lexcase.log")
}

// AnalysisCachePath returns where the analyze response cache is persisted,
// or "" when the cache lives in memory only.
func (c *Config) AnalysisCachePath() string {
	if strings.EqualFold(c.Server.CacheFile, "none") {
		return ""
	}
	return c.Server.CacheFile
}

// GeminiTimeout returns the per-request Gemini timeout.
func (c *Config) GeminiTimeout() time.Duration {
	return time.Duration(c.Gemini.TimeoutSeconds) * time.Second
}

// CacheTTL returns the analyze response cache lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Server.CacheTTLHours) * time.Hour
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
