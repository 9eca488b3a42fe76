package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeGemini()
	c.normalizeAnalysis()
	if err := c.normalizeServer(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StagesFile) != "" {
		if c.Paths.StagesFile, err = expandPath(c.Paths.StagesFile); err != nil {
			return fmt.Errorf("paths.stages_file: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeGemini() {
	c.Gemini.APIKey = strings.TrimSpace(c.Gemini.APIKey)
	if c.Gemini.APIKey == "" {
		if value, ok := os.LookupEnv("GEMINI_API_KEY"); ok {
			c.Gemini.APIKey = strings.TrimSpace(value)
		}
	}
	c.Gemini.Model = strings.TrimSpace(c.Gemini.Model)
	if c.Gemini.Model == "" {
		c.Gemini.Model = defaultGeminiModel
	}
	c.Gemini.BaseURL = strings.TrimSpace(c.Gemini.BaseURL)
	if c.Gemini.TimeoutSeconds <= 0 {
		c.Gemini.TimeoutSeconds = defaultGeminiTimeout
	}
	if c.Gemini.MaxOutputTokens <= 0 {
		c.Gemini.MaxOutputTokens = defaultMaxOutputTokens
	}
}

func (c *Config) normalizeAnalysis() {
	c.Analysis.Mode = strings.ToLower(strings.TrimSpace(c.Analysis.Mode))
	if c.Analysis.Mode == "" {
		c.Analysis.Mode = defaultAnalysisMode
	}
	c.Analysis.Profile = strings.ToLower(strings.TrimSpace(c.Analysis.Profile))
	if c.Analysis.Profile == "" {
		c.Analysis.Profile = defaultAnalysisProfile
	}
	c.Analysis.RecoveryMode = strings.ToLower(strings.TrimSpace(c.Analysis.RecoveryMode))
	c.Analysis.RecoveryMode = strings.ReplaceAll(c.Analysis.RecoveryMode, "-", "_")
}

func (c *Config) normalizeServer() error {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	c.Server.Endpoint = strings.TrimRight(strings.TrimSpace(c.Server.Endpoint), "/")
	if c.Server.Endpoint == "" {
		c.Server.Endpoint = defaultEndpoint
	}
	c.Server.APIToken = strings.TrimSpace(c.Server.APIToken)
	if c.Server.APIToken == "" {
		if value, ok := os.LookupEnv("LEXCASE_API_TOKEN"); ok {
			c.Server.APIToken = strings.TrimSpace(value)
		}
	}
	if c.Server.RateLimitPerMinute <= 0 {
		c.Server.RateLimitPerMinute = defaultRateLimit
	}
	if c.Server.CacheTTLHours <= 0 {
		c.Server.CacheTTLHours = defaultCacheTTLHours
	}
	if c.Server.CacheMaxEntries <= 0 {
		c.Server.CacheMaxEntries = defaultCacheMaxEntries
	}
	c.Server.CacheFile = strings.TrimSpace(c.Server.CacheFile)
	if c.Server.CacheFile == "" {
		c.Server.CacheFile = filepath.Join(c.Paths.DataDir, "analysis_cache.json")
	} else if !strings.EqualFold(c.Server.CacheFile, "none") {
		expanded, err := expandPath(c.Server.CacheFile)
		if err != nil {
			return fmt.Errorf("server.cache_file: %w", err)
		}
		c.Server.CacheFile = expanded
	}
	if c.Server.MinTextLength <= 0 {
		c.Server.MinTextLength = defaultMinTextLength
	}
	if c.Server.MaxTextLength <= 0 {
		c.Server.MaxTextLength = defaultMaxTextLength
	}
	if c.Server.MaxSummariesChars <= 0 {
		c.Server.MaxSummariesChars = defaultMaxSummariesChars
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
