package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable. A missing Gemini API key is not
// an error here; the key can also come from stored settings at run time.
func (c *Config) Validate() error {
	if err := c.validateGemini(); err != nil {
		return err
	}
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateGemini() error {
	if len(c.Gemini.APIKey) > 100 {
		return errors.New("gemini.api_key is longer than 100 characters")
	}
	if c.Gemini.Temperature < 0 || c.Gemini.Temperature > 2 {
		return errors.New("gemini.temperature must be between 0 and 2")
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	switch c.Analysis.Mode {
	case "smart", "sequential":
	default:
		return fmt.Errorf("analysis.mode: unsupported value %q (use smart or sequential)", c.Analysis.Mode)
	}
	switch c.Analysis.Profile {
	case "default", "robust", "patient":
	default:
		return fmt.Errorf("analysis.profile: unsupported value %q (use default, robust or patient)", c.Analysis.Profile)
	}
	switch c.Analysis.RecoveryMode {
	case "", "skip", "retry_with_context", "block_until_success":
	default:
		return fmt.Errorf("analysis.recovery_mode: unsupported value %q", c.Analysis.RecoveryMode)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.MinTextLength >= c.Server.MaxTextLength {
		return errors.New("server.min_text_length must be smaller than server.max_text_length")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
