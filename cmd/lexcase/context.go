package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"lexcase/internal/analysis"
	"lexcase/internal/analysiscache"
	"lexcase/internal/api"
	"lexcase/internal/config"
	"lexcase/internal/engine"
	"lexcase/internal/logging"
	"lexcase/internal/services/gemini"
	"lexcase/internal/stage"
	"lexcase/internal/store"
)

// newGenerator builds the model client used by in-process analysis.
var newGenerator = func(cfg *config.Config) engine.Generator {
	return gemini.NewFromConfig(cfg)
}

// runSleeper replaces the orchestrator's delays when set.
var runSleeper func(time.Duration)

type commandContext struct {
	configFlag   *string
	endpointFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger

	storeOnce sync.Once
	store     *store.Store
	storeErr  error
}

func newCommandContext(configFlag, endpointFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		endpointFlag: endpointFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) endpoint() string {
	if c.endpointFlag != nil {
		if value := strings.TrimSpace(*c.endpointFlag); value != "" {
			return value
		}
	}
	if cfg := c.configValue(); cfg != nil {
		return cfg.Server.Endpoint
	}
	return ""
}

func (c *commandContext) loggerValue() *slog.Logger {
	c.loggerOnce.Do(func() {
		logger, err := logging.NewCLI(c.configValue())
		if err != nil {
			logger = logging.NewNop()
		}
		c.logger = logger
	})
	return c.logger
}

func (c *commandContext) openStore() (*store.Store, error) {
	c.storeOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.storeErr = err
			return
		}
		c.store, c.storeErr = store.Open(cfg)
	})
	return c.store, c.storeErr
}

func (c *commandContext) close() {
	if c.store != nil {
		_ = c.store.Close()
		c.store = nil
	}
}

func (c *commandContext) apiClient() *api.Client {
	var token string
	if cfg := c.configValue(); cfg != nil {
		token = cfg.Server.APIToken
	}
	return api.NewClient(c.endpoint(), token, nil)
}

func (c *commandContext) catalog() (*stage.Catalog, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return stage.Load(cfg.Paths.StagesFile)
}

// apiKey prefers the configured key and falls back to the stored one.
func (c *commandContext) apiKey(ctx context.Context) (string, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	if key := strings.TrimSpace(cfg.Gemini.APIKey); key != "" {
		return key, nil
	}
	st, err := c.openStore()
	if err != nil {
		return "", err
	}
	key, err := st.LoadAPIKey(ctx)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(key) == "" {
		return "", errors.New("gemini api key is not set; export GEMINI_API_KEY or run `lexcase settings set api_key <key>`")
	}
	return key, nil
}

// preferredModel returns the stored model preference when one is set.
func (c *commandContext) preferredModel(ctx context.Context) string {
	cfg := c.configValue()
	st, err := c.openStore()
	if err != nil || st == nil {
		if cfg != nil {
			return cfg.Gemini.Model
		}
		return ""
	}
	if value, ok, err := st.Setting(ctx, store.SettingPreferredModel); err == nil && ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	if cfg != nil {
		return cfg.Gemini.Model
	}
	return ""
}

// analyzer returns the daemon client when remote is set, otherwise an
// in-process engine backed by Gemini and the analysis cache. Per-key rate
// limiting only applies to the shared daemon.
func (c *commandContext) analyzer(remote bool) (analysis.Analyzer, *stage.Catalog, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	catalog, err := c.catalog()
	if err != nil {
		return nil, nil, err
	}
	if remote {
		return c.apiClient(), catalog, nil
	}
	logger := c.loggerValue()
	cache := analysiscache.NewFromConfig(cfg, logger)
	eng := engine.NewFromConfig(cfg, catalog, newGenerator(cfg), cache, logger, engine.WithLimiter(nil))
	return eng, catalog, nil
}

func (c *commandContext) resolveCase(ctx context.Context, ref string) (*store.Case, error) {
	st, err := c.openStore()
	if err != nil {
		return nil, err
	}
	found, err := st.ResolveCase(ctx, ref)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("case %q not found", ref)
	}
	return found, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
