package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"lexcase/internal/config"
	"lexcase/internal/services"
)

const (
	defaultModel          = "gemini-1.5-flash"
	defaultRequestTimeout = 90 * time.Second
)

// Config captures the runtime settings required to talk to Gemini.
type Config struct {
	Model           string
	BaseURL         string
	TimeoutSeconds  int
	Temperature     float64
	MaxOutputTokens int
}

// ContentGenerator is the subset of the genai Models service used here.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Factory builds a ContentGenerator for one API key.
type Factory func(ctx context.Context, apiKey string) (ContentGenerator, error)

// Client issues single-shot generation requests.
type Client struct {
	cfg     Config
	timeout time.Duration
	factory Factory

	mu         sync.Mutex
	generators map[string]ContentGenerator
}

// Option customizes the client.
type Option func(*Client)

// WithFactory overrides how SDK clients are created (useful for tests).
func WithFactory(factory Factory) Option {
	return func(c *Client) {
		if factory != nil {
			c.factory = factory
		}
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// NewClient constructs a Gemini client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	timeout := defaultRequestTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg:        cfg,
		timeout:    timeout,
		generators: make(map[string]ContentGenerator),
	}
	client.factory = client.sdkFactory
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// NewFromConfig constructs a client from the [gemini] section.
func NewFromConfig(cfg *config.Config, opts ...Option) *Client {
	if cfg == nil {
		return NewClient(Config{}, opts...)
	}
	return NewClient(Config{
		Model:           cfg.Gemini.Model,
		BaseURL:         cfg.Gemini.BaseURL,
		TimeoutSeconds:  cfg.Gemini.TimeoutSeconds,
		Temperature:     cfg.Gemini.Temperature,
		MaxOutputTokens: cfg.Gemini.MaxOutputTokens,
	}, opts...)
}

// DefaultModel returns the model used when a request names none.
func (c *Client) DefaultModel() string {
	return c.cfg.Model
}

// Generate sends prompt to model using apiKey and returns the response text.
func (c *Client) Generate(ctx context.Context, apiKey, model, prompt string) (string, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return "", services.Wrap(services.ErrConfiguration, "gemini", "generate", "api key required", nil)
	}
	if strings.TrimSpace(prompt) == "" {
		return "", services.Wrap(services.ErrValidation, "gemini", "generate", "prompt required", nil)
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = c.cfg.Model
	}

	generator, err := c.generator(ctx, apiKey)
	if err != nil {
		return "", err
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := generator.GenerateContent(reqCtx, model, genai.Text(prompt), c.generationConfig())
	if err != nil {
		return "", classify(err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", services.Wrap(services.ErrTransient, "gemini", "generate",
			fmt.Sprintf("empty response (finish_reason=%q)", finishReason(resp)), nil)
	}
	return text, nil
}

func (c *Client) generationConfig() *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if c.cfg.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(c.cfg.Temperature))
	}
	if c.cfg.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(c.cfg.MaxOutputTokens)
	}
	return cfg
}

func (c *Client) generator(ctx context.Context, apiKey string) (ContentGenerator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen, ok := c.generators[apiKey]; ok {
		return gen, nil
	}
	gen, err := c.factory(ctx, apiKey)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "gemini", "client", "create sdk client", err)
	}
	c.generators[apiKey] = gen
	return gen, nil
}

func (c *Client) sdkFactory(ctx context.Context, apiKey string) (ContentGenerator, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if c.cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, err
	}
	return client.Models, nil
}

func finishReason(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return ""
	}
	return string(resp.Candidates[0].FinishReason)
}

// classify tags err with the services marker matching its failure class.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "gemini", "generate", "request timed out", err)
	}

	if code, message, ok := apiError(err); ok {
		return services.Wrap(markerForStatus(code, message), "gemini", "generate",
			fmt.Sprintf("http %d", code), err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return services.Wrap(services.ErrTimeout, "gemini", "generate", "network timeout", err)
		}
		return services.Wrap(services.ErrTransient, "gemini", "generate", "network error", err)
	}
	return services.Wrap(services.ErrTransient, "gemini", "generate", "", err)
}

func apiError(err error) (int, string, bool) {
	var value genai.APIError
	if errors.As(err, &value) {
		return value.Code, value.Message, true
	}
	var ptr *genai.APIError
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.Code, ptr.Message, true
	}
	return 0, "", false
}

func markerForStatus(code int, message string) error {
	lower := strings.ToLower(message)
	switch {
	case code == http.StatusTooManyRequests:
		return services.ErrRateLimited
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return services.ErrAuth
	case code == http.StatusBadRequest && strings.Contains(lower, "api key"):
		return services.ErrAuth
	case code == http.StatusRequestTimeout, code == http.StatusGatewayTimeout:
		return services.ErrTimeout
	case code >= http.StatusInternalServerError:
		return services.ErrUpstream
	case code >= http.StatusBadRequest:
		return services.ErrValidation
	default:
		return services.ErrTransient
	}
}
