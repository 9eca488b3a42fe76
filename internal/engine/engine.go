package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"lexcase/internal/analysis"
	"lexcase/internal/analysiscache"
	"lexcase/internal/api"
	"lexcase/internal/casetype"
	"lexcase/internal/config"
	"lexcase/internal/logging"
	"lexcase/internal/prompt"
	"lexcase/internal/services"
	"lexcase/internal/stage"
	"lexcase/internal/textutil"
)

const defaultModel = "gemini-1.5-flash"

// Generator produces model output for a prompt. gemini.Client implements it.
type Generator interface {
	Generate(ctx context.Context, apiKey, model, prompt string) (string, error)
}

// Engine serves single-stage analysis requests.
type Engine struct {
	catalog         *stage.Catalog
	generator       Generator
	cache           *analysiscache.Cache
	limiter         *Limiter
	limiterSet      bool
	logger          *slog.Logger
	limits          Limits
	model           string
	maxSummaryChars int
	now             func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithCache enables response caching.
func WithCache(cache *analysiscache.Cache) Option {
	return func(e *Engine) { e.cache = cache }
}

// WithLimiter replaces the per-key rate limiter. A nil limiter disables
// rate limiting.
func WithLimiter(limiter *Limiter) Option {
	return func(e *Engine) {
		e.limiter = limiter
		e.limiterSet = true
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTextLimits overrides the accepted text length range.
func WithTextLimits(minLength, maxLength int) Option {
	return func(e *Engine) {
		e.limits.MinTextLength = minLength
		e.limits.MaxTextLength = maxLength
	}
}

// WithDefaultModel sets the model used when a request names none.
func WithDefaultModel(model string) Option {
	return func(e *Engine) {
		if model = strings.TrimSpace(model); model != "" {
			e.model = model
		}
	}
}

// WithMaxSummaryChars bounds the previous summaries placed in a prompt.
func WithMaxSummaryChars(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxSummaryChars = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New constructs an engine over catalog and generator.
func New(catalog *stage.Catalog, generator Generator, opts ...Option) *Engine {
	if catalog == nil {
		catalog = stage.Default()
	}
	e := &Engine{
		catalog:         catalog,
		generator:       generator,
		logger:          logging.NewNop(),
		model:           defaultModel,
		maxSummaryChars: prompt.DefaultMaxSummaryChars,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if !e.limiterSet {
		e.limiter = NewLimiter(DefaultRequestsPerMinute, e.now)
	}
	e.limits.StageCount = catalog.Len()
	e.limits = e.limits.normalized()
	return e
}

// NewFromConfig builds an engine with the server limits from cfg. extra
// options are applied last.
func NewFromConfig(cfg *config.Config, catalog *stage.Catalog, generator Generator, cache *analysiscache.Cache, logger *slog.Logger, extra ...Option) *Engine {
	opts := []Option{
		WithCache(cache),
		WithLogger(logging.NewComponentLogger(logger, "engine")),
	}
	if cfg != nil {
		opts = append(opts,
			WithLimiter(NewLimiter(cfg.Server.RateLimitPerMinute, nil)),
			WithTextLimits(cfg.Server.MinTextLength, cfg.Server.MaxTextLength),
			WithDefaultModel(cfg.Gemini.Model),
			WithMaxSummaryChars(cfg.Server.MaxSummariesChars),
		)
	}
	return New(catalog, generator, append(opts, extra...)...)
}

// Catalog returns the stage catalog requests are resolved against.
func (e *Engine) Catalog() *stage.Catalog {
	return e.catalog
}

// Limiter returns the per-key rate limiter.
func (e *Engine) Limiter() *Limiter {
	return e.limiter
}

// Cache returns the response cache, which may be nil.
func (e *Engine) Cache() *analysiscache.Cache {
	return e.cache
}

// DefaultModel returns the model used when a request names none.
func (e *Engine) DefaultModel() string {
	return e.model
}

// Analyze runs one stage analysis or the final petition.
func (e *Engine) Analyze(ctx context.Context, req analysis.Request) (analysis.Response, error) {
	req.Text = textutil.SanitizeText(req.Text)
	req.APIKey = strings.TrimSpace(req.APIKey)
	req.Model = strings.TrimSpace(req.Model)
	if req.Model == "" {
		req.Model = e.model
	}

	if name := strings.TrimSpace(req.StageName); name != "" && !req.FinalPetition {
		index := e.catalog.Index(name)
		if index < 0 {
			return analysis.Response{}, api.NewError(http.StatusBadRequest, api.CodeStageNotFound,
				"المرحلة غير موجودة", map[string]any{"stage": name})
		}
		req.StageIndex = index
	}

	if statusErr := Validate(req, e.limits); statusErr != nil {
		return analysis.Response{}, statusErr
	}

	if e.limiter != nil {
		if decision := e.limiter.Allow(req.APIKey); !decision.Allowed {
			seconds := int(math.Ceil(decision.RetryAfter.Seconds()))
			logging.WarnWithContext(e.logger, "analyze request rate limited", "rate_limited",
				logging.Int("retry_after_seconds", seconds),
				logging.String(logging.FieldErrorHint, "wait before sending more requests with this key"),
				logging.String(logging.FieldImpact, "request rejected"),
			)
			return analysis.Response{}, api.NewError(http.StatusTooManyRequests, api.CodeRateLimited,
				fmt.Sprintf("تم تجاوز الحد المسموح من الطلبات. يرجى المحاولة بعد %d ثانية", seconds),
				map[string]any{
					"remaining":  decision.Remaining,
					"resetTime":  decision.ResetAt.UnixMilli(),
					"retryAfter": seconds,
				})
		}
	}

	if req.FinalPetition && req.StageIndex == analysis.PetitionStageIndex {
		return e.petition(ctx, req)
	}
	return e.stage(ctx, req)
}

func (e *Engine) petition(ctx context.Context, req analysis.Request) (analysis.Response, error) {
	if len(req.PreviousSummaries) == 0 {
		return analysis.Response{}, api.NewError(http.StatusBadRequest, api.CodeValidation,
			"يرجى تحليل المراحل أولاً قبل إنشاء العريضة النهائية.", nil)
	}
	caseCtx := e.caseContext(req)
	text, err := prompt.BuildPetition(req.Text, prompt.TrimSummaries(req.PreviousSummaries, e.maxSummaryChars), caseCtx)
	if err != nil {
		return analysis.Response{}, err
	}
	output, err := e.generate(ctx, req, text)
	if err != nil {
		return analysis.Response{}, err
	}
	return analysis.Response{
		Stage:      analysis.PetitionStageName,
		StageIndex: analysis.PetitionStageIndex,
		Analysis:   output,
		Timestamp:  e.now(),
		Context:    caseCtx,
	}, nil
}

func (e *Engine) stage(ctx context.Context, req analysis.Request) (analysis.Response, error) {
	if req.StageIndex < 0 || req.StageIndex >= e.catalog.Len() {
		return analysis.Response{}, api.NewError(http.StatusBadRequest, api.CodeValidation, "رقم المرحلة غير صحيح", nil)
	}
	def, ok := e.catalog.At(req.StageIndex)
	if !ok {
		return analysis.Response{}, api.NewError(http.StatusBadRequest, api.CodeStageNotFound, "المرحلة غير موجودة", nil)
	}
	logger := e.logger.With(
		logging.String(logging.FieldStage, def.Name),
		logging.Int(logging.FieldStageIndex, req.StageIndex),
		logging.String(logging.FieldModel, req.Model),
	)

	if e.cache != nil {
		if entry, hit := e.cache.Lookup(req.Text, req.StageIndex, req.Model); hit {
			logger.Debug("analysis served from cache")
			return analysis.Response{
				Stage:      def.Name,
				StageIndex: req.StageIndex,
				Analysis:   entry.Analysis,
				Cached:     true,
				Timestamp:  e.now(),
			}, nil
		}
	}

	caseCtx := e.caseContext(req)
	text, err := prompt.BuildStage(def, req.Text, prompt.TrimSummaries(req.PreviousSummaries, e.maxSummaryChars), caseCtx)
	if err != nil {
		return analysis.Response{}, err
	}
	started := e.now()
	output, err := e.generate(ctx, req, text)
	if err != nil {
		return analysis.Response{}, err
	}
	logger.Info("stage analysis generated",
		logging.Duration("elapsed", e.now().Sub(started)),
		logging.Int("output_chars", textutil.RuneLen(output)),
	)

	if e.cache != nil {
		if err := e.cache.Store(req.Text, req.StageIndex, req.Model, output); err != nil {
			logging.WarnWithContext(logger, "analysis cache write failed", "cache_write_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the cache file permissions"),
				logging.String(logging.FieldImpact, "the next identical request calls Gemini again"),
			)
		}
	}

	return analysis.Response{
		Stage:      def.Name,
		StageIndex: req.StageIndex,
		Analysis:   output,
		Timestamp:  e.now(),
		Context:    caseCtx,
	}, nil
}

func (e *Engine) caseContext(req analysis.Request) *prompt.Context {
	return &prompt.Context{
		CaseType:     casetype.Determine(req.Text),
		Complexity:   casetype.Complexity(req.Text),
		Jurisdiction: prompt.DefaultJurisdiction,
		Language:     prompt.DefaultLanguage,
		PartyRole:    req.PartyRole,
	}
}

func (e *Engine) generate(ctx context.Context, req analysis.Request, text string) (string, error) {
	if e.generator == nil {
		return "", services.Wrap(services.ErrConfiguration, "engine", "generate", "no generator configured", nil)
	}
	output, err := e.generator.Generate(ctx, req.APIKey, req.Model, text)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return "", err
		}
		return "", generationError(err)
	}
	return output, nil
}

// generationError maps a Gemini failure to the API_ERROR reply.
func generationError(err error) *api.StatusError {
	raw := err.Error()
	var message string
	switch {
	case errors.Is(err, services.ErrAuth), strings.Contains(raw, "API_KEY"):
		message = "مفتاح API غير صحيح أو منتهي الصلاحية"
	case errors.Is(err, services.ErrRateLimited), strings.Contains(strings.ToLower(raw), "quota"):
		message = "تم استنفاذ الحد المسموح من طلبات API"
	default:
		message = "خطأ في API: " + raw
	}
	return &api.StatusError{
		Status:  http.StatusInternalServerError,
		Code:    api.CodeAPIError,
		Message: message,
		Details: map[string]any{"kind": api.KindOf(err)},
		Err:     err,
	}
}
