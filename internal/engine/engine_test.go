package engine_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexcase/internal/analysis"
	"lexcase/internal/analysiscache"
	"lexcase/internal/api"
	"lexcase/internal/engine"
	"lexcase/internal/services"
	"lexcase/internal/stage"
)

const caseText = "قام المدعي بتوقيع عقد إيجار مع المدعى عليه ولم يتم دفع الأجرة المتفق عليها"

type fakeGenerator struct {
	mu      sync.Mutex
	output  string
	err     error
	prompts []string
	models  []string
}

func (f *fakeGenerator) Generate(_ context.Context, _, model, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	f.models = append(f.models, model)
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func statusError(t *testing.T, err error) *api.StatusError {
	t.Helper()
	statusErr, ok := api.AsStatusError(err)
	require.True(t, ok, "expected StatusError, got %T: %v", err, err)
	return statusErr
}

func TestAnalyzeStageGeneratesAndCaches(t *testing.T) {
	gen := &fakeGenerator{output: "تحليل المرحلة"}
	cache := analysiscache.New("", nil)
	eng := engine.New(stage.Default(), gen, engine.WithCache(cache), engine.WithDefaultModel("gemini-test"))

	req := analysis.Request{Text: caseText, StageIndex: 2, APIKey: "key-1", PartyRole: "المدعي"}
	resp, err := eng.Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "تحليل المرحلة", resp.Analysis)
	assert.False(t, resp.Cached)
	assert.Equal(t, 2, resp.StageIndex)
	def, _ := stage.Default().At(2)
	assert.Equal(t, def.Name, resp.Stage)
	require.NotNil(t, resp.Context)
	assert.Equal(t, "المدعي", resp.Context.PartyRole)
	assert.Equal(t, "فلسطيني", resp.Context.Jurisdiction)
	assert.Equal(t, []string{"gemini-test"}, gen.models)

	cached, err := eng.Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, cached.Cached)
	assert.Equal(t, "تحليل المرحلة", cached.Analysis)
	assert.Equal(t, 1, gen.calls())

	req.Model = "gemini-other"
	_, err = eng.Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, gen.calls(), "cache entries are per model")
}

func TestAnalyzeValidation(t *testing.T) {
	eng := engine.New(stage.Default(), &fakeGenerator{output: "x"})
	tests := []struct {
		name    string
		req     analysis.Request
		code    api.Code
		message string
	}{
		{name: "empty text", req: analysis.Request{APIKey: "k"}, code: api.CodeValidation, message: "يجب إدخال نص صحيح للتحليل"},
		{name: "short text", req: analysis.Request{Text: "قصير", APIKey: "k"}, code: api.CodeValidation, message: "النص قصير جداً. الحد الأدنى 10 حرف"},
		{name: "long text", req: analysis.Request{Text: strings.Repeat("ا", 10001), APIKey: "k"}, code: api.CodeTextTooLong, message: "النص طويل جداً. الحد الأقصى 10000 حرف"},
		{name: "missing key", req: analysis.Request{Text: caseText}, code: api.CodeInvalidAPIKey, message: "يجب إدخال مفتاح API صحيح"},
		{name: "long key", req: analysis.Request{Text: caseText, APIKey: strings.Repeat("k", 101)}, code: api.CodeInvalidAPIKey, message: "مفتاح API غير صحيح"},
		{name: "bad key chars", req: analysis.Request{Text: caseText, APIKey: "key with space"}, code: api.CodeInvalidAPIKey, message: "مفتاح API غير صحيح"},
		{name: "stage range", req: analysis.Request{Text: caseText, APIKey: "k", StageIndex: 12}, code: api.CodeValidation, message: "رقم المرحلة غير صحيح. يجب أن يكون بين 0 و 11"},
		{name: "petition flag required", req: analysis.Request{Text: caseText, APIKey: "k", StageIndex: -1}, code: api.CodeValidation, message: "رقم المرحلة غير صحيح. يجب أن يكون بين 0 و 11"},
		{name: "party role", req: analysis.Request{Text: caseText, APIKey: "k", PartyRole: "الشاهد"}, code: api.CodeValidation, message: "صفة الطرف غير صحيحة"},
		{name: "unknown stage name", req: analysis.Request{Text: caseText, APIKey: "k", StageName: "مرحلة وهمية"}, code: api.CodeStageNotFound, message: "المرحلة غير موجودة"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.Analyze(context.Background(), tt.req)
			require.Error(t, err)
			statusErr := statusError(t, err)
			assert.Equal(t, http.StatusBadRequest, statusErr.Status)
			assert.Equal(t, tt.code, statusErr.Code)
			assert.Equal(t, tt.message, statusErr.Message)
			assert.True(t, errors.Is(err, services.ErrValidation) || errors.Is(err, services.ErrAuth) || errors.Is(err, services.ErrNotFound))
		})
	}
}

func TestAnalyzeResolvesStageName(t *testing.T) {
	gen := &fakeGenerator{output: "ok"}
	eng := engine.New(stage.Default(), gen)
	name := stage.Default().Names()[4]
	resp, err := eng.Analyze(context.Background(), analysis.Request{Text: caseText, APIKey: "k", StageName: name})
	require.NoError(t, err)
	assert.Equal(t, 4, resp.StageIndex)
	assert.Equal(t, name, resp.Stage)
}

func TestAnalyzeRateLimitsPerKey(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	gen := &fakeGenerator{output: "ok"}
	eng := engine.New(stage.Default(), gen, engine.WithLimiter(engine.NewLimiter(2, clock)), engine.WithClock(clock))

	req := analysis.Request{Text: caseText, APIKey: "key-a"}
	for range 2 {
		_, err := eng.Analyze(context.Background(), req)
		require.NoError(t, err)
	}
	_, err := eng.Analyze(context.Background(), req)
	statusErr := statusError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Status)
	assert.Equal(t, api.CodeRateLimited, statusErr.Code)
	assert.Equal(t, "تم تجاوز الحد المسموح من الطلبات. يرجى المحاولة بعد 30 ثانية", statusErr.Message)
	assert.Equal(t, 0, statusErr.Details["remaining"])
	assert.ErrorIs(t, err, services.ErrRateLimited)

	other := req
	other.APIKey = "key-b"
	_, err = eng.Analyze(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, 3, gen.calls())
}

func TestNilLimiterDisablesRateLimiting(t *testing.T) {
	gen := &fakeGenerator{output: "ok"}
	eng := engine.New(stage.Default(), gen, engine.WithLimiter(nil))
	require.Nil(t, eng.Limiter())

	req := analysis.Request{Text: caseText, APIKey: "key-a"}
	for range engine.DefaultRequestsPerMinute + 5 {
		_, err := eng.Analyze(context.Background(), req)
		require.NoError(t, err)
	}
	assert.Equal(t, engine.DefaultRequestsPerMinute+5, gen.calls())
}

func TestAnalyzePetition(t *testing.T) {
	gen := &fakeGenerator{output: "نص العريضة"}
	eng := engine.New(stage.Default(), gen)

	_, err := eng.Analyze(context.Background(), analysis.Request{
		Text: caseText, APIKey: "k", StageIndex: analysis.PetitionStageIndex, FinalPetition: true,
	})
	statusErr := statusError(t, err)
	assert.Equal(t, "يرجى تحليل المراحل أولاً قبل إنشاء العريضة النهائية.", statusErr.Message)
	assert.Zero(t, gen.calls())

	resp, err := eng.Analyze(context.Background(), analysis.Request{
		Text:              caseText,
		APIKey:            "k",
		StageIndex:        analysis.PetitionStageIndex,
		FinalPetition:     true,
		PreviousSummaries: []string{"ملخص المرحلة الأولى", "ملخص المرحلة الثانية"},
	})
	require.NoError(t, err)
	assert.Equal(t, analysis.PetitionStageName, resp.Stage)
	assert.Equal(t, analysis.PetitionStageIndex, resp.StageIndex)
	assert.Equal(t, "نص العريضة", resp.Analysis)
	require.NotNil(t, resp.Context)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "ملخص المرحلة الثانية")
}

func TestAnalyzeMapsGeminiErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
		marker  error
	}{
		{
			name:    "auth",
			err:     services.Wrap(services.ErrAuth, "gemini", "generate", "http 401", nil),
			message: "مفتاح API غير صحيح أو منتهي الصلاحية",
			marker:  services.ErrAuth,
		},
		{
			name:    "quota",
			err:     services.Wrap(services.ErrRateLimited, "gemini", "generate", "http 429", nil),
			message: "تم استنفاذ الحد المسموح من طلبات API",
			marker:  services.ErrRateLimited,
		},
		{
			name:    "other",
			err:     errors.New("boom"),
			message: "خطأ في API: boom",
			marker:  services.ErrUpstream,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := engine.New(stage.Default(), &fakeGenerator{err: tt.err})
			_, err := eng.Analyze(context.Background(), analysis.Request{Text: caseText, APIKey: "k"})
			statusErr := statusError(t, err)
			assert.Equal(t, http.StatusInternalServerError, statusErr.Status)
			assert.Equal(t, api.CodeAPIError, statusErr.Code)
			assert.Equal(t, tt.message, statusErr.Message)
			assert.ErrorIs(t, err, tt.marker)
		})
	}
}

func TestAnalyzeSanitizesText(t *testing.T) {
	gen := &fakeGenerator{output: "ok"}
	eng := engine.New(stage.Default(), gen)
	_, err := eng.Analyze(context.Background(), analysis.Request{
		Text:   "  " + caseText + "   <script>  ",
		APIKey: " k ",
	})
	require.NoError(t, err)
	require.Len(t, gen.prompts, 1)
	assert.NotContains(t, gen.prompts[0], "<script>")
}
