package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"lexcase/internal/api"
	"lexcase/internal/config"
	"lexcase/internal/engine"
	"lexcase/internal/stage"
	"lexcase/internal/testsupport"
)

const caseFacts = "تعاقد المدعي مع المدعى عليه على توريد بضاعة ولم يتم التسليم في الموعد"

type recordingGenerator struct {
	mu     sync.Mutex
	models []string
}

func (g *recordingGenerator) Generate(_ context.Context, _, model, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.models = append(g.models, model)
	return "تحليل تجريبي", nil
}

func newTestDaemon(t *testing.T, opts ...testsupport.ConfigOption) (*Daemon, *recordingGenerator, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	st := testsupport.MustOpenStore(t, cfg)
	gen := &recordingGenerator{}
	eng := engine.New(stage.Default(), gen,
		engine.WithLimiter(engine.NewLimiter(cfg.Server.RateLimitPerMinute, nil)),
		engine.WithDefaultModel(cfg.Gemini.Model),
	)
	d, err := New(cfg, st, eng, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)
	return d, gen, cfg
}

func do(t *testing.T, d *Daemon, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	d.server.server.Handler.ServeHTTP(w, req)
	return w
}

func analyzeRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var resp api.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, w.Body.String())
	}
	return resp
}

func TestHandleAnalyzeSuccess(t *testing.T) {
	d, gen, _ := newTestDaemon(t)
	req := analyzeRequest(`{"text":"` + caseFacts + `","stageIndex":"1","apiKey":"key_1"}`)
	req.Header.Set(api.ModelHeader, "gemini-1.5-pro")

	w := do(t, d, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a request id header")
	}
	var resp api.AnalyzeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Stage != stage.Default().Names()[1] || resp.StageIndex == nil || *resp.StageIndex != 1 {
		t.Fatalf("unexpected stage in reply %+v", resp)
	}
	if resp.Analysis != "تحليل تجريبي" || resp.Timestamp == 0 || resp.Context == nil {
		t.Fatalf("unexpected reply %+v", resp)
	}
	if len(gen.models) != 1 || gen.models[0] != "gemini-1.5-pro" {
		t.Fatalf("model header not honoured: %v", gen.models)
	}
}

func TestHandleAnalyzeRejectsBadInput(t *testing.T) {
	d, _, _ := newTestDaemon(t)
	tests := []struct {
		name string
		body string
		code api.Code
	}{
		{name: "missing stage", body: `{"text":"` + caseFacts + `","apiKey":"key"}`, code: api.CodeValidation},
		{name: "null stage", body: `{"text":"` + caseFacts + `","stageIndex":null,"apiKey":"key"}`, code: api.CodeValidation},
		{name: "short text", body: `{"text":"قصير","stageIndex":0,"apiKey":"key"}`, code: api.CodeValidation},
		{name: "bad key", body: `{"text":"` + caseFacts + `","stageIndex":0,"apiKey":"bad key!"}`, code: api.CodeInvalidAPIKey},
		{name: "unknown stage name", body: `{"text":"` + caseFacts + `","stageIndex":0,"stage":"غير موجودة","apiKey":"key"}`, code: api.CodeStageNotFound},
		{name: "malformed", body: `{"text":`, code: api.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, d, analyzeRequest(tt.body))
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
			resp := decodeError(t, w)
			if resp.Code != tt.code || resp.Message == "" || resp.Error != resp.Message {
				t.Fatalf("unexpected error body %+v", resp)
			}
		})
	}
}

func TestHandleAnalyzeRateLimit(t *testing.T) {
	d, _, _ := newTestDaemon(t, testsupport.WithRateLimit(1))
	body := `{"text":"` + caseFacts + `","stageIndex":0,"apiKey":"key"}`
	if w := do(t, d, analyzeRequest(body)); w.Code != http.StatusOK {
		t.Fatalf("first request: %d %s", w.Code, w.Body.String())
	}
	w := do(t, d, analyzeRequest(body))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
	resp := decodeError(t, w)
	if resp.Code != api.CodeRateLimited || resp.Details["resetTime"] == nil {
		t.Fatalf("unexpected body %+v", resp)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	d, _, _ := newTestDaemon(t)
	w := do(t, d, httptest.NewRequest(http.MethodGet, "/api/analyze", nil))
	if w.Code != http.StatusMethodNotAllowed || w.Header().Get("Allow") != http.MethodPost {
		t.Fatalf("unexpected reply %d allow=%q", w.Code, w.Header().Get("Allow"))
	}
	if resp := decodeError(t, w); resp.Code != api.CodeMethod {
		t.Fatalf("unexpected code %q", resp.Code)
	}
	w = do(t, d, httptest.NewRequest(http.MethodDelete, "/api/stages", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestBearerTokenRequired(t *testing.T) {
	d, _, _ := newTestDaemon(t, testsupport.WithAPIToken("secret"))

	w := do(t, d, httptest.NewRequest(http.MethodGet, "/api/stages", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if resp := decodeError(t, w); resp.Code != api.CodeUnauthorized {
		t.Fatalf("unexpected code %q", resp.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/stages", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	if w := do(t, d, req); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong token, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/stages", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = do(t, d, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp api.StagesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Stages) != stage.Default().Len() || !resp.Stages[0].Critical {
		t.Fatalf("unexpected stages %+v", resp.Stages)
	}
}

func TestHandleCases(t *testing.T) {
	d, _, _ := newTestDaemon(t)
	created := testsupport.NewCase(t, d.store, "نزاع توريد", caseFacts)

	w := do(t, d, httptest.NewRequest(http.MethodGet, "/api/cases", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d", w.Code)
	}
	var list api.CaseListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Cases) != 1 || list.Cases[0].ID != created.ID {
		t.Fatalf("unexpected cases %+v", list.Cases)
	}

	w = do(t, d, httptest.NewRequest(http.MethodGet, "/api/cases/"+created.ID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("detail: %d", w.Code)
	}
	var detail api.CaseDetail
	if err := json.Unmarshal(w.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if detail.Facts != caseFacts || detail.Name != "نزاع توريد" {
		t.Fatalf("unexpected detail %+v", detail)
	}

	w = do(t, d, httptest.NewRequest(http.MethodGet, "/api/cases/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if resp := decodeError(t, w); resp.Code != api.CodeNotFound {
		t.Fatalf("unexpected code %q", resp.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	d, _, cfg := newTestDaemon(t)
	w := do(t, d, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Running || status.StageCount != 12 || status.Model != cfg.Gemini.Model {
		t.Fatalf("unexpected status %+v", status)
	}
	ready := map[string]bool{}
	for _, h := range status.Health {
		ready[h.Name] = h.Ready
	}
	if !ready["database"] || !ready["gemini"] || ready["analysis cache"] {
		t.Fatalf("unexpected health %+v", status.Health)
	}
}
