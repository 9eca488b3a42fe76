package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"lexcase/internal/analysis"
	"lexcase/internal/api"
	"lexcase/internal/services"
)

func TestClientAnalyzeSendsRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/analyze" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Fatalf("unexpected auth header %q", got)
		}
		if got := r.Header.Get(api.ModelHeader); got != "gemini-1.5-pro" {
			t.Fatalf("unexpected model header %q", got)
		}
		var body api.AnalyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.StageIndex != 3 || body.APIKey != "key" || len(body.PreviousSummaries) != 1 {
			t.Fatalf("unexpected body %+v", body)
		}
		index := 3
		_ = json.NewEncoder(w).Encode(api.AnalyzeResponse{
			Stage:      "المرحلة الرابعة",
			Analysis:   "نتيجة",
			Timestamp:  1700000000000,
			StageIndex: &index,
			Cached:     true,
		})
	}))
	defer server.Close()

	client := api.NewClient(server.URL+"/", "secret", server.Client())
	resp, err := client.Analyze(context.Background(), analysis.Request{
		Text:              "نص القضية",
		StageIndex:        3,
		APIKey:            "key",
		Model:             "gemini-1.5-pro",
		PreviousSummaries: []string{"سابق"},
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if resp.Analysis != "نتيجة" || !resp.Cached || resp.StageIndex != 3 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Timestamp.UnixMilli() != 1700000000000 {
		t.Fatalf("unexpected timestamp %v", resp.Timestamp)
	}
}

func TestClientMapsErrorResponses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		marker error
		code   api.Code
	}{
		{
			name:   "rate limit",
			status: http.StatusTooManyRequests,
			body:   `{"code":"RATE_LIMIT_EXCEEDED","error":"slow down","details":{"remaining":0}}`,
			marker: services.ErrRateLimited,
			code:   api.CodeRateLimited,
		},
		{
			name:   "validation",
			status: http.StatusBadRequest,
			body:   `{"code":"VALIDATION_ERROR","message":"bad"}`,
			marker: services.ErrValidation,
			code:   api.CodeValidation,
		},
		{
			name:   "upstream kind",
			status: http.StatusInternalServerError,
			body:   `{"code":"API_ERROR","error":"quota","details":{"kind":"rate_limited"}}`,
			marker: services.ErrRateLimited,
			code:   api.CodeAPIError,
		},
		{
			name:   "plain text body",
			status: http.StatusBadGateway,
			body:   "gateway down",
			marker: services.ErrUpstream,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := api.NewClient(server.URL, "", nil)
			_, err := client.Analyze(context.Background(), analysis.Request{Text: "x", APIKey: "k"})
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, tt.marker) {
				t.Fatalf("expected %v marker, got %v", tt.marker, err)
			}
			statusErr, ok := api.AsStatusError(err)
			if !ok {
				t.Fatalf("expected StatusError, got %T", err)
			}
			if statusErr.Status != tt.status || statusErr.Code != tt.code {
				t.Fatalf("unexpected status error %+v", statusErr)
			}
			if statusErr.Message == "" {
				t.Fatal("expected message")
			}
		})
	}
}

func TestClientWithoutEndpointIsConfigurationError(t *testing.T) {
	client := api.NewClient("", "", nil)
	_, err := client.Stages(context.Background())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestStageNumberAcceptsStrings(t *testing.T) {
	tests := map[string]api.StageNumber{
		`{"stageIndex":4}`:     4,
		`{"stageIndex":"7"}`:   7,
		`{"stageIndex":-1}`:    -1,
		`{"stageIndex":"abc"}`: api.InvalidStage,
		`{"stageIndex":1.5}`:   api.InvalidStage,
		`{"stageIndex":null}`:  api.InvalidStage,
	}
	for input, want := range tests {
		var req api.AnalyzeRequest
		if err := json.Unmarshal([]byte(input), &req); err != nil {
			t.Fatalf("unmarshal %s: %v", input, err)
		}
		if req.StageIndex != want {
			t.Fatalf("%s: got %d want %d", input, req.StageIndex, want)
		}
	}
}

func TestMessage(t *testing.T) {
	if got := api.Message(api.CodeStageNotFound, "x"); got != "المرحلة المطلوبة غير موجودة." {
		t.Fatalf("unexpected message %q", got)
	}
	if got := api.Message("SOMETHING", "احتياطي"); got != "احتياطي" {
		t.Fatalf("expected fallback, got %q", got)
	}
	if got := api.Message("SOMETHING", " "); got != "حدث خطأ غير متوقع." {
		t.Fatalf("expected generic message, got %q", got)
	}
}

func TestKindOfRoundTrips(t *testing.T) {
	err := services.Wrap(services.ErrAuth, "gemini", "generate", "bad key", nil)
	kind := api.KindOf(err)
	if kind != api.KindAuth {
		t.Fatalf("unexpected kind %q", kind)
	}
	statusErr := api.NewError(http.StatusInternalServerError, api.CodeAPIError, "x", map[string]any{"kind": kind})
	if !errors.Is(statusErr, services.ErrAuth) {
		t.Fatalf("expected auth marker from kind, got %v", statusErr.Unwrap())
	}
}
