package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/genai"

	"lexcase/internal/services"
)

type fakeGenerator struct {
	text  string
	err   error
	model string
	calls int
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.model = model
	if f.err != nil {
		return nil, f.err
	}
	if len(contents) == 0 {
		return nil, errors.New("no contents")
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}, Role: "model"},
		}},
	}, nil
}

func newFakeClient(gen *fakeGenerator, created *int32) *Client {
	return NewClient(Config{Model: "gemini-test"}, WithFactory(func(context.Context, string) (ContentGenerator, error) {
		if created != nil {
			atomic.AddInt32(created, 1)
		}
		return gen, nil
	}))
}

func TestGenerateReturnsText(t *testing.T) {
	gen := &fakeGenerator{text: "  تحليل الوقائع  "}
	var created int32
	client := newFakeClient(gen, &created)

	got, err := client.Generate(context.Background(), "key", "", "prompt")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if got != "تحليل الوقائع" {
		t.Fatalf("unexpected text %q", got)
	}
	if gen.model != "gemini-test" {
		t.Fatalf("expected default model, got %q", gen.model)
	}

	if _, err := client.Generate(context.Background(), "key", "gemini-1.5-pro", "prompt"); err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if gen.model != "gemini-1.5-pro" {
		t.Fatalf("expected explicit model, got %q", gen.model)
	}
	if created != 1 {
		t.Fatalf("expected sdk client to be reused per key, created %d", created)
	}
}

func TestGenerateRequiresKeyAndPrompt(t *testing.T) {
	client := newFakeClient(&fakeGenerator{text: "x"}, nil)
	if _, err := client.Generate(context.Background(), " ", "", "prompt"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if _, err := client.Generate(context.Background(), "key", "", "  "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGenerateEmptyResponseIsTransient(t *testing.T) {
	client := newFakeClient(&fakeGenerator{text: ""}, nil)
	_, err := client.Generate(context.Background(), "key", "", "prompt")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestClassifyAPIErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"rate limit", genai.APIError{Code: 429, Message: "Resource has been exhausted (e.g. check quota)."}, services.ErrRateLimited},
		{"unauthorized", genai.APIError{Code: 401, Message: "unauthenticated"}, services.ErrAuth},
		{"bad key", genai.APIError{Code: 400, Message: "API key not valid. Please pass a valid API key."}, services.ErrAuth},
		{"bad request", genai.APIError{Code: 400, Message: "invalid argument"}, services.ErrValidation},
		{"server", genai.APIError{Code: 503, Message: "overloaded"}, services.ErrUpstream},
		{"gateway timeout", genai.APIError{Code: 504, Message: "deadline"}, services.ErrTimeout},
		{"wrapped", fmt.Errorf("call: %w", genai.APIError{Code: 500, Message: "internal"}), services.ErrUpstream},
		{"deadline", context.DeadlineExceeded, services.ErrTimeout},
		{"other", errors.New("connection reset by peer"), services.ErrTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			if !errors.Is(got, tt.want) {
				t.Fatalf("classify(%v) = %v, want marker %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassifyKeepsCancellation(t *testing.T) {
	if got := classify(context.Canceled); !errors.Is(got, context.Canceled) || errors.Is(got, services.ErrTransient) {
		t.Fatalf("expected bare cancellation, got %v", got)
	}
}

func TestGenerateAgainstHTTPServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "gemini-test:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"نتيجة"}]}}]}`))
	}))
	defer server.Close()

	client := NewClient(Config{Model: "gemini-test", BaseURL: server.URL}, WithTimeout(5*time.Second))
	got, err := client.Generate(context.Background(), "key", "", "prompt")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if got != "نتيجة" {
		t.Fatalf("unexpected text %q", got)
	}
}
