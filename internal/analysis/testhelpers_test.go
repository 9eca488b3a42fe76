package analysis

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"lexcase/internal/stage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedAnalyzer answers requests through respond, tracking calls per stage.
type scriptedAnalyzer struct {
	mu       sync.Mutex
	requests []Request
	perStage map[int]int
	respond  func(ctx context.Context, req Request, attempt int) (string, error)
}

func newScripted(respond func(ctx context.Context, req Request, attempt int) (string, error)) *scriptedAnalyzer {
	return &scriptedAnalyzer{perStage: make(map[int]int), respond: respond}
}

func (s *scriptedAnalyzer) Analyze(ctx context.Context, req Request) (Response, error) {
	s.mu.Lock()
	attempt := s.perStage[req.StageIndex]
	s.perStage[req.StageIndex]++
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	output := "ناتج " + req.StageName
	var err error
	if s.respond != nil {
		output, err = s.respond(ctx, req, attempt)
	}
	if err != nil {
		return Response{}, err
	}
	return Response{Stage: req.StageName, StageIndex: req.StageIndex, Analysis: output}, nil
}

func (s *scriptedAnalyzer) calls(stageIndex int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.perStage[stageIndex]
}

func (s *scriptedAnalyzer) lastRequest(stageIndex int) Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.requests) - 1; i >= 0; i-- {
		if s.requests[i].StageIndex == stageIndex {
			return s.requests[i]
		}
	}
	return Request{}
}

// delayRecorder is an injected sleeper that records waits instead of sleeping.
type delayRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (d *delayRecorder) sleep(delay time.Duration) {
	d.mu.Lock()
	d.delays = append(d.delays, delay)
	d.mu.Unlock()
}

func (d *delayRecorder) all() []time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]time.Duration(nil), d.delays...)
}

func smallCatalog(t *testing.T, names ...string) *stage.Catalog {
	t.Helper()
	defs := make([]stage.Definition, 0, len(names))
	for _, name := range names {
		defs = append(defs, stage.Definition{Name: name})
	}
	catalog, err := stage.New(defs)
	if err != nil {
		t.Fatalf("stage.New: %v", err)
	}
	return catalog
}

func assertDurationsNear(t *testing.T, got, want []time.Duration) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("delay count: got %v want %v", got, want)
	}
	for i := range want {
		diff := got[i] - want[i]
		if diff < -time.Millisecond || diff > time.Millisecond {
			t.Fatalf("delay %d: got %v want %v (all %v)", i, got[i], want[i], got)
		}
	}
}

var testInput = Input{Text: "وقائع القضية للاختبار", APIKey: "key", Model: "gemini-test"}
