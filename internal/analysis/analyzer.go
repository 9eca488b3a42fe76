package analysis

import (
	"context"
	"time"

	"lexcase/internal/prompt"
)

// PetitionStageIndex is the stage index of a final petition request.
const PetitionStageIndex = -1

// PetitionStageName labels final petition responses.
const PetitionStageName = "العريضة النهائية"

// Request asks for one stage analysis or the final petition.
type Request struct {
	Text              string
	StageIndex        int
	StageName         string
	APIKey            string
	Model             string
	PreviousSummaries []string
	PartyRole         string
	FinalPetition     bool
}

// Response is the outcome of a successful Request.
type Response struct {
	Stage      string
	StageIndex int
	Analysis   string
	Cached     bool
	Timestamp  time.Time
	Context    *prompt.Context
}

// Analyzer performs single stage analyses. The in-process engine and the
// HTTP client both implement it.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (Response, error)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(ctx context.Context, req Request) (Response, error)

// Analyze calls f.
func (f AnalyzerFunc) Analyze(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}
