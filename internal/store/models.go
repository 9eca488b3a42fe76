package store

import (
	"errors"
	"time"
)

// StageStatus is the outcome recorded for a stage result.
type StageStatus string

const (
	StageCompleted StageStatus = "completed"
	StageFailed    StageStatus = "failed"
	StageSkipped   StageStatus = "skipped"
)

var (
	// ErrDuplicateName is returned when a case or template name is already taken.
	ErrDuplicateName = errors.New("name already exists")
	// ErrEmptyName is returned when a case or template name is blank.
	ErrEmptyName = errors.New("name is required")
	// ErrCaseNotFound is returned by writes that target a missing case.
	ErrCaseNotFound = errors.New("case not found")
)

// Case is a named collection of stage results for one matter.
type Case struct {
	ID        string
	Name      string
	Facts     string
	PartyRole string
	CaseType  string
	Tags      []string
	Petition  string
	CreatedAt time.Time
	UpdatedAt time.Time
	Stages    []StageResult
}

// StageResult is the persisted outcome of one stage run.
type StageResult struct {
	ID           string
	CaseID       string
	Index        int
	Name         string
	Input        string
	Output       string
	Status       StageStatus
	RetryCount   int
	Duration     time.Duration
	ErrorMessage string
	CreatedAt    time.Time
}

// CompletedOutputs returns the outputs of completed stages in index order.
func (c *Case) CompletedOutputs() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.Stages))
	for _, stage := range c.Stages {
		if stage.Status == StageCompleted && stage.Output != "" {
			out = append(out, stage.Output)
		}
	}
	return out
}

// Stage returns the result stored for index, if any.
func (c *Case) Stage(index int) (StageResult, bool) {
	if c == nil {
		return StageResult{}, false
	}
	for _, stage := range c.Stages {
		if stage.Index == index {
			return stage, true
		}
	}
	return StageResult{}, false
}

// Template is a reusable document skeleton.
type Template struct {
	ID        string
	Name      string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AppSettings groups the typed settings the CLI and daemon read.
type AppSettings struct {
	PreferredModel  string
	RateLimitPerMin int
	Theme           string
}
