package api

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"lexcase/internal/prompt"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ModelHeader selects the Gemini model for an analyze request.
const ModelHeader = "X-Model"

// AnalyzeRequest is the POST /api/analyze body.
type AnalyzeRequest struct {
	Text              string      `json:"text"`
	StageIndex        StageNumber `json:"stageIndex"`
	APIKey            string      `json:"apiKey"`
	Stage             string      `json:"stage,omitempty"`
	PreviousSummaries []string    `json:"previousSummaries,omitempty"`
	PartyRole         string      `json:"partyRole,omitempty"`
	FinalPetition     bool        `json:"finalPetition,omitempty"`
}

// StageNumber accepts a JSON number or numeric string, the way browsers post
// form-derived values. Anything unparseable decodes to an invalid index.
type StageNumber int

// InvalidStage marks an unparseable stage index.
const InvalidStage StageNumber = -2

// UnmarshalJSON implements json.Unmarshaler.
func (s *StageNumber) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*s = InvalidStage
		return nil
	}
	var number float64
	if err := json.Unmarshal(data, &number); err == nil {
		if number != float64(int(number)) {
			*s = InvalidStage
			return nil
		}
		*s = StageNumber(int(number))
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		if n, convErr := strconv.Atoi(text); convErr == nil {
			*s = StageNumber(n)
			return nil
		}
	}
	*s = InvalidStage
	return nil
}

// AnalyzeResponse is the successful POST /api/analyze reply.
type AnalyzeResponse struct {
	Stage      string          `json:"stage"`
	Analysis   string          `json:"analysis"`
	Timestamp  int64           `json:"timestamp"`
	StageIndex *int            `json:"stageIndex,omitempty"`
	Cached     bool            `json:"cached,omitempty"`
	Context    *prompt.Context `json:"context,omitempty"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code    Code           `json:"code,omitempty"`
	Message string         `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// StageInfo describes one catalog entry for GET /api/stages.
type StageInfo struct {
	Index        int      `json:"index"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Critical     bool     `json:"critical"`
	Dependencies []int    `json:"dependencies"`
	KeyPoints    []string `json:"keyPoints"`
	Questions    []string `json:"questions"`
}

// StagesResponse wraps the catalog.
type StagesResponse struct {
	Stages []StageInfo `json:"stages"`
}

// StageView is a persisted stage result.
type StageView struct {
	Index        int    `json:"index"`
	Name         string `json:"name"`
	Status       string `json:"status"`
	Output       string `json:"output"`
	RetryCount   int    `json:"retryCount"`
	DurationMS   int64  `json:"durationMs"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty"`
}

// CaseSummary is a case in list views.
type CaseSummary struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	CaseType        string   `json:"caseType,omitempty"`
	PartyRole       string   `json:"partyRole,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	CompletedStages int      `json:"completedStages"`
	HasPetition     bool     `json:"hasPetition"`
	CreatedAt       string   `json:"createdAt,omitempty"`
	UpdatedAt       string   `json:"updatedAt,omitempty"`
}

// CaseDetail is a full case with stages.
type CaseDetail struct {
	CaseSummary
	Facts    string      `json:"facts"`
	Petition string      `json:"petition,omitempty"`
	Stages   []StageView `json:"stages"`
}

// CaseListResponse wraps a collection of cases.
type CaseListResponse struct {
	Cases []CaseSummary `json:"cases"`
}

// DependencyHealth reports the readiness of one daemon dependency.
type DependencyHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	Ready        bool               `json:"ready"`
	PID          int                `json:"pid"`
	Bind         string             `json:"bind"`
	DatabasePath string             `json:"databasePath"`
	LockFilePath string             `json:"lockFilePath"`
	Model        string             `json:"model"`
	StageCount   int                `json:"stageCount"`
	CacheEntries int                `json:"cacheEntries"`
	StartedAt    string             `json:"startedAt"`
	Uptime       string             `json:"uptime"`
	Health       []DependencyHealth `json:"health"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
