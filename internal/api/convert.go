package api

import (
	"lexcase/internal/analysis"
	"lexcase/internal/stage"
	"lexcase/internal/store"
)

// FromStage converts a persisted stage result to its API view.
func FromStage(result store.StageResult) StageView {
	return StageView{
		Index:        result.Index,
		Name:         result.Name,
		Status:       string(result.Status),
		Output:       result.Output,
		RetryCount:   result.RetryCount,
		DurationMS:   result.Duration.Milliseconds(),
		ErrorMessage: result.ErrorMessage,
		CreatedAt:    formatTime(result.CreatedAt),
	}
}

// SummarizeCase converts a case to its list view.
func SummarizeCase(c *store.Case) CaseSummary {
	if c == nil {
		return CaseSummary{}
	}
	return CaseSummary{
		ID:              c.ID,
		Name:            c.Name,
		CaseType:        c.CaseType,
		PartyRole:       c.PartyRole,
		Tags:            append([]string(nil), c.Tags...),
		CompletedStages: len(c.CompletedOutputs()),
		HasPetition:     c.Petition != "",
		CreatedAt:       formatTime(c.CreatedAt),
		UpdatedAt:       formatTime(c.UpdatedAt),
	}
}

// FromCase converts a case and its stages to the detail view.
func FromCase(c *store.Case) CaseDetail {
	if c == nil {
		return CaseDetail{}
	}
	detail := CaseDetail{
		CaseSummary: SummarizeCase(c),
		Facts:       c.Facts,
		Petition:    c.Petition,
		Stages:      make([]StageView, 0, len(c.Stages)),
	}
	for _, result := range c.Stages {
		detail.Stages = append(detail.Stages, FromStage(result))
	}
	return detail
}

// FromCatalog describes every stage in catalog.
func FromCatalog(catalog *stage.Catalog) []StageInfo {
	if catalog == nil {
		return nil
	}
	defs := catalog.All()
	out := make([]StageInfo, 0, len(defs))
	for i, def := range defs {
		deps := stage.Dependencies(i)
		if deps == nil {
			deps = []int{}
		}
		out = append(out, StageInfo{
			Index:        i,
			Name:         def.Name,
			Description:  def.Description,
			Critical:     stage.IsCritical(i),
			Dependencies: deps,
			KeyPoints:    def.KeyPoints,
			Questions:    def.Questions,
		})
	}
	return out
}

// FromHealth converts dependency health reports.
func FromHealth(health []stage.Health) []DependencyHealth {
	out := make([]DependencyHealth, 0, len(health))
	for _, h := range health {
		out = append(out, DependencyHealth{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}

// FromResponse converts an analysis response to the wire reply. Petition
// replies carry no stage index.
func FromResponse(resp analysis.Response) AnalyzeResponse {
	reply := AnalyzeResponse{
		Stage:     resp.Stage,
		Analysis:  resp.Analysis,
		Timestamp: resp.Timestamp.UnixMilli(),
		Cached:    resp.Cached,
		Context:   resp.Context,
	}
	if resp.StageIndex >= 0 {
		index := resp.StageIndex
		reply.StageIndex = &index
	}
	return reply
}
