package main

import (
	"encoding/json"
	"strings"
	"testing"

	"lexcase/internal/analysis"
	"lexcase/internal/api"
	"lexcase/internal/services"
	"lexcase/internal/stage"
)

func TestAnalyzeRunsAllStagesAndDraftsPetition(t *testing.T) {
	env := setupCLITestEnv(t)
	mustRunCLI(t, env, "case", "new", "كاملة", "--facts", sampleFacts)

	out := mustRunCLI(t, env, "analyze", "كاملة")
	requireContains(t, out, "[1/12] "+stage.Default().Names()[0]+": completed")
	requireContains(t, out, "[12/12]")
	requireContains(t, out, "12 completed, 0 failed, 0 skipped of 12 (100%)")
	if got := env.gen.callCount(); got != 12 {
		t.Fatalf("expected 12 generator calls, got %d", got)
	}
	for _, model := range env.gen.models {
		if model != "gemini-test" {
			t.Fatalf("expected configured model, got %q", model)
		}
	}

	out = mustRunCLI(t, env, "case", "list")
	requireContains(t, out, "12/12")

	out = mustRunCLI(t, env, "petition", "كاملة")
	requireContains(t, out, analysis.PetitionStageName)
	requireContains(t, out, "تحليل رقم 13")

	out = mustRunCLI(t, env, "case", "show", "كاملة", "--json")
	var detail api.CaseDetail
	if err := json.Unmarshal([]byte(out), &detail); err != nil {
		t.Fatalf("decode case: %v", err)
	}
	if detail.Petition != "تحليل رقم 13" || !detail.HasPetition {
		t.Fatalf("petition not stored: %+v", detail.CaseSummary)
	}
	if len(detail.Stages) != 12 || detail.CompletedStages != 12 {
		t.Fatalf("expected 12 stored stages, got %d", len(detail.Stages))
	}
}

func TestAnalyzeSingleStageUsesEarlierOutputs(t *testing.T) {
	env := setupCLITestEnv(t)
	mustRunCLI(t, env, "case", "new", "مفردة", "--facts", sampleFacts)

	names := stage.Default().Names()
	out := mustRunCLI(t, env, "analyze", "مفردة", "--stage", names[0])
	requireContains(t, out, "تحليل رقم 1")

	out = mustRunCLI(t, env, "analyze", "مفردة", "--stage", "2", "--json", "--model", "gemini-other")
	var reply api.AnalyzeResponse
	if err := json.Unmarshal([]byte(out), &reply); err != nil {
		t.Fatalf("decode reply: %v\n%s", err, out)
	}
	if reply.Stage != names[1] || reply.StageIndex == nil || *reply.StageIndex != 1 {
		t.Fatalf("unexpected reply %+v", reply)
	}
	if env.gen.models[1] != "gemini-other" {
		t.Fatalf("expected --model to win, got %q", env.gen.models[1])
	}

	out = mustRunCLI(t, env, "case", "show", "مفردة", "--stage", "2")
	requireContains(t, out, "تحليل رقم 2")

	if _, _, err := runCLI(t, env, "analyze", "مفردة", "--stage", "13"); err == nil {
		t.Fatal("expected out-of-range stage error")
	}
	if _, _, err := runCLI(t, env, "analyze", "مفردة", "--stage", "مرحلة غير موجودة"); err == nil {
		t.Fatal("expected unknown stage error")
	}
}

func TestAnalyzeResumeFromReusesStoredStages(t *testing.T) {
	env := setupCLITestEnv(t)
	mustRunCLI(t, env, "case", "new", "استئناف", "--facts", sampleFacts)
	mustRunCLI(t, env, "analyze", "استئناف", "--stage", "1")

	out := mustRunCLI(t, env, "analyze", "استئناف", "--resume-from", "2")
	requireContains(t, out, "12 completed")
	if strings.Contains(out, "[1/12]") {
		t.Fatalf("stage 1 should not run again:\n%s", out)
	}
	if got := env.gen.callCount(); got != 12 {
		t.Fatalf("expected 1 + 11 generator calls, got %d", got)
	}
}

func TestAnalyzeSkipPolicyRecordsSkippedStage(t *testing.T) {
	env := setupCLITestEnv(t)
	env.gen.failFirst = 3
	env.gen.failErr = services.Wrap(services.ErrAuth, "gemini", "generate", "http 401", nil)
	mustRunCLI(t, env, "case", "new", "تخطي", "--facts", sampleFacts)

	out := mustRunCLI(t, env, "analyze", "تخطي", "--policy", "skip")
	requireContains(t, out, "11 completed, 0 failed, 1 skipped of 12")
	requireContains(t, out, analysis.RecommendManualReview)

	out = mustRunCLI(t, env, "case", "show", "تخطي", "--json")
	var detail api.CaseDetail
	if err := json.Unmarshal([]byte(out), &detail); err != nil {
		t.Fatalf("decode case: %v", err)
	}
	if len(detail.Stages) != 12 || detail.Stages[0].Status != "skipped" {
		t.Fatalf("expected stage 1 to be stored as skipped, got %+v", detail.Stages)
	}
}

func TestAnalyzeJSONWritesResult(t *testing.T) {
	env := setupCLITestEnv(t)
	mustRunCLI(t, env, "case", "new", "مخرجات", "--facts", sampleFacts)

	out, stderr, err := runCLI(t, env, "analyze", "مخرجات", "--mode", "sequential", "--json")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	var result analysis.Result
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode result: %v\n%s", err, out)
	}
	if !result.Success || result.Summary.Completed != 12 {
		t.Fatalf("unexpected result summary %+v", result.Summary)
	}
	requireContains(t, stderr, "[12/12]")
}

func TestAnalyzeRejectsUnknownSettings(t *testing.T) {
	env := setupCLITestEnv(t)
	mustRunCLI(t, env, "case", "new", "خيارات", "--facts", sampleFacts)
	for _, args := range [][]string{
		{"--mode", "parallel"},
		{"--profile", "reckless"},
		{"--policy", "ignore"},
	} {
		if _, _, err := runCLI(t, env, append([]string{"analyze", "خيارات"}, args...)...); err == nil {
			t.Fatalf("expected %v to be rejected", args)
		}
	}
	if env.gen.callCount() != 0 {
		t.Fatal("no stage should run with invalid settings")
	}
}

func TestPetitionRequiresCompletedStages(t *testing.T) {
	env := setupCLITestEnv(t)
	mustRunCLI(t, env, "case", "new", "فارغة", "--facts", sampleFacts)
	_, _, err := runCLI(t, env, "petition", "فارغة")
	if err == nil || !strings.Contains(err.Error(), "no completed stages") {
		t.Fatalf("expected missing stages error, got %v", err)
	}
}

func TestPreviousOutputsKeepsIndexPositions(t *testing.T) {
	c := caseWithStages(map[int]string{0: "أ", 2: "ج", 5: "و"})
	got := previousOutputs(c, 3)
	want := []string{"أ", "", "ج"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("previousOutputs = %q, want %q", got, want)
	}
	if got := nonEmpty(got); len(got) != 2 {
		t.Fatalf("nonEmpty = %q", got)
	}
}
