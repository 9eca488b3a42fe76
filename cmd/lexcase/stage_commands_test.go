package main

import (
	"encoding/json"
	"strings"
	"testing"

	"lexcase/internal/api"
	"lexcase/internal/stage"
)

func TestStagesCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out := mustRunCLI(t, env, "stages")
	for _, name := range stage.Default().Names() {
		requireContains(t, out, name)
	}

	out = mustRunCLI(t, env, "stages", "--json")
	var infos []api.StageInfo
	if err := json.Unmarshal([]byte(out), &infos); err != nil {
		t.Fatalf("decode stages: %v", err)
	}
	if len(infos) != 12 {
		t.Fatalf("expected 12 stages, got %d", len(infos))
	}
	if !infos[0].Critical || infos[3].Critical {
		t.Fatalf("unexpected critical flags: %v %v", infos[0].Critical, infos[3].Critical)
	}
}

func TestFormatDependencies(t *testing.T) {
	if got := formatDependencies(nil); got != "-" {
		t.Fatalf("formatDependencies(nil) = %q", got)
	}
	if got := formatDependencies([]int{8, 7, 6}); got != "9, 8, 7" {
		t.Fatalf("formatDependencies = %q", got)
	}
}

func TestDetectCommand(t *testing.T) {
	out, _, err := runCLI(t, nil, "detect", sampleFacts)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	requireContains(t, out, "Case type:")
	requireContains(t, out, "Complexity:")
	requireContains(t, out, "Critical stages: 1, 2, 3, 5, 6, 7, 9, 11")

	out, _, err = runCLI(t, nil, "detect", sampleFacts, "--json")
	if err != nil {
		t.Fatalf("detect --json: %v", err)
	}
	var report detectReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode detect: %v", err)
	}
	if strings.TrimSpace(report.Detection.Type) == "" || report.Complexity.Level == "" {
		t.Fatalf("unexpected report %+v", report)
	}
}
