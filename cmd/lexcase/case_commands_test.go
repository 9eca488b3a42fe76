package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lexcase/internal/api"
	"lexcase/internal/casetype"
)

func TestCaseLifecycle(t *testing.T) {
	env := setupCLITestEnv(t)

	out := mustRunCLI(t, env, "case", "list")
	requireContains(t, out, "No cases yet")

	out = mustRunCLI(t, env, "case", "new", "قضية الإيجار", "--facts", sampleFacts, "--role", "مدعي", "--tag", "إيجار")
	requireContains(t, out, "Created case قضية الإيجار")
	requireContains(t, out, "Detected case type: "+casetype.Determine(sampleFacts))

	out = mustRunCLI(t, env, "case", "list")
	requireContains(t, out, "قضية الإيجار")
	requireContains(t, out, "0/12")

	out = mustRunCLI(t, env, "case", "show", "قضية الإيجار")
	requireContains(t, out, "# قضية الإيجار")
	requireContains(t, out, "## الوقائع")
	requireContains(t, out, "مدعي")

	out = mustRunCLI(t, env, "case", "show", "قضية الإيجار", "--json")
	var detail api.CaseDetail
	if err := json.Unmarshal([]byte(out), &detail); err != nil {
		t.Fatalf("decode case json: %v\n%s", err, out)
	}
	if detail.Name != "قضية الإيجار" || detail.Facts != sampleFacts || detail.PartyRole != "مدعي" {
		t.Fatalf("unexpected case detail %+v", detail)
	}
	if len(detail.Tags) != 1 || detail.Tags[0] != "إيجار" {
		t.Fatalf("unexpected tags %v", detail.Tags)
	}

	out = mustRunCLI(t, env, "case", "delete", detail.ID)
	requireContains(t, out, "Deleted case قضية الإيجار")
	if _, _, err := runCLI(t, env, "case", "show", detail.ID); err == nil {
		t.Fatal("expected deleted case to be missing")
	}
}

func TestCaseNewReadsStdinAndRejectsDuplicates(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLIWithInput(t, env, sampleFacts+"\n", "case", "new", "أولى", "--file", "-", "--type", "مدني")
	if err != nil {
		t.Fatalf("case new: %v", err)
	}
	requireContains(t, out, "Created case أولى")
	if strings.Contains(out, "Detected case type") {
		t.Fatalf("explicit type should not be detected: %q", out)
	}

	_, _, err = runCLI(t, env, "case", "new", "أولى", "--facts", sampleFacts)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected duplicate name error, got %v", err)
	}

	_, _, err = runCLI(t, env, "case", "new", "بدون وقائع")
	if err == nil || !strings.Contains(err.Error(), "facts are required") {
		t.Fatalf("expected missing facts error, got %v", err)
	}
}

func TestCaseClearRequiresConfirmation(t *testing.T) {
	env := setupCLITestEnv(t)
	mustRunCLI(t, env, "case", "new", "أ", "--facts", sampleFacts)
	mustRunCLI(t, env, "case", "new", "ب", "--facts", sampleFacts)

	if _, _, err := runCLI(t, env, "case", "clear"); err == nil {
		t.Fatal("expected clear without --yes to fail")
	}
	out := mustRunCLI(t, env, "case", "clear", "--yes")
	requireContains(t, out, "Deleted 2 case(s)")
}

func TestCaseExportFormats(t *testing.T) {
	env := setupCLITestEnv(t)
	mustRunCLI(t, env, "case", "new", "تصدير", "--facts", sampleFacts)
	mustRunCLI(t, env, "analyze", "تصدير", "--stage", "1")

	out := mustRunCLI(t, env, "case", "export", "تصدير")
	requireContains(t, out, "# تصدير")
	requireContains(t, out, "### المرحلة 1:")
	requireContains(t, out, "تحليل رقم 1")

	out = mustRunCLI(t, env, "case", "export", "تصدير", "--format", "json")
	var detail api.CaseDetail
	if err := json.Unmarshal([]byte(out), &detail); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if len(detail.Stages) != 1 || detail.Stages[0].Output != "تحليل رقم 1" {
		t.Fatalf("unexpected exported stages %+v", detail.Stages)
	}

	if _, _, err := runCLI(t, env, "case", "export", "تصدير", "--format", "xml"); err == nil {
		t.Fatal("expected unsupported format error")
	}

	target := filepath.Join(t.TempDir(), "case.md")
	out = mustRunCLI(t, env, "case", "export", "تصدير", "-o", target)
	requireContains(t, out, "Exported تصدير to "+target)
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	requireContains(t, string(data), "## الوقائع")
}

func TestCaseResetRemovesStageResults(t *testing.T) {
	env := setupCLITestEnv(t)
	mustRunCLI(t, env, "case", "new", "إعادة", "--facts", sampleFacts)
	mustRunCLI(t, env, "analyze", "إعادة", "--stage", "1")
	mustRunCLI(t, env, "analyze", "إعادة", "--stage", "2")

	out := mustRunCLI(t, env, "case", "reset", "إعادة", "--stage", "2")
	requireContains(t, out, "Removed 1 stage result(s)")
	out = mustRunCLI(t, env, "case", "reset", "إعادة")
	requireContains(t, out, "Removed 1 stage result(s)")
	out = mustRunCLI(t, env, "case", "list")
	requireContains(t, out, "0/12")
}
