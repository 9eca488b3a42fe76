package main

import (
	"strings"
	"testing"
)

func TestRenderTablePadsShortRowsAndWraps(t *testing.T) {
	out := renderTable(
		[]tableColumn{numCol("#"), wrapCol("Stage", 10), col("Critical")},
		[][]string{
			{"1", "تحليل الوقائع الأساسية", "yes"},
			{"2"},
		},
	)
	if !strings.Contains(out, "Stage") || !strings.Contains(out, "Critical") {
		t.Fatalf("headers missing:\n%s", out)
	}
	if strings.Contains(out, "تحليل الوقائع الأساسية") {
		t.Fatalf("expected long cell to wrap:\n%s", out)
	}
	if lines := strings.Count(out, "\n"); lines < 6 {
		t.Fatalf("expected wrapped rows, got %d lines:\n%s", lines, out)
	}
}

func TestRenderTableWithoutColumns(t *testing.T) {
	if got := renderTable(nil, [][]string{{"x"}}); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
}
