package services_test

import (
	"context"
	"testing"

	"lexcase/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithCaseID(ctx, "case-42")
	ctx = services.WithStage(ctx, "facts")
	ctx = services.WithStageIndex(ctx, 0)
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.CaseIDFromContext(ctx); !ok || id != "case-42" {
		t.Fatalf("unexpected case id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "facts" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if idx, ok := services.StageIndexFromContext(ctx); !ok || idx != 0 {
		t.Fatalf("unexpected stage index: %v %v", idx, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	ctx = services.WithCaseID(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if _, ok := services.CaseIDFromContext(ctx); ok {
		t.Fatal("expected no case id value")
	}
	if _, ok := services.StageIndexFromContext(ctx); ok {
		t.Fatal("expected no stage index value")
	}
}
