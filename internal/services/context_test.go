package services_test

import (
	"context"
	"testing"

	"strata/internal/services"
)

func TestRunIDRoundTrip(t *testing.T) {
	ctx := services.WithRunID(context.Background(), "run-123")
	id, ok := services.RunIDFromContext(ctx)
	if !ok || id != "run-123" {
		t.Fatalf("expected run-123, got %q ok=%v", id, ok)
	}
}

func TestEmptyValuesDoNotAnnotate(t *testing.T) {
	ctx := context.Background()
	if services.WithRunID(ctx, "") != ctx {
		t.Error("empty run id should return the original context")
	}
	if services.WithStage(ctx, "") != ctx {
		t.Error("empty stage should return the original context")
	}
	if _, ok := services.StageFromContext(ctx); ok {
		t.Error("unannotated context should not report a stage")
	}
}

func TestStageAndRequestID(t *testing.T) {
	ctx := services.WithStage(context.Background(), "provision")
	ctx = services.WithRequestID(ctx, "abc")
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "provision" {
		t.Fatalf("stage = %q ok=%v", stage, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "abc" {
		t.Fatalf("request id = %q ok=%v", rid, ok)
	}
}
