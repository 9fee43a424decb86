package services_test

import (
	"context"
	"testing"

	"montage/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRenderID(ctx, "r-1")
	ctx = services.WithChunk(ctx, 3)
	ctx = services.WithStage(ctx, "compositing")

	if id, ok := services.RenderIDFromContext(ctx); !ok || id != "r-1" {
		t.Fatalf("unexpected render id: %v %v", id, ok)
	}
	if idx, ok := services.ChunkFromContext(ctx); !ok || idx != 3 {
		t.Fatalf("unexpected chunk: %v %v", idx, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "compositing" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
}

func TestStageBlankPreservesContext(t *testing.T) {
	ctx := services.WithStage(context.Background(), "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if _, ok := services.ChunkFromContext(ctx); ok {
		t.Fatal("expected no chunk value")
	}
}
