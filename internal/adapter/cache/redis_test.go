package cache

import (
	"context"
	"testing"
	"time"

	"github.com/xiaot623/gogo/replayer/internal/domain"
)

func TestNewRedisCacheRejectsBadURL(t *testing.T) {
	if _, err := NewRedisCache("http://not-redis", time.Minute); err == nil {
		t.Fatal("expected error for non-redis url")
	}
}

// TestRedisCache_Integration requires a running Redis.
// We skip if connection fails.
func TestRedisCache_Integration(t *testing.T) {
	c, err := NewRedisCache("redis://localhost:6379/0", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisCache failed: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	if err := c.Ping(ctx); err != nil {
		t.Skip("Skipping Redis integration test: redis not available")
	}

	runID := "cache-test-run"
	_ = c.Invalidate(ctx, runID)

	if _, ok, err := c.Get(ctx, runID); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	data := &domain.ReplayData{
		RunID:         runID,
		Steps:         []domain.ReplayStep{{Index: 0, ID: "s0", Type: domain.StepTypeDecision, Duration: 10, Status: domain.StepStatusCompleted}},
		TotalDuration: 10,
	}
	if err := c.Set(ctx, data); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok, err := c.Get(ctx, runID)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.TotalDuration != 10 || len(got.Steps) != 1 || got.Steps[0].ID != "s0" {
		t.Fatalf("unexpected cached data: %+v", got)
	}

	if err := c.Invalidate(ctx, runID); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if _, ok, _ := c.Get(ctx, runID); ok {
		t.Fatal("expected miss after invalidate")
	}
}
