package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	if err := c.Set(ctx, "k1", 42, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var got int
	exists, err := c.Get(ctx, "k1", &got)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !exists || got != 42 {
		t.Fatalf("expected hit with 42, got exists=%v value=%d", exists, got)
	}

	exists, err = c.Get(ctx, "missing", &got)
	if err != nil {
		t.Fatalf("Get missing: %v", err)
	}
	if exists {
		t.Fatal("expected miss for unknown key")
	}
}

// a cached zero value is still a hit, presence and value are separate
func TestMemoryCacheZeroValueIsHit(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	if err := c.Set(ctx, "zero", 0, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	var got int
	exists, err := c.Get(ctx, "zero", &got)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !exists {
		t.Fatal("cached zero must be a hit, not a miss")
	}
	if got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	if err := c.Set(ctx, "short", "v", time.Nanosecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	var got string
	exists, err := c.Get(ctx, "short", &got)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if exists {
		t.Fatal("expected expired entry to miss")
	}
}

func TestMemoryCacheFlushPattern(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	keys := []string{"project_hours_1", "project_hours_2", "milestone_hours_1"}
	for _, key := range keys {
		if err := c.Set(ctx, key, 1, time.Minute); err != nil {
			t.Fatalf("Set %s: %v", key, err)
		}
	}

	evicted, err := c.FlushPattern(ctx, "project_hours_")
	if err != nil {
		t.Fatalf("FlushPattern: %v", err)
	}
	if evicted != 2 {
		t.Fatalf("expected 2 evicted, got %d", evicted)
	}

	var got int
	if exists, _ := c.Get(ctx, "milestone_hours_1", &got); !exists {
		t.Fatal("unrelated namespace must survive the flush")
	}
	if exists, _ := c.Get(ctx, "project_hours_1", &got); exists {
		t.Fatal("flushed key still present")
	}
}

func TestRememberComputesOnce(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	computes := 0
	compute := func(ctx context.Context) (int, error) {
		computes++
		return 7, nil
	}

	for i := 0; i < 3; i++ {
		got, err := Remember(ctx, c, "answer", time.Minute, compute)
		if err != nil {
			t.Fatalf("Remember: %v", err)
		}
		if got != 7 {
			t.Fatalf("expected 7, got %d", got)
		}
	}
	if computes != 1 {
		t.Fatalf("expected a single compute, got %d", computes)
	}
}

func TestRememberRecomputesAfterFlush(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	computes := 0
	compute := func(ctx context.Context) (string, error) {
		computes++
		return "v", nil
	}

	if _, err := Remember(ctx, c, "report_summary_1", time.Minute, compute); err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if _, err := c.FlushPattern(ctx, "report_summary_"); err != nil {
		t.Fatalf("FlushPattern: %v", err)
	}
	if _, err := Remember(ctx, c, "report_summary_1", time.Minute, compute); err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if computes != 2 {
		t.Fatalf("expected recompute after flush, got %d computes", computes)
	}
}

func TestRememberPropagatesComputeError(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	boom := errors.New("boom")
	_, err := Remember(ctx, c, "k", time.Minute, func(ctx context.Context) (int, error) {
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected compute error, got %v", err)
	}

	// the failed compute must not be cached
	var got int
	if exists, _ := c.Get(ctx, "k", &got); exists {
		t.Fatal("error result was cached")
	}
}
