package parallel

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func ok(v string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return v, nil }
}

func TestRun_Success(t *testing.T) {
	tasks := []Task[string]{
		{Name: "task1", Fn: ok("a")},
		{Name: "task2", Fn: ok("b")},
		{Name: "task3", Fn: ok("c")},
	}

	results := Run(context.Background(), tasks, 4, nil)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.OK {
			t.Errorf("task %s should be OK", r.Name)
		}
		if r.Err != nil {
			t.Errorf("task %s should have no error", r.Name)
		}
	}
	if got := Values(results); fmt.Sprint(got) != "[a b c]" {
		t.Errorf("expected values in submission order, got %v", got)
	}
}

func TestRun_WithErrors(t *testing.T) {
	tasks := []Task[string]{
		{Name: "ok-task", Fn: ok("fine")},
		{Name: "fail-task", Fn: func(context.Context) (string, error) { return "", fmt.Errorf("simulated failure") }},
	}

	results := Run(context.Background(), tasks, 4, nil)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	// Results should be in order
	if !results[0].OK {
		t.Error("first task should be OK")
	}
	if results[1].OK {
		t.Error("second task should have failed")
	}
	if results[1].Err == nil {
		t.Error("second task should have error")
	}
	if Failed(results) != 1 {
		t.Errorf("expected 1 failure, got %d", Failed(results))
	}
}

func TestRun_FailureDoesNotCancelSiblings(t *testing.T) {
	tasks := []Task[string]{
		{Name: "fast-fail", Fn: func(context.Context) (string, error) { return "", fmt.Errorf("boom") }},
		{Name: "slow-ok", Fn: func(ctx context.Context) (string, error) {
			time.Sleep(30 * time.Millisecond)
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "done", nil
		}},
	}

	results := Run(context.Background(), tasks, 2, nil)
	if !results[1].OK || results[1].Value != "done" {
		t.Errorf("slow task should survive its sibling's failure, got %+v", results[1])
	}
}

func TestRun_PanicRecorded(t *testing.T) {
	tasks := []Task[int]{
		{Name: "panics", Fn: func(context.Context) (int, error) { panic("bad") }},
		{Name: "fine", Fn: func(context.Context) (int, error) { return 1, nil }},
	}

	results := Run(context.Background(), tasks, 2, nil)
	if results[0].OK || results[0].Err == nil {
		t.Error("panicking task should be recorded as failed")
	}
	if !results[1].OK {
		t.Error("second task should be OK")
	}
}

func TestRun_Concurrency(t *testing.T) {
	var maxConcurrent int64
	var current int64

	tasks := make([]Task[string], 10)
	for i := range tasks {
		tasks[i] = Task[string]{
			Name: fmt.Sprintf("task-%d", i),
			Fn: func(context.Context) (string, error) {
				c := atomic.AddInt64(&current, 1)
				// Track max concurrent
				for {
					old := atomic.LoadInt64(&maxConcurrent)
					if c <= old || atomic.CompareAndSwapInt64(&maxConcurrent, old, c) {
						break
					}
				}
				time.Sleep(50 * time.Millisecond)
				atomic.AddInt64(&current, -1)
				return "", nil
			},
		}
	}

	results := Run(context.Background(), tasks, 2, nil) // Limit to 2 concurrent

	if len(results) != 10 {
		t.Fatalf("expected 10 results, got %d", len(results))
	}

	if maxConcurrent > 2 {
		t.Errorf("max concurrent should be <= 2, got %d", maxConcurrent)
	}
}

func TestRun_DefaultConcurrency(t *testing.T) {
	tasks := []Task[string]{
		{Name: "test", Fn: ok("")},
	}

	// Should not panic with 0 concurrency (defaults to 4)
	results := Run(context.Background(), tasks, 0, nil)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var called atomic.Bool
	results := Run(ctx, []Task[string]{{Name: "never", Fn: func(context.Context) (string, error) {
		called.Store(true)
		return "", nil
	}}}, 1, nil)

	if called.Load() {
		t.Error("task should not run on a cancelled context")
	}
	if results[0].OK {
		t.Error("task should be recorded as failed")
	}
}

func TestRun_TimingTracked(t *testing.T) {
	tasks := []Task[string]{
		{Name: "slow", Fn: func(context.Context) (string, error) {
			time.Sleep(50 * time.Millisecond)
			return "", nil
		}},
	}

	results := Run(context.Background(), tasks, 1, nil)
	if results[0].Elapsed < 50*time.Millisecond {
		t.Errorf("expected elapsed >= 50ms, got %v", results[0].Elapsed)
	}
}
