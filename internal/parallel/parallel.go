package parallel

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Result holds the outcome of a parallel task.
type Result[T any] struct {
	Name    string
	OK      bool
	Err     error
	Value   T
	Elapsed time.Duration
}

// Task is a function that runs in parallel.
type Task[T any] struct {
	Name string
	Fn   func(ctx context.Context) (T, error)
}

// Run executes tasks in parallel with the given concurrency limit and
// returns results in the order tasks were submitted. A failing task never
// cancels or blocks its siblings; its error is recorded in its Result.
// A panicking task is recorded as failed.
func Run[T any](ctx context.Context, tasks []Task[T], concurrency int, logger *zap.Logger) []Result[T] {
	if concurrency < 1 {
		concurrency = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	results := make([]Result[T], len(tasks))

	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, task := range tasks {
		g.Go(func() error {
			start := time.Now()
			value, err := call(ctx, task)
			elapsed := time.Since(start)

			// each goroutine owns results[i]
			if err != nil {
				results[i] = Result[T]{Name: task.Name, Err: err, Elapsed: elapsed}
				logger.Debug("task failed", zap.String("task", task.Name), zap.Duration("elapsed", elapsed), zap.Error(err))
			} else {
				results[i] = Result[T]{Name: task.Name, OK: true, Value: value, Elapsed: elapsed}
				logger.Debug("task done", zap.String("task", task.Name), zap.Duration("elapsed", elapsed))
			}
			return nil // failures are collected, never returned
		})
	}

	_ = g.Wait()
	return results
}

func call[T any](ctx context.Context, task Task[T]) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", task.Name, r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return value, err
	}
	return task.Fn(ctx)
}

// Values returns the values of successful results, in submission order.
func Values[T any](results []Result[T]) []T {
	out := make([]T, 0, len(results))
	for _, r := range results {
		if r.OK {
			out = append(out, r.Value)
		}
	}
	return out
}

// Failed counts failed results.
func Failed[T any](results []Result[T]) int {
	n := 0
	for _, r := range results {
		if !r.OK {
			n++
		}
	}
	return n
}
