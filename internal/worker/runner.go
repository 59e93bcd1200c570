package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Runner runs a fixed set of workers side by side.
type Runner struct {
	workers []Worker
}

// NewRunner creates a Runner with the given workers.
func NewRunner(workers ...Worker) *Runner {
	return &Runner{workers: workers}
}

// Run blocks until every worker has returned. The first worker error
// cancels the others and is returned, prefixed with the worker's name.
// With no workers Run waits for ctx so callers can treat it uniformly.
func (r *Runner) Run(ctx context.Context) error {
	if len(r.workers) == 0 {
		<-ctx.Done()
		return nil
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range r.workers {
		g.Go(func() error { return run(ctx, w) })
	}
	return g.Wait()
}

func run(ctx context.Context, w Worker) error {
	name := w.Name()
	start := time.Now()
	slog.LogAttrs(ctx, slog.LevelDebug, "worker started", slog.String("worker", name))

	err := w.Run(ctx)

	attrs := []slog.Attr{
		slog.String("worker", name),
		slog.Duration("uptime", time.Since(start)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		slog.LogAttrs(ctx, slog.LevelError, "worker failed", attrs...)
		return fmt.Errorf("worker %s: %w", name, err)
	}
	slog.LogAttrs(ctx, slog.LevelDebug, "worker stopped", attrs...)
	return nil
}
