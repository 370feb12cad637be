package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/brensch/packgrab/internal/batch"
	"github.com/brensch/packgrab/internal/config"
	"github.com/brensch/packgrab/internal/extract"
	"github.com/brensch/packgrab/internal/progress"
)

// Deps are the collaborators a run talks to.
type Deps struct {
	Resolver   Resolver
	Fetcher    Fetcher
	Extractors extract.Set
	Sink       progress.Sink
	Logger     *slog.Logger
}

// Result is what a completed run reports.
type Result struct {
	Failures   []Failure // in arrival order
	Attempted  int
	Finished   int // ids whose extraction completed
	Overwrites int // output files written by more than one pack
	Duration   time.Duration
}

// Succeeded is the number of ids that finished.
func (r Result) Succeeded() int {
	return r.Finished
}

// Unfinished is the number of ids that neither finished nor failed. It is
// non-zero only when the run was aborted.
func (r Result) Unfinished() int {
	return max(0, r.Attempted-r.Finished-len(r.Failures))
}

// Run downloads and extracts every id in rng into cfg.OutputDir. Item
// failures are collected into the Result; the error is non-nil only when an
// extraction unit panicked.
//
// Shutdown order: the producer returns and closes the queue, the pool drains
// it and joins every unit, then the failure collector is closed and drained.
func Run(ctx context.Context, cfg *config.Config, deps Deps, rng batch.Range) (Result, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	sink := deps.Sink
	if sink == nil {
		sink = progress.Discard
	}
	startTime := time.Now()

	runCtx, abort := context.WithCancelCause(ctx)
	defer abort(nil)

	queue := make(chan *Task, cfg.QueueSize)
	failures := NewFailureCollector(rng.Len())
	producer := NewProducer(deps.Resolver, deps.Fetcher, sink, logger)
	pool := NewPool(cfg.Workers, cfg.OutputDir, deps.Extractors, sink, logger)

	logger.Info("Starting batch.",
		slog.String("range", rng.String()), slog.Int("packs", rng.Len()),
		slog.Int("workers", cfg.Workers), slog.Int("queue_size", cfg.QueueSize),
		slog.String("output_dir", cfg.OutputDir))

	poolDone := make(chan error, 1)
	go func() {
		poolDone <- pool.Run(runCtx, queue, failures, abort)
	}()

	producer.Run(runCtx, rng, queue, failures)
	poolErr := <-poolDone
	failures.Close()

	res := Result{
		Failures:   failures.Drain(),
		Attempted:  rng.Len(),
		Finished:   int(pool.finished.Load()),
		Overwrites: pool.written.count(),
		Duration:   time.Since(startTime),
	}
	if poolErr != nil {
		logger.Error("Batch aborted.", "error", poolErr,
			slog.Int("succeeded", res.Succeeded()), slog.Int("unfinished", res.Unfinished()))
		return res, poolErr
	}
	logger.Info("Batch complete.",
		slog.Int("succeeded", res.Succeeded()), slog.Int("failed", len(res.Failures)),
		slog.Duration("duration", res.Duration.Round(time.Millisecond)))
	return res, nil
}
