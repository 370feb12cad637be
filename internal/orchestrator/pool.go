package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/brensch/packgrab/internal/extract"
	"github.com/brensch/packgrab/internal/progress"
)

// Pool runs at most workers extractions at once, all into the same output
// directory.
type Pool struct {
	workers    int
	outputDir  string
	extractors extract.Set
	sink       progress.Sink
	logger     *slog.Logger
	written    *collisionTracker
	finished   atomic.Int64
}

func NewPool(workers int, outputDir string, extractors extract.Set, sink progress.Sink, logger *slog.Logger) *Pool {
	return &Pool{
		workers:    workers,
		outputDir:  outputDir,
		extractors: extractors,
		sink:       sink,
		logger:     logger,
		written:    newCollisionTracker(logger),
	}
}

// Run consumes queue until it is closed and waits for every extraction it
// started. A panicking unit becomes an *InternalInvariantError: abort is
// called with it, the remaining queue is drained and discarded, and the
// error is returned after the join.
func (p *Pool) Run(ctx context.Context, queue <-chan *Task, failures *FailureCollector, abort context.CancelCauseFunc) error {
	sem := semaphore.NewWeighted(int64(p.workers))
	var g errgroup.Group

	for task := range queue {
		if ctx.Err() != nil {
			p.drop(task)
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			p.drop(task)
			continue
		}
		g.Go(func() (err error) {
			defer sem.Release(1)
			defer p.discard(task)
			defer func() {
				if r := recover(); r != nil {
					invErr := &InternalInvariantError{ID: task.ID, Value: r, Stack: debug.Stack()}
					p.logger.Error("Extraction panicked, aborting run.", slog.Int("pack_id", task.ID), "panic", r)
					p.sink.Push(task.ID, progress.StatusFailed, invErr.Error())
					abort(invErr)
					err = invErr
				}
			}()
			p.extract(task, failures)
			return nil
		})
	}
	return g.Wait()
}

func (p *Pool) extract(task *Task, failures *FailureCollector) {
	l := p.logger.With(slog.Int("pack_id", task.ID), slog.String("kind", string(task.Kind)))
	p.sink.Push(task.ID, progress.StatusExtracting, "")

	var (
		written []string
		err     error
	)
	ex := p.extractors[task.Kind]
	if ex == nil {
		err = fmt.Errorf("no extractor for archive kind %q", task.Kind)
	} else {
		written, err = ex.Extract(task.Archive.Path, p.outputDir)
	}
	if err != nil {
		l.Warn("Pack extraction failed.", "error", err)
		p.sink.Push(task.ID, progress.StatusFailed, err.Error())
		failures.Send(Failure{ID: task.ID, Stage: StageExtract, Err: err})
		return
	}

	p.written.record(task.ID, written)
	l.Info("Pack extracted.", slog.Int("files", len(written)))
	p.finished.Add(1)
	p.sink.Push(task.ID, progress.StatusFinished, "")
}

func (p *Pool) discard(task *Task) {
	if err := task.Discard(); err != nil {
		p.logger.Warn("Failed to remove staged archive.", slog.Int("pack_id", task.ID), "error", err)
	}
}

// drop throws away a task received after the run was aborted.
func (p *Pool) drop(task *Task) {
	p.discard(task)
	p.sink.Push(task.ID, progress.StatusFailed, "run aborted")
}

// collisionTracker remembers which pack wrote each output path in this run.
type collisionTracker struct {
	mu         sync.Mutex
	owners     map[string]int
	overwrites int
	logger     *slog.Logger
}

func newCollisionTracker(logger *slog.Logger) *collisionTracker {
	return &collisionTracker{owners: make(map[string]int), logger: logger}
}

// record notes that id wrote paths and warns when another pack in this run
// already wrote one of them. The later write wins.
func (c *collisionTracker) record(id int, paths []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, path := range paths {
		if prev, ok := c.owners[path]; ok && prev != id {
			c.overwrites++
			c.logger.Warn("Output file overwritten by another pack.",
				slog.String("path", path), slog.Int("previous_pack_id", prev), slog.Int("pack_id", id))
		}
		c.owners[path] = id
	}
}

func (c *collisionTracker) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.overwrites
}
