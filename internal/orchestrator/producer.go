package orchestrator

import (
	"context"
	"log/slog"

	"github.com/brensch/packgrab/internal/batch"
	"github.com/brensch/packgrab/internal/progress"
)

// Producer walks the range in ascending order, downloading one pack at a
// time and handing each staged archive to the pool.
type Producer struct {
	resolver Resolver
	fetcher  Fetcher
	sink     progress.Sink
	logger   *slog.Logger
}

func NewProducer(resolver Resolver, fetcher Fetcher, sink progress.Sink, logger *slog.Logger) *Producer {
	return &Producer{resolver: resolver, fetcher: fetcher, sink: sink, logger: logger}
}

// Run closes queue when it returns. Download failures go straight to
// failures. It stops early only when ctx is cancelled by a run abort.
func (p *Producer) Run(ctx context.Context, rng batch.Range, queue chan<- *Task, failures *FailureCollector) {
	defer close(queue)

	ids := rng.IDs()
	for i, id := range ids {
		if ctx.Err() != nil {
			p.logger.Warn("Run aborted, stopping downloads.", slog.Int("remaining", len(ids)-i), "cause", context.Cause(ctx))
			return
		}

		target := p.resolver.Resolve(id)
		l := p.logger.With(slog.Int("pack_id", id), slog.String("kind", string(target.Kind)))
		l.Debug("Downloading pack.", slog.Int("pack_num", i+1), slog.Int("total", len(ids)), slog.String("url", target.URL))

		p.sink.Push(id, progress.StatusDownloading, "")
		staged, err := p.fetcher.Fetch(ctx, target.URL)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.Warn("Pack download failed.", "error", err)
			p.sink.Push(id, progress.StatusFailed, err.Error())
			failures.Send(Failure{ID: id, Stage: StageFetch, Err: err})
			continue
		}

		task := &Task{ID: id, Kind: target.Kind, URL: target.URL, Archive: staged}
		p.sink.Push(id, progress.StatusQueued, "")
		queue <- task
	}
	p.logger.Debug("All packs downloaded or failed.", slog.Int("total", len(ids)))
}
