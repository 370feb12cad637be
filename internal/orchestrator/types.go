package orchestrator

import (
	"context"
	"fmt"

	"github.com/brensch/packgrab/internal/fetch"
	"github.com/brensch/packgrab/internal/packs"
)

// Resolver maps a pack id to its remote address and archive kind.
type Resolver interface {
	Resolve(id int) packs.Target
}

// Fetcher downloads one archive into a staged temporary file.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Staged, error)
}

// Task is a downloaded pack waiting for, or undergoing, extraction. The
// task owns its staged archive until Discard is called.
type Task struct {
	ID      int
	Kind    packs.Kind
	URL     string
	Archive *fetch.Staged
}

// Discard deletes the staged archive. Repeated calls are no-ops.
func (t *Task) Discard() error {
	if t.Archive == nil {
		return nil
	}
	return t.Archive.Remove()
}

// Stage names the pipeline step an id failed in.
type Stage string

const (
	StageResolve Stage = "resolve"
	StageFetch   Stage = "fetch"
	StageExtract Stage = "extract"
)

// Failure is the record of one id that did not make it through.
type Failure struct {
	ID    int
	Stage Stage
	Err   error
}

func (f Failure) String() string {
	return fmt.Sprintf("pack %d failed at %s: %v", f.ID, f.Stage, f.Err)
}

// InternalInvariantError means an extraction unit panicked. It aborts the
// whole run.
type InternalInvariantError struct {
	ID    int
	Value any
	Stack []byte
}

func (e *InternalInvariantError) Error() string {
	return fmt.Sprintf("internal error while extracting pack %d: %v", e.ID, e.Value)
}
