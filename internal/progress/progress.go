package progress

import (
	"context"
	"log/slog"
	"sync"
)

// Status is the lifecycle state of one pack id within a run.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusExtracting  Status = "extracting"
	StatusFinished    Status = "finished"
	StatusFailed      Status = "failed"
)

func (s Status) String() string { return string(s) }

// Terminal reports whether s ends an id's lifecycle.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusFailed
}

// Sink receives status changes. Push is called from the producer goroutine and
// from every extraction unit, so implementations must be safe for concurrent
// use and must not block for long.
type Sink interface {
	Push(id int, status Status, detail string)
}

type discard struct{}

func (discard) Push(int, Status, string) {}

// Discard drops every update.
var Discard Sink = discard{}

// LogSink writes each update as a log record.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Push(id int, status Status, detail string) {
	level := slog.LevelDebug
	switch status {
	case StatusFinished:
		level = slog.LevelInfo
	case StatusFailed:
		level = slog.LevelWarn
	}
	attrs := []any{slog.Int("pack_id", id), slog.String("status", status.String())}
	if detail != "" {
		attrs = append(attrs, slog.String("detail", detail))
	}
	s.Logger.Log(context.Background(), level, "Pack status changed.", attrs...)
}

type fanout []Sink

func (f fanout) Push(id int, status Status, detail string) {
	for _, s := range f {
		s.Push(id, status, detail)
	}
}

// Fanout forwards every update to each non-nil sink in order.
func Fanout(sinks ...Sink) Sink {
	var f fanout
	for _, s := range sinks {
		if s != nil {
			f = append(f, s)
		}
	}
	return f
}

// Update is one recorded status change.
type Update struct {
	ID     int
	Status Status
	Detail string
}

// Recorder keeps every update in memory.
type Recorder struct {
	mu      sync.Mutex
	updates []Update
}

func (r *Recorder) Push(id int, status Status, detail string) {
	r.mu.Lock()
	r.updates = append(r.updates, Update{ID: id, Status: status, Detail: detail})
	r.mu.Unlock()
}

// Updates returns a copy of everything recorded so far.
func (r *Recorder) Updates() []Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Update(nil), r.updates...)
}

// ForID returns the statuses pushed for id, in order.
func (r *Recorder) ForID(id int) []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Status
	for _, u := range r.updates {
		if u.ID == id {
			out = append(out, u.Status)
		}
	}
	return out
}

// Final returns the last status pushed for every id seen.
func (r *Recorder) Final() map[int]Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int]Status)
	for _, u := range r.updates {
		out[u.ID] = u.Status
	}
	return out
}
