package progress

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestRecorderConcurrentPushes(t *testing.T) {
	var r Recorder
	var wg sync.WaitGroup
	for id := 1; id <= 20; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			r.Push(id, StatusExtracting, "")
			r.Push(id, StatusFinished, "")
		}(id)
	}
	wg.Wait()

	if got := len(r.Updates()); got != 40 {
		t.Fatalf("expected 40 updates, got %d", got)
	}
	for id, status := range r.Final() {
		if status != StatusFinished {
			t.Fatalf("id %d ended in %s", id, status)
		}
	}
	seq := r.ForID(7)
	if len(seq) != 2 || seq[0] != StatusExtracting || seq[1] != StatusFinished {
		t.Fatalf("unexpected sequence for id 7: %v", seq)
	}
}

func TestFanoutSkipsNilAndPreservesOrder(t *testing.T) {
	var a, b Recorder
	sink := Fanout(&a, nil, &b, Discard)
	sink.Push(3, StatusFailed, "boom")

	for _, r := range []*Recorder{&a, &b} {
		u := r.Updates()
		if len(u) != 1 || u[0] != (Update{ID: 3, Status: StatusFailed, Detail: "boom"}) {
			t.Fatalf("unexpected updates %+v", u)
		}
	}
}

func TestLogSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	sink := LogSink{Logger: logger}

	sink.Push(1, StatusDownloading, "")
	sink.Push(1, StatusFinished, "")
	sink.Push(2, StatusFailed, "status 404")

	out := buf.String()
	if strings.Contains(out, "status=downloading") {
		t.Fatalf("downloading should be debug only: %s", out)
	}
	if !strings.Contains(out, "level=INFO") || !strings.Contains(out, "status=finished") {
		t.Fatalf("expected info record for finished: %s", out)
	}
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, `detail="status 404"`) {
		t.Fatalf("expected warn record with detail for failed: %s", out)
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []Status{StatusQueued, StatusDownloading, StatusExtracting} {
		if s.Terminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}
	if !StatusFinished.Terminal() || !StatusFailed.Terminal() {
		t.Fatal("finished and failed are terminal")
	}
}
