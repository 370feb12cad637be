package util

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestLockDirIsExclusive(t *testing.T) {
	dir := t.TempDir()
	first, err := LockDir(dir)
	if err != nil {
		t.Fatalf("first LockDir: %v", err)
	}
	if _, err := LockDir(dir); !errors.Is(err, ErrDirLocked) {
		t.Fatalf("expected ErrDirLocked, got %v", err)
	}
	if err := first.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, LockFileName)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("lock file should be removed, stat err=%v", err)
	}

	again, err := LockDir(dir)
	if err != nil {
		t.Fatalf("LockDir after unlock: %v", err)
	}
	again.Unlock()
}

func TestIsTerminalNonFile(t *testing.T) {
	if IsTerminal(&bytes.Buffer{}) {
		t.Fatal("a buffer is not a terminal")
	}
}

func TestDownloadToStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ok" {
			io.WriteString(w, "payload")
			return
		}
		w.WriteHeader(http.StatusAccepted)
		io.WriteString(w, "  later  ")
	}))
	defer srv.Close()

	var buf bytes.Buffer
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/ok", nil)
	n, err := DownloadTo(srv.Client(), req, &buf)
	if err != nil || n != 7 || buf.String() != "payload" {
		t.Fatalf("unexpected download: n=%d err=%v body=%q", n, err, buf.String())
	}

	buf.Reset()
	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/accepted", nil)
	_, err = DownloadTo(srv.Client(), req, &buf)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("202 must be a failure, got %v", err)
	}
	if statusErr.StatusCode != http.StatusAccepted || statusErr.Body != "later" {
		t.Fatalf("unexpected status error %+v", statusErr)
	}
	if buf.Len() != 0 {
		t.Fatal("nothing should be written on a non-200 response")
	}
}
