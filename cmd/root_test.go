package cmd

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/brensch/packgrab/internal/batch"
	"github.com/brensch/packgrab/internal/packs"
	"github.com/brensch/packgrab/internal/util"
)

// resetFlags puts every flag back to its default so values set by one test
// do not leak into the next.
func resetFlags(t *testing.T) {
	t.Helper()
	reset := func(f *pflag.Flag) {
		if err := f.Value.Set(f.DefValue); err != nil {
			t.Fatalf("reset --%s: %v", f.Name, err)
		}
		f.Changed = false
	}
	for _, c := range append([]*cobra.Command{rootCmd}, rootCmd.Commands()...) {
		c.Flags().VisitAll(reset)
		c.PersistentFlags().VisitAll(reset)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(t)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append(args, "--log-level", "error"))
	err := rootCmd.Execute()
	return out.String(), err
}

func packZip(t *testing.T, name, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	ew, err := w.Create(name)
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(ew, body)
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestRootRejectsInvalidRangeBeforeAnySideEffect(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "never-created")
	_, err := execute(t, "0", "0", outDir, "--progress", "none")
	var vErr *batch.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if _, statErr := os.Stat(outDir); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("output directory must not be created for an invalid range, stat err=%v", statErr)
	}
}

func TestRootRequiresThreeArgs(t *testing.T) {
	if _, err := execute(t, "1", "2"); err == nil {
		t.Fatal("expected an argument count error")
	}
}

func TestRootRejectsUnknownProgressMode(t *testing.T) {
	_, err := execute(t, "1", "1", t.TempDir(), "--progress", "fancy")
	if err == nil || !strings.Contains(err.Error(), "progress mode") {
		t.Fatalf("expected progress mode error, got %v", err)
	}
}

func TestRootRunsBatchAndReportsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/S1318 ") {
			w.Write(packZip(t, "songs/1318.osz", "beatmaps"))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	outDir := filepath.Join(t.TempDir(), "packs")
	parquetPath := filepath.Join(t.TempDir(), "failures.parquet")
	out, err := execute(t, "1318", "1317", outDir,
		"--base-url", srv.URL,
		"--progress", "none",
		"--temp-dir", t.TempDir(),
		"--failures-parquet", parquetPath,
	)
	if err != nil {
		t.Fatalf("item failures must not fail the command: %v", err)
	}

	if _, err := os.Stat(filepath.Join(outDir, "1318.osz")); err != nil {
		t.Fatalf("expected extracted file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, util.LockFileName)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("lock file should be released, stat err=%v", err)
	}
	if _, err := os.Stat(parquetPath); err != nil {
		t.Fatalf("expected failures parquet: %v", err)
	}
	for _, want := range []string{"1317", "HTTP 404", "2 packs attempted, 1 succeeded, 1 failed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
	if n := strings.Count(out, "fetch") + strings.Count(out, "extract"); n != 1 {
		t.Fatalf("only the failed pack should be listed, found %d rows:\n%s", n, out)
	}
}

func TestRootFailsFastWhenOutputDirLocked(t *testing.T) {
	outDir := t.TempDir()
	lock, err := util.LockDir(outDir)
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Unlock()

	_, err = execute(t, "1", "1", outDir, "--progress", "none", "--base-url", "http://127.0.0.1:1")
	if !errors.Is(err, util.ErrDirLocked) {
		t.Fatalf("expected ErrDirLocked, got %v", err)
	}
}

func TestFlagsDoNotLeakBetweenRuns(t *testing.T) {
	if _, err := execute(t, "resolve", "1", "1", "--base-url", "https://first.example"); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "resolve", "1", "1")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "first.example") || baseURL != packs.DefaultBaseURL {
		t.Fatalf("flag value from an earlier run leaked:\n%s", out)
	}
	if f := rootCmd.PersistentFlags().Lookup("base-url"); f.Changed {
		t.Fatal("base-url still marked as changed")
	}
	if failuresParquet != "" {
		t.Fatalf("failures-parquet leaked: %q", failuresParquet)
	}
}

func TestResolveCommand(t *testing.T) {
	out, err := execute(t, "resolve", "1300", "1299", "--base-url", "https://mirror.example/")
	if err != nil {
		t.Fatalf("resolve returned error: %v", err)
	}
	for _, want := range []string{
		"https://mirror.example/S1299%20-%20Beatmap%20Pack%20%231299.7z",
		"https://mirror.example/S1300%20-%20Beatmap%20Pack%20%231300.zip",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("resolve output missing %q:\n%s", want, out)
		}
	}
}

func TestProbeCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/S5 ") {
			io.WriteString(w, "ok")
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	out, err := execute(t, "probe", "5", "6", "--base-url", srv.URL)
	if err != nil {
		t.Fatalf("probe returned error: %v", err)
	}
	if !strings.Contains(out, "2 addresses probed, 1 not available") || !strings.Contains(out, "404") {
		t.Fatalf("unexpected probe output:\n%s", out)
	}
}
