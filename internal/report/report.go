package report

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/brensch/packgrab/internal/extract"
	"github.com/brensch/packgrab/internal/fetch"
	"github.com/brensch/packgrab/internal/orchestrator"
	"github.com/brensch/packgrab/internal/packs"
)

// Summary is the headline of a finished run.
type Summary struct {
	RunID      string
	Attempted  int
	Succeeded  int
	Overwrites int
	Duration   time.Duration
}

// FromResult builds the summary for res.
func FromResult(runID string, res orchestrator.Result) Summary {
	return Summary{
		RunID:      runID,
		Attempted:  res.Attempted,
		Succeeded:  res.Succeeded(),
		Overwrites: res.Overwrites,
		Duration:   res.Duration,
	}
}

// Print writes the failure table (if any) followed by a one-line summary.
// Successful ids are not listed.
func Print(w io.Writer, failures []orchestrator.Failure, summary Summary) error {
	if len(failures) > 0 {
		rows := make([][]string, 0, len(failures))
		for _, f := range sortedByID(failures) {
			rows = append(rows, []string{strconv.Itoa(f.ID), string(f.Stage), Cause(f.Err)})
		}
		if _, err := fmt.Fprintln(w, renderTable([]string{"Pack", "Stage", "Cause"}, rows, []columnAlignment{alignRight, alignLeft, alignLeft})); err != nil {
			return err
		}
	}

	line := fmt.Sprintf("%d packs attempted, %d succeeded, %d failed",
		summary.Attempted, summary.Succeeded, len(failures))
	if unfinished := summary.Attempted - summary.Succeeded - len(failures); unfinished > 0 {
		line += fmt.Sprintf(", %d not completed", unfinished)
	}
	line += fmt.Sprintf(" in %s", summary.Duration.Round(time.Second))
	if summary.Overwrites > 0 {
		line += fmt.Sprintf(", %d files overwritten by a later pack", summary.Overwrites)
	}
	if summary.RunID != "" {
		line += fmt.Sprintf(" (run %s)", summary.RunID)
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

// Cause renders err for a person: the HTTP status for download failures, the
// entry and decoder message for extraction failures.
func Cause(err error) string {
	if err == nil {
		return ""
	}
	var fErr *fetch.Error
	if errors.As(err, &fErr) && fErr.StatusCode != 0 {
		return fmt.Sprintf("HTTP %d", fErr.StatusCode)
	}
	var exErr *extract.Error
	if errors.As(err, &exErr) {
		if exErr.Entry != "" {
			return fmt.Sprintf("%s entry %s: %v", exErr.Kind, exErr.Entry, exErr.Err)
		}
		return fmt.Sprintf("%s: %v", exErr.Kind, exErr.Err)
	}
	return err.Error()
}

func statusCode(err error) int {
	var fErr *fetch.Error
	if errors.As(err, &fErr) {
		return fErr.StatusCode
	}
	return 0
}

func sortedByID(failures []orchestrator.Failure) []orchestrator.Failure {
	out := append([]orchestrator.Failure(nil), failures...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Targets prints the address table for a range.
func Targets(w io.Writer, targets []packs.Target) error {
	rows := make([][]string, 0, len(targets))
	for _, t := range targets {
		rows = append(rows, []string{strconv.Itoa(t.ID), string(t.Kind), t.URL})
	}
	_, err := fmt.Fprintln(w, renderTable([]string{"Pack", "Kind", "URL"}, rows, []columnAlignment{alignRight}))
	return err
}

// ProbeResult is the answer one address gave to a probe.
type ProbeResult struct {
	Target     packs.Target
	StatusCode int
	Err        error
}

// Probes prints the addresses that did not answer 200, followed by a count.
func Probes(w io.Writer, results []ProbeResult) error {
	var rows [][]string
	for _, r := range results {
		if r.Err == nil {
			continue
		}
		status := "-"
		if r.StatusCode != 0 {
			status = strconv.Itoa(r.StatusCode)
		}
		rows = append(rows, []string{strconv.Itoa(r.Target.ID), status, r.Target.URL})
	}
	if len(rows) > 0 {
		if _, err := fmt.Fprintln(w, renderTable([]string{"Pack", "Status", "URL"}, rows, []columnAlignment{alignRight, alignRight})); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d addresses probed, %d not available\n", len(results), len(rows))
	return err
}
