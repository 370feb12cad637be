package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/brensch/packgrab/internal/app"
	"github.com/brensch/packgrab/internal/batch"
	"github.com/brensch/packgrab/internal/config"
	"github.com/brensch/packgrab/internal/extract"
	"github.com/brensch/packgrab/internal/fetch"
	"github.com/brensch/packgrab/internal/ledger"
	"github.com/brensch/packgrab/internal/orchestrator"
	"github.com/brensch/packgrab/internal/packs"
	"github.com/brensch/packgrab/internal/progress"
	"github.com/brensch/packgrab/internal/report"
	"github.com/brensch/packgrab/internal/util"
)

// Progress display modes for --progress.
const (
	progressAuto = "auto"
	progressTUI  = "tui"
	progressLog  = "log"
	progressNone = "none"
)

// runBatch validates the arguments, then downloads and extracts the range.
// Everything that can be rejected is rejected before the first request.
func runBatch(cmd *cobra.Command, args []string) error {
	logger := getLogger()

	rng, err := batch.ParseRange(args[0], args[1])
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.OutputDir = args[2]
	if err := cfg.Validate(); err != nil {
		return err
	}
	mode, err := resolveProgressMode(progressMode, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", cfg.OutputDir, err)
	}
	lock, err := util.LockDir(cfg.OutputDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("Failed to release output directory lock.", "error", err)
		}
	}()

	runID := uuid.NewString()
	logger = logger.With(slog.String("run_id", runID))
	ctx := context.Background()

	events, err := ledger.Open(ctx, cfg.EventsDB, runID, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := events.Close(); err != nil {
			logger.Warn("Failed to close ledger.", "error", err)
		}
	}()

	// The progress view owns the terminal while it runs.
	runLogger := logger
	if mode == progressTUI && logToConsole {
		runLogger = slog.New(slog.DiscardHandler)
	}

	var view *app.Sink
	sinks := []progress.Sink{events}
	switch mode {
	case progressTUI:
		view = app.NewSink(rng.Len(), cmd.OutOrStdout())
		view.Start()
		sinks = append(sinks, view)
	case progressLog:
		sinks = append(sinks, progress.LogSink{Logger: runLogger})
	}

	deps := orchestrator.Deps{
		Resolver:   packs.NewResolver(cfg.BaseURL),
		Fetcher:    fetch.New(&cfg, runLogger),
		Extractors: extract.Defaults(runLogger),
		Sink:       progress.Fanout(sinks...),
		Logger:     runLogger,
	}
	res, runErr := orchestrator.Run(ctx, &cfg, deps, rng)

	summary := report.FromResult(runID, res)
	if view != nil {
		line := fmt.Sprintf("%d succeeded, %d failed", res.Succeeded(), len(res.Failures))
		if n := res.Unfinished(); n > 0 {
			line += fmt.Sprintf(", %d not completed", n)
		}
		line += fmt.Sprintf(" in %s", res.Duration.Round(time.Second))
		if err := view.Stop(line); err != nil {
			logger.Warn("Progress view exited with error.", "error", err)
		}
	}

	if s, err := events.Summary(ctx); err != nil {
		logger.Warn("Failed to summarise ledger.", "error", err)
	} else {
		logger.Info("Run ledger summary.",
			slog.Int("finished", s.Finished), slog.Int("failed", s.Failed),
			slog.Int("unfinished", s.Unfinished), slog.Int("events", s.Events))
	}

	if err := report.Print(cmd.OutOrStdout(), res.Failures, summary); err != nil {
		logger.Warn("Failed to print report.", "error", err)
	}
	if failuresParquet != "" {
		if err := report.WriteParquet(failuresParquet, runID, res.Failures); err != nil {
			logger.Error("Failed to write failures parquet.", "path", failuresParquet, "error", err)
		} else {
			logger.Info("Failures written.", "path", failuresParquet, slog.Int("rows", len(res.Failures)))
		}
	}

	if runErr != nil {
		return fmt.Errorf("batch aborted: %w", runErr)
	}
	return nil
}

// resolveProgressMode turns --progress into a concrete mode. auto picks the
// terminal view only when out is a terminal.
func resolveProgressMode(mode string, out io.Writer) (string, error) {
	switch strings.ToLower(mode) {
	case progressAuto, "":
		if util.IsTerminal(out) {
			return progressTUI, nil
		}
		return progressLog, nil
	case progressTUI, progressLog, progressNone:
		return strings.ToLower(mode), nil
	default:
		return "", fmt.Errorf("unknown progress mode %q (want auto, tui, log or none)", mode)
	}
}

// loadRangeConfig is shared by the commands that only need addresses.
func loadRangeConfig(cmd *cobra.Command, args []string) (batch.Range, config.Config, error) {
	rng, err := batch.ParseRange(args[0], args[1])
	if err != nil {
		return rng, config.Config{}, err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return rng, cfg, err
	}
	// Validate requires an output directory these commands never write to.
	cfg.OutputDir = "."
	return rng, cfg, cfg.Validate()
}
