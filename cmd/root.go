package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brensch/packgrab/internal/config"
)

var (
	// Config flags - bound in init()
	cfgFile         string
	logFormat       string
	logLevel        string
	logOutput       string
	baseURL         string
	userAgent       string
	downloadRate    float64
	workers         int
	queueSize       int
	tempDir         string
	eventsDB        string
	failuresParquet string
	progressMode    string

	// Global instances populated in PersistentPreRunE
	rootLogger   *slog.Logger
	logToConsole bool // stderr or stdout
)

// rootCmd downloads and extracts a range of packs.
var rootCmd = &cobra.Command{
	Use:   "packgrab <min> <max> <output-dir>",
	Short: "Download a range of beatmap packs and extract them into one directory.",
	Long: `packgrab downloads every beatmap pack with an id in [min, max] from the pack
mirror, one at a time, and extracts each archive into output-dir while the next
one downloads. Extraction runs on a small worker pool.

A pack that fails to download or extract is reported at the end of the run and
does not stop the others. The exit status is 0 as long as the arguments were
valid, even if some packs failed.`,
	Example: `  packgrab 1 10 ./packs
  packgrab 1318 1320 ./packs --workers 2 --progress log`,
	Args:         cobra.ExactArgs(3),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// --- 1. Initialize Logger ---
		var level slog.Level
		switch strings.ToLower(logLevel) {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}

		var logWriter io.Writer = os.Stderr // Default to stderr
		logToConsole = true
		if logOutput != "" && strings.ToLower(logOutput) != "stderr" {
			if strings.ToLower(logOutput) == "stdout" {
				logWriter = os.Stdout
			} else {
				logToConsole = false
				f, err := os.OpenFile(logOutput, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
				if err != nil {
					return fmt.Errorf("failed to open log file %s: %w", logOutput, err)
				}
				logWriter = f
			}
		}

		opts := &slog.HandlerOptions{Level: level}
		var handler slog.Handler
		if logFormat == "json" {
			handler = slog.NewJSONHandler(logWriter, opts)
		} else {
			handler = slog.NewTextHandler(logWriter, opts)
		}
		rootLogger = slog.New(handler)
		slog.SetDefault(rootLogger)
		rootLogger.Debug("Logger initialized", "level", level.String(), "format", logFormat, "output", logOutput)
		return nil
	},
	RunE: runBatch,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		if rootLogger != nil {
			rootLogger.Error("Command execution failed", "error", err)
		} else {
			fmt.Fprintf(os.Stderr, "Command execution failed: %v\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(probeCmd)

	def := config.Default()

	// Shared by every command
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "TOML config file; flags override its values")
	pf.StringVar(&logFormat, "log-format", "text", "Log output format (text or json)")
	pf.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&logOutput, "log-output", "stderr", "Log output destination (stderr, stdout, or file path)")
	pf.StringVar(&baseURL, "base-url", def.BaseURL, "Pack mirror base URL")
	pf.StringVar(&userAgent, "user-agent", def.UserAgent, "User-Agent header sent with every request")
	pf.Float64Var(&downloadRate, "download-rate", def.DownloadRate, "Maximum requests per second (0 = unlimited)")

	// Batch only
	f := rootCmd.Flags()
	f.IntVarP(&workers, "workers", "w", def.Workers, "Number of archives extracted at once")
	f.IntVar(&queueSize, "queue-size", def.QueueSize, "Downloaded archives that may wait for an extraction slot")
	f.StringVar(&tempDir, "temp-dir", def.TempDir, "Directory for archives while they wait to be extracted (default OS temp dir)")
	f.StringVar(&eventsDB, "events-db", def.EventsDB, "DuckDB file for this run's status ledger (:memory: to keep it in memory)")
	f.StringVar(&failuresParquet, "failures-parquet", "", "Also write the failure records to this Parquet file")
	f.StringVar(&progressMode, "progress", "auto", "Progress display (auto, tui, log, none)")

	rootCmd.Version = config.Version
}

// loadConfig reads --config and applies any flag the user set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if flags.Changed("user-agent") {
		cfg.UserAgent = userAgent
	}
	if flags.Changed("download-rate") {
		cfg.DownloadRate = downloadRate
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("queue-size") {
		cfg.QueueSize = queueSize
	}
	if flags.Changed("temp-dir") {
		cfg.TempDir = tempDir
	}
	if flags.Changed("events-db") {
		cfg.EventsDB = eventsDB
	}
	return cfg, nil
}

// getLogger returns the configured logger, or one that discards everything
// when PersistentPreRunE has not run.
func getLogger() *slog.Logger {
	if rootLogger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return rootLogger
}
