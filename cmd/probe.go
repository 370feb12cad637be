package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/brensch/packgrab/internal/fetch"
	"github.com/brensch/packgrab/internal/packs"
	"github.com/brensch/packgrab/internal/report"
)

// probeCmd checks which addresses in a range answer 200.
var probeCmd = &cobra.Command{
	Use:   "probe <min> <max>",
	Short: "Request each resolved address in turn and list the ones that are not available",
	Long: `Probe requests every address in the range, one at a time, and discards the
bodies. Addresses that do not answer 200 OK are listed. Nothing is written to disk.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		rng, cfg, err := loadRangeConfig(cmd, args)
		if err != nil {
			return err
		}

		ctx := context.Background()
		r := packs.NewResolver(cfg.BaseURL)
		client := fetch.New(&cfg, logger)
		results := make([]report.ProbeResult, 0, rng.Len())
		for _, id := range rng.IDs() {
			target := r.Resolve(id)
			code, err := client.Probe(ctx, target.URL)
			if err != nil {
				logger.Debug("Address not available.", slog.Int("pack_id", id), slog.Int("status", code), "error", err)
			}
			results = append(results, report.ProbeResult{Target: target, StatusCode: code, Err: err})
		}
		return report.Probes(cmd.OutOrStdout(), results)
	},
}
