package cmd

import (
	"github.com/spf13/cobra"

	"github.com/brensch/packgrab/internal/packs"
	"github.com/brensch/packgrab/internal/report"
)

// resolveCmd prints the address table without touching the network.
var resolveCmd = &cobra.Command{
	Use:   "resolve <min> <max>",
	Short: "Print the download address and archive kind for each pack id",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rng, cfg, err := loadRangeConfig(cmd, args)
		if err != nil {
			return err
		}
		r := packs.NewResolver(cfg.BaseURL)
		targets := make([]packs.Target, 0, rng.Len())
		for _, id := range rng.IDs() {
			targets = append(targets, r.Resolve(id))
		}
		return report.Targets(cmd.OutOrStdout(), targets)
	},
}
