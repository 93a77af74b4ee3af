package cli

import (
	"time"

	"github.com/spf13/cobra"
)

func (a *app) levelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "levels <file>",
		Short: "Count lines per level and per time bin",
		Long: `Count how many lines carry each level tag (INFO, WARN, ERROR, ...) and how
many timestamped lines fall into each time bin.

Examples:
  logtriage levels /var/log/app.log
  logtriage levels /var/log/app.log.gz --bin-minutes 15 -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			rep, err := a.engine.AnalyzeLevels(cmd.Context(), args[0], a.cfg.BinMinutes)
			if err != nil {
				a.log.Error().Err(err).Str("log_path", args[0]).Msg("Level analysis failed")
				return err
			}

			a.log.Info().
				Str("log_path", rep.LogPath).
				Int("total_lines", rep.TotalLines).
				Int("levels", len(rep.LevelCounts)).
				Int("bins", len(rep.TimeBins)).
				Dur("elapsed", time.Since(start)).
				Msg("Level analysis complete")
			a.warnLineCap(rep.LogPath, rep.TotalLines)

			return a.renderer.RenderLevels(rep)
		},
	}
	addBinFlag(cmd)
	return cmd
}

func (a *app) clustersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clusters <file>",
		Short: "Group error-ish lines into similarity clusters",
		Long: `Select error-ish lines, mask their variable fields and group them greedily
by similarity. Clusters are reported largest first.

Examples:
  logtriage clusters /var/log/app.log
  logtriage clusters /var/log/app.log --threshold 0.9 --top-k 5 --examples 1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			rep, err := a.engine.ClusterErrors(cmd.Context(), args[0], a.cfg.ClusterOptions())
			if err != nil {
				a.log.Error().Err(err).Str("log_path", args[0]).Msg("Error clustering failed")
				return err
			}

			a.log.Info().
				Str("log_path", rep.LogPath).
				Int("errorish", rep.ExtractedErrorish).
				Int("clusters", len(rep.Clusters)).
				Float64("threshold", rep.Threshold).
				Dur("elapsed", time.Since(start)).
				Msg("Error clustering complete")

			return a.renderer.RenderClusters(rep)
		},
	}
	addClusterFlags(cmd)
	return cmd
}
