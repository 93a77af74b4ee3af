package cli

import (
	"github.com/spf13/cobra"

	"github.com/olegiv/logtriage-go/internal/logfile"
)

func (a *app) watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Re-run triage whenever a log file changes",
		Long: `Run triage on the file, then again every time it is written or rotated.
Each run reads the whole file from scratch; nothing carries over between runs.
Stop with Ctrl+C.

Examples:
  logtriage watch /var/log/app.log
  logtriage watch /var/log/app.log --debounce 10s --archive`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]

			debounce, err := cmd.Flags().GetDuration("debounce")
			if err != nil {
				return err
			}

			if err := a.runTriage(ctx, []string{path}); err != nil {
				return err
			}

			a.log.Info().Str("log_path", path).Dur("debounce", debounce).Msg("Watching for changes")

			return logfile.Watch(ctx, path, debounce, func() {
				// A failed run is reported and the watch continues
				if err := a.runTriage(ctx, []string{path}); err != nil {
					a.log.Warn().Err(err).Str("log_path", path).Msg("Triage after change failed")
				}
			})
		},
	}
	addBinFlag(cmd)
	addClusterFlags(cmd)
	cmd.Flags().Duration("debounce", logfile.DefaultDebounce, "wait this long for writes to settle before re-running")
	cmd.Flags().Bool("archive", false, "save every run to the run archive (default from ENABLE_DATABASE)")
	cmd.Flags().Bool("notify", false, "send every run to Telegram (default from ENABLE_TELEGRAM)")
	cmd.Flags().String("db", "", "run archive path (default from DATABASE_PATH)")
	return cmd
}
