package cli

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/olegiv/logtriage-go/internal/report"
	"github.com/olegiv/logtriage-go/internal/storage"
)

func (a *app) historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived triage runs",
		Long: `List runs saved with "triage --archive", newest first.

Examples:
  logtriage history
  logtriage history --limit 50 --file /var/log/app.log -o json
  logtriage history --stats`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			limit, _ := flags.GetInt("limit")
			file, _ := flags.GetString("file")
			stats, _ := flags.GetBool("stats")

			if limit < 1 {
				return fmt.Errorf("--limit must be at least 1")
			}

			if _, err := os.Stat(a.cfg.DatabasePath); os.IsNotExist(err) {
				return fmt.Errorf("no run archive at %s (run triage with --archive first)", a.cfg.DatabasePath)
			}

			store, err := storage.New(a.cfg.DatabasePath, storage.WithLogger(a.log))
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if stats {
				totals, err := store.GetStatistics(cmd.Context())
				if err != nil {
					return err
				}
				return a.renderStatistics(totals)
			}

			if file != "" {
				file = absPath(file)
			}
			runs, err := store.RecentRuns(cmd.Context(), limit, file)
			if err != nil {
				return err
			}
			return a.renderRuns(runs)
		},
	}
	cmd.Flags().Int("limit", 20, "number of runs to show")
	cmd.Flags().String("file", "", "only show runs of this log file (relative paths resolve against the working directory)")
	cmd.Flags().Bool("stats", false, "show archive totals instead of runs")
	cmd.Flags().String("db", "", "run archive path (default from DATABASE_PATH)")
	return cmd
}

func (a *app) renderRuns(runs []*storage.Run) error {
	if report.Format(a.cfg.OutputFormat) != report.FormatText {
		return a.renderer.RenderResult(runs)
	}

	if len(runs) == 0 {
		_, err := fmt.Fprintln(a.stdout, "(No archived runs.)")
		return err
	}

	lr := lipgloss.NewRenderer(a.stdout)
	header := lr.NewStyle().Bold(true).Padding(0, 1)
	cell := lr.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lr.NewStyle().Faint(true)).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		}).
		Headers("CREATED", "FILE", "LINES", "ERROR-ISH", "CLUSTERS", "TOP CLUSTER")

	for _, run := range runs {
		top := ""
		if len(run.TopClusters) > 0 {
			top = fmt.Sprintf("%dx %s", run.TopClusters[0].Count, truncate(run.TopClusters[0].Rep, 60))
		}
		t.Row(
			run.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			run.LogPath,
			strconv.Itoa(run.TotalLines),
			strconv.Itoa(run.Errorish),
			strconv.Itoa(len(run.TopClusters)),
			top,
		)
	}

	_, err := fmt.Fprintln(a.stdout, t.String())
	return err
}

func (a *app) renderStatistics(totals map[string]interface{}) error {
	if report.Format(a.cfg.OutputFormat) != report.FormatText {
		return a.renderer.RenderResult(totals)
	}

	keys := make([]string, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if _, err := fmt.Fprintf(a.stdout, "%-16s %v\n", k+":", totals[k]); err != nil {
			return err
		}
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
