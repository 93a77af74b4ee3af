package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/olegiv/logtriage-go/internal/analyzer"
	"github.com/olegiv/logtriage-go/internal/config"
	internalerrors "github.com/olegiv/logtriage-go/internal/errors"
	"github.com/olegiv/logtriage-go/internal/notification"
	"github.com/olegiv/logtriage-go/internal/report"
	"github.com/olegiv/logtriage-go/internal/storage"
)

// notifier delivers triage summaries outside the host.
type notifier interface {
	SendTriageReport(rep *analyzer.TriageReport) error
	GetBotInfo() map[string]interface{}
	Close() error
}

// newNotifier connects to Telegram. Tests replace it.
var newNotifier = func(cfg *config.Config) (notifier, error) {
	return notification.NewTelegramClient(
		cfg.TelegramBotToken,
		cfg.TelegramChannelID,
		cfg.TelegramAlertsChannelID,
		cfg.GetProxyURL(),
	)
}

// triageResult is the outcome for one input file.
type triageResult struct {
	path   string
	report *analyzer.TriageReport
	err    error
}

func (a *app) triageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "triage <path-or-glob>...",
		Short: "Run level analysis and error clustering on one or more files",
		Long: `Run both analyses on every matched file. Files are processed concurrently
and reported in the order given. Glob patterns support ** for recursive
matches; quote them so the shell does not expand them first.

Results can be archived to SQLite (--archive) and sent to Telegram (--notify).

Examples:
  logtriage triage /var/log/app.log
  logtriage triage "/var/log/**/*.log" --workers 8 -o json
  logtriage triage /var/log/app.log --archive --notify`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := expandPatterns(args)
			if err != nil {
				return err
			}
			return a.runTriage(cmd.Context(), paths)
		},
	}
	addBinFlag(cmd)
	addClusterFlags(cmd)
	cmd.Flags().Int("workers", 0, "files processed concurrently (default from WORKERS)")
	cmd.Flags().Bool("archive", false, "save results to the run archive (default from ENABLE_DATABASE)")
	cmd.Flags().Bool("notify", false, "send results to Telegram (default from ENABLE_TELEGRAM)")
	cmd.Flags().String("db", "", "run archive path (default from DATABASE_PATH)")
	return cmd
}

// runTriage analyzes paths, renders every result and delivers the
// successful ones. The first failure is returned after all files are done.
func (a *app) runTriage(ctx context.Context, paths []string) error {
	start := time.Now()
	a.log.Debug().Strs("files", paths).Int("workers", a.cfg.Workers).Msg("Triage queued")
	results := a.triageFiles(ctx, paths)

	var reports []*analyzer.TriageReport
	var failed []triageResult
	for _, res := range results {
		if res.err != nil {
			a.log.Error().Err(res.err).Str("log_path", res.path).Msg("Triage failed")
			_, _ = fmt.Fprintf(a.stderr, "%s: %v\n", res.path, res.err)
			failed = append(failed, res)
			continue
		}
		a.warnLineCap(res.path, res.report.Levels.TotalLines)
		reports = append(reports, res.report)
	}

	if err := a.renderReports(reports); err != nil {
		return err
	}

	a.log.Info().
		Int("files", len(paths)).
		Int("failed", len(failed)).
		Dur("elapsed", time.Since(start)).
		Msg("Triage complete")

	if err := a.deliver(ctx, reports); err != nil {
		return err
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d files failed: %w", len(failed), len(paths), failed[0].err)
	}
	return nil
}

// triageFiles runs the engine over paths with a bounded worker pool.
// Results keep the order of paths.
func (a *app) triageFiles(ctx context.Context, paths []string) []triageResult {
	results := make([]triageResult, len(paths))
	jobs := make(chan int)

	workers := a.cfg.Workers
	if workers > len(paths) {
		workers = len(paths)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for i := range jobs {
				a.log.Debug().Int("worker", workerID).Str("log_path", paths[i]).Msg("Triage started")
				rep, err := a.engine.Triage(ctx, paths[i], a.cfg.BinMinutes, a.cfg.ClusterOptions())
				results[i] = triageResult{path: paths[i], report: rep, err: err}
			}
		}(w)
	}

	for i := range paths {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

// renderReports prints one text report per file, or a single JSON/YAML
// document: an object for one file, a list for several.
func (a *app) renderReports(reports []*analyzer.TriageReport) error {
	if report.Format(a.cfg.OutputFormat) == report.FormatText {
		for i, rep := range reports {
			if i > 0 {
				if _, err := io.WriteString(a.stdout, "\n"+strings.Repeat("-", 60)+"\n\n"); err != nil {
					return err
				}
			}
			if err := a.renderer.RenderTriage(rep); err != nil {
				return err
			}
		}
		return nil
	}

	switch len(reports) {
	case 0:
		return nil
	case 1:
		return a.renderer.RenderTriage(reports[0])
	default:
		return a.renderer.RenderResult(reports)
	}
}

// deliver archives and sends reports as configured.
func (a *app) deliver(ctx context.Context, reports []*analyzer.TriageReport) error {
	if len(reports) == 0 {
		return nil
	}

	if a.cfg.EnableDatabase {
		if err := a.archive(ctx, reports); err != nil {
			return fmt.Errorf("failed to archive results: %w", err)
		}
	}

	if a.cfg.EnableTelegram {
		if err := a.notify(reports); err != nil {
			return fmt.Errorf("failed to send notification: %w", err)
		}
	}

	return nil
}

func (a *app) archive(ctx context.Context, reports []*analyzer.TriageReport) error {
	store, err := storage.New(a.cfg.DatabasePath, storage.WithLogger(a.log))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	for _, rep := range reports {
		run := storage.NewRun(rep)
		run.LogPath = absPath(run.LogPath)
		if err := store.SaveRun(ctx, run); err != nil {
			return err
		}
		a.log.Info().Str("run_id", run.ID).Str("log_path", run.LogPath).Msg("Run archived")
	}

	if a.cfg.HistoryRetentionDays > 0 {
		if _, err := store.CleanupOldRuns(ctx, a.cfg.HistoryRetentionDays); err != nil {
			a.log.Warn().Err(err).Msg("Failed to clean up old runs")
		}
	}

	return nil
}

func (a *app) notify(reports []*analyzer.TriageReport) error {
	client, err := newNotifier(a.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	a.log.Debug().
		Interface("bot", client.GetBotInfo()).
		Str("token", internalerrors.MaskCredential(a.cfg.TelegramBotToken)).
		Msg("Telegram client ready")

	for _, rep := range reports {
		if n := credentialClusters(rep); n > 0 {
			a.log.Warn().
				Str("log_path", rep.LogPath).
				Int("clusters", n).
				Msg("Clusters contain credentials, redacting before sending")
		}
		if err := client.SendTriageReport(rep); err != nil {
			return err
		}
		a.log.Info().
			Str("log_path", rep.LogPath).
			Bool("alert", notification.ShouldAlert(rep)).
			Msg("Report sent to Telegram")
	}
	return nil
}

// credentialClusters counts clusters whose template or examples look like
// they carry credentials.
func credentialClusters(rep *analyzer.TriageReport) int {
	if rep.Clusters == nil {
		return 0
	}
	n := 0
	for _, c := range rep.Clusters.Clusters {
		if internalerrors.ContainsCredentials(c.Rep) || internalerrors.ContainsCredentials(strings.Join(c.Examples, "\n")) {
			n++
		}
	}
	return n
}

// absPath makes archived paths comparable regardless of the working
// directory they were given from.
func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// expandPatterns resolves glob patterns to files, keeping argument order and
// dropping duplicates. Plain paths are passed through unchanged so a missing
// file is reported by the engine.
func expandPatterns(args []string) ([]string, error) {
	var paths []string
	seen := make(map[string]bool)

	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}

	for _, arg := range args {
		if !hasGlobMeta(arg) {
			add(arg)
			continue
		}

		if !doublestar.ValidatePathPattern(arg) {
			return nil, fmt.Errorf("invalid glob pattern %q", arg)
		}
		matches, err := doublestar.FilepathGlob(arg, doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())
		if err != nil {
			return nil, fmt.Errorf("failed to expand pattern %q: %w", arg, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("%w: no files match %q", analyzer.ErrLogNotFound, arg)
		}
		for _, m := range matches {
			add(m)
		}
	}

	return paths, nil
}

func hasGlobMeta(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}
