// Package cli implements the logtriage command line: it loads configuration,
// runs the triage engine on local files and renders, archives or delivers
// the results.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/olegiv/logtriage-go/internal/analyzer"
	"github.com/olegiv/logtriage-go/internal/config"
	internalerrors "github.com/olegiv/logtriage-go/internal/errors"
	"github.com/olegiv/logtriage-go/internal/logfile"
	"github.com/olegiv/logtriage-go/internal/logging"
	"github.com/olegiv/logtriage-go/internal/report"
)

// Process exit codes.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitNotFound = 2
)

// BuildInfo is stamped into the binary at link time.
type BuildInfo struct {
	Version   string
	BuildTime string
	GitCommit string
}

// newLogger builds the application logger. Tests replace it.
var newLogger = func(cfg *config.Config) *logging.SecureLogger {
	return logging.New(logging.Config{
		Level:  cfg.LogLevel,
		LogDir: cfg.LogDir,
	})
}

// app holds what every subcommand needs once configuration is loaded.
type app struct {
	info   BuildInfo
	stdout io.Writer
	stderr io.Writer

	cfg      *config.Config
	log      *logging.SecureLogger
	reader   *logfile.Reader
	engine   *analyzer.Engine
	renderer report.Renderer
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, info BuildInfo, args []string, stdout, stderr io.Writer) int {
	root, a := newRootCmd(info, stdout, stderr)
	root.SetArgs(args)
	defer a.close()

	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", internalerrors.SanitizeError(err))
		return exitCode(err)
	}
	return ExitOK
}

func exitCode(err error) int {
	if errors.Is(err, analyzer.ErrLogNotFound) {
		return ExitNotFound
	}
	return ExitFailure
}

func newRootCmd(info BuildInfo, stdout, stderr io.Writer) (*cobra.Command, *app) {
	a := &app{info: info, stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "logtriage",
		Short: "Triage local log files: level histogram and error clusters",
		Long: `logtriage reads unstructured server logs and reports how many lines carry
each severity level, how event volume is spread over time, and which error
messages repeat once variable fields (timestamps, numbers, ids, URLs, paths)
are masked out.

Settings come from the environment or a .env file; flags override them.`,
		Version:           fmt.Sprintf("%s (built %s, commit %s)", info.Version, info.BuildTime, info.GitCommit),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringP("output", "o", "", "output format: text, json, yaml (default from OUTPUT_FORMAT)")
	pf.String("log-level", "", "application log level: debug, info, warn, error")
	pf.Int("max-lines", 0, "stop reading a file after this many lines")

	root.AddCommand(
		a.levelsCmd(),
		a.clustersCmd(),
		a.triageCmd(),
		a.watchCmd(),
		a.callCmd(),
		a.toolsCmd(),
		a.historyCmd(),
	)

	return root, a
}

// setup loads configuration and builds the engine for the command about to run.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadWithCLI(cliOptions(cmd))
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = newLogger(cfg)

	a.renderer, err = report.New(report.Format(cfg.OutputFormat), a.stdout)
	if err != nil {
		return err
	}

	a.reader = logfile.NewReader(cfg.MaxLines, cfg.MaxLogSizeMB)
	a.engine = analyzer.NewEngine(a.reader)

	a.log.Debug().
		Str("command", cmd.Name()).
		Str("version", a.info.Version).
		Str("output", cfg.OutputFormat).
		Int("max_lines", a.reader.MaxLines()).
		Msg("logtriage starting")

	return nil
}

// warnLineCap reports a file whose line count reached the reader's cap.
func (a *app) warnLineCap(logPath string, totalLines int) {
	if totalLines >= a.reader.MaxLines() {
		a.log.Warn().
			Str("log_path", logPath).
			Int("max_lines", a.reader.MaxLines()).
			Msg("Line cap reached, later lines were ignored")
	}
}

func (a *app) close() {
	if a.log != nil {
		_ = a.log.Close()
	}
}

// cliOptions collects the flags the user actually set on cmd.
func cliOptions(cmd *cobra.Command) *config.CLIOptions {
	flags := cmd.Flags()

	stringFlag := func(name string) string {
		if !flags.Changed(name) {
			return ""
		}
		v, _ := flags.GetString(name)
		return v
	}
	intFlag := func(name string) *int {
		if !flags.Changed(name) {
			return nil
		}
		v, err := flags.GetInt(name)
		if err != nil {
			return nil
		}
		return &v
	}
	floatFlag := func(name string) *float64 {
		if !flags.Changed(name) {
			return nil
		}
		v, err := flags.GetFloat64(name)
		if err != nil {
			return nil
		}
		return &v
	}
	boolFlag := func(name string) *bool {
		if !flags.Changed(name) {
			return nil
		}
		v, err := flags.GetBool(name)
		if err != nil {
			return nil
		}
		return &v
	}

	return &config.CLIOptions{
		OutputFormat: stringFlag("output"),
		LogLevel:     stringFlag("log-level"),
		MaxLines:     intFlag("max-lines"),
		BinMinutes:   intFlag("bin-minutes"),
		Threshold:    floatFlag("threshold"),
		TopK:         intFlag("top-k"),
		Examples:     intFlag("examples"),
		Workers:      intFlag("workers"),
		Archive:      boolFlag("archive"),
		Notify:       boolFlag("notify"),
		DatabasePath: stringFlag("db"),
	}
}

func addBinFlag(cmd *cobra.Command) {
	cmd.Flags().Int("bin-minutes", 0, "time bin size in minutes (default from BIN_MINUTES)")
}

func addClusterFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("threshold", 0, "minimum similarity, 0 to 1, for a line to join a cluster (default from CLUSTER_THRESHOLD)")
	cmd.Flags().Int("top-k", 0, "number of clusters to report (default from CLUSTER_TOP_K)")
	cmd.Flags().Int("examples", 0, "raw example lines kept per cluster (default from CLUSTER_EXAMPLES)")
}
