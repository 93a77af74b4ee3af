package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/olegiv/logtriage-go/internal/analyzer"
	"github.com/olegiv/logtriage-go/internal/report"
)

func (a *app) callCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "call <tool> [json-args]",
		Short: "Invoke an engine tool by name with JSON arguments",
		Long: `Dispatch a tool the same way a remote caller would: by name, with a JSON
object of arguments. Missing or null arguments take the tool defaults.
Pass "-" to read the arguments from stdin.

Tools:
  analyze_levels  {"log_path": "...", "bin_minutes": 5}
  cluster_errors  {"log_path": "...", "threshold": 0.82, "top_k": 10, "examples_each": 3}

Examples:
  logtriage call analyze_levels '{"log_path": "/var/log/app.log", "bin_minutes": 15}'
  echo '{"log_path": "/var/log/app.log"}' | logtriage call cluster_errors - -o json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := analyzer.NewToolRegistry(a.engine)
			if !registry.Has(args[0]) {
				return fmt.Errorf("%w: %q (available: %v)", analyzer.ErrUnknownTool, args[0], registry.List())
			}

			var payload []byte
			if len(args) == 2 {
				if args[1] == "-" {
					data, err := io.ReadAll(cmd.InOrStdin())
					if err != nil {
						return fmt.Errorf("failed to read arguments from stdin: %w", err)
					}
					payload = data
				} else {
					payload = []byte(args[1])
				}
			}

			result, err := registry.Dispatch(cmd.Context(), args[0], payload)
			if err != nil {
				a.log.Error().Err(err).Str("tool", args[0]).Msg("Tool call failed")
				return err
			}

			a.log.Info().Str("tool", args[0]).Msg("Tool call complete")
			return a.renderer.RenderResult(result)
		},
	}
}

func (a *app) toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools available to call",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry := analyzer.NewToolRegistry(a.engine)

			if report.Format(a.cfg.OutputFormat) != report.FormatText {
				tools := make([]map[string]string, 0, len(registry.List()))
				for _, name := range registry.List() {
					tools = append(tools, map[string]string{
						"name":        name,
						"description": registry.MustGet(name).Description,
					})
				}
				return a.renderer.RenderResult(tools)
			}

			tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			for _, name := range registry.List() {
				_, _ = fmt.Fprintf(tw, "%s\t%s\n", name, registry.MustGet(name).Description)
			}
			return tw.Flush()
		},
	}
}
