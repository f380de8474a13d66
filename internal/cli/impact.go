package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/floedata/floe/internal/impact"
)

// NewImpactCommand creates the impact command.
func NewImpactCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "impact <object>",
		Short: "Show what breaks if an object changes",
		Long: `Compute the blast radius of an object: every transitive dependent with
its distance, severity, and dependency path, plus any circular
dependencies found in the graph.`,
		Example: `  # Who depends on RAW.PUBLIC.EVENTS?
  floe impact RAW.PUBLIC.EVENTS

  # Markdown report for a change review
  floe impact RAW.PUBLIC.EVENTS --format markdown

  # Standalone HTML page
  floe impact RAW.PUBLIC.EVENTS --format html > impact.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd.Context())
			result, _, err := buildFromCatalog(cmd)
			if err != nil {
				return err
			}

			analyzer := impact.NewAnalyzer(result.Graph, app.logger)
			report, err := analyzer.Analyze(args[0])
			if err != nil {
				return err
			}
			return renderImpact(cmd, report, format)
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "Report format (table|json|markdown|html)")
	return cmd
}

func renderImpact(cmd *cobra.Command, report *impact.Report, format string) error {
	out := cmd.OutOrStdout()
	if format == "" {
		format = "table"
		if jsonOutput(cmd) {
			format = "json"
		}
	}

	switch format {
	case "json":
		return impact.RenderJSON(out, report)
	case "markdown":
		return impact.RenderMarkdown(out, report)
	case "html":
		return impact.RenderHTML(out, report)
	case "table":
	default:
		return fmt.Errorf("unknown report format %q", format)
	}

	fmt.Fprintf(out, "%d impacted objects, max distance %d, average distance %.2f\n\n",
		len(report.Impacted), report.MaxDistance, report.AvgDistance)

	t := newTable(out)
	t.AppendHeader(tableRow("Object", "Kind", "Distance", "Severity", "Path"))
	for _, n := range report.Impacted {
		t.AppendRow(tableRow(n.Key, n.Kind, n.Distance, n.Severity, strings.Join(n.Path, " -> ")))
	}
	t.Render()

	if len(report.Cycles) > 0 {
		fmt.Fprintf(out, "\nCircular dependencies:\n")
		for _, cycle := range report.Cycles {
			fmt.Fprintf(out, "  %s -> %s\n", strings.Join(cycle, " -> "), cycle[0])
		}
	}
	return nil
}
