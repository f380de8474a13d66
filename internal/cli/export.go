package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/floedata/floe/internal/graph"
)

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the lineage graph for other tools",
		Long: `Build the graph and write it in a machine-readable or diagram format.
JSON round-trips losslessly; DOT and Mermaid are one-way renderings
for humans.`,
		Example: `  floe export --format json > lineage.json
  floe export --format dot | dot -Tsvg > lineage.svg
  floe export --format mermaid`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, _, err := buildFromCatalog(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			switch format {
			case "json":
				doc, err := result.Graph.Marshal()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(doc))
				return err
			case "dot":
				_, err := fmt.Fprint(out, graph.ExportDOT(result.Graph))
				return err
			case "mermaid":
				_, err := fmt.Fprint(out, graph.ExportMermaid(result.Graph))
				return err
			default:
				return fmt.Errorf("unknown export format %q (want json, dot, or mermaid)", format)
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "Export format (json|dot|mermaid)")
	return cmd
}
