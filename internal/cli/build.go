package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/floedata/floe/internal/builder"
)

// NewBuildCommand creates the build command.
func NewBuildCommand() *cobra.Command {
	var audit bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the lineage graph from catalog exports",
		Long: `Parse every object definition in the catalog directory and build the
dependency graph, reporting how each object fared.`,
		Example: `  # Build and summarize
  floe build

  # Build with the per-object audit trail
  floe build --audit

  # Full audit as JSON
  floe build --audit -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, _, err := buildFromCatalog(cmd)
			if err != nil {
				return err
			}
			return renderBuild(cmd, result, audit)
		},
	}

	cmd.Flags().BoolVar(&audit, "audit", false, "Show the per-object audit trail")
	return cmd
}

func renderBuild(cmd *cobra.Command, result *builder.Result, audit bool) error {
	out := cmd.OutOrStdout()
	totals := builder.Summarize(result.Audit)

	if jsonOutput(cmd) {
		doc := map[string]any{
			"totals": totals,
			"nodes":  result.Graph.NodeCount(),
			"edges":  result.Graph.EdgeCount(),
		}
		if audit {
			doc["audit"] = result.Audit
		}
		return writeJSON(out, doc)
	}

	t := newTable(out)
	t.AppendHeader(tableRow("Objects", "Parsed", "Base", "Parse errors", "Unknown refs", "Nodes", "Edges"))
	t.AppendRow(tableRow(totals.Objects, totals.Parsed, totals.Base, totals.ParseErrors,
		totals.UnknownReferences, result.Graph.NodeCount(), result.Graph.EdgeCount()))
	t.Render()

	if !audit {
		return nil
	}

	fmt.Fprintln(out)
	at := newTable(out)
	at.AppendHeader(tableRow("Object", "Kind", "Status", "Up", "Down", "Produces", "Unknown refs"))
	for _, e := range result.Audit {
		at.AppendRow(tableRow(e.Key, e.ObjectKind, e.Status, e.Upstreams, e.Downstreams,
			e.Produces, len(e.UnknownRefs)))
	}
	at.Render()
	return nil
}
