package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/floedata/floe/internal/graph"
)

// NewTraverseCommand creates the traverse command.
func NewTraverseCommand() *cobra.Command {
	var (
		direction string
		depth     int
		edgeTypes []string
	)

	cmd := &cobra.Command{
		Use:   "traverse <object>",
		Short: "Show the subgraph reachable from an object",
		Long: `Walk the lineage graph from an object and print every node and edge
reached, filtered by direction, edge type, and depth.`,
		Example: `  # Everything ANALYTICS.PUBLIC.SUMMARY reads from, directly or not
  floe traverse ANALYTICS.PUBLIC.SUMMARY --direction downstream

  # Direct dependents only
  floe traverse RAW.PUBLIC.EVENTS --direction upstream --depth 1

  # Task edges only
  floe traverse ETL.PUBLIC.LOAD_TRADES::task --edge-types produces,consumes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := graph.ParseDirection(direction)
			if err != nil {
				return err
			}
			kinds, err := parseEdgeKinds(edgeTypes)
			if err != nil {
				return err
			}

			result, _, err := buildFromCatalog(cmd)
			if err != nil {
				return err
			}

			sub := graph.Traverse(result.Graph, args[0], graph.TraverseOptions{
				Direction: dir,
				Kinds:     kinds,
				MaxDepth:  graph.Depth(depth),
			})
			return renderSubgraph(cmd, args[0], sub)
		},
	}

	cmd.Flags().StringVarP(&direction, "direction", "d", string(graph.Downstream),
		"Traversal direction (downstream|upstream|both)")
	cmd.Flags().IntVar(&depth, "depth", graph.Unbounded, "Maximum hops from the start (-1 = unbounded)")
	cmd.Flags().StringSliceVar(&edgeTypes, "edge-types", nil,
		"Edge kinds to follow (derives_from,produces,consumes); all when empty")
	return cmd
}

func parseEdgeKinds(names []string) ([]graph.EdgeKind, error) {
	var kinds []graph.EdgeKind
	for _, name := range names {
		kind, err := graph.ParseEdgeKind(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func renderSubgraph(cmd *cobra.Command, start string, sub *graph.Graph) error {
	out := cmd.OutOrStdout()

	if jsonOutput(cmd) {
		doc, err := sub.Marshal()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(doc))
		return err
	}

	if sub.NodeCount() == 0 {
		fmt.Fprintf(out, "No objects reachable from %s (is the key correct?)\n", start)
		return nil
	}

	nt := newTable(out)
	nt.AppendHeader(tableRow("Object", "Kind"))
	for _, n := range sub.Nodes() {
		nt.AppendRow(tableRow(n.Key, n.Kind))
	}
	nt.Render()

	if sub.EdgeCount() > 0 {
		fmt.Fprintln(out)
		et := newTable(out)
		et.AppendHeader(tableRow("Source", "Target", "Kind"))
		for _, e := range sub.Edges() {
			et.AppendRow(tableRow(e.Source, e.Target, e.Kind))
		}
		et.Render()
	}
	return nil
}
