package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/floedata/floe/internal/history"
)

// NewSnapshotCommand creates the snapshot command group.
func NewSnapshotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture and inspect lineage graph snapshots",
		Long: `Snapshots are immutable, timestamped copies of a built graph. Capture
one per deploy or schema migration, then diff any two to see how the
dependency structure moved.`,
	}
	cmd.AddCommand(newSnapshotCaptureCommand())
	cmd.AddCommand(newSnapshotListCommand())
	cmd.AddCommand(newSnapshotShowCommand())
	cmd.AddCommand(newSnapshotDiffCommand())
	return cmd
}

func newSnapshotCaptureCommand() *cobra.Command {
	var tag, description string

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Build the graph and store it as a new snapshot",
		Example: `  floe snapshot capture --tag pre-migration
  floe snapshot capture --tag release-42 --description "before warehouse upgrade"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, _, err := buildFromCatalog(cmd)
			if err != nil {
				return err
			}

			mgr, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = mgr.Close() }()

			snap, err := mgr.Capture(result.Graph, result.Audit, tag, description)
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), snap)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "captured snapshot %s (%d nodes, %d edges)\n",
				snap.ID, snap.NodeCount, snap.EdgeCount)
			return nil
		},
	}

	cmd.Flags().StringVar(&tag, "tag", "", "Human label for the snapshot")
	cmd.Flags().StringVar(&description, "description", "", "Free-form description")
	return cmd
}

func newSnapshotListCommand() *cobra.Command {
	var (
		tag   string
		since string
		until string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := history.ListFilter{Tag: tag}
			var err error
			if filter.Since, err = parseTimeFlag(since); err != nil {
				return err
			}
			if filter.Until, err = parseTimeFlag(until); err != nil {
				return err
			}

			mgr, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = mgr.Close() }()

			snaps, err := mgr.List(filter)
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), snaps)
			}

			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(tableRow("ID", "Created", "Tag", "Nodes", "Edges", "Description"))
			for _, s := range snaps {
				t.AppendRow(tableRow(s.ID, s.CreatedAt.Format(time.RFC3339), s.Tag,
					s.NodeCount, s.EdgeCount, s.Description))
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&tag, "tag", "", "Only snapshots with this tag")
	cmd.Flags().StringVar(&since, "since", "", "Only snapshots at or after this time (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&until, "until", "", "Only snapshots at or before this time (RFC3339 or YYYY-MM-DD)")
	return cmd
}

func newSnapshotShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id-or-tag>",
		Short: "Show one snapshot's graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = mgr.Close() }()

			g, snap, err := mgr.Load(args[0])
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				doc, err := g.Marshal()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(doc))
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "snapshot %s captured %s (tag %q)\n",
				snap.ID, snap.CreatedAt.Format(time.RFC3339), snap.Tag)
			return renderSubgraph(cmd, snap.ID, g)
		},
	}
}

func newSnapshotDiffCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <old> <new>",
		Short: "Show the structural difference between two snapshots",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = mgr.Close() }()

			diff, err := mgr.Diff(args[0], args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput(cmd) {
				return writeJSON(out, diff)
			}

			if diff.Empty() {
				fmt.Fprintln(out, "no structural changes")
				return nil
			}
			for _, key := range diff.AddedNodes {
				fmt.Fprintf(out, "+ node %s\n", key)
			}
			for _, key := range diff.RemovedNodes {
				fmt.Fprintf(out, "- node %s\n", key)
			}
			for _, change := range diff.ModifiedNodes {
				fmt.Fprintf(out, "~ node %s\n", change.Key)
				for field, c := range change.Changed {
					fmt.Fprintf(out, "    %s: %q -> %q\n", field, c.Old, c.New)
				}
			}
			for _, e := range diff.AddedEdges {
				fmt.Fprintf(out, "+ edge %s -[%s]-> %s\n", e.Source, e.Kind, e.Target)
			}
			for _, e := range diff.RemovedEdges {
				fmt.Fprintf(out, "- edge %s -[%s]-> %s\n", e.Source, e.Kind, e.Target)
			}
			return nil
		},
	}
}

func parseTimeFlag(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q (want RFC3339 or YYYY-MM-DD)", value)
}
