// Package cli provides the floe command-line interface.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/floedata/floe/internal/config"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// appState carries the resolved configuration and logger to commands.
type appState struct {
	cfg    *config.Config
	logger *slog.Logger
}

type appKey struct{}

// NewRootCommand creates and returns the root command.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "floe",
		Short: "floe - warehouse lineage dependency graph engine",
		Long: `floe builds a dependency graph of data-warehouse objects by parsing
their SQL definitions, then answers questions over that graph: what
feeds what, what breaks if an object changes, which columns derive
from which sources, and how the graph evolved over time.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("determine working directory: %w", err)
			}
			if root := config.FindProjectRoot(cwd); root != "" {
				cwd = root
			}

			cfg, err := config.Load(cwd, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			level := slog.LevelWarn
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: level,
			}))

			ctx := context.WithValue(cmd.Context(), appKey{}, &appState{
				cfg:    cfg,
				logger: logger,
			})
			cmd.SetContext(ctx)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	rootCmd.PersistentFlags().String("catalog_dir", "", "Catalog export directory (comma-separate to merge several databases)")
	rootCmd.PersistentFlags().String("history_dir", "", "Directory of snapshot history")
	rootCmd.PersistentFlags().Int("retention", 0, "Maximum snapshots to keep (0 = unlimited)")
	rootCmd.PersistentFlags().Int("workers", 0, "Parallel parse workers (0 = GOMAXPROCS)")
	rootCmd.PersistentFlags().Int("cache_size", 0, "Parse cache capacity")
	rootCmd.PersistentFlags().String("default_database", "", "Database assumed for unqualified references")
	rootCmd.PersistentFlags().String("default_schema", "", "Schema assumed for unqualified references")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format (table|json)")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(NewBuildCommand())
	rootCmd.AddCommand(NewTraverseCommand())
	rootCmd.AddCommand(NewImpactCommand())
	rootCmd.AddCommand(NewColumnsCommand())
	rootCmd.AddCommand(NewSnapshotCommand())
	rootCmd.AddCommand(NewExportCommand())
	rootCmd.AddCommand(NewVersionCommand(Version))

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// fromContext retrieves the app state stored by the root command.
func fromContext(ctx context.Context) *appState {
	if s, ok := ctx.Value(appKey{}).(*appState); ok {
		return s
	}
	return &appState{
		cfg:    &config.Config{CatalogDir: "catalog", Output: "table"},
		logger: slog.New(slog.DiscardHandler),
	}
}
