package cli

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/floedata/floe/internal/builder"
	"github.com/floedata/floe/internal/catalog"
	"github.com/floedata/floe/internal/history"
	"github.com/floedata/floe/internal/sqlparse"
)

// buildFromCatalog loads the configured catalog directories and builds
// the lineage graph. Returned alongside is the catalog record list,
// which some commands need for DDL lookup.
func buildFromCatalog(cmd *cobra.Command) (*builder.Result, []catalog.Record, error) {
	app := fromContext(cmd.Context())

	records, err := catalog.LoadDirs(catalogDirs(cmd), app.logger)
	if err != nil {
		return nil, nil, err
	}

	b := builder.New(builder.Options{
		Parser:  sqlparse.NewParser(app.cfg.CacheSize),
		Logger:  app.logger,
		Workers: app.cfg.Workers,
	})
	result, err := b.Build(cmd.Context(), records)
	if err != nil {
		return nil, nil, err
	}
	return result, records, nil
}

// catalogDirs splits the configured catalog_dir on commas, so one build
// can merge several per-database exports into a single graph.
func catalogDirs(cmd *cobra.Command) []string {
	var dirs []string
	for _, d := range strings.Split(fromContext(cmd.Context()).cfg.CatalogDir, ",") {
		if d = strings.TrimSpace(d); d != "" {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

// openHistory opens the configured history directory.
func openHistory(cmd *cobra.Command) (*history.Manager, error) {
	app := fromContext(cmd.Context())
	return history.Open(history.Options{
		Dir:       app.cfg.HistoryDir,
		Retention: app.cfg.Retention,
		Logger:    app.logger,
	})
}

// jsonOutput reports whether the command should emit JSON.
func jsonOutput(cmd *cobra.Command) bool {
	return fromContext(cmd.Context()).cfg.Output == "json"
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func tableRow(values ...any) table.Row {
	return table.Row(values)
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}
