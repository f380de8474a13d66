package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/floedata/floe/internal/catalog"
	"github.com/floedata/floe/internal/lineage"
	"github.com/floedata/floe/internal/sqlparse"
)

// NewColumnsCommand creates the columns command.
func NewColumnsCommand() *cobra.Command {
	var rawSQL string

	cmd := &cobra.Command{
		Use:   "columns [object]",
		Short: "Show column-level lineage for an object or statement",
		Long: `Extract which source columns each output column of an object derives
from, with the transformation kind and a confidence score. Pass an
object key to analyze its catalog definition, or --sql for an ad-hoc
statement.`,
		Example: `  # Column lineage of a view's definition
  floe columns ANALYTICS.PUBLIC.SUMMARY

  # Ad-hoc statement
  floe columns --sql 'SELECT a.id, SUM(a.amt) AS total FROM raw a GROUP BY a.id'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd.Context())
			extractor := lineage.NewExtractor(lineage.Options{
				DefaultDatabase: app.cfg.DefaultDatabase,
				DefaultSchema:   app.cfg.DefaultSchema,
				Parser:          sqlparse.NewParser(app.cfg.CacheSize),
			})

			var sql, target string
			switch {
			case rawSQL != "":
				sql = rawSQL
			case len(args) == 1:
				rec, err := findRecord(args[0], cmd)
				if err != nil {
					return err
				}
				if strings.TrimSpace(rec.DDL) == "" {
					return fmt.Errorf("%s has no SQL definition to analyze", args[0])
				}
				if body, ok := sqlparse.ExtractQuery(rec.DDL); ok {
					sql = body
				} else {
					sql = rec.DDL
				}
				target = rec.Key()
			default:
				return fmt.Errorf("an object key or --sql is required")
			}

			result := extractor.Extract(sql, target)
			return renderColumns(cmd, result)
		},
	}

	cmd.Flags().StringVar(&rawSQL, "sql", "", "Analyze this SQL statement instead of a catalog object")
	return cmd
}

func findRecord(key string, cmd *cobra.Command) (catalog.Record, error) {
	app := fromContext(cmd.Context())
	records, err := catalog.LoadDirs(catalogDirs(cmd), app.logger)
	if err != nil {
		return catalog.Record{}, err
	}
	for _, rec := range records {
		if strings.EqualFold(rec.Key(), key) {
			return rec, nil
		}
	}
	return catalog.Record{}, fmt.Errorf("object %s not found in catalog %s", key, app.cfg.CatalogDir)
}

func renderColumns(cmd *cobra.Command, result *lineage.Result) error {
	out := cmd.OutOrStdout()

	if jsonOutput(cmd) {
		doc := map[string]any{
			"transformations": columnDocs(result),
			"dependencies":    result.Dependencies,
			"issues":          result.Issues,
		}
		return writeJSON(out, doc)
	}

	t := newTable(out)
	t.AppendHeader(tableRow("Column", "Kind", "Function", "Confidence", "Sources"))
	for _, tr := range result.Transformations {
		sources := make([]string, 0, len(tr.Sources))
		for _, s := range tr.Sources {
			sources = append(sources, s.FQN())
		}
		t.AppendRow(tableRow(tr.Target.FQN(), tr.Kind, tr.FunctionName,
			fmt.Sprintf("%.1f", tr.Confidence), strings.Join(sources, ", ")))
	}
	t.Render()

	for _, issue := range result.Issues {
		fmt.Fprintf(out, "issue: %s\n", issue)
	}
	return nil
}

type columnDoc struct {
	Target       string   `json:"target_column"`
	Sources      []string `json:"source_columns"`
	Kind         string   `json:"transformation_kind"`
	FunctionName string   `json:"function_name,omitempty"`
	Confidence   float64  `json:"confidence"`
	Expression   string   `json:"expression,omitempty"`
}

func columnDocs(result *lineage.Result) []columnDoc {
	docs := make([]columnDoc, 0, len(result.Transformations))
	for _, tr := range result.Transformations {
		sources := make([]string, 0, len(tr.Sources))
		for _, s := range tr.Sources {
			sources = append(sources, s.FQN())
		}
		docs = append(docs, columnDoc{
			Target:       tr.Target.FQN(),
			Sources:      sources,
			Kind:         string(tr.Kind),
			FunctionName: tr.FunctionName,
			Confidence:   tr.Confidence,
			Expression:   tr.Expression,
		})
	}
	return docs
}
