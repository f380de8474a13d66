package lineage

import (
	"fmt"
	"strings"
)

// TransformationKind classifies how a target column derives from its
// sources.
type TransformationKind string

const (
	KindDirect    TransformationKind = "direct"
	KindAlias     TransformationKind = "alias"
	KindFunction  TransformationKind = "function"
	KindAggregate TransformationKind = "aggregate"
	KindCase      TransformationKind = "case"
	KindWindow    TransformationKind = "window"
	KindSubquery  TransformationKind = "subquery"
	KindLiteral   TransformationKind = "literal"
	KindUnknown   TransformationKind = "unknown"
)

// QualifiedColumn identifies a column. Database and Schema are empty for
// CTE-scoped columns and for references that could not be attributed to
// a table.
type QualifiedColumn struct {
	Database string
	Schema   string
	Table    string
	Column   string
}

// FQN renders the dotted fully qualified column name.
func (q QualifiedColumn) FQN() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{q.Database, q.Schema, q.Table, q.Column} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}

// MaxExpressionLen bounds the stored SQL text of a transformation.
const MaxExpressionLen = 500

// ColumnTransformation maps one output column to the source columns it
// derives from.
type ColumnTransformation struct {
	Target       QualifiedColumn
	Sources      []QualifiedColumn
	Kind         TransformationKind
	FunctionName string
	Confidence   float64
	Expression   string
}

// Result is the column lineage of one statement. It is best-effort:
// anything the extractor could not resolve is reported in Issues rather
// than failing the extraction.
type Result struct {
	Transformations []ColumnTransformation
	// Dependencies maps target column FQN to source column FQNs, kept in
	// first-seen order.
	Dependencies map[string][]string
	Issues       []string
}

func newResult() *Result {
	return &Result{Dependencies: make(map[string][]string)}
}

func (r *Result) add(t ColumnTransformation) {
	r.Transformations = append(r.Transformations, t)
	target := t.Target.FQN()
	seen := make(map[string]struct{}, len(r.Dependencies[target]))
	for _, s := range r.Dependencies[target] {
		seen[s] = struct{}{}
	}
	for _, src := range t.Sources {
		fqn := src.FQN()
		if _, ok := seen[fqn]; ok {
			continue
		}
		seen[fqn] = struct{}{}
		r.Dependencies[target] = append(r.Dependencies[target], fqn)
	}
}

func (r *Result) issuef(format string, args ...any) {
	r.Issues = append(r.Issues, fmt.Sprintf(format, args...))
}

// Upstream returns the source columns a target column derives from.
func (r *Result) Upstream(columnFQN string) []string {
	return r.Dependencies[columnFQN]
}

// Downstream returns the target columns derived from a source column.
func (r *Result) Downstream(columnFQN string) []string {
	var out []string
	for _, t := range r.Transformations {
		for _, s := range t.Sources {
			if s.FQN() == columnFQN {
				out = append(out, t.Target.FQN())
				break
			}
		}
	}
	return out
}
