// Package builder transforms catalog records into a populated lineage
// graph plus a per-record audit trail. Records are analyzed in parallel,
// each producing a local batch of nodes and edges; batches are merged
// into the shared graph by a single writer in input order, so the same
// catalog always yields the same graph.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/floedata/floe/internal/catalog"
	"github.com/floedata/floe/internal/graph"
	"github.com/floedata/floe/internal/sqlparse"
)

// Result is one build: the graph and its audit trail.
type Result struct {
	Graph *graph.Graph
	Audit []AuditEntry
}

// Options configures a Builder.
type Options struct {
	// Parser parses object definitions. A fresh one with default cache
	// size is created when nil.
	Parser *sqlparse.Parser
	// Logger receives per-object diagnostics. Defaults to discard.
	Logger *slog.Logger
	// Workers bounds the parallel parse phase. Defaults to GOMAXPROCS.
	Workers int
}

// Builder builds lineage graphs from catalog records.
type Builder struct {
	parser  *sqlparse.Parser
	logger  *slog.Logger
	workers int
}

// New creates a Builder.
func New(opts Options) *Builder {
	b := &Builder{
		parser:  opts.Parser,
		logger:  opts.Logger,
		workers: opts.Workers,
	}
	if b.parser == nil {
		b.parser = sqlparse.NewParser(0)
	}
	if b.logger == nil {
		b.logger = slog.New(slog.DiscardHandler)
	}
	if b.workers <= 0 {
		b.workers = runtime.GOMAXPROCS(0)
	}
	return b
}

// batch is the per-record output of the parallel phase. Workers never
// touch the shared graph; the merge loop below is the single writer.
type batch struct {
	node  graph.Node
	edges []graph.Edge
	audit AuditEntry
}

// Build analyzes every record and returns the populated graph and audit
// list. Individual parse failures never abort the build; only context
// cancellation does.
func (b *Builder) Build(ctx context.Context, records []catalog.Record) (*Result, error) {
	ns := newNamespace(records)
	batches := make([]batch, len(records))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(b.workers)
	for i := range records {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			batches[i] = b.analyze(records[i], ns)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("build lineage: %w", err)
	}

	g := graph.New()
	audit := make([]AuditEntry, 0, len(records))
	for _, bt := range batches {
		g.AddNode(bt.node)
		for _, e := range bt.edges {
			g.AddEdge(e)
		}
		audit = append(audit, bt.audit)
	}
	// Downstream counts are only known once every record is merged.
	for i := range audit {
		audit[i].Downstreams = len(g.Incoming(audit[i].Key))
	}

	b.logger.Info("lineage build complete",
		"objects", len(records), "nodes", g.NodeCount(), "edges", g.EdgeCount())
	return &Result{Graph: g, Audit: audit}, nil
}

func (b *Builder) analyze(rec catalog.Record, ns *namespace) batch {
	key := rec.Key()
	kind := graph.NodeDataset
	if rec.Kind.IsTask() {
		key = graph.TaskKey(key)
		kind = graph.NodeTask
	}

	bt := batch{
		node: graph.Node{
			Key:  key,
			Kind: kind,
			Attributes: map[string]string{
				"name":        rec.Name,
				"object_kind": string(rec.Kind),
			},
		},
		audit: AuditEntry{Key: key, ObjectKind: rec.Kind},
	}

	if strings.TrimSpace(rec.DDL) == "" {
		bt.audit.Status = StatusBase
		return bt
	}

	body, ok := sqlparse.ExtractQuery(rec.DDL)
	if !ok {
		// No query boilerplate recognized; let the parser have the raw
		// DDL (plain CREATE VIEW parses fine).
		body = rec.DDL
	}

	stmt, count, err := b.parser.First(body)
	if err != nil {
		bt.audit.Status = StatusParseError
		bt.audit.Err = err.Error()
		b.logger.Warn("definition parse failed", "object", key, "error", err)
		return bt
	}
	if count > 1 {
		bt.audit.Issues = append(bt.audit.Issues,
			fmt.Sprintf("multi-statement definition: analyzed 1 of %d statements", count))
	}
	bt.audit.Status = StatusParsed

	refs := sqlparse.Refs(stmt)
	if rec.Kind.IsTask() {
		b.taskEdges(&bt, rec, refs, ns)
	} else {
		b.datasetEdges(&bt, rec, refs, ns)
	}
	return bt
}

// datasetEdges adds one derives_from edge per distinct resolvable read
// reference of a view or dynamic table.
func (b *Builder) datasetEdges(bt *batch, rec catalog.Record, refs sqlparse.StatementRefs, ns *namespace) {
	for _, ref := range refs.Reads {
		target, ok := b.resolve(bt, rec, ref, ns)
		if !ok || target == bt.node.Key {
			continue
		}
		bt.edges = append(bt.edges, graph.Edge{
			Source:   bt.node.Key,
			Target:   target,
			Kind:     graph.EdgeDerivesFrom,
			Evidence: map[string]string{"reference": refText(ref)},
		})
		bt.audit.Upstreams++
	}
}

// taskEdges classifies a task's references into consumed (read) and
// produced (written-to) datasets.
func (b *Builder) taskEdges(bt *batch, rec catalog.Record, refs sqlparse.StatementRefs, ns *namespace) {
	produced := make(map[string]struct{})
	for _, ref := range refs.Writes {
		target, ok := b.resolve(bt, rec, ref, ns)
		if !ok {
			continue
		}
		if _, dup := produced[target]; dup {
			continue
		}
		produced[target] = struct{}{}
		bt.edges = append(bt.edges, graph.Edge{
			Source:   bt.node.Key,
			Target:   target,
			Kind:     graph.EdgeProduces,
			Evidence: map[string]string{"reference": refText(ref)},
		})
		bt.audit.Produces++
	}
	for _, ref := range refs.Reads {
		target, ok := b.resolve(bt, rec, ref, ns)
		if !ok {
			continue
		}
		bt.edges = append(bt.edges, graph.Edge{
			Source:   bt.node.Key,
			Target:   target,
			Kind:     graph.EdgeConsumes,
			Evidence: map[string]string{"reference": refText(ref)},
		})
		bt.audit.Upstreams++
	}
}

// resolve maps a table reference to a catalog key, defaulting missing
// qualifiers to the referencing object's own database and schema. A
// reference that resolves to nothing in the catalog is tallied on the
// audit and logged, not guessed at.
func (b *Builder) resolve(bt *batch, rec catalog.Record, ref sqlparse.TableRef, ns *namespace) (string, bool) {
	db := ref.Database
	if db == "" {
		db = rec.Database
	}
	schema := ref.Schema
	if schema == "" {
		schema = rec.Schema
	}
	candidate := joinKey(db, schema, ref.Name)

	if resolved, ok := ns.lookup(candidate); ok {
		return resolved, true
	}
	bt.audit.UnknownRefs = append(bt.audit.UnknownRefs, candidate)
	b.logger.Warn("unresolved object reference",
		"object", bt.node.Key, "reference", refText(ref), "candidate", candidate)
	return "", false
}

// namespace indexes catalog keys case-insensitively for reference
// resolution while preserving the canonical spelling.
type namespace struct {
	byUpper map[string]string
}

func newNamespace(records []catalog.Record) *namespace {
	ns := &namespace{byUpper: make(map[string]string, len(records))}
	for _, rec := range records {
		if rec.Kind.IsTask() {
			// Tasks are never referenced by SQL text.
			continue
		}
		key := rec.Key()
		ns.byUpper[strings.ToUpper(key)] = key
	}
	return ns
}

func (n *namespace) lookup(candidate string) (string, bool) {
	key, ok := n.byUpper[strings.ToUpper(candidate)]
	return key, ok
}

func joinKey(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ".")
}

func refText(ref sqlparse.TableRef) string {
	return joinKey(ref.Database, ref.Schema, ref.Name)
}
