// Package sqlparse wraps the SQL dialect parser behind the small
// capability the lineage engine needs: parse a definition into a
// statement tree, enumerate the objects a statement reads and writes,
// and strip object-creation boilerplate down to the query body.
//
// Parse results are memoized in an LRU cache owned by the Parser
// instance, so cache lifetime follows the builder/extractor that holds
// it instead of living in package-level state.
package sqlparse

import (
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// DefaultCacheSize bounds the parse memoization cache when the caller
// does not configure one.
const DefaultCacheSize = 256

// ErrEmptySQL is returned when the input contains no statement.
var ErrEmptySQL = errors.New("empty SQL text")

// Parser parses SQL text with per-instance memoization.
type Parser struct {
	cache *lru.Cache[string, *pg_query.ParseResult]
}

// NewParser creates a parser with the given cache capacity; zero or
// negative capacities fall back to DefaultCacheSize.
func NewParser(cacheSize int) *Parser {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	// lru.New only fails for a non-positive size, which is guarded above.
	cache, _ := lru.New[string, *pg_query.ParseResult](cacheSize)
	return &Parser{cache: cache}
}

// Parse returns the statement tree for sql. Successful results are
// cached by exact text; failures are not.
func (p *Parser) Parse(sql string) (*pg_query.ParseResult, error) {
	if strings.TrimSpace(sql) == "" {
		return nil, ErrEmptySQL
	}
	if tree, ok := p.cache.Get(sql); ok {
		return tree, nil
	}
	tree, err := pg_query.Parse(sql)
	if err != nil {
		return nil, fmt.Errorf("parse SQL: %w", err)
	}
	p.cache.Add(sql, tree)
	return tree, nil
}

// First returns the first statement of sql plus the total statement
// count, so callers can record a multi-statement issue without failing.
func (p *Parser) First(sql string) (*pg_query.RawStmt, int, error) {
	tree, err := p.Parse(sql)
	if err != nil {
		return nil, 0, err
	}
	if len(tree.Stmts) == 0 {
		return nil, 0, ErrEmptySQL
	}
	return tree.Stmts[0], len(tree.Stmts), nil
}

// TableRef is one object reference found in a statement. Database and
// Schema are empty when the reference is unqualified.
type TableRef struct {
	Database string
	Schema   string
	Name     string
}

// StatementRefs classifies the object references of a single statement
// into reads (FROM/JOIN/USING sources) and writes (INSERT, UPDATE,
// DELETE, MERGE, CREATE ... AS targets).
type StatementRefs struct {
	Reads  []TableRef
	Writes []TableRef
}

// Refs walks one statement and collects its object references.
// References to CTE names declared in the statement are not reported.
func Refs(stmt *pg_query.RawStmt) StatementRefs {
	c := &refCollector{
		ctes: make(map[string]struct{}),
		seen: make(map[TableRef]struct{}),
	}
	if stmt != nil && stmt.Stmt != nil {
		c.walkStatement(stmt.Stmt)
	}
	return StatementRefs{Reads: c.reads, Writes: c.writes}
}

type refCollector struct {
	ctes   map[string]struct{}
	seen   map[TableRef]struct{}
	reads  []TableRef
	writes []TableRef
}

func (c *refCollector) walkStatement(node *pg_query.Node) {
	switch {
	case node.GetSelectStmt() != nil:
		c.walkSelect(node.GetSelectStmt())
	case node.GetInsertStmt() != nil:
		c.walkInsert(node.GetInsertStmt())
	case node.GetUpdateStmt() != nil:
		c.walkUpdate(node.GetUpdateStmt())
	case node.GetDeleteStmt() != nil:
		c.walkDelete(node.GetDeleteStmt())
	case node.GetMergeStmt() != nil:
		c.walkMerge(node.GetMergeStmt())
	case node.GetCreateTableAsStmt() != nil:
		c.walkCreateTableAs(node.GetCreateTableAsStmt())
	case node.GetViewStmt() != nil:
		c.walkView(node.GetViewStmt())
	}
}

func (c *refCollector) walkSelect(stmt *pg_query.SelectStmt) {
	if stmt == nil {
		return
	}
	c.registerCTEs(stmt.WithClause)

	// Set operations carry their branches in Larg/Rarg.
	if stmt.Larg != nil || stmt.Rarg != nil {
		c.walkSelect(stmt.Larg)
		c.walkSelect(stmt.Rarg)
		return
	}
	for _, from := range stmt.FromClause {
		c.walkFrom(from)
	}
}

func (c *refCollector) walkInsert(stmt *pg_query.InsertStmt) {
	c.registerCTEs(stmt.WithClause)
	c.addWrite(stmt.Relation)
	if stmt.SelectStmt != nil {
		c.walkStatement(stmt.SelectStmt)
	}
}

func (c *refCollector) walkUpdate(stmt *pg_query.UpdateStmt) {
	c.registerCTEs(stmt.WithClause)
	c.addWrite(stmt.Relation)
	for _, from := range stmt.FromClause {
		c.walkFrom(from)
	}
}

func (c *refCollector) walkDelete(stmt *pg_query.DeleteStmt) {
	c.registerCTEs(stmt.WithClause)
	c.addWrite(stmt.Relation)
	for _, using := range stmt.UsingClause {
		c.walkFrom(using)
	}
}

func (c *refCollector) walkMerge(stmt *pg_query.MergeStmt) {
	c.registerCTEs(stmt.WithClause)
	c.addWrite(stmt.Relation)
	if stmt.SourceRelation != nil {
		c.walkFrom(stmt.SourceRelation)
	}
}

func (c *refCollector) walkCreateTableAs(stmt *pg_query.CreateTableAsStmt) {
	if stmt.Into != nil {
		c.addWrite(stmt.Into.Rel)
	}
	if stmt.Query != nil {
		c.walkStatement(stmt.Query)
	}
}

func (c *refCollector) walkView(stmt *pg_query.ViewStmt) {
	c.addWrite(stmt.View)
	if stmt.Query != nil {
		c.walkStatement(stmt.Query)
	}
}

// walkFrom recurses through a FROM clause item: plain relations, joins,
// and subselects.
func (c *refCollector) walkFrom(node *pg_query.Node) {
	if node == nil {
		return
	}
	if rv := node.GetRangeVar(); rv != nil {
		c.addRead(rv)
		return
	}
	if join := node.GetJoinExpr(); join != nil {
		c.walkFrom(join.Larg)
		c.walkFrom(join.Rarg)
		return
	}
	if sub := node.GetRangeSubselect(); sub != nil && sub.Subquery != nil {
		c.walkStatement(sub.Subquery)
	}
}

func (c *refCollector) registerCTEs(with *pg_query.WithClause) {
	if with == nil {
		return
	}
	for _, item := range with.Ctes {
		cte := item.GetCommonTableExpr()
		if cte == nil {
			continue
		}
		c.ctes[strings.ToUpper(cte.Ctename)] = struct{}{}
		if cte.Ctequery != nil {
			c.walkStatement(cte.Ctequery)
		}
	}
}

func (c *refCollector) addRead(rv *pg_query.RangeVar) {
	ref, ok := c.refFor(rv)
	if !ok {
		return
	}
	if _, dup := c.seen[ref]; dup {
		return
	}
	c.seen[ref] = struct{}{}
	c.reads = append(c.reads, ref)
}

func (c *refCollector) addWrite(rv *pg_query.RangeVar) {
	ref, ok := c.refFor(rv)
	if !ok {
		return
	}
	c.writes = append(c.writes, ref)
}

func (c *refCollector) refFor(rv *pg_query.RangeVar) (TableRef, bool) {
	if rv == nil || rv.Relname == "" {
		return TableRef{}, false
	}
	// Unqualified names may refer to a CTE declared in this statement.
	if rv.Catalogname == "" && rv.Schemaname == "" {
		if _, ok := c.ctes[strings.ToUpper(rv.Relname)]; ok {
			return TableRef{}, false
		}
	}
	return TableRef{
		Database: rv.Catalogname,
		Schema:   rv.Schemaname,
		Name:     rv.Relname,
	}, true
}
