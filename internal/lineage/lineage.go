// Package lineage extracts column-level lineage from single SQL
// statements: which output columns a statement produces and which source
// columns each one derives from. Extraction is best-effort and never
// hard-fails; unresolved constructs are reported as issues on the
// result.
package lineage

import (
	"fmt"
	"regexp"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/floedata/floe/internal/sqlparse"
)

// DefaultTargetName labels the output of a bare SELECT when the caller
// gives no target table.
const DefaultTargetName = "QUERY_RESULT"

// aggregateFuncs are the function names classified as aggregates.
var aggregateFuncs = map[string]struct{}{
	"sum": {}, "count": {}, "avg": {}, "min": {}, "max": {},
	"stddev": {}, "stddev_pop": {}, "stddev_samp": {},
	"variance": {}, "var_pop": {}, "var_samp": {},
	"array_agg": {}, "string_agg": {}, "listagg": {},
	"bool_and": {}, "bool_or": {}, "median": {},
}

var fromKeywordRe = regexp.MustCompile(`(?i)\bfrom\b`)

// Options configures an Extractor.
type Options struct {
	// DefaultDatabase and DefaultSchema qualify table names the SQL text
	// leaves unqualified.
	DefaultDatabase string
	DefaultSchema   string
	// Parser is shared with the graph builder so both benefit from one
	// memoization cache. A fresh parser is created when nil.
	Parser *sqlparse.Parser
}

// Extractor derives column lineage from statements. It is safe for
// concurrent use; all per-statement state lives in the extraction.
type Extractor struct {
	defaultDatabase string
	defaultSchema   string
	parser          *sqlparse.Parser
}

// NewExtractor creates an Extractor.
func NewExtractor(opts Options) *Extractor {
	p := opts.Parser
	if p == nil {
		p = sqlparse.NewParser(0)
	}
	return &Extractor{
		defaultDatabase: opts.DefaultDatabase,
		defaultSchema:   opts.DefaultSchema,
		parser:          p,
	}
}

// Extract returns the column lineage of the first statement in sql.
// targetTable names the output of a bare SELECT; statements that write
// to a table carry their own target and ignore it.
func (e *Extractor) Extract(sql string, targetTable string) *Result {
	res := newResult()
	stmt, count, err := e.parser.First(sql)
	if err != nil {
		res.issuef("statement did not parse: %v", err)
		return res
	}
	if count > 1 {
		res.issuef("multi-statement input: column lineage covers the first of %d statements", count)
	}

	x := &extraction{
		extractor: e,
		sql:       sql,
		result:    res,
		ctes:      make(map[string]string),
	}
	x.statement(stmt.Stmt, targetTable)
	return res
}

// extraction is the per-statement working state.
type extraction struct {
	extractor *Extractor
	sql       string
	result    *Result
	// ctes maps upper-cased CTE name to its canonical spelling. Columns
	// referenced through a CTE resolve to the CTE itself; their own
	// upstream is not re-derived here.
	ctes map[string]string
}

// scope is the name resolution context of one SELECT level: the tables
// in its FROM clause and the aliases that reach them.
type scope struct {
	// aliases maps upper-cased alias or table name to the table it
	// stands for.
	aliases map[string]QualifiedColumn
	// tables lists FROM items in clause order, for attributing
	// unqualified columns when exactly one table is in scope.
	tables []QualifiedColumn
}

func (x *extraction) statement(node *pg_query.Node, targetTable string) {
	switch {
	case node == nil:
		x.result.issuef("empty statement")
	case node.GetCreateTableAsStmt() != nil:
		ct := node.GetCreateTableAsStmt()
		target := targetTable
		if ct.Into != nil && ct.Into.Rel != nil {
			target = tablePath(ct.Into.Rel)
		}
		x.query(ct.Query, target, nil)
	case node.GetViewStmt() != nil:
		vs := node.GetViewStmt()
		target := targetTable
		if vs.View != nil {
			target = tablePath(vs.View)
		}
		x.query(vs.Query, target, nil)
	case node.GetInsertStmt() != nil:
		x.insert(node.GetInsertStmt(), targetTable)
	case node.GetSelectStmt() != nil:
		if targetTable == "" {
			targetTable = DefaultTargetName
		}
		x.selectInto(node.GetSelectStmt(), targetTable, nil)
	case node.GetMergeStmt() != nil:
		x.merge(node.GetMergeStmt())
	case node.GetUpdateStmt() != nil:
		x.update(node.GetUpdateStmt())
	default:
		x.result.issuef("statement kind is not supported for column lineage")
	}
}

func (x *extraction) query(node *pg_query.Node, targetTable string, insertCols []string) {
	if node == nil {
		x.result.issuef("definition of %s has no query body", targetTable)
		return
	}
	if sel := node.GetSelectStmt(); sel != nil {
		x.selectInto(sel, targetTable, insertCols)
		return
	}
	x.result.issuef("query body of %s is not a SELECT", targetTable)
}

func (x *extraction) insert(ins *pg_query.InsertStmt, targetTable string) {
	x.registerCTEs(ins.WithClause)
	target := targetTable
	if ins.Relation != nil {
		target = tablePath(ins.Relation)
	}
	cols := make([]string, 0, len(ins.Cols))
	for _, c := range ins.Cols {
		if rt := c.GetResTarget(); rt != nil {
			cols = append(cols, rt.Name)
		}
	}
	if ins.SelectStmt == nil {
		x.result.issuef("INSERT into %s carries no source query", target)
		return
	}
	if sel := ins.SelectStmt.GetSelectStmt(); sel != nil {
		x.selectInto(sel, target, cols)
		return
	}
	x.result.issuef("INSERT into %s has an unsupported source", target)
}

func (x *extraction) selectInto(sel *pg_query.SelectStmt, targetTable string, insertCols []string) {
	x.registerCTEs(sel.WithClause)

	// Set operations: the first branch defines the output column list.
	if sel.Larg != nil || sel.Rarg != nil {
		x.result.issuef("set operation: column lineage derived from the first branch only")
		x.selectInto(sel.Larg, targetTable, insertCols)
		return
	}

	// VALUES lists appear as selects without a target list.
	if len(sel.ValuesLists) > 0 {
		x.valuesRows(sel, targetTable, insertCols)
		return
	}

	sc := x.buildScope(sel.FromClause)
	targetProto := x.qualifyTable(targetTable)

	for i, item := range sel.TargetList {
		rt := item.GetResTarget()
		if rt == nil {
			continue
		}
		if ref := refOf(rt.Val); ref != nil && hasStar(ref) {
			x.result.issuef("SELECT * in %s: star expansion is not resolved, column lineage is incomplete", targetTable)
			continue
		}
		name := x.targetName(rt, insertCols, i)
		end := x.itemEnd(sel.TargetList, i)
		x.emit(targetProto, name, rt.Name, rt.Val, sc, int(rt.Location), end)
	}
}

// valuesRows handles INSERT ... VALUES: the first row is paired with the
// insert column list.
func (x *extraction) valuesRows(sel *pg_query.SelectStmt, targetTable string, insertCols []string) {
	row := sel.ValuesLists[0].GetList()
	if row == nil {
		return
	}
	sc := &scope{aliases: make(map[string]QualifiedColumn)}
	targetProto := x.qualifyTable(targetTable)
	for i, val := range row.Items {
		name := fmt.Sprintf("column_%d", i+1)
		if i < len(insertCols) && insertCols[i] != "" {
			name = insertCols[i]
		}
		x.emit(targetProto, name, "", val, sc, -1, -1)
	}
}

func (x *extraction) merge(ms *pg_query.MergeStmt) {
	x.registerCTEs(ms.WithClause)
	if ms.Relation == nil {
		x.result.issuef("MERGE without a target relation")
		return
	}
	targetProto := x.qualifyTable(tablePath(ms.Relation))

	sc := x.buildScope([]*pg_query.Node{ms.SourceRelation})
	x.addRangeVar(sc, ms.Relation)

	for _, wcn := range ms.MergeWhenClauses {
		wc := wcn.GetMergeWhenClause()
		if wc == nil {
			continue
		}
		// UPDATE SET clauses carry name and value on each target; INSERT
		// clauses list the columns in TargetList and the values separately.
		for i, tn := range wc.TargetList {
			rt := tn.GetResTarget()
			if rt == nil || rt.Name == "" {
				continue
			}
			val := rt.Val
			if val == nil && i < len(wc.Values) {
				val = wc.Values[i]
			}
			if val == nil {
				continue
			}
			x.emit(targetProto, rt.Name, "", val, sc, -1, -1)
		}
	}
}

func (x *extraction) update(us *pg_query.UpdateStmt) {
	x.registerCTEs(us.WithClause)
	if us.Relation == nil {
		x.result.issuef("UPDATE without a target relation")
		return
	}
	targetProto := x.qualifyTable(tablePath(us.Relation))

	sc := x.buildScope(us.FromClause)
	x.addRangeVar(sc, us.Relation)

	for i, tn := range us.TargetList {
		rt := tn.GetResTarget()
		if rt == nil || rt.Name == "" || rt.Val == nil {
			continue
		}
		end := x.itemEnd(us.TargetList, i)
		x.emit(targetProto, rt.Name, "", rt.Val, sc, int(rt.Location), end)
	}
}

// emit classifies one target expression and records the transformation.
// aliasName is the explicit AS name when present; start/end bound the
// expression text within the statement, -1 when unknown.
func (x *extraction) emit(targetProto QualifiedColumn, name, aliasName string, val *pg_query.Node, sc *scope, start, end int) {
	if val == nil {
		return
	}
	kind, funcName, sources := x.classify(val, sc)
	if kind == KindDirect && aliasName != "" {
		kind = KindAlias
	}
	confidence := 0.5
	if len(sources) > 0 || kind == KindLiteral {
		confidence = 1.0
	}
	target := targetProto
	target.Column = name
	x.result.add(ColumnTransformation{
		Target:       target,
		Sources:      sources,
		Kind:         kind,
		FunctionName: funcName,
		Confidence:   confidence,
		Expression:   x.exprText(start, end),
	})
}

// classify maps one expression tree to a transformation kind, the
// function involved if any, and the source columns it reads.
func (x *extraction) classify(node *pg_query.Node, sc *scope) (TransformationKind, string, []QualifiedColumn) {
	switch {
	case node.GetColumnRef() != nil:
		ref := node.GetColumnRef()
		if hasStar(ref) {
			return KindUnknown, "", nil
		}
		col, ok := x.resolveColumn(ref, sc)
		if !ok {
			return KindUnknown, "", nil
		}
		return KindDirect, "", []QualifiedColumn{col}
	case node.GetAConst() != nil:
		return KindLiteral, "", nil
	case node.GetFuncCall() != nil:
		fc := node.GetFuncCall()
		name := callName(fc)
		return x.funcKind(fc.Over != nil, name), name, x.collect(node, sc)
	case node.GetCoalesceExpr() != nil:
		return KindFunction, "COALESCE", x.collect(node, sc)
	case node.GetMinMaxExpr() != nil:
		return KindFunction, "GREATEST", x.collect(node, sc)
	case node.GetCaseExpr() != nil:
		return KindCase, "", x.collect(node, sc)
	case node.GetSubLink() != nil:
		return KindSubquery, "", x.collect(node, sc)
	case node.GetTypeCast() != nil:
		tc := node.GetTypeCast()
		if tc.Arg == nil {
			return KindUnknown, "", nil
		}
		return x.classify(tc.Arg, sc)
	case node.GetAExpr() != nil, node.GetBoolExpr() != nil:
		// Arithmetic and boolean expressions take their kind from the
		// first function call inside, if any.
		sources := x.collect(node, sc)
		if fc := firstCall(node); fc != nil {
			name := callName(fc)
			return x.funcKind(fc.Over != nil, name), name, sources
		}
		return KindUnknown, "", sources
	default:
		return KindUnknown, "", x.collect(node, sc)
	}
}

func (x *extraction) funcKind(windowed bool, name string) TransformationKind {
	if windowed {
		return KindWindow
	}
	if _, ok := aggregateFuncs[strings.ToLower(name)]; ok {
		return KindAggregate
	}
	return KindFunction
}

// collect walks an expression tree and gathers every resolvable column
// reference, deduplicated in first-seen order.
func (x *extraction) collect(node *pg_query.Node, sc *scope) []QualifiedColumn {
	var out []QualifiedColumn
	seen := make(map[string]struct{})
	x.walkExpr(node, sc, func(col QualifiedColumn) {
		fqn := col.FQN()
		if _, dup := seen[fqn]; dup {
			return
		}
		seen[fqn] = struct{}{}
		out = append(out, col)
	})
	return out
}

func (x *extraction) walkExpr(node *pg_query.Node, sc *scope, visit func(QualifiedColumn)) {
	if node == nil {
		return
	}
	switch {
	case node.GetColumnRef() != nil:
		ref := node.GetColumnRef()
		if hasStar(ref) {
			return
		}
		if col, ok := x.resolveColumn(ref, sc); ok {
			visit(col)
		}
	case node.GetAExpr() != nil:
		ae := node.GetAExpr()
		x.walkExpr(ae.Lexpr, sc, visit)
		x.walkExpr(ae.Rexpr, sc, visit)
	case node.GetBoolExpr() != nil:
		for _, arg := range node.GetBoolExpr().Args {
			x.walkExpr(arg, sc, visit)
		}
	case node.GetFuncCall() != nil:
		fc := node.GetFuncCall()
		for _, arg := range fc.Args {
			x.walkExpr(arg, sc, visit)
		}
		x.walkExpr(fc.AggFilter, sc, visit)
		if fc.Over != nil {
			for _, p := range fc.Over.PartitionClause {
				x.walkExpr(p, sc, visit)
			}
			for _, o := range fc.Over.OrderClause {
				if sb := o.GetSortBy(); sb != nil {
					x.walkExpr(sb.Node, sc, visit)
				}
			}
		}
	case node.GetTypeCast() != nil:
		x.walkExpr(node.GetTypeCast().Arg, sc, visit)
	case node.GetCaseExpr() != nil:
		ce := node.GetCaseExpr()
		x.walkExpr(ce.Arg, sc, visit)
		for _, w := range ce.Args {
			if cw := w.GetCaseWhen(); cw != nil {
				x.walkExpr(cw.Expr, sc, visit)
				x.walkExpr(cw.Result, sc, visit)
			}
		}
		x.walkExpr(ce.Defresult, sc, visit)
	case node.GetCoalesceExpr() != nil:
		for _, arg := range node.GetCoalesceExpr().Args {
			x.walkExpr(arg, sc, visit)
		}
	case node.GetMinMaxExpr() != nil:
		for _, arg := range node.GetMinMaxExpr().Args {
			x.walkExpr(arg, sc, visit)
		}
	case node.GetNullTest() != nil:
		x.walkExpr(node.GetNullTest().Arg, sc, visit)
	case node.GetRowExpr() != nil:
		for _, arg := range node.GetRowExpr().Args {
			x.walkExpr(arg, sc, visit)
		}
	case node.GetList() != nil:
		for _, item := range node.GetList().Items {
			x.walkExpr(item, sc, visit)
		}
	case node.GetResTarget() != nil:
		x.walkExpr(node.GetResTarget().Val, sc, visit)
	case node.GetSubLink() != nil:
		x.subqueryColumns(node.GetSubLink(), visit)
	}
}

// subqueryColumns resolves a scalar subquery's output expressions in the
// subquery's own FROM scope.
func (x *extraction) subqueryColumns(sl *pg_query.SubLink, visit func(QualifiedColumn)) {
	if sl.Subselect == nil {
		return
	}
	sel := sl.Subselect.GetSelectStmt()
	if sel == nil {
		return
	}
	x.registerCTEs(sel.WithClause)
	inner := x.buildScope(sel.FromClause)
	for _, item := range sel.TargetList {
		if rt := item.GetResTarget(); rt != nil {
			x.walkExpr(rt.Val, inner, visit)
		}
	}
}

// firstCall finds the first function call in an expression tree, in
// argument order.
func firstCall(node *pg_query.Node) *pg_query.FuncCall {
	if node == nil {
		return nil
	}
	if fc := node.GetFuncCall(); fc != nil {
		return fc
	}
	var children []*pg_query.Node
	switch {
	case node.GetAExpr() != nil:
		children = []*pg_query.Node{node.GetAExpr().Lexpr, node.GetAExpr().Rexpr}
	case node.GetBoolExpr() != nil:
		children = node.GetBoolExpr().Args
	case node.GetTypeCast() != nil:
		children = []*pg_query.Node{node.GetTypeCast().Arg}
	case node.GetList() != nil:
		children = node.GetList().Items
	}
	for _, child := range children {
		if fc := firstCall(child); fc != nil {
			return fc
		}
	}
	return nil
}

func (x *extraction) registerCTEs(with *pg_query.WithClause) {
	if with == nil {
		return
	}
	for _, item := range with.Ctes {
		if cte := item.GetCommonTableExpr(); cte != nil && cte.Ctename != "" {
			x.ctes[strings.ToUpper(cte.Ctename)] = cte.Ctename
		}
	}
}

// buildScope flattens a FROM clause into the tables and aliases visible
// to the select list.
func (x *extraction) buildScope(from []*pg_query.Node) *scope {
	sc := &scope{aliases: make(map[string]QualifiedColumn)}
	var walk func(node *pg_query.Node)
	walk = func(node *pg_query.Node) {
		if node == nil {
			return
		}
		switch {
		case node.GetRangeVar() != nil:
			x.addRangeVar(sc, node.GetRangeVar())
		case node.GetJoinExpr() != nil:
			walk(node.GetJoinExpr().Larg)
			walk(node.GetJoinExpr().Rarg)
		case node.GetRangeSubselect() != nil:
			sub := node.GetRangeSubselect()
			if sub.Alias != nil && sub.Alias.Aliasname != "" {
				// Columns reached through a derived-table alias stay
				// attributed to the alias.
				proto := QualifiedColumn{Table: sub.Alias.Aliasname}
				sc.aliases[strings.ToUpper(sub.Alias.Aliasname)] = proto
				sc.tables = append(sc.tables, proto)
			}
		}
	}
	for _, node := range from {
		walk(node)
	}
	return sc
}

func (x *extraction) addRangeVar(sc *scope, rv *pg_query.RangeVar) {
	if rv == nil || rv.Relname == "" {
		return
	}
	var proto QualifiedColumn
	if canonical, ok := x.ctes[strings.ToUpper(rv.Relname)]; ok && rv.Catalogname == "" && rv.Schemaname == "" {
		proto = QualifiedColumn{Table: canonical}
	} else {
		proto = x.qualifyTable(tablePath(rv))
	}
	sc.aliases[strings.ToUpper(rv.Relname)] = proto
	if rv.Alias != nil && rv.Alias.Aliasname != "" {
		sc.aliases[strings.ToUpper(rv.Alias.Aliasname)] = proto
	}
	sc.tables = append(sc.tables, proto)
}

// resolveColumn attributes a column reference to a table in scope. A
// qualified reference follows its alias; an unqualified one is
// attributed only when exactly one table is in scope.
func (x *extraction) resolveColumn(ref *pg_query.ColumnRef, sc *scope) (QualifiedColumn, bool) {
	parts := fieldNames(ref)
	if len(parts) == 0 {
		return QualifiedColumn{}, false
	}
	column := parts[len(parts)-1]
	qualifier := parts[:len(parts)-1]

	if len(qualifier) == 0 {
		if len(sc.tables) == 1 {
			col := sc.tables[0]
			col.Column = column
			return col, true
		}
		return QualifiedColumn{Column: column}, true
	}

	if len(qualifier) == 1 {
		if proto, ok := sc.aliases[strings.ToUpper(qualifier[0])]; ok {
			proto.Column = column
			return proto, true
		}
		if canonical, ok := x.ctes[strings.ToUpper(qualifier[0])]; ok {
			return QualifiedColumn{Table: canonical, Column: column}, true
		}
	}

	proto := x.qualifyTable(strings.Join(qualifier, "."))
	proto.Column = column
	return proto, true
}

// qualifyTable fills missing database and schema qualifiers with the
// extractor defaults. CTE names never reach here.
func (x *extraction) qualifyTable(path string) QualifiedColumn {
	parts := strings.Split(path, ".")
	switch len(parts) {
	case 1:
		return QualifiedColumn{
			Database: x.extractor.defaultDatabase,
			Schema:   x.extractor.defaultSchema,
			Table:    parts[0],
		}
	case 2:
		return QualifiedColumn{
			Database: x.extractor.defaultDatabase,
			Schema:   parts[0],
			Table:    parts[1],
		}
	default:
		n := len(parts)
		return QualifiedColumn{
			Database: parts[n-3],
			Schema:   parts[n-2],
			Table:    parts[n-1],
		}
	}
}

func (x *extraction) targetName(rt *pg_query.ResTarget, insertCols []string, i int) string {
	if i < len(insertCols) && insertCols[i] != "" {
		return insertCols[i]
	}
	if rt.Name != "" {
		return rt.Name
	}
	if ref := refOf(rt.Val); ref != nil {
		parts := fieldNames(ref)
		if len(parts) > 0 {
			return parts[len(parts)-1]
		}
	}
	if rt.Val != nil {
		if fc := rt.Val.GetFuncCall(); fc != nil {
			if name := callName(fc); name != "" {
				return strings.ToLower(name)
			}
		}
	}
	return fmt.Sprintf("column_%d", i+1)
}

// itemEnd returns the exclusive end offset of target list item i: the
// start of the next item, or the FROM keyword that follows the list.
func (x *extraction) itemEnd(items []*pg_query.Node, i int) int {
	for _, next := range items[i+1:] {
		if rt := next.GetResTarget(); rt != nil && rt.Location >= 0 {
			return int(rt.Location)
		}
	}
	if rt := items[i].GetResTarget(); rt != nil && rt.Location >= 0 && int(rt.Location) < len(x.sql) {
		rest := x.sql[rt.Location:]
		if loc := fromKeywordRe.FindStringIndex(rest); loc != nil {
			return int(rt.Location) + loc[0]
		}
	}
	return len(x.sql)
}

func (x *extraction) exprText(start, end int) string {
	if start < 0 || start >= len(x.sql) {
		return ""
	}
	if end < start || end > len(x.sql) {
		end = len(x.sql)
	}
	text := strings.TrimSpace(x.sql[start:end])
	text = strings.TrimSpace(strings.TrimSuffix(text, ","))
	if len(text) > MaxExpressionLen {
		text = text[:MaxExpressionLen]
	}
	return text
}

func refOf(node *pg_query.Node) *pg_query.ColumnRef {
	if node == nil {
		return nil
	}
	return node.GetColumnRef()
}

func hasStar(ref *pg_query.ColumnRef) bool {
	for _, f := range ref.Fields {
		if f.GetAStar() != nil {
			return true
		}
	}
	return false
}

func fieldNames(ref *pg_query.ColumnRef) []string {
	names := make([]string, 0, len(ref.Fields))
	for _, f := range ref.Fields {
		if s := f.GetString_(); s != nil {
			names = append(names, s.Sval)
		}
	}
	return names
}

// callName returns the bare, upper-cased function name, skipping the
// pg_catalog qualifier the parser adds to builtins.
func callName(fc *pg_query.FuncCall) string {
	for i := len(fc.Funcname) - 1; i >= 0; i-- {
		if s := fc.Funcname[i].GetString_(); s != nil && s.Sval != "" && !strings.EqualFold(s.Sval, "pg_catalog") {
			return strings.ToUpper(s.Sval)
		}
	}
	return ""
}

func tablePath(rv *pg_query.RangeVar) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{rv.Catalogname, rv.Schemaname, rv.Relname} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}
