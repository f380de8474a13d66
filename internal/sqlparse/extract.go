package sqlparse

import (
	"regexp"
	"strings"
)

// Warehouse DDL wraps the interesting query in creation boilerplate the
// dialect parser does not understand (dynamic-table LAG/WAREHOUSE
// clauses, schedule options, and so on). ExtractQuery cuts the text down
// to the query body so only standard SQL reaches the parser.

var (
	// First AS followed by a SELECT or WITH opens the query body of a
	// CREATE ... AS definition.
	asQueryRe = regexp.MustCompile(`(?is)\bas\b\s*\(?\s*(select|with)\b`)
	// A body that already starts with DML needs no stripping.
	bareQueryRe = regexp.MustCompile(`(?is)^\s*(select|with|insert|update|delete|merge)\b`)
)

// ExtractQuery returns the query body of a DDL text: the text itself
// when it already starts with a query or DML statement, otherwise
// everything from the SELECT/WITH that follows the first top-level AS.
// ok is false when no query body could be located.
func ExtractQuery(ddl string) (string, bool) {
	trimmed := strings.TrimSpace(ddl)
	if trimmed == "" {
		return "", false
	}
	if bareQueryRe.MatchString(trimmed) {
		return trimmed, true
	}
	loc := asQueryRe.FindStringSubmatchIndex(trimmed)
	if loc == nil {
		return "", false
	}
	// Submatch 1 is the select/with keyword; slice from its start.
	body := strings.TrimSpace(trimmed[loc[2]:])
	body = strings.TrimSuffix(body, ";")
	// AS ( SELECT ... ) keeps its closing paren after slicing.
	if strings.Contains(trimmed[loc[0]:loc[2]], "(") {
		body = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(body), ")"))
	}
	return body, true
}
