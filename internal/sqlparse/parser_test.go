package sqlparse

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func refsOf(t *testing.T, sql string) StatementRefs {
	t.Helper()
	p := NewParser(0)
	stmt, _, err := p.First(sql)
	require.NoError(t, err)
	return Refs(stmt)
}

func names(refs []TableRef) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		name := r.Name
		if r.Schema != "" {
			name = r.Schema + "." + name
		}
		if r.Database != "" {
			name = r.Database + "." + name
		}
		out = append(out, name)
	}
	return out
}

func TestRefsSelectJoin(t *testing.T) {
	refs := refsOf(t, `SELECT a.id FROM raw.public.events a JOIN proc.public.trades b ON a.id = b.id`)
	assert.Equal(t, []string{"raw.public.events", "proc.public.trades"}, names(refs.Reads))
	assert.Empty(t, refs.Writes)
}

func TestRefsDeduplicatesReads(t *testing.T) {
	refs := refsOf(t, `SELECT * FROM events e1 JOIN events e2 ON e1.id = e2.parent_id`)
	assert.Equal(t, []string{"events"}, names(refs.Reads))
}

func TestRefsExcludesCTEs(t *testing.T) {
	refs := refsOf(t, `WITH base AS (SELECT * FROM raw.events)
		SELECT * FROM base JOIN dims d ON base.id = d.id`)
	assert.Equal(t, []string{"raw.events", "dims"}, names(refs.Reads))
}

func TestRefsInsertSelect(t *testing.T) {
	refs := refsOf(t, `INSERT INTO proc.trades SELECT * FROM raw.events`)
	assert.Equal(t, []string{"proc.trades"}, names(refs.Writes))
	assert.Equal(t, []string{"raw.events"}, names(refs.Reads))
}

func TestRefsMerge(t *testing.T) {
	refs := refsOf(t, `MERGE INTO tgt USING src ON tgt.id = src.id
		WHEN MATCHED THEN UPDATE SET amount = src.amount`)
	assert.Equal(t, []string{"tgt"}, names(refs.Writes))
	assert.Equal(t, []string{"src"}, names(refs.Reads))
}

func TestRefsUnionBranches(t *testing.T) {
	refs := refsOf(t, `SELECT id FROM a UNION ALL SELECT id FROM b`)
	assert.Equal(t, []string{"a", "b"}, names(refs.Reads))
}

func TestRefsCreateTableAs(t *testing.T) {
	refs := refsOf(t, `CREATE TABLE proc.summary AS SELECT * FROM raw.events`)
	assert.Equal(t, []string{"proc.summary"}, names(refs.Writes))
	assert.Equal(t, []string{"raw.events"}, names(refs.Reads))
}

func TestParseEmpty(t *testing.T) {
	p := NewParser(0)
	_, err := p.Parse("   ")
	assert.ErrorIs(t, err, ErrEmptySQL)
}

func TestParseCachesResults(t *testing.T) {
	p := NewParser(4)
	first, err := p.Parse("SELECT 1")
	require.NoError(t, err)
	second, err := p.Parse("SELECT 1")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestFirstReportsStatementCount(t *testing.T) {
	p := NewParser(0)
	stmt, count, err := p.First("SELECT 1; SELECT 2")
	require.NoError(t, err)
	assert.NotNil(t, stmt)
	assert.Equal(t, 2, count)
}

func TestParseFailure(t *testing.T) {
	p := NewParser(0)
	_, err := p.Parse("SELEKT oops")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrEmptySQL))
}

func TestExtractQuery(t *testing.T) {
	tests := []struct {
		name string
		ddl  string
		want string
		ok   bool
	}{
		{
			name: "dynamic table boilerplate",
			ddl:  "CREATE OR REPLACE DYNAMIC TABLE p.t LAG = '1 hour' WAREHOUSE = wh AS SELECT x FROM y",
			want: "SELECT x FROM y",
			ok:   true,
		},
		{
			name: "bare select passes through",
			ddl:  "SELECT 1",
			want: "SELECT 1",
			ok:   true,
		},
		{
			name: "with-query body",
			ddl:  "CREATE VIEW v AS WITH c AS (SELECT 1) SELECT * FROM c",
			want: "WITH c AS (SELECT 1) SELECT * FROM c",
			ok:   true,
		},
		{
			name: "parenthesized body",
			ddl:  "CREATE TABLE t AS ( SELECT a FROM b );",
			want: "SELECT a FROM b",
			ok:   true,
		},
		{
			name: "plain create table",
			ddl:  "CREATE TABLE t (id INT)",
			ok:   false,
		},
		{
			name: "empty",
			ddl:  "  ",
			ok:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractQuery(tt.ddl)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
