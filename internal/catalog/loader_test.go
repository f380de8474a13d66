package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floedata/floe/internal/testutil"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadMixedFormats(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tables.json", `[
		{"TABLE_CATALOG": "RAW", "TABLE_SCHEMA": "PUBLIC", "TABLE_NAME": "EVENTS"}
	]`)
	writeFile(t, dir, "views.jsonl", `
{"TABLE_CATALOG": "ANALYTICS", "TABLE_SCHEMA": "PUBLIC", "TABLE_NAME": "SUMMARY", "ddl": "CREATE VIEW SUMMARY AS SELECT 1"}
not json at all
{"TABLE_CATALOG": "ANALYTICS", "TABLE_SCHEMA": "PUBLIC", "TABLE_NAME": "DETAIL", "definition": "CREATE VIEW DETAIL AS SELECT 2"}
`)
	writeFile(t, dir, "tasks.jsonl",
		`{"database_name": "ETL", "schema_name": "PUBLIC", "name": "LOAD", "text": "INSERT INTO t SELECT 1"}`)

	records, err := NewLoader(dir, testutil.NewTestLogger(t)).Load()
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, "RAW.PUBLIC.EVENTS", records[0].Key())
	assert.Equal(t, KindTable, records[0].Kind)
	assert.Empty(t, records[0].DDL)

	// The malformed NDJSON line is skipped, not fatal.
	assert.Equal(t, "ANALYTICS.PUBLIC.SUMMARY", records[1].Key())
	assert.Equal(t, "CREATE VIEW SUMMARY AS SELECT 1", records[1].DDL)
	assert.Equal(t, "CREATE VIEW DETAIL AS SELECT 2", records[2].DDL)

	task := records[3]
	assert.Equal(t, KindTask, task.Kind)
	assert.True(t, task.Kind.IsTask())
	assert.Equal(t, "ETL.PUBLIC.LOAD", task.Key())
	assert.Equal(t, "INSERT INTO t SELECT 1", task.DDL)
}

func TestLoadKindOrderIsStable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tasks.jsonl", `{"database_name": "D", "schema_name": "S", "name": "T"}`)
	writeFile(t, dir, "tables.jsonl", `{"TABLE_CATALOG": "D", "TABLE_SCHEMA": "S", "TABLE_NAME": "A"}`)

	records, err := NewLoader(dir, nil).Load()
	require.NoError(t, err)
	require.Len(t, records, 2)
	// Tables load before tasks regardless of file creation order.
	assert.Equal(t, KindTable, records[0].Kind)
	assert.Equal(t, KindTask, records[1].Kind)
}

func TestLoadDirsMergesExports(t *testing.T) {
	salesDir := t.TempDir()
	writeFile(t, salesDir, "tables.jsonl",
		`{"TABLE_CATALOG": "SALES", "TABLE_SCHEMA": "PUBLIC", "TABLE_NAME": "ORDERS"}`)
	analyticsDir := t.TempDir()
	writeFile(t, analyticsDir, "views.jsonl",
		`{"TABLE_CATALOG": "ANALYTICS", "TABLE_SCHEMA": "PUBLIC", "TABLE_NAME": "REVENUE", "ddl": "CREATE VIEW REVENUE AS SELECT * FROM SALES.PUBLIC.ORDERS"}`)

	records, err := LoadDirs([]string{salesDir, analyticsDir}, testutil.NewTestLogger(t))
	require.NoError(t, err)
	require.Len(t, records, 2)
	// Directory order is preserved.
	assert.Equal(t, "SALES.PUBLIC.ORDERS", records[0].Key())
	assert.Equal(t, "ANALYTICS.PUBLIC.REVENUE", records[1].Key())

	_, err = LoadDirs([]string{salesDir, filepath.Join(t.TempDir(), "absent")}, nil)
	assert.Error(t, err)
}

func TestLoadMissingDirectory(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "absent"), nil).Load()
	assert.Error(t, err)
}

func TestLoadSkipsNamelessRecords(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "views.jsonl", `{"TABLE_CATALOG": "A", "TABLE_SCHEMA": "B"}`)
	records, err := NewLoader(dir, nil).Load()
	require.NoError(t, err)
	assert.Empty(t, records)
}
