// Package catalog reads warehouse catalog exports from a directory and
// exposes them as a uniform, ordered list of object records. Each object
// kind lives in its own JSON or NDJSON file, using the column names the
// warehouse information schema exports.
package catalog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ObjectKind is the catalog-level classification of a record. The graph
// collapses every dataset kind into one node kind; the audit keeps the
// original.
type ObjectKind string

const (
	KindTable            ObjectKind = "table"
	KindView             ObjectKind = "view"
	KindDynamicTable     ObjectKind = "dynamic_table"
	KindMaterializedView ObjectKind = "materialized_view"
	KindTask             ObjectKind = "task"
)

// IsTask reports whether the kind is the task kind.
func (k ObjectKind) IsTask() bool { return k == KindTask }

// Record is one catalog object: identity, kind, and definition text.
// DDL is empty for base tables.
type Record struct {
	Database string
	Schema   string
	Name     string
	Kind     ObjectKind
	DDL      string
}

// Key returns the fully qualified DATABASE.SCHEMA.NAME identity.
func (r Record) Key() string {
	parts := make([]string, 0, 3)
	if r.Database != "" {
		parts = append(parts, r.Database)
	}
	if r.Schema != "" {
		parts = append(parts, r.Schema)
	}
	parts = append(parts, r.Name)
	return strings.Join(parts, ".")
}

// kindFiles maps each object kind to its export file base name, in the
// fixed order records are loaded, so builds are deterministic.
var kindFiles = []struct {
	kind ObjectKind
	base string
}{
	{KindTable, "tables"},
	{KindView, "views"},
	{KindDynamicTable, "dynamic_tables"},
	{KindMaterializedView, "materialized_views"},
	{KindTask, "tasks"},
}

// Loader reads catalog exports from one directory.
type Loader struct {
	dir    string
	logger *slog.Logger
}

// NewLoader creates a loader for dir. A nil logger discards.
func NewLoader(dir string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{dir: dir, logger: logger}
}

// Load reads every present export file. Missing files are skipped;
// malformed records are logged and skipped; I/O failures are returned.
func (l *Loader) Load() ([]Record, error) {
	info, err := os.Stat(l.dir)
	if err != nil {
		return nil, fmt.Errorf("catalog directory %s: %w", l.dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("catalog path %s is not a directory", l.dir)
	}

	var records []Record
	for _, kf := range kindFiles {
		path, ok := l.findFile(kf.base)
		if !ok {
			continue
		}
		recs, err := l.loadFile(path, kf.kind)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		records = append(records, recs...)
	}
	return records, nil
}

// LoadDirs reads several catalog export directories and concatenates
// their records in directory order. Each warehouse database is typically
// exported on its own, so a combined load is how cross-database lineage
// ends up in one graph: objects in one export may reference objects in
// another, and the builder resolves them against the merged namespace.
func LoadDirs(dirs []string, logger *slog.Logger) ([]Record, error) {
	var records []Record
	for _, dir := range dirs {
		recs, err := NewLoader(dir, logger).Load()
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}
	return records, nil
}

func (l *Loader) findFile(base string) (string, bool) {
	for _, ext := range []string{".jsonl", ".ndjson", ".json"} {
		path := filepath.Join(l.dir, base+ext)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

func (l *Loader) loadFile(path string, kind ObjectKind) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	if strings.HasSuffix(path, ".json") {
		var raws []rawRecord
		if err := json.NewDecoder(f).Decode(&raws); err != nil {
			return nil, fmt.Errorf("decode JSON array: %w", err)
		}
		return l.convert(raws, kind, path), nil
	}

	var raws []rawRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var raw rawRecord
		if err := json.Unmarshal([]byte(text), &raw); err != nil {
			l.logger.Warn("skipping malformed catalog record",
				"file", path, "line", line, "error", err)
			continue
		}
		raws = append(raws, raw)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return l.convert(raws, kind, path), nil
}

func (l *Loader) convert(raws []rawRecord, kind ObjectKind, path string) []Record {
	records := make([]Record, 0, len(raws))
	for _, raw := range raws {
		rec := raw.toRecord(kind)
		if rec.Name == "" {
			l.logger.Warn("skipping catalog record without a name", "file", path)
			continue
		}
		records = append(records, rec)
	}
	return records
}

// rawRecord tolerates both the information-schema spelling used for
// datasets and the SHOW-style spelling used for tasks.
type rawRecord struct {
	TableCatalog string `json:"TABLE_CATALOG"`
	TableSchema  string `json:"TABLE_SCHEMA"`
	TableName    string `json:"TABLE_NAME"`
	DatabaseName string `json:"database_name"`
	SchemaName   string `json:"schema_name"`
	Name         string `json:"name"`
	DDL          string `json:"ddl"`
	Text         string `json:"text"`
	Definition   string `json:"definition"`
}

func (r rawRecord) toRecord(kind ObjectKind) Record {
	return Record{
		Database: coalesce(r.TableCatalog, r.DatabaseName),
		Schema:   coalesce(r.TableSchema, r.SchemaName),
		Name:     coalesce(r.TableName, r.Name),
		Kind:     kind,
		DDL:      coalesce(r.DDL, r.Text, r.Definition),
	}
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
