package builder

import (
	"github.com/floedata/floe/internal/catalog"
)

// Status records how a catalog object fared during a build.
type Status string

const (
	// StatusBase marks an object with no SQL definition to parse.
	StatusBase Status = "base"
	// StatusParsed marks an object whose definition was analyzed.
	StatusParsed Status = "parsed"
	// StatusParseError marks an object whose definition failed to parse.
	// The failure is recorded and the build continues.
	StatusParseError Status = "parse_error"
)

// AuditEntry is the per-object account of a build: what was parsed, how
// many edges were discovered, and which references could not be
// resolved against the catalog.
type AuditEntry struct {
	Key         string             `json:"key"`
	ObjectKind  catalog.ObjectKind `json:"object_kind"`
	Status      Status             `json:"status"`
	Upstreams   int                `json:"upstreams"`
	Downstreams int                `json:"downstreams"`
	Produces    int                `json:"produces"`
	UnknownRefs []string           `json:"unknown_refs,omitempty"`
	Issues      []string           `json:"issues,omitempty"`
	Err         string             `json:"error,omitempty"`
}

// Totals aggregates an audit list. Nothing here is tracked separately
// during the build; everything derives from the entries.
type Totals struct {
	Objects           int `json:"objects"`
	Parsed            int `json:"parsed"`
	Base              int `json:"base"`
	ParseErrors       int `json:"parse_errors"`
	UnknownReferences int `json:"unknown_references"`
}

// Summarize folds an audit list into totals.
func Summarize(entries []AuditEntry) Totals {
	t := Totals{Objects: len(entries)}
	for _, e := range entries {
		switch e.Status {
		case StatusParsed:
			t.Parsed++
		case StatusBase:
			t.Base++
		case StatusParseError:
			t.ParseErrors++
		}
		t.UnknownReferences += len(e.UnknownRefs)
	}
	return t
}
