// Package history captures lineage graph builds as immutable snapshots
// and answers how the graph evolved: list, load, diff, prune. Snapshot
// metadata lives in a SQLite index; each snapshot's serialized graph
// lives in its own JSON payload file next to it. A snapshot becomes
// visible only after its payload is fully on disk, so a failed capture
// never leaves a referencable half-snapshot.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/floedata/floe/internal/builder"
	"github.com/floedata/floe/internal/graph"
)

// ErrSnapshotNotFound is returned when no snapshot matches the
// requested id or tag.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// IndexFileName is the SQLite index file inside the history directory.
const IndexFileName = "history.db"

// Snapshot is the metadata of one captured graph. The graph itself
// stays in the payload file until loaded.
type Snapshot struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Tag         string    `json:"tag,omitempty"`
	Description string    `json:"description,omitempty"`
	NodeCount   int       `json:"node_count"`
	EdgeCount   int       `json:"edge_count"`
}

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	Tag   string
	Since time.Time
	Until time.Time
}

// payload is the on-disk snapshot body.
type payload struct {
	Snapshot Snapshot             `json:"snapshot"`
	Graph    json.RawMessage      `json:"graph"`
	Audit    []builder.AuditEntry `json:"audit,omitempty"`
}

// Options configures a Manager.
type Options struct {
	// Dir holds the index database and payload files. Created if absent.
	Dir string
	// Retention caps the number of stored snapshots; zero or negative
	// disables pruning.
	Retention int
	// Logger receives capture/prune diagnostics. Defaults to discard.
	Logger *slog.Logger
}

// Manager owns one history directory.
type Manager struct {
	dir       string
	retention int
	store     *store
	logger    *slog.Logger
}

// Open opens or creates a history directory.
func Open(opts Options) (*Manager, error) {
	if opts.Dir == "" {
		return nil, errors.New("history directory is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	st, err := openStore(filepath.Join(opts.Dir, IndexFileName))
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		dir:       opts.Dir,
		retention: opts.Retention,
		store:     st,
		logger:    logger,
	}, nil
}

// Close closes the snapshot index.
func (m *Manager) Close() error {
	return m.store.Close()
}

// Capture stores g as a new snapshot and returns its metadata. The
// payload is written to a temporary file and renamed into place before
// the index entry is added. Two captures of an unchanged graph still
// produce two distinct snapshots.
func (m *Manager) Capture(g *graph.Graph, audit []builder.AuditEntry, tag, description string) (*Snapshot, error) {
	graphDoc, err := g.Marshal()
	if err != nil {
		return nil, fmt.Errorf("serialize graph for snapshot: %w", err)
	}

	snap := Snapshot{
		ID:          uuid.New().String(),
		CreatedAt:   time.Now().UTC(),
		Tag:         tag,
		Description: description,
		NodeCount:   g.NodeCount(),
		EdgeCount:   g.EdgeCount(),
	}

	body, err := json.MarshalIndent(payload{
		Snapshot: snap,
		Graph:    graphDoc,
		Audit:    audit,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serialize snapshot payload: %w", err)
	}

	if err := m.writePayload(snap.ID, body); err != nil {
		return nil, err
	}
	if err := m.store.insert(snap); err != nil {
		// The unindexed payload is invisible; remove it.
		_ = os.Remove(m.payloadPath(snap.ID))
		return nil, err
	}

	m.logger.Info("snapshot captured",
		"id", snap.ID, "tag", tag, "nodes", snap.NodeCount, "edges", snap.EdgeCount)

	if m.retention > 0 {
		if _, err := m.Prune(); err != nil {
			m.logger.Warn("retention pruning failed", "error", err)
		}
	}
	return &snap, nil
}

// List returns snapshot metadata, newest first, without touching any
// payload file.
func (m *Manager) List(f ListFilter) ([]Snapshot, error) {
	return m.store.list(f)
}

// Load retrieves one snapshot's graph by id, or by tag when no id
// matches (the most recent snapshot wins a tag).
func (m *Manager) Load(idOrTag string) (*graph.Graph, *Snapshot, error) {
	snap, ok, err := m.store.byID(idOrTag)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		snap, ok, err = m.store.latestByTag(idOrTag)
		if err != nil {
			return nil, nil, err
		}
	}
	if !ok {
		return nil, nil, fmt.Errorf("load %q: %w", idOrTag, ErrSnapshotNotFound)
	}

	p, err := m.readPayload(snap.ID)
	if err != nil {
		return nil, nil, err
	}
	g, err := graph.Unmarshal(p.Graph)
	if err != nil {
		return nil, nil, fmt.Errorf("deserialize snapshot %s: %w", snap.ID, err)
	}
	return g, &snap, nil
}

// LoadAudit retrieves the audit trail stored with a snapshot.
func (m *Manager) LoadAudit(idOrTag string) ([]builder.AuditEntry, error) {
	_, snap, err := m.Load(idOrTag)
	if err != nil {
		return nil, err
	}
	p, err := m.readPayload(snap.ID)
	if err != nil {
		return nil, err
	}
	return p.Audit, nil
}

// Diff loads two snapshots and computes the structural diff from a to b.
func (m *Manager) Diff(a, b string) (*GraphDiff, error) {
	oldG, _, err := m.Load(a)
	if err != nil {
		return nil, err
	}
	newG, _, err := m.Load(b)
	if err != nil {
		return nil, err
	}
	return DiffGraphs(oldG, newG), nil
}

// Prune removes the oldest snapshots beyond the retention cap and
// returns how many were removed. Each snapshot's index row is deleted
// before its payload, so a partly pruned snapshot is never referencable.
func (m *Manager) Prune() (int, error) {
	if m.retention <= 0 {
		return 0, nil
	}
	stale, err := m.store.oldestBeyond(m.retention)
	if err != nil {
		return 0, err
	}
	pruned := 0
	for _, snap := range stale {
		if err := m.store.delete(snap.ID); err != nil {
			return pruned, err
		}
		if err := os.Remove(m.payloadPath(snap.ID)); err != nil && !os.IsNotExist(err) {
			// The index row is gone, so the payload is already
			// unreferencable; report and continue.
			m.logger.Warn("orphaned snapshot payload", "id", snap.ID, "error", err)
		}
		m.logger.Info("snapshot pruned", "id", snap.ID, "created_at", snap.CreatedAt)
		pruned++
	}
	return pruned, nil
}

func (m *Manager) payloadPath(id string) string {
	return filepath.Join(m.dir, id+".json")
}

// writePayload publishes a payload atomically: write to a temp file in
// the same directory, then rename.
func (m *Manager) writePayload(id string, body []byte) error {
	tmp, err := os.CreateTemp(m.dir, "."+id+".tmp-*")
	if err != nil {
		return fmt.Errorf("stage snapshot payload: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write snapshot payload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("flush snapshot payload: %w", err)
	}
	if err := os.Rename(tmpName, m.payloadPath(id)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("publish snapshot payload: %w", err)
	}
	return nil
}

func (m *Manager) readPayload(id string) (*payload, error) {
	body, err := os.ReadFile(m.payloadPath(id))
	if err != nil {
		return nil, fmt.Errorf("read snapshot payload %s: %w", id, err)
	}
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode snapshot payload %s: %w", id, err)
	}
	return &p, nil
}
