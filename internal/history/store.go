package history

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// store is the SQLite snapshot index. It is the single source of truth
// for which snapshots exist; payload files not referenced here are
// garbage.
type store struct {
	db *sql.DB
}

func openStore(path string) (*store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot index %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping snapshot index %s: %w", path, err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL; PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure snapshot index: %w", err)
	}

	s := &store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *store) migrate() error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("run snapshot index migrations: %w", err)
	}
	return nil
}

func (s *store) Close() error {
	return s.db.Close()
}

func (s *store) insert(snap Snapshot) error {
	_, err := s.db.Exec(
		`INSERT INTO snapshots (id, created_at, tag, description, node_count, edge_count)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.CreatedAt, snap.Tag, snap.Description, snap.NodeCount, snap.EdgeCount,
	)
	if err != nil {
		return fmt.Errorf("index snapshot %s: %w", snap.ID, err)
	}
	return nil
}

const snapshotColumns = `id, created_at, tag, description, node_count, edge_count`

func scanSnapshot(row interface{ Scan(...any) error }) (Snapshot, error) {
	var snap Snapshot
	err := row.Scan(&snap.ID, &snap.CreatedAt, &snap.Tag, &snap.Description,
		&snap.NodeCount, &snap.EdgeCount)
	return snap, err
}

func (s *store) byID(id string) (Snapshot, bool, error) {
	row := s.db.QueryRow(
		`SELECT `+snapshotColumns+` FROM snapshots WHERE id = ?`, id)
	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("read snapshot %s: %w", id, err)
	}
	return snap, true, nil
}

// latestByTag returns the most recent snapshot carrying tag.
func (s *store) latestByTag(tag string) (Snapshot, bool, error) {
	row := s.db.QueryRow(
		`SELECT `+snapshotColumns+` FROM snapshots WHERE tag = ?
		 ORDER BY created_at DESC, id DESC LIMIT 1`, tag)
	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("read snapshot tagged %q: %w", tag, err)
	}
	return snap, true, nil
}

func (s *store) list(f ListFilter) ([]Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM snapshots WHERE 1=1`
	var args []any
	if f.Tag != "" {
		query += ` AND tag = ?`
		args = append(args, f.Tag)
	}
	if !f.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, f.Since)
	}
	if !f.Until.IsZero() {
		query += ` AND created_at <= ?`
		args = append(args, f.Until)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snaps []Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return snaps, nil
}

// oldestBeyond returns the snapshots past the newest keep, oldest first.
func (s *store) oldestBeyond(keep int) ([]Snapshot, error) {
	rows, err := s.db.Query(
		`SELECT `+snapshotColumns+` FROM snapshots
		 ORDER BY created_at DESC, id DESC LIMIT -1 OFFSET ?`, keep)
	if err != nil {
		return nil, fmt.Errorf("find snapshots beyond retention: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snaps []Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find snapshots beyond retention: %w", err)
	}
	// Reverse so the oldest is pruned first.
	for i, j := 0, len(snaps)-1; i < j; i, j = i+1, j-1 {
		snaps[i], snaps[j] = snaps[j], snaps[i]
	}
	return snaps, nil
}

func (s *store) delete(id string) error {
	if _, err := s.db.Exec(`DELETE FROM snapshots WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete snapshot %s from index: %w", id, err)
	}
	return nil
}
