package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/investigator/pkg/investigator/internalerr"
	"github.com/cognicore/investigator/pkg/investigator/network"
	"github.com/cognicore/investigator/pkg/investigator/store"
)

// timeLayout is fixed width so saved_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %w", path, internalerr.ErrStoreUnavailable, err)
	}
	// One connection serialises writers and keeps the pragmas below in
	// effect for every statement.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", internalerr.ErrStoreUnavailable, err)
	}

	// Enable foreign keys
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", internalerr.ErrStoreUnavailable, err)
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS networks (
	id TEXT PRIMARY KEY,
	name TEXT UNIQUE NOT NULL,
	saved_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS network_nodes (
	network_id TEXT NOT NULL REFERENCES networks(id) ON DELETE CASCADE,
	idx INTEGER NOT NULL,
	label TEXT NOT NULL DEFAULT '',
	kind TEXT NOT NULL,
	position BLOB,
	evidence TEXT NOT NULL DEFAULT 'none',
	prior REAL NOT NULL,
	auxiliary INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (network_id, idx)
);

CREATE TABLE IF NOT EXISTS network_edges (
	network_id TEXT NOT NULL REFERENCES networks(id) ON DELETE CASCADE,
	idx INTEGER NOT NULL,
	parent INTEGER NOT NULL,
	child INTEGER NOT NULL,
	weight REAL NOT NULL,
	PRIMARY KEY (network_id, idx)
);

CREATE TABLE IF NOT EXISTS network_evidence (
	network_id TEXT NOT NULL REFERENCES networks(id) ON DELETE CASCADE,
	pos INTEGER NOT NULL,
	node_idx INTEGER NOT NULL,
	PRIMARY KEY (network_id, pos)
);

CREATE INDEX IF NOT EXISTS idx_networks_saved_at ON networks(saved_at);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// SaveNetwork inserts or replaces a network, keyed by name.
func (s *sqliteStore) SaveNetwork(ctx context.Context, name string, rec network.Record) (store.Summary, error) {
	if name == "" {
		return store.Summary{}, fmt.Errorf("save network: empty name: %w", internalerr.ErrInvalidInput)
	}
	savedAt := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Summary{}, err
	}
	defer tx.Rollback()

	const stmt = `
INSERT INTO networks (id, name, saved_at)
VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
	saved_at=excluded.saved_at
RETURNING id;
`
	var id string
	if err := tx.QueryRowContext(ctx, stmt, store.NewID(), name, savedAt.Format(timeLayout)).Scan(&id); err != nil {
		return store.Summary{}, err
	}

	for _, table := range []string{"network_nodes", "network_edges", "network_evidence"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE network_id = ?", id); err != nil {
			return store.Summary{}, err
		}
	}
	if err := insertNodes(ctx, tx, id, rec.Nodes); err != nil {
		return store.Summary{}, err
	}
	if err := insertEdges(ctx, tx, id, rec.Edges); err != nil {
		return store.Summary{}, err
	}
	if err := insertEvidenceOrder(ctx, tx, id, rec.EvidenceOrder); err != nil {
		return store.Summary{}, err
	}

	if err := tx.Commit(); err != nil {
		return store.Summary{}, err
	}
	return store.Summarize(id, name, savedAt, rec), nil
}

func insertNodes(ctx context.Context, tx *sql.Tx, id string, nodes []network.NodeRecord) error {
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO network_nodes (network_id, idx, label, kind, position, evidence, prior, auxiliary)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, n := range nodes {
		if _, err := stmt.ExecContext(ctx, id, i, n.Label, n.Kind.String(), n.Position, n.Evidence.String(), n.Prior, n.Auxiliary); err != nil {
			return err
		}
	}
	return nil
}

func insertEdges(ctx context.Context, tx *sql.Tx, id string, edges []network.EdgeRecord) error {
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO network_edges (network_id, idx, parent, child, weight)
VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, e := range edges {
		if _, err := stmt.ExecContext(ctx, id, i, e.Parent, e.Child, e.Weight); err != nil {
			return err
		}
	}
	return nil
}

func insertEvidenceOrder(ctx context.Context, tx *sql.Tx, id string, order []int) error {
	for pos, idx := range order {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO network_evidence (network_id, pos, node_idx) VALUES (?, ?, ?)`, id, pos, idx); err != nil {
			return err
		}
	}
	return nil
}

// LoadNetwork fetches a network by ID or name.
func (s *sqliteStore) LoadNetwork(ctx context.Context, ref string) (store.SavedNetwork, error) {
	var (
		out     store.SavedNetwork
		savedAt string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, name, saved_at FROM networks WHERE id = ? OR name = ?
ORDER BY id = ? DESC LIMIT 1`, ref, ref, ref).Scan(&out.ID, &out.Name, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return out, fmt.Errorf("network %q: %w", ref, internalerr.ErrNotFound)
	}
	if err != nil {
		return out, err
	}
	if out.SavedAt, err = time.Parse(timeLayout, savedAt); err != nil {
		return out, fmt.Errorf("network %q: saved_at: %w", ref, err)
	}

	if out.Record.Nodes, err = s.loadNodes(ctx, out.ID); err != nil {
		return out, err
	}
	if out.Record.Edges, err = s.loadEdges(ctx, out.ID); err != nil {
		return out, err
	}
	if out.Record.EvidenceOrder, err = s.loadEvidenceOrder(ctx, out.ID); err != nil {
		return out, err
	}
	out.Summary = store.Summarize(out.ID, out.Name, out.SavedAt, out.Record)
	return out, nil
}

func (s *sqliteStore) loadNodes(ctx context.Context, id string) ([]network.NodeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT label, kind, position, evidence, prior, auxiliary
FROM network_nodes WHERE network_id = ? ORDER BY idx`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []network.NodeRecord
	for rows.Next() {
		var (
			n              network.NodeRecord
			kind, evidence string
		)
		if err := rows.Scan(&n.Label, &kind, &n.Position, &evidence, &n.Prior, &n.Auxiliary); err != nil {
			return nil, err
		}
		if n.Kind, err = network.ParseKind(kind); err != nil {
			return nil, err
		}
		if n.Evidence, err = network.ParseTruth(evidence); err != nil {
			return nil, err
		}
		if len(n.Position) == 0 {
			n.Position = nil
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func (s *sqliteStore) loadEdges(ctx context.Context, id string) ([]network.EdgeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT parent, child, weight FROM network_edges WHERE network_id = ? ORDER BY idx`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []network.EdgeRecord
	for rows.Next() {
		var e network.EdgeRecord
		if err := rows.Scan(&e.Parent, &e.Child, &e.Weight); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

func (s *sqliteStore) loadEvidenceOrder(ctx context.Context, id string) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT node_idx FROM network_evidence WHERE network_id = ? ORDER BY pos`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var order []int
	for rows.Next() {
		var idx int
		if err := rows.Scan(&idx); err != nil {
			return nil, err
		}
		order = append(order, idx)
	}
	return order, rows.Err()
}

// ListNetworks returns every saved network, most recent first.
func (s *sqliteStore) ListNetworks(ctx context.Context) ([]store.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT n.id, n.name, n.saved_at,
	(SELECT COUNT(*) FROM network_nodes WHERE network_id = n.id),
	(SELECT COUNT(*) FROM network_edges WHERE network_id = n.id),
	(SELECT COUNT(*) FROM network_nodes WHERE network_id = n.id AND evidence != 'none')
FROM networks n
ORDER BY n.saved_at DESC, n.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Summary
	for rows.Next() {
		var (
			sum     store.Summary
			savedAt string
		)
		if err := rows.Scan(&sum.ID, &sum.Name, &savedAt, &sum.Nodes, &sum.Edges, &sum.Evidence); err != nil {
			return nil, err
		}
		if sum.SavedAt, err = time.Parse(timeLayout, savedAt); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// DeleteNetwork removes a network by ID or name.
func (s *sqliteStore) DeleteNetwork(ctx context.Context, ref string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRowContext(ctx, `
SELECT id FROM networks WHERE id = ? OR name = ?
ORDER BY id = ? DESC LIMIT 1`, ref, ref, ref).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("network %q: %w", ref, internalerr.ErrNotFound)
	}
	if err != nil {
		return err
	}
	for _, table := range []string{"network_nodes", "network_edges", "network_evidence"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE network_id = ?", id); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM networks WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}
