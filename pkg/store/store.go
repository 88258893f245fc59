// Package store persists scenario results in a single SQLite table, one JSON
// document per run plus a few indexed summary columns.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/kacperjurak/hyqcore/pkg/models"
)

var ErrNotFound = errors.New("store: run not found")

// Memory opens a database that lives as long as the Store.
const Memory = ":memory:"

// timeLayout is fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		path = "hyq.db"
	}
	if path != Memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// every pooled connection to :memory: would be a separate database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id         TEXT PRIMARY KEY,
		batch_id   TEXT NOT NULL DEFAULT '',
		name       TEXT NOT NULL DEFAULT '',
		status     TEXT NOT NULL,
		n_rows     INTEGER NOT NULL,
		n_cols     INTEGER NOT NULL,
		wells      INTEGER NOT NULL,
		timesteps  INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		payload    BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create runs table: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS runs_batch ON runs (batch_id, created_at)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create runs index: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Save inserts or replaces a run.
func (s *Store) Save(ctx context.Context, r *models.ScenarioResult) error {
	if r == nil || r.ID == "" {
		return errors.New("store: run without id")
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal run %s: %w", r.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO runs
		(id, batch_id, name, status, n_rows, n_cols, wells, timesteps, created_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.BatchID, r.Name, r.Status, r.Rows, r.Cols, r.Wells, len(r.Snapshots),
		r.CreatedAt.UTC().Format(timeLayout), payload)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.ScenarioResult, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM runs WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("select run %s: %w", id, err)
	}
	var r models.ScenarioResult
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	return &r, nil
}

// ListOptions filters List. A zero Limit means 100.
type ListOptions struct {
	BatchID string
	Limit   int
	Offset  int
}

// List returns run summaries, newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]models.RunSummary, error) {
	if opts.Limit <= 0 {
		opts.Limit = 100
	}
	q := `SELECT id, batch_id, name, status, n_rows, n_cols, wells, timesteps, created_at FROM runs`
	args := []interface{}{}
	if opts.BatchID != "" {
		q += ` WHERE batch_id = ?`
		args = append(args, opts.BatchID)
	}
	q += ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	args = append(args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []models.RunSummary{}
	for rows.Next() {
		var (
			r       models.RunSummary
			created string
		)
		if err := rows.Scan(&r.ID, &r.BatchID, &r.Name, &r.Status, &r.Rows, &r.Cols, &r.Wells, &r.Timesteps, &created); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("parse created_at of %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
