// Package store persists embedding sets in SQLite, one run per training job.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/cnclabs/openne/pkg/embedding"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	model      TEXT NOT NULL,
	dim        INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS vectors (
	run_id   TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	node     TEXT NOT NULL,
	position INTEGER NOT NULL,
	vec      BLOB NOT NULL,
	PRIMARY KEY (run_id, node)
);
`

// Run describes a stored embedding set.
type Run struct {
	ID        string
	Model     string
	Dim       int
	CreatedAt time.Time
}

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at dsn.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite %s", dsn)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "enable foreign keys")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate schema")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// SaveRun stores emb under id, replacing an earlier run with the same id.
func (s *Store) SaveRun(ctx context.Context, id, model string, emb *embedding.Set) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback()

	for _, q := range []string{"DELETE FROM vectors WHERE run_id = ?", "DELETE FROM runs WHERE id = ?"} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return errors.Wrapf(err, "replace run %s", id)
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO runs (id, model, dim, created_at) VALUES (?, ?, ?, ?)",
		id, model, emb.Dim(), time.Now().UnixNano(),
	); err != nil {
		return errors.Wrapf(err, "insert run %s", id)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO vectors (run_id, node, position, vec) VALUES (?, ?, ?, ?)")
	if err != nil {
		return errors.Wrap(err, "prepare vector insert")
	}
	defer stmt.Close()

	for pos, node := range emb.IDs() {
		vec, _ := emb.Get(node)
		if _, err := stmt.ExecContext(ctx, id, node, pos, encodeVector(vec)); err != nil {
			return errors.Wrapf(err, "insert node %s", node)
		}
	}
	return errors.Wrap(tx.Commit(), "commit")
}

// LoadRun reads the embedding set of a run, preserving node order.
func (s *Store) LoadRun(ctx context.Context, id string) (*embedding.Set, error) {
	var dim int
	err := s.db.QueryRowContext(ctx, "SELECT dim FROM runs WHERE id = ?", id).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrRunNotFound, "run %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "query run %s", id)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT node, vec FROM vectors WHERE run_id = ? ORDER BY position", id)
	if err != nil {
		return nil, errors.Wrapf(err, "query vectors of %s", id)
	}
	defer rows.Close()

	emb := embedding.New(dim)
	for rows.Next() {
		var node string
		var blob []byte
		if err := rows.Scan(&node, &blob); err != nil {
			return nil, errors.Wrap(err, "scan vector")
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, errors.Wrapf(err, "node %s", node)
		}
		if err := emb.Add(node, vec); err != nil {
			return nil, err
		}
	}
	return emb, errors.Wrap(rows.Err(), "iterate vectors")
}

// ListRuns returns the stored runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, model, dim, created_at FROM runs ORDER BY created_at DESC")
	if err != nil {
		return nil, errors.Wrap(err, "query runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var created int64
		if err := rows.Scan(&r.ID, &r.Model, &r.Dim, &created); err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		r.CreatedAt = time.Unix(0, created)
		runs = append(runs, r)
	}
	return runs, errors.Wrap(rows.Err(), "iterate runs")
}

func encodeVector(vec []float64) []byte {
	buf := make([]byte, 8*len(vec))
	for i, x := range vec {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(x))
	}
	return buf
}

func decodeVector(buf []byte) ([]float64, error) {
	if len(buf)%8 != 0 {
		return nil, errors.Errorf("vector blob of %d bytes", len(buf))
	}
	vec := make([]float64, len(buf)/8)
	for i := range vec {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
	}
	return vec, nil
}
