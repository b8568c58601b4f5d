// Package store keeps species run results in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wlattner/sdm/pipeline"
)

// ErrNotFound is returned by Load for an unknown run id.
var ErrNotFound = errors.New("run not found")

// fixed width so start times sort as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	species    TEXT NOT NULL,
	resolution TEXT NOT NULL,
	seed       INTEGER NOT NULL,
	started    TEXT NOT NULL,
	auc        REAL,
	oob        REAL,
	n_rows     INTEGER NOT NULL,
	train_rows INTEGER NOT NULL,
	test_rows  INTEGER NOT NULL,
	result     BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_species ON runs (species, started);
CREATE TABLE IF NOT EXISTS importance (
	run_id   TEXT NOT NULL REFERENCES runs (id),
	position INTEGER NOT NULL,
	feature  TEXT NOT NULL,
	score    REAL NOT NULL,
	PRIMARY KEY (run_id, position)
);`

// Store persists result bundles. It implements pipeline.Sink.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens (creating if needed) the database at path.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open results db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL; PRAGMA synchronous = NORMAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure results db: %w", err)
	}
	return &Store{db: db}, nil
}

// Migrate creates the tables. It is safe to call on an existing database.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate results db: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// Save writes r and its importance ranking in one transaction.
func (s *Store) Save(ctx context.Context, r *pipeline.Result) error {
	blob, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	var auc, oob sql.NullFloat64
	if r.AUC.Computable {
		auc = sql.NullFloat64{Float64: r.AUC.Value, Valid: true}
	}
	if r.OOBAccuracy != nil {
		oob = sql.NullFloat64{Float64: *r.OOBAccuracy, Valid: true}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, species, resolution, seed, started, auc, oob, n_rows, train_rows, test_rows, result)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Species, r.Resolution, r.Seed, r.Started.UTC().Format(timeLayout),
		auc, oob, r.Rows, len(r.Train), len(r.Test), blob)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.RunID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO importance (run_id, position, feature, score) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, f := range r.Ranking {
		if _, err := stmt.ExecContext(ctx, r.RunID, i+1, f.Name, f.Score); err != nil {
			return fmt.Errorf("insert importance: %w", err)
		}
	}

	return tx.Commit()
}

// Run is the listing entry of a stored result.
type Run struct {
	ID          string
	Species     string
	Resolution  string
	Seed        int64
	Started     time.Time
	AUC         *float64
	OOBAccuracy *float64
	Rows        int
	TrainRows   int
	TestRows    int
	TopFeature  string
}

// Runs lists stored runs, newest first. An empty species lists all.
func (s *Store) Runs(ctx context.Context, species string) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.species, r.resolution, r.seed, r.started, r.auc, r.oob,
		       r.n_rows, r.train_rows, r.test_rows, COALESCE(i.feature, '')
		FROM runs r
		LEFT JOIN importance i ON i.run_id = r.id AND i.position = 1
		WHERE ? = '' OR r.species = ?
		ORDER BY r.started DESC, r.id`, species, species)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			started  string
			auc, oob sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &r.Species, &r.Resolution, &r.Seed, &started, &auc, &oob,
			&r.Rows, &r.TrainRows, &r.TestRows, &r.TopFeature); err != nil {
			return nil, err
		}
		if r.Started, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("run %s: %w", r.ID, err)
		}
		if auc.Valid {
			r.AUC = &auc.Float64
		}
		if oob.Valid {
			r.OOBAccuracy = &oob.Float64
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Load returns the stored result bundle of a run. The suitability grid is
// not stored.
func (s *Store) Load(ctx context.Context, id string) (*pipeline.Result, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT result FROM runs WHERE id = ?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	r := new(pipeline.Result)
	if err := json.Unmarshal(blob, r); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	return r, nil
}
