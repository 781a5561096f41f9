package export

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"lmmlab/internal/longsim"
	"lmmlab/internal/report"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	name       TEXT PRIMARY KEY,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS panel (
	run    TEXT NOT NULL,
	id     INTEGER NOT NULL,
	timept TEXT NOT NULL,
	t      REAL NOT NULL,
	g      REAL NOT NULL,
	c      REAL NOT NULL,
	e      REAL NOT NULL,
	y      REAL NOT NULL,
	PRIMARY KEY (run, id, timept)
);
CREATE TABLE IF NOT EXISTS model_fits (
	run      TEXT NOT NULL,
	model    TEXT NOT NULL,
	formula  TEXT NOT NULL,
	term     TEXT NOT NULL,
	estimate REAL NOT NULL,
	std_err  REAL NOT NULL,
	p_value  REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS variance_components (
	run           TEXT NOT NULL,
	model         TEXT NOT NULL,
	intercept_var REAL NOT NULL,
	residual_var  REAL NOT NULL,
	icc           REAL NOT NULL
);
`

// Store persists runs to a SQLite database so downstream tools (R, Python,
// sqlite3 itself) can consume the lab's output.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the database at path and initializes
// the schema.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// SaveRun writes the dataset and any fitted models for one named run in a
// single transaction. An existing run with the same name is replaced.
func (s *Store) SaveRun(ctx context.Context, name string, ds *longsim.Dataset, models []report.ModelReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM panel WHERE run = ?`,
		`DELETE FROM model_fits WHERE run = ?`,
		`DELETE FROM variance_components WHERE run = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, name); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (name, created_at) VALUES (?, ?)`,
		name, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}

	insertRow, err := tx.PrepareContext(ctx,
		`INSERT INTO panel (run, id, timept, t, g, c, e, y) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insertRow.Close()
	for r := 0; r < ds.Rows(); r++ {
		if _, err := insertRow.ExecContext(ctx, name,
			ds.ID[r], ds.Timept[r], ds.T[r], ds.G[r], ds.C[r], ds.E[r], ds.Y[r]); err != nil {
			return fmt.Errorf("insert panel row %d: %w", r, err)
		}
	}

	for _, m := range models {
		for _, c := range m.Coefficients {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO model_fits (run, model, formula, term, estimate, std_err, p_value) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				name, m.Kind, m.Formula, c.Term, c.Estimate, c.StdErr, c.PValue); err != nil {
				return err
			}
		}
		if m.Variance != nil {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO variance_components (run, model, intercept_var, residual_var, icc) VALUES (?, ?, ?, ?, ?)`,
				name, m.Kind, m.Variance.InterceptVar, m.Variance.ResidualVar, m.Variance.ICC); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}
