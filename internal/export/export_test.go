package export

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"lmmlab/internal/fit"
	"lmmlab/internal/longsim"
	"lmmlab/internal/report"
)

func testDataset(t *testing.T) *longsim.Dataset {
	t.Helper()
	ds, err := longsim.Simulate(longsim.Params{
		N: 20, K: 3, MAF: 0.25,
		ICCE: 0.5, VarEE: 1,
		BetaEY: 1, ICCY: 0.5, VarEY: 1,
		Seed: 17,
	})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	return ds
}

func TestWriteCSVRoundTrip(t *testing.T) {
	ds := testDataset(t)
	path := filepath.Join(t.TempDir(), "panel.csv")
	if err := WriteCSV(ds, path); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != ds.Rows()+1 {
		t.Fatalf("%d records, want %d rows plus header", len(records), ds.Rows()+1)
	}
	header := records[0]
	if len(header) != 7 || header[0] != "id" || header[6] != "Y" {
		t.Fatalf("header %v", header)
	}

	// Spot-check the first data row against the dataset.
	first := records[1]
	if first[0] != strconv.Itoa(ds.ID[0]) || first[1] != ds.Timept[0] {
		t.Fatalf("first row keys %v", first)
	}
	y, err := strconv.ParseFloat(first[6], 64)
	if err != nil {
		t.Fatalf("parse Y: %v", err)
	}
	if y != ds.Y[0] {
		t.Fatalf("round-trip Y %g, want %g", y, ds.Y[0])
	}
}

func TestStoreSaveRun(t *testing.T) {
	ds := testDataset(t)
	f, err := fit.ParseFormula("Y ~ t + E + (1|id)")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	mixed, err := fit.Mixed(ds, f)
	if err != nil {
		t.Fatalf("mixed: %v", err)
	}
	models := []report.ModelReport{report.FromMixed(mixed)}

	store, err := OpenStore(filepath.Join(t.TempDir(), "lab.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.SaveRun(ctx, "run-a", ds, models); err != nil {
		t.Fatalf("save: %v", err)
	}

	var rows int
	if err := store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM panel WHERE run = ?`, "run-a").Scan(&rows); err != nil {
		t.Fatalf("count panel: %v", err)
	}
	if rows != ds.Rows() {
		t.Fatalf("panel has %d rows, want %d", rows, ds.Rows())
	}

	var coefs int
	if err := store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM model_fits WHERE run = ?`, "run-a").Scan(&coefs); err != nil {
		t.Fatalf("count fits: %v", err)
	}
	if coefs != len(mixed.Coefficients) {
		t.Fatalf("model_fits has %d rows, want %d", coefs, len(mixed.Coefficients))
	}

	var vcs int
	if err := store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM variance_components WHERE run = ?`, "run-a").Scan(&vcs); err != nil {
		t.Fatalf("count variance: %v", err)
	}
	if vcs != 1 {
		t.Fatalf("variance_components has %d rows, want 1", vcs)
	}
}

func TestStoreReplacesRun(t *testing.T) {
	ds := testDataset(t)
	store, err := OpenStore(filepath.Join(t.TempDir(), "lab.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.SaveRun(ctx, "run-b", ds, nil); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := store.SaveRun(ctx, "run-b", ds, nil); err != nil {
		t.Fatalf("second save: %v", err)
	}

	var rows int
	if err := store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM panel WHERE run = ?`, "run-b").Scan(&rows); err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != ds.Rows() {
		t.Fatalf("re-saved run has %d panel rows, want %d", rows, ds.Rows())
	}

	var runs int
	if err := store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&runs); err != nil {
		t.Fatalf("count runs: %v", err)
	}
	if runs != 1 {
		t.Fatalf("runs table has %d entries, want 1", runs)
	}
}
