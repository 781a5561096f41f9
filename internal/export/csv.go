// Package export writes simulated panels and fit results to files other
// tools can consume: long-format CSV and a SQLite database.
package export

import (
	"encoding/csv"
	"os"
	"strconv"

	"lmmlab/internal/longsim"
)

// csvHeader is the fixed long-format column order.
var csvHeader = []string{"id", "timept", "t", "G", "C", "E", "Y"}

// WriteCSV writes the dataset to path as long-format CSV, one row per
// (id, timept) pair.
func WriteCSV(ds *longsim.Dataset, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for r := 0; r < ds.Rows(); r++ {
		record := []string{
			strconv.Itoa(ds.ID[r]),
			ds.Timept[r],
			formatFloat(ds.T[r]),
			strconv.Itoa(int(ds.G[r])),
			formatFloat(ds.C[r]),
			formatFloat(ds.E[r]),
			formatFloat(ds.Y[r]),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
