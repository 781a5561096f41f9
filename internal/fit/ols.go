package fit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"lmmlab/internal/longsim"
)

// Coef is one row of a coefficient table.
type Coef struct {
	Term     string  `json:"term"`
	Estimate float64 `json:"estimate"`
	StdErr   float64 `json:"std_err"`
	TValue   float64 `json:"t_value"`
	PValue   float64 `json:"p_value"`
}

// OLSResult holds a pooled ordinary-least-squares fit. Rows are treated as
// independent, so standard errors ignore within-person clustering; that is
// the point of comparing it against the mixed model.
type OLSResult struct {
	Formula      string `json:"formula"`
	Coefficients []Coef `json:"coefficients"`

	ResidualVar float64 `json:"residual_var"`
	R2          float64 `json:"r2"`
	DF          int     `json:"df"`
}

// OLS fits the fixed-effect part of f by pooled least squares. A random
// intercept term in f is ignored, matching the "same formula minus the
// random-effect term" collaborator contract.
func OLS(ds *longsim.Dataset, f Formula) (*OLSResult, error) {
	y, err := ds.Column(f.Response)
	if err != nil {
		return nil, err
	}
	X, names, err := designMatrix(ds, f.Terms)
	if err != nil {
		return nil, err
	}

	beta, xtxInv, err := leastSquares(X, y)
	if err != nil {
		return nil, err
	}

	rows, cols := X.Dims()
	df := rows - cols
	if df < 1 {
		return nil, fmt.Errorf("not enough rows (%d) for %d coefficients", rows, cols)
	}

	pred := fitted(X, beta)
	rss := 0.0
	for r := 0; r < rows; r++ {
		d := y[r] - pred[r]
		rss += d * d
	}
	sigma2 := rss / float64(df)

	tss := 0.0
	mean := stat.Mean(y, nil)
	for _, v := range y {
		d := v - mean
		tss += d * d
	}
	r2 := 0.0
	if tss > 0 {
		r2 = 1 - rss/tss
	}

	return &OLSResult{
		Formula:      f.Raw,
		Coefficients: coefTable(names, beta, xtxInv, sigma2, df),
		ResidualVar:  sigma2,
		R2:           r2,
		DF:           df,
	}, nil
}

// coefTable builds the coefficient rows with t-based two-sided p-values.
func coefTable(names []string, beta []float64, xtxInv *mat.Dense, sigma2 float64, df int) []Coef {
	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}
	out := make([]Coef, len(names))
	for j, name := range names {
		se := math.Sqrt(sigma2 * xtxInv.At(j, j))
		tv := 0.0
		pv := 1.0
		if se > 0 {
			tv = beta[j] / se
			pv = 2 * tDist.CDF(-math.Abs(tv))
		}
		out[j] = Coef{Term: name, Estimate: beta[j], StdErr: se, TValue: tv, PValue: pv}
	}
	return out
}
