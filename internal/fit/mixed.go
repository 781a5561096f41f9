package fit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"lmmlab/internal/longsim"
)

// MixedResult holds a random-intercept model fit: fixed-effect estimates
// plus the partition of residual variation into between-person
// (random-intercept) and within-person components.
type MixedResult struct {
	Formula      string `json:"formula"`
	Group        string `json:"group"`
	Coefficients []Coef `json:"coefficients"`

	// InterceptVar is the estimated variance of the per-person random
	// intercept; ResidualVar the within-person residual variance.
	InterceptVar float64 `json:"intercept_var"`
	ResidualVar  float64 `json:"residual_var"`
	// ICC is the implied intraclass correlation of the residual process.
	ICC float64 `json:"icc"`
	// Theta is the partial-demeaning weight used by the GLS transform;
	// 0 collapses to pooled OLS, 1 to the within (fixed-effects) estimator.
	Theta float64 `json:"theta"`

	DF int `json:"df"`
}

// Mixed fits a random-intercept linear model on a balanced panel by
// feasible GLS. Variance components come from a within/between
// decomposition of the pooled OLS residuals; the GLS step is the standard
// partial-demeaning transform, exact for compound-symmetric errors.
func Mixed(ds *longsim.Dataset, f Formula) (*MixedResult, error) {
	if !f.HasRandomIntercept() {
		return nil, fmt.Errorf("formula %q has no random-intercept term", f.Raw)
	}
	if f.Group != "id" {
		return nil, fmt.Errorf("unsupported grouping %q: datasets cluster on id", f.Group)
	}
	if ds.K < 2 {
		return nil, fmt.Errorf("random-intercept fit needs at least 2 timepoints per individual, got %d", ds.K)
	}

	y, err := ds.Column(f.Response)
	if err != nil {
		return nil, err
	}
	X, names, err := designMatrix(ds, f.Terms)
	if err != nil {
		return nil, err
	}

	groups, err := groupRows(ds)
	if err != nil {
		return nil, err
	}

	// Step 1: pooled OLS for residuals.
	beta0, _, err := leastSquares(X, y)
	if err != nil {
		return nil, err
	}
	pred := fitted(X, beta0)
	resid := make([]float64, len(y))
	for r := range y {
		resid[r] = y[r] - pred[r]
	}

	// Step 2: within/between decomposition of the residuals.
	sigmaE, sigmaB := varianceComponents(resid, groups, ds.K)

	// Step 3: partial demeaning by theta and OLS on the transformed data.
	theta := 0.0
	if total := sigmaE + float64(ds.K)*sigmaB; total > 0 {
		theta = 1 - math.Sqrt(sigmaE/total)
	}

	rows, cols := X.Dims()
	yStar := make([]float64, rows)
	xStar := mat.NewDense(rows, cols, nil)
	for _, idx := range groups {
		for j := 0; j < cols; j++ {
			m := 0.0
			for _, r := range idx {
				m += X.At(r, j)
			}
			m /= float64(len(idx))
			for _, r := range idx {
				xStar.Set(r, j, X.At(r, j)-theta*m)
			}
		}
		m := 0.0
		for _, r := range idx {
			m += y[r]
		}
		m /= float64(len(idx))
		for _, r := range idx {
			yStar[r] = y[r] - theta*m
		}
	}

	beta, xtxInv, err := leastSquares(xStar, yStar)
	if err != nil {
		return nil, err
	}

	df := rows - cols
	if df < 1 {
		return nil, fmt.Errorf("not enough rows (%d) for %d coefficients", rows, cols)
	}
	predStar := fitted(xStar, beta)
	rss := 0.0
	for r := 0; r < rows; r++ {
		d := yStar[r] - predStar[r]
		rss += d * d
	}
	sigma2 := rss / float64(df)

	icc := 0.0
	if sigmaB+sigmaE > 0 {
		icc = sigmaB / (sigmaB + sigmaE)
	}

	return &MixedResult{
		Formula:      f.Raw,
		Group:        f.Group,
		Coefficients: coefTable(names, beta, xtxInv, sigma2, df),
		InterceptVar: sigmaB,
		ResidualVar:  sigmaE,
		ICC:          icc,
		Theta:        theta,
		DF:           df,
	}, nil
}

// groupRows collects row indices per individual, enforcing the balanced
// K-rows-per-id invariant the GLS transform relies on.
func groupRows(ds *longsim.Dataset) (map[int][]int, error) {
	groups := make(map[int][]int, ds.N)
	for r, id := range ds.ID {
		groups[id] = append(groups[id], r)
	}
	for id, idx := range groups {
		if len(idx) != ds.K {
			return nil, fmt.Errorf("unbalanced panel: id %d has %d rows, want %d", id, len(idx), ds.K)
		}
	}
	return groups, nil
}

// varianceComponents estimates the within-person residual variance and the
// between-person intercept variance from pooled OLS residuals. The between
// estimate subtracts the within sampling contribution and is truncated at
// zero (Swamy-Arora convention), so a non-clustered panel collapses to the
// pooled fit.
func varianceComponents(resid []float64, groups map[int][]int, k int) (sigmaE, sigmaB float64) {
	n := len(groups)

	means := make([]float64, 0, n)
	withinSS := 0.0
	for _, idx := range groups {
		m := 0.0
		for _, r := range idx {
			m += resid[r]
		}
		m /= float64(len(idx))
		means = append(means, m)
		for _, r := range idx {
			d := resid[r] - m
			withinSS += d * d
		}
	}

	sigmaE = withinSS / float64(n*(k-1))
	if n < 2 {
		return sigmaE, 0
	}
	sigmaB = stat.Variance(means, nil) - sigmaE/float64(k)
	if sigmaB < 0 {
		sigmaB = 0
	}
	return sigmaE, sigmaB
}
