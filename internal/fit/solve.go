package fit

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"lmmlab/internal/longsim"
)

// svdRankTol is the singular-value threshold for the SVD fallback.
const svdRankTol = 1e-12

// designMatrix assembles the fixed-effect design matrix for terms, with a
// leading intercept column. Column names are returned alongside for
// coefficient labeling.
func designMatrix(ds *longsim.Dataset, terms []string) (*mat.Dense, []string, error) {
	rows := ds.Rows()
	if rows == 0 {
		return nil, nil, fmt.Errorf("empty dataset")
	}

	names := make([]string, 0, len(terms)+1)
	names = append(names, "(Intercept)")
	names = append(names, terms...)

	X := mat.NewDense(rows, len(names), nil)
	for r := 0; r < rows; r++ {
		X.Set(r, 0, 1)
	}
	for j, term := range terms {
		col, err := ds.Column(term)
		if err != nil {
			return nil, nil, err
		}
		for r := 0; r < rows; r++ {
			X.Set(r, j+1, col[r])
		}
	}
	return X, names, nil
}

// leastSquares solves X b = y, returning the coefficients and (X'X)^-1 for
// standard errors. Normal equations first; if X'X is singular or badly
// conditioned, fall back to an SVD solve with the pseudoinverse
// (X'X)^+ = V S^-2 V'.
func leastSquares(X *mat.Dense, y []float64) (beta []float64, xtxInv *mat.Dense, err error) {
	rows, cols := X.Dims()
	if len(y) != rows {
		return nil, nil, fmt.Errorf("response length %d does not match design rows %d", len(y), rows)
	}
	yVec := mat.NewVecDense(rows, y)

	var xtx mat.Dense
	xtx.Mul(X.T(), X)

	var inv mat.Dense
	if invErr := inv.Inverse(&xtx); invErr == nil {
		var xty mat.VecDense
		xty.MulVec(X.T(), yVec)

		var b mat.VecDense
		b.MulVec(&inv, &xty)

		beta = make([]float64, cols)
		for j := 0; j < cols; j++ {
			beta[j] = b.AtVec(j)
		}
		return beta, &inv, nil
	}

	var svd mat.SVD
	if !svd.Factorize(X, mat.SVDThin) {
		return nil, nil, fmt.Errorf("design matrix is singular and SVD factorization failed")
	}
	rank := svd.Rank(svdRankTol)
	if rank == 0 {
		return nil, nil, fmt.Errorf("design matrix is numerically zero")
	}

	yMat := mat.NewDense(rows, 1, nil)
	for r := 0; r < rows; r++ {
		yMat.Set(r, 0, y[r])
	}
	var b mat.Dense
	svd.SolveTo(&b, yMat, rank)

	beta = make([]float64, cols)
	for j := 0; j < cols; j++ {
		beta[j] = b.At(j, 0)
	}

	// Pseudoinverse of X'X from the thin SVD of X.
	var v mat.Dense
	svd.VTo(&v)
	sv := svd.Values(nil)

	scaled := mat.NewDense(cols, rank, nil)
	for j := 0; j < cols; j++ {
		for k := 0; k < rank; k++ {
			scaled.Set(j, k, v.At(j, k)/(sv[k]*sv[k]))
		}
	}
	pinv := mat.NewDense(cols, cols, nil)
	pinv.Mul(scaled, v.Slice(0, cols, 0, rank).T())
	return beta, pinv, nil
}

// fitted computes X*beta.
func fitted(X *mat.Dense, beta []float64) []float64 {
	rows, cols := X.Dims()
	out := make([]float64, rows)
	for r := 0; r < rows; r++ {
		v := 0.0
		for j := 0; j < cols; j++ {
			v += X.At(r, j) * beta[j]
		}
		out[r] = v
	}
	return out
}
