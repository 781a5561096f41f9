// Package sweep runs parameter studies: one simulated panel per
// (value, replicate) pair, each with an independent seed, fitted
// concurrently and aggregated per value. Runs are embarrassingly parallel;
// seeds are pre-drawn from a master source so results do not depend on
// scheduling.
package sweep

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"

	"lmmlab/internal/fit"
	"lmmlab/internal/longsim"
	"lmmlab/internal/scenario"
)

// Options configures a sweep.
type Options struct {
	Base       longsim.Params
	Param      string
	Values     []float64
	Replicates int
	Formula    fit.Formula
	// Term is the tracked coefficient.
	Term string
	// Workers caps concurrency; 0 means one per CPU.
	Workers int
	// Log receives per-value progress; nil disables logging.
	Log *slog.Logger
}

// Cell aggregates the replicate fits for one swept value.
type Cell struct {
	Value      float64 `json:"value"`
	Replicates int     `json:"replicates"`

	TrueCoef     float64 `json:"true_coef"`
	MeanEstimate float64 `json:"mean_estimate"`
	// EmpiricalSE is the standard deviation of the replicate estimates.
	EmpiricalSE float64 `json:"empirical_se"`
	Bias        float64 `json:"bias"`

	// Variance components averaged over replicates; zero for OLS formulas.
	MeanInterceptVar float64 `json:"mean_intercept_var"`
	MeanResidualVar  float64 `json:"mean_residual_var"`
}

type job struct {
	valueIdx int
	repIdx   int
	seed     uint64
}

type outcome struct {
	valueIdx     int
	repIdx       int
	estimate     float64
	interceptVar float64
	residualVar  float64
	err          error
}

// Run executes the sweep and returns one cell per value, in value order.
func Run(opts Options) ([]Cell, error) {
	if len(opts.Values) == 0 {
		return nil, fmt.Errorf("sweep: no values")
	}
	if opts.Replicates < 1 {
		return nil, fmt.Errorf("sweep: replicates must be >= 1")
	}

	// Seeds are drawn up front in (value, replicate) order so the outcome is
	// independent of worker scheduling.
	master := rand.New(rand.NewSource(opts.Base.Seed))
	jobs := make([]job, 0, len(opts.Values)*opts.Replicates)
	for vi := range opts.Values {
		for r := 0; r < opts.Replicates; r++ {
			jobs = append(jobs, job{valueIdx: vi, repIdx: r, seed: master.Uint64()})
		}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	jobCh := make(chan job)
	outCh := make(chan outcome, len(jobs))

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for j := range jobCh {
				outCh <- runOne(opts, j)
			}
		}()
	}

	go func() {
		for _, j := range jobs {
			jobCh <- j
		}
		close(jobCh)
	}()

	// Outcomes land in fixed (value, replicate) slots rather than completion
	// order, so the aggregation below sums in the same order regardless of
	// worker count.
	estimates := make([][]float64, len(opts.Values))
	interceptVars := make([][]float64, len(opts.Values))
	residualVars := make([][]float64, len(opts.Values))
	for vi := range opts.Values {
		estimates[vi] = make([]float64, opts.Replicates)
		interceptVars[vi] = make([]float64, opts.Replicates)
		residualVars[vi] = make([]float64, opts.Replicates)
	}
	var firstErr error
	for range jobs {
		out := <-outCh
		if out.err != nil {
			if firstErr == nil {
				firstErr = out.err
			}
			continue
		}
		estimates[out.valueIdx][out.repIdx] = out.estimate
		interceptVars[out.valueIdx][out.repIdx] = out.interceptVar
		residualVars[out.valueIdx][out.repIdx] = out.residualVar
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}

	cells := make([]Cell, len(opts.Values))
	for vi, value := range opts.Values {
		params := opts.Base
		if err := scenario.ApplyParam(&params, opts.Param, value); err != nil {
			return nil, err
		}
		truth, err := scenario.TrueCoef(params, opts.Term)
		if err != nil {
			return nil, err
		}

		mean := stat.Mean(estimates[vi], nil)
		se := 0.0
		if len(estimates[vi]) > 1 {
			se = stat.StdDev(estimates[vi], nil)
		}
		cells[vi] = Cell{
			Value:            value,
			Replicates:       opts.Replicates,
			TrueCoef:         truth,
			MeanEstimate:     mean,
			EmpiricalSE:      se,
			Bias:             mean - truth,
			MeanInterceptVar: stat.Mean(interceptVars[vi], nil),
			MeanResidualVar:  stat.Mean(residualVars[vi], nil),
		}
		if opts.Log != nil {
			opts.Log.Debug("sweep value done",
				"param", opts.Param, "value", value,
				"mean_estimate", mean, "bias", cells[vi].Bias)
		}
	}
	return cells, nil
}

// runOne simulates and fits a single replicate.
func runOne(opts Options, j job) outcome {
	params := opts.Base
	params.Seed = j.seed
	if err := scenario.ApplyParam(&params, opts.Param, opts.Values[j.valueIdx]); err != nil {
		return outcome{valueIdx: j.valueIdx, repIdx: j.repIdx, err: err}
	}

	ds, err := longsim.Simulate(params)
	if err != nil {
		return outcome{valueIdx: j.valueIdx, repIdx: j.repIdx, err: err}
	}

	out := outcome{valueIdx: j.valueIdx, repIdx: j.repIdx}
	if opts.Formula.HasRandomIntercept() {
		res, err := fit.Mixed(ds, opts.Formula)
		if err != nil {
			out.err = err
			return out
		}
		coef, ok := res.Coef(opts.Term)
		if !ok {
			out.err = fmt.Errorf("term %q not in formula %q", opts.Term, opts.Formula.Raw)
			return out
		}
		out.estimate = coef.Estimate
		out.interceptVar = res.InterceptVar
		out.residualVar = res.ResidualVar
		return out
	}

	res, err := fit.OLS(ds, opts.Formula)
	if err != nil {
		out.err = err
		return out
	}
	coef, ok := res.Coef(opts.Term)
	if !ok {
		out.err = fmt.Errorf("term %q not in formula %q", opts.Term, opts.Formula.Raw)
		return out
	}
	out.estimate = coef.Estimate
	out.residualVar = res.ResidualVar
	return out
}
