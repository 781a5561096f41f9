// Package longsim simulates longitudinal (repeated-measures) panel datasets
// with configurable intraclass correlation, genotype effects, and confounding
// structure. Each call owns its random source, so repeated or concurrent
// simulations with distinct seeds are independent and reproducible.
package longsim

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Params holds the population-level inputs for one simulated panel.
//
// Each clustered variable (C, E, Y) is generated from a random-intercept
// model: a person-level intercept with variance icc*var_e/(1-icc) plus
// independent per-timepoint noise with variance var_e, so that icc is the
// fraction of total variance attributable to stable between-person
// differences.
type Params struct {
	// N is the number of individuals, K the number of timepoints per individual.
	N int `json:"n" yaml:"n"`
	K int `json:"k" yaml:"k"`

	// MAF is the minor allele frequency for the genotype draw, in [0, 0.5].
	MAF float64 `json:"maf" yaml:"maf"`

	// Covariate C: clustered, time-varying.
	ICCC  float64 `json:"icc_c" yaml:"icc_c"`
	VarEC float64 `json:"var_e_c" yaml:"var_e_c"`

	// Exposure E: clustered, time-varying, confounded by C through BetaCE.
	BetaCE float64 `json:"beta_ce" yaml:"beta_ce"`
	ICCE   float64 `json:"icc_e" yaml:"icc_e"`
	VarEE  float64 `json:"var_e_e" yaml:"var_e_e"`

	// Outcome Y: clustered, driven by time, genotype, covariate and exposure.
	BetaTY float64 `json:"beta_ty" yaml:"beta_ty"`
	BetaGY float64 `json:"beta_gy" yaml:"beta_gy"`
	BetaCY float64 `json:"beta_cy" yaml:"beta_cy"`
	BetaEY float64 `json:"beta_ey" yaml:"beta_ey"`
	ICCY   float64 `json:"icc_y" yaml:"icc_y"`
	VarEY  float64 `json:"var_e_y" yaml:"var_e_y"`

	// Seed fixes the random source. Same Params, same Seed, same dataset.
	Seed uint64 `json:"seed" yaml:"seed"`
}

// InvalidParameterError reports a simulation parameter outside its valid
// range. It is returned before any random draw, so a failed call never
// produces a partial dataset.
type InvalidParameterError struct {
	Param  string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Param, e.Reason)
}

func invalid(param, reason string) error {
	return &InvalidParameterError{Param: param, Reason: reason}
}

// Validate checks all parameter ranges and returns an *InvalidParameterError
// naming the first offending field.
func (p Params) Validate() error {
	if p.N < 1 {
		return invalid("n", "must be >= 1")
	}
	if p.K < 1 {
		return invalid("k", "must be >= 1")
	}
	if p.MAF < 0 || p.MAF > 0.5 {
		return invalid("maf", "must be in [0, 0.5]")
	}
	if p.ICCC < 0 || p.ICCC > 1 {
		return invalid("icc_c", "must be in [0, 1]")
	}
	if p.VarEC < 0 {
		return invalid("var_e_c", "must be >= 0")
	}
	if p.ICCE < 0 || p.ICCE > 1 {
		return invalid("icc_e", "must be in [0, 1]")
	}
	if p.VarEE < 0 {
		return invalid("var_e_e", "must be >= 0")
	}
	if p.ICCY < 0 || p.ICCY > 1 {
		return invalid("icc_y", "must be in [0, 1]")
	}
	if p.VarEY < 0 {
		return invalid("var_e_y", "must be >= 0")
	}
	return nil
}

// Dataset is a long-format panel: one row per (id, timepoint) pair, stored
// column-wise. Rows are ordered by id, then timepoint. Downstream code may
// derive new columns but must not mutate these.
type Dataset struct {
	N int
	K int

	ID     []int
	Timept []string
	T      []float64
	G      []float64
	C      []float64
	E      []float64
	Y      []float64
}

// Rows returns the number of rows, always N*K.
func (d *Dataset) Rows() int { return len(d.ID) }

// Column resolves a numeric column by name. Recognized names are t, G, C, E
// and Y; id and timept are keys, not model columns.
func (d *Dataset) Column(name string) ([]float64, error) {
	switch name {
	case "t":
		return d.T, nil
	case "G":
		return d.G, nil
	case "C":
		return d.C, nil
	case "E":
		return d.E, nil
	case "Y":
		return d.Y, nil
	}
	return nil, fmt.Errorf("unknown column %q (have t, G, C, E, Y)", name)
}

// components derives the between-person and within-person standard
// deviations for a clustered variable. icc = 1 is an explicit branch: the
// residual contributes nothing and the intercept carries the full
// residual-scale variance, so the trajectory is exactly time-constant.
func components(icc, varE float64) (sdB, sdE float64) {
	switch icc {
	case 1:
		return math.Sqrt(varE), 0
	case 0:
		return 0, math.Sqrt(varE)
	default:
		return math.Sqrt(icc * varE / (1 - icc)), math.Sqrt(varE)
	}
}

// Simulate generates one panel dataset from p. The returned dataset has
// exactly N*K rows with unique (id, timept) keys, genotype constant within
// id, and numeric time 0..K-1 shared by every individual.
func Simulate(p Params) (*Dataset, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	src := rand.NewSource(p.Seed)
	std := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	genotype := distuv.Binomial{N: 2, P: p.MAF, Src: src}

	// A zero standard deviation skips the draw entirely rather than scaling
	// one to zero, keeping degenerate components out of the random stream.
	draw := func(sd float64) float64 {
		if sd == 0 {
			return 0
		}
		return sd * std.Rand()
	}

	sdBC, sdEC := components(p.ICCC, p.VarEC)
	sdBE, sdEE := components(p.ICCE, p.VarEE)
	sdBY, sdEY := components(p.ICCY, p.VarEY)

	labels := make([]string, p.K)
	for t := 0; t < p.K; t++ {
		labels[t] = fmt.Sprintf("t%d", t+1)
	}

	rows := p.N * p.K
	ds := &Dataset{
		N:      p.N,
		K:      p.K,
		ID:     make([]int, 0, rows),
		Timept: make([]string, 0, rows),
		T:      make([]float64, 0, rows),
		G:      make([]float64, 0, rows),
		C:      make([]float64, 0, rows),
		E:      make([]float64, 0, rows),
		Y:      make([]float64, 0, rows),
	}

	for i := 0; i < p.N; i++ {
		id := i + 1

		g := 0.0
		if p.MAF > 0 {
			g = genotype.Rand()
		}

		bC := draw(sdBC)
		bE := draw(sdBE)
		bY := draw(sdBY)

		for t := 0; t < p.K; t++ {
			c := bC + draw(sdEC)
			e := bE + draw(sdEE) + p.BetaCE*c
			y := bY + draw(sdEY) + p.BetaTY*float64(t) + p.BetaGY*g + p.BetaCY*c + p.BetaEY*e

			ds.ID = append(ds.ID, id)
			ds.Timept = append(ds.Timept, labels[t])
			ds.T = append(ds.T, float64(t))
			ds.G = append(ds.G, g)
			ds.C = append(ds.C, c)
			ds.E = append(ds.E, e)
			ds.Y = append(ds.Y, y)
		}
	}

	return ds, nil
}
