// Package report tabulates simulation runs: dataset summaries, model
// coefficient tables, and the mixed-versus-OLS comparison the lab exists to
// demonstrate.
package report

import (
	"gonum.org/v1/gonum/stat"

	"lmmlab/internal/fit"
	"lmmlab/internal/longsim"
)

// Comparison is the top-level result of one scenario run.
type Comparison struct {
	Scenario   string           `json:"scenario"`
	Data       DataSummary      `json:"data"`
	Models     []ModelReport    `json:"models"`
	SideBySide []TermComparison `json:"side_by_side,omitempty"`
}

// DataSummary describes the simulated panel empirically.
type DataSummary struct {
	Rows        int               `json:"rows"`
	Individuals int               `json:"individuals"`
	Timepoints  int               `json:"timepoints"`
	Variables   []VariableSummary `json:"variables"`
	CorrEY      float64           `json:"corr_e_y"`
}

// VariableSummary holds the empirical moments and intraclass correlation of
// one clustered column.
type VariableSummary struct {
	Name   string  `json:"name"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	ICC    float64 `json:"icc"`
}

// ModelReport is one fitted model, mixed or OLS.
type ModelReport struct {
	Kind         string             `json:"kind"`
	Formula      string             `json:"formula"`
	Coefficients []fit.Coef         `json:"coefficients"`
	Variance     *VariancePartition `json:"variance,omitempty"`
	R2           float64            `json:"r2,omitempty"`
}

// VariancePartition is the mixed model's split of residual variation.
type VariancePartition struct {
	InterceptVar float64 `json:"intercept_var"`
	ResidualVar  float64 `json:"residual_var"`
	ICC          float64 `json:"icc"`
	Theta        float64 `json:"theta"`
}

// TermComparison lines up the mixed and OLS estimates of one shared term.
// SERatio above 1 means OLS understates uncertainty relative to the mixed
// model (the usual clustering failure), below 1 the reverse.
type TermComparison struct {
	Term          string  `json:"term"`
	MixedEstimate float64 `json:"mixed_estimate"`
	OLSEstimate   float64 `json:"ols_estimate"`
	EstimateGap   float64 `json:"estimate_gap"`
	MixedStdErr   float64 `json:"mixed_std_err"`
	OLSStdErr     float64 `json:"ols_std_err"`
	SERatio       float64 `json:"se_ratio"`
}

// FromMixed converts a mixed fit into a report entry.
func FromMixed(r *fit.MixedResult) ModelReport {
	return ModelReport{
		Kind:         "mixed",
		Formula:      r.Formula,
		Coefficients: r.Coefficients,
		Variance: &VariancePartition{
			InterceptVar: r.InterceptVar,
			ResidualVar:  r.ResidualVar,
			ICC:          r.ICC,
			Theta:        r.Theta,
		},
	}
}

// FromOLS converts a pooled OLS fit into a report entry.
func FromOLS(r *fit.OLSResult) ModelReport {
	return ModelReport{
		Kind:         "ols",
		Formula:      r.Formula,
		Coefficients: r.Coefficients,
		R2:           r.R2,
	}
}

// BuildComparison assembles the run report. When the models include at least
// one mixed and one OLS fit, the first of each are compared term by term.
func BuildComparison(name string, ds *longsim.Dataset, models []ModelReport) Comparison {
	c := Comparison{
		Scenario: name,
		Data:     Summarize(ds),
		Models:   models,
	}

	var mixed, ols *ModelReport
	for i := range models {
		switch models[i].Kind {
		case "mixed":
			if mixed == nil {
				mixed = &models[i]
			}
		case "ols":
			if ols == nil {
				ols = &models[i]
			}
		}
	}
	if mixed != nil && ols != nil {
		c.SideBySide = compareTerms(mixed, ols)
	}
	return c
}

// Summarize computes the empirical dataset summary.
func Summarize(ds *longsim.Dataset) DataSummary {
	s := DataSummary{
		Rows:        ds.Rows(),
		Individuals: ds.N,
		Timepoints:  ds.K,
		CorrEY:      stat.Correlation(ds.E, ds.Y, nil),
	}
	for _, name := range []string{"C", "E", "Y"} {
		col, _ := ds.Column(name)
		s.Variables = append(s.Variables, VariableSummary{
			Name:   name,
			Mean:   stat.Mean(col, nil),
			StdDev: stat.StdDev(col, nil),
			ICC:    EmpiricalICC(col, ds),
		})
	}
	return s
}

func compareTerms(mixed, ols *ModelReport) []TermComparison {
	olsByTerm := make(map[string]fit.Coef, len(ols.Coefficients))
	for _, c := range ols.Coefficients {
		olsByTerm[c.Term] = c
	}

	var out []TermComparison
	for _, mc := range mixed.Coefficients {
		oc, ok := olsByTerm[mc.Term]
		if !ok {
			continue
		}
		tc := TermComparison{
			Term:          mc.Term,
			MixedEstimate: mc.Estimate,
			OLSEstimate:   oc.Estimate,
			EstimateGap:   mc.Estimate - oc.Estimate,
			MixedStdErr:   mc.StdErr,
			OLSStdErr:     oc.StdErr,
		}
		if mc.StdErr > 0 {
			tc.SERatio = oc.StdErr / mc.StdErr
		}
		out = append(out, tc)
	}
	return out
}

// EmpiricalICC estimates the intraclass correlation of a column by one-way
// ANOVA over individuals: (MSB - MSW) / (MSB + (K-1) MSW), truncated to
// [0, 1]. Returns 0 when the panel has a single timepoint or individual.
func EmpiricalICC(values []float64, ds *longsim.Dataset) float64 {
	if ds.N < 2 || ds.K < 2 {
		return 0
	}

	grand := stat.Mean(values, nil)
	groupMeans := make(map[int]float64, ds.N)
	for r, id := range ds.ID {
		groupMeans[id] += values[r]
	}
	k := float64(ds.K)
	for id := range groupMeans {
		groupMeans[id] /= k
	}

	betweenSS := 0.0
	for _, m := range groupMeans {
		d := m - grand
		betweenSS += d * d
	}
	msb := k * betweenSS / float64(ds.N-1)

	withinSS := 0.0
	for r, id := range ds.ID {
		d := values[r] - groupMeans[id]
		withinSS += d * d
	}
	msw := withinSS / float64(ds.N*(ds.K-1))

	den := msb + (k-1)*msw
	if den <= 0 {
		return 0
	}
	icc := (msb - msw) / den
	if icc < 0 {
		return 0
	}
	if icc > 1 {
		return 1
	}
	return icc
}
