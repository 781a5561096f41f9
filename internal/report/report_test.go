package report

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"lmmlab/internal/fit"
	"lmmlab/internal/longsim"
)

func simulated(t *testing.T, p longsim.Params) *longsim.Dataset {
	t.Helper()
	ds, err := longsim.Simulate(p)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	return ds
}

func TestSummarizeCounts(t *testing.T) {
	ds := simulated(t, longsim.Params{
		N: 50, K: 3, MAF: 0.25,
		ICCC: 0.5, VarEC: 1,
		ICCE: 0.5, VarEE: 1,
		BetaEY: 1, ICCY: 0.5, VarEY: 1,
		Seed: 11,
	})
	s := Summarize(ds)
	if s.Rows != 150 || s.Individuals != 50 || s.Timepoints != 3 {
		t.Fatalf("summary counts %+v", s)
	}
	if len(s.Variables) != 3 {
		t.Fatalf("expected C, E, Y summaries, got %d", len(s.Variables))
	}
	if s.Variables[0].Name != "C" || s.Variables[2].Name != "Y" {
		t.Fatalf("variable order %v", s.Variables)
	}
	if s.CorrEY <= 0 {
		t.Fatalf("corr(E, Y) = %.3f, want positive with beta_ey = 1", s.CorrEY)
	}
}

func TestEmpiricalICCBoundaries(t *testing.T) {
	// icc = 1: every individual is perfectly time-constant, estimator hits 1.
	constant := simulated(t, longsim.Params{
		N: 100, K: 4, ICCC: 1, VarEC: 1, Seed: 5,
	})
	if got := EmpiricalICC(constant.C, constant); got != 1 {
		t.Fatalf("icc of time-constant column = %.4f, want exactly 1", got)
	}

	// icc = 0: no between-person component, estimate stays near 0.
	independent := simulated(t, longsim.Params{
		N: 500, K: 4, ICCC: 0, VarEC: 1, Seed: 5,
	})
	if got := EmpiricalICC(independent.C, independent); got > 0.1 {
		t.Fatalf("icc of unclustered column = %.4f, want near 0", got)
	}

	// Strong clustering lands near the generating value.
	clustered := simulated(t, longsim.Params{
		N: 500, K: 4, ICCC: 0.8, VarEC: 1, Seed: 5,
	})
	got := EmpiricalICC(clustered.C, clustered)
	if math.Abs(got-0.8) > 0.08 {
		t.Fatalf("icc = %.4f, want near 0.8", got)
	}
}

func TestEmpiricalICCDegeneratePanels(t *testing.T) {
	single := simulated(t, longsim.Params{N: 50, K: 1, ICCC: 0.5, VarEC: 1, Seed: 2})
	if got := EmpiricalICC(single.C, single); got != 0 {
		t.Fatalf("icc with one timepoint = %g, want 0", got)
	}
	one := simulated(t, longsim.Params{N: 1, K: 4, ICCC: 0.5, VarEC: 1, Seed: 2})
	if got := EmpiricalICC(one.C, one); got != 0 {
		t.Fatalf("icc with one individual = %g, want 0", got)
	}
}

func TestBuildComparisonSideBySide(t *testing.T) {
	ds := simulated(t, longsim.Params{
		N: 300, K: 4, MAF: 0.25,
		ICCE: 0.5, VarEE: 1,
		BetaTY: -1, BetaEY: 1, ICCY: 0.8, VarEY: 1,
		Seed: 13,
	})

	fm, err := fit.ParseFormula("Y ~ t + E + (1|id)")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	mixed, err := fit.Mixed(ds, fm)
	if err != nil {
		t.Fatalf("mixed: %v", err)
	}
	fo, err := fit.ParseFormula("Y ~ t + E")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ols, err := fit.OLS(ds, fo)
	if err != nil {
		t.Fatalf("ols: %v", err)
	}

	c := BuildComparison("demo", ds, []ModelReport{FromMixed(mixed), FromOLS(ols)})
	if c.Scenario != "demo" {
		t.Fatalf("scenario %q", c.Scenario)
	}
	if len(c.Models) != 2 || c.Models[0].Kind != "mixed" || c.Models[1].Kind != "ols" {
		t.Fatalf("model kinds %v, %v", c.Models[0].Kind, c.Models[1].Kind)
	}
	if c.Models[0].Variance == nil {
		t.Fatalf("mixed model report missing variance partition")
	}
	if len(c.SideBySide) != 3 {
		t.Fatalf("expected 3 shared terms, got %d", len(c.SideBySide))
	}
	for _, tc := range c.SideBySide {
		if tc.EstimateGap != tc.MixedEstimate-tc.OLSEstimate {
			t.Fatalf("term %s: gap inconsistent", tc.Term)
		}
		if tc.SERatio <= 0 {
			t.Fatalf("term %s: se ratio %.3f", tc.Term, tc.SERatio)
		}
	}
}

func TestBuildComparisonWithoutOLS(t *testing.T) {
	ds := simulated(t, longsim.Params{
		N: 50, K: 3, ICCY: 0.5, VarEY: 1, Seed: 4,
	})
	fm, err := fit.ParseFormula("Y ~ t + (1|id)")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	mixed, err := fit.Mixed(ds, fm)
	if err != nil {
		t.Fatalf("mixed: %v", err)
	}
	c := BuildComparison("solo", ds, []ModelReport{FromMixed(mixed)})
	if c.SideBySide != nil {
		t.Fatalf("side-by-side should need both model kinds")
	}
}

func TestPrintComparison(t *testing.T) {
	ds := simulated(t, longsim.Params{
		N: 40, K: 3, ICCE: 0.5, VarEE: 1, BetaEY: 1, ICCY: 0.5, VarEY: 1, Seed: 8,
	})
	fm, err := fit.ParseFormula("Y ~ t + E + (1|id)")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	mixed, err := fit.Mixed(ds, fm)
	if err != nil {
		t.Fatalf("mixed: %v", err)
	}
	fo, err := fit.ParseFormula("Y ~ t + E")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ols, err := fit.OLS(ds, fo)
	if err != nil {
		t.Fatalf("ols: %v", err)
	}

	var buf bytes.Buffer
	PrintComparison(&buf, BuildComparison("print-demo", ds, []ModelReport{FromMixed(mixed), FromOLS(ols)}))
	out := buf.String()
	for _, want := range []string{"print-demo", "Mixed model", "OLS:", "(Intercept)", "se ratio"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintComparisonZeroR2(t *testing.T) {
	ds := simulated(t, longsim.Params{N: 10, K: 2, ICCY: 0.5, VarEY: 1, Seed: 6})
	c := Comparison{
		Scenario: "flat",
		Data:     Summarize(ds),
		Models: []ModelReport{{
			Kind:    "ols",
			Formula: "Y ~ t",
			Coefficients: []fit.Coef{
				{Term: "(Intercept)", Estimate: 0.1, StdErr: 0.2, PValue: 0.6},
			},
		}},
	}

	var buf bytes.Buffer
	PrintComparison(&buf, c)
	if !strings.Contains(buf.String(), "R2 0.000") {
		t.Fatalf("ols fit with zero R2 should still print its R2 line:\n%s", buf.String())
	}
}
