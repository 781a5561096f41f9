package scenario

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lmmlab/internal/longsim"
)

func TestLoadSample(t *testing.T) {
	s, err := Load("")
	if err != nil {
		t.Fatalf("load sample: %v", err)
	}
	if s.Name != "confounded-exposure" {
		t.Fatalf("name %q", s.Name)
	}
	if s.Params.N != 1000 || s.Params.K != 4 {
		t.Fatalf("params n=%d k=%d", s.Params.N, s.Params.K)
	}
	if len(s.Formulas) != 2 {
		t.Fatalf("expected 2 formulas, got %d", len(s.Formulas))
	}
	if s.Sweep == nil || s.Sweep.Param != "icc_y" || len(s.Sweep.Values) != 5 {
		t.Fatalf("sweep block %+v", s.Sweep)
	}
	if s.Sweep.Replicates != 50 || s.Sweep.Term != "E" {
		t.Fatalf("sweep defaults %+v", s.Sweep)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	body := `name: tiny
params:
  n: 20
  k: 3
  maf: 0.1
  icc_y: 0.5
  var_e_y: 1
  seed: 9
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Name != "tiny" || s.Params.Seed != 9 {
		t.Fatalf("loaded %+v", s)
	}
	if len(s.Formulas) != 1 {
		t.Fatalf("expected default formula, got %v", s.Formulas)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "read scenario") {
		t.Fatalf("read failure should carry context, got %q", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("wrapped error should preserve the cause, got %q", err)
	}
}

func TestValidateRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"bad param range", "params: {n: 10, k: 2, icc_y: 2}\n"},
		{"bad formula", "params: {n: 10, k: 2}\nformulas: ['Y ~ t ~ E']\n"},
		{"empty sweep values", "params: {n: 10, k: 2}\nsweep: {param: icc_y, values: []}\n"},
		{"unknown sweep param", "params: {n: 10, k: 2}\nsweep: {param: bogus, values: [0.1]}\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "s.yaml")
			if err := os.WriteFile(path, []byte(tc.body), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestApplyParam(t *testing.T) {
	var p longsim.Params
	if err := ApplyParam(&p, "beta_ey", 2.5); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if p.BetaEY != 2.5 {
		t.Fatalf("beta_ey = %g", p.BetaEY)
	}
	if err := ApplyParam(&p, "seed", 1); err == nil {
		t.Fatalf("seed must not be sweepable")
	}
}

func TestTrueCoef(t *testing.T) {
	p := longsim.Params{BetaTY: -1, BetaGY: 0.5, BetaCY: 0.25, BetaEY: 1}
	for term, want := range map[string]float64{"t": -1, "G": 0.5, "C": 0.25, "E": 1} {
		got, err := TrueCoef(p, term)
		if err != nil {
			t.Fatalf("%s: %v", term, err)
		}
		if got != want {
			t.Fatalf("%s = %g, want %g", term, got, want)
		}
	}
	if _, err := TrueCoef(p, "Y"); err == nil {
		t.Fatalf("expected error for response term")
	}
}
