// Package scenario loads and validates simulation scenario files. Scenarios
// are YAML (JSON is accepted too, being a YAML subset) and bundle the
// simulation parameters, the model formulas to fit, and an optional
// parameter sweep.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"lmmlab/internal/fit"
	"lmmlab/internal/longsim"
)

// Scenario is one simulate-and-fit experiment.
type Scenario struct {
	// Name labels the run in reports and exports.
	Name string `json:"name" yaml:"name"`

	// Params are the simulation inputs.
	Params longsim.Params `json:"params" yaml:"params"`

	// Formulas are the models fit to the simulated panel. A formula with a
	// (1|id) term is fit as a random-intercept model, otherwise as pooled
	// OLS.
	Formulas []string `json:"formulas" yaml:"formulas"`

	// Sweep, when present, repeats the experiment across values of one
	// parameter.
	Sweep *Sweep `json:"sweep,omitempty" yaml:"sweep,omitempty"`
}

// Sweep describes a parameter study: for each value, Replicates datasets are
// simulated with independent seeds and the tracked coefficient is
// re-estimated on each.
type Sweep struct {
	// Param is the swept parameter name (e.g. "icc_y", "beta_ey").
	Param string `json:"param" yaml:"param"`
	// Values are the settings to sweep over.
	Values []float64 `json:"values" yaml:"values"`
	// Replicates is the number of datasets per value.
	Replicates int `json:"replicates" yaml:"replicates"`
	// Term is the coefficient tracked in the aggregate table.
	Term string `json:"term" yaml:"term"`
	// Workers caps sweep concurrency; 0 means one worker per CPU.
	Workers int `json:"workers,omitempty" yaml:"workers,omitempty"`
}

const sampleScenario = `# Longitudinal mixed model lab scenario.
name: confounded-exposure
params:
  n: 1000
  k: 4
  maf: 0.25
  icc_c: 0.8
  var_e_c: 1
  beta_ce: 0.5
  icc_e: 0.5
  var_e_e: 1
  beta_ty: -1
  beta_gy: 0.5
  beta_cy: 0.5
  beta_ey: 1
  icc_y: 0.8
  var_e_y: 1
  seed: 1
formulas:
  - Y ~ t + G + C + E + (1|id)
  - Y ~ t + G + C + E
sweep:
  param: icc_y
  values: [0, 0.2, 0.4, 0.6, 0.8]
  replicates: 50
  term: E
`

// Sample returns the embedded sample scenario text.
func Sample() string { return sampleScenario }

// Load reads a scenario file. An empty path loads the embedded sample, the
// same convention the CLI uses when no config is given.
func Load(path string) (*Scenario, error) {
	data := []byte(sampleScenario)
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read scenario: %w", err)
		}
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Scenario) applyDefaults() {
	if s.Name == "" {
		s.Name = "scenario"
	}
	if len(s.Formulas) == 0 {
		s.Formulas = []string{"Y ~ t + G + C + E + (1|id)"}
	}
	if s.Sweep != nil {
		if s.Sweep.Replicates == 0 {
			s.Sweep.Replicates = 50
		}
		if s.Sweep.Term == "" {
			s.Sweep.Term = "E"
		}
	}
}

// Validate checks the scenario beyond the simulator's own parameter
// validation: formulas must parse and the sweep block must be coherent.
func (s *Scenario) Validate() error {
	if err := s.Params.Validate(); err != nil {
		return err
	}
	for _, raw := range s.Formulas {
		if _, err := fit.ParseFormula(raw); err != nil {
			return err
		}
	}
	if s.Sweep != nil {
		if len(s.Sweep.Values) == 0 {
			return fmt.Errorf("sweep: values must not be empty")
		}
		if s.Sweep.Replicates < 1 {
			return fmt.Errorf("sweep: replicates must be >= 1")
		}
		if s.Sweep.Workers < 0 {
			return fmt.Errorf("sweep: workers must be >= 0")
		}
		probe := s.Params
		if err := ApplyParam(&probe, s.Sweep.Param, s.Sweep.Values[0]); err != nil {
			return fmt.Errorf("sweep: %w", err)
		}
	}
	return nil
}

// ApplyParam sets a simulation parameter by its scenario-file name. It is
// how sweeps override one field per run.
func ApplyParam(p *longsim.Params, name string, value float64) error {
	switch name {
	case "maf":
		p.MAF = value
	case "icc_c":
		p.ICCC = value
	case "var_e_c":
		p.VarEC = value
	case "beta_ce":
		p.BetaCE = value
	case "icc_e":
		p.ICCE = value
	case "var_e_e":
		p.VarEE = value
	case "beta_ty":
		p.BetaTY = value
	case "beta_gy":
		p.BetaGY = value
	case "beta_cy":
		p.BetaCY = value
	case "beta_ey":
		p.BetaEY = value
	case "icc_y":
		p.ICCY = value
	case "var_e_y":
		p.VarEY = value
	default:
		return fmt.Errorf("unknown sweep parameter %q", name)
	}
	return nil
}

// TrueCoef returns the data-generating coefficient for a fixed-effect term,
// conditional on the other model covariates. Used to compute sweep bias.
func TrueCoef(p longsim.Params, term string) (float64, error) {
	switch term {
	case "t":
		return p.BetaTY, nil
	case "G":
		return p.BetaGY, nil
	case "C":
		return p.BetaCY, nil
	case "E":
		return p.BetaEY, nil
	}
	return 0, fmt.Errorf("no true coefficient for term %q", term)
}
