package report

import (
	"fmt"
	"io"
)

// PrintComparison renders the run report as text.
func PrintComparison(w io.Writer, c Comparison) {
	fmt.Fprintln(w, "Longitudinal Mixed Model Lab")
	fmt.Fprintln(w, "----------------------------")
	fmt.Fprintf(w, "Scenario: %s\n", c.Scenario)
	fmt.Fprintf(w, "Panel: %d individuals x %d timepoints = %d rows\n",
		c.Data.Individuals, c.Data.Timepoints, c.Data.Rows)
	fmt.Fprintf(w, "corr(E, Y) = %.3f\n", c.Data.CorrEY)
	for _, v := range c.Data.Variables {
		fmt.Fprintf(w, "- %s | mean %.3f | sd %.3f | empirical ICC %.3f\n",
			v.Name, v.Mean, v.StdDev, v.ICC)
	}

	for _, m := range c.Models {
		fmt.Fprintln(w)
		switch m.Kind {
		case "mixed":
			fmt.Fprintf(w, "Mixed model: %s\n", m.Formula)
		default:
			fmt.Fprintf(w, "OLS: %s\n", m.Formula)
		}
		for _, coef := range m.Coefficients {
			fmt.Fprintf(w, "- %-12s | est %8.4f | se %7.4f | t %8.2f | p %s\n",
				coef.Term, coef.Estimate, coef.StdErr, coef.TValue, formatP(coef.PValue))
		}
		if m.Variance != nil {
			fmt.Fprintf(w, "Random intercept var %.4f | residual var %.4f | ICC %.3f\n",
				m.Variance.InterceptVar, m.Variance.ResidualVar, m.Variance.ICC)
		} else if m.Kind == "ols" {
			fmt.Fprintf(w, "R2 %.3f\n", m.R2)
		}
	}

	if len(c.SideBySide) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Mixed vs OLS")
		for _, tc := range c.SideBySide {
			fmt.Fprintf(w, "- %-12s | mixed %8.4f (se %.4f) | ols %8.4f (se %.4f) | gap %8.4f | se ratio %.2f\n",
				tc.Term, tc.MixedEstimate, tc.MixedStdErr, tc.OLSEstimate, tc.OLSStdErr,
				tc.EstimateGap, tc.SERatio)
		}
	}
}

func formatP(p float64) string {
	if p < 0.001 {
		return "<0.001"
	}
	return fmt.Sprintf("%.3f", p)
}
