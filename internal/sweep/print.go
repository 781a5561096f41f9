package sweep

import (
	"fmt"
	"io"
)

// Print renders a sweep table as text.
func Print(w io.Writer, param, term string, cells []Cell) {
	fmt.Fprintf(w, "Sweep of %s, tracking coefficient %s\n", param, term)
	for _, c := range cells {
		fmt.Fprintf(w, "- %s=%-6g | reps %3d | true %7.4f | mean est %8.4f | bias %8.4f | emp se %7.4f | intercept var %7.4f | residual var %7.4f\n",
			param, c.Value, c.Replicates, c.TrueCoef, c.MeanEstimate, c.Bias,
			c.EmpiricalSE, c.MeanInterceptVar, c.MeanResidualVar)
	}
}
