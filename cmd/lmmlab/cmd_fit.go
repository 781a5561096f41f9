package main

import (
	"strings"

	"github.com/spf13/cobra"

	"lmmlab/internal/fit"
	"lmmlab/internal/longsim"
	"lmmlab/internal/report"
)

func newFitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Simulate a panel and fit the scenario's models",
		Long: `fit simulates the scenario panel once and fits every configured formula:
random-intercept models for formulas carrying (1|id), pooled OLS otherwise.
With --compare, each mixed formula is additionally fit by OLS with the
random term dropped, so the report lines the two up term by term.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := loadScenario(cmd)
			if err != nil {
				return err
			}
			compare, _ := cmd.Flags().GetBool("compare")
			log := newLogger(cmd)

			ds, err := longsim.Simulate(sc.Params)
			if err != nil {
				return err
			}
			log.Debug("simulated panel", "scenario", sc.Name, "rows", ds.Rows())

			var models []report.ModelReport
			for _, raw := range sc.Formulas {
				f, err := fit.ParseFormula(raw)
				if err != nil {
					return err
				}

				if f.HasRandomIntercept() {
					res, err := fit.Mixed(ds, f)
					if err != nil {
						return err
					}
					models = append(models, report.FromMixed(res))
					log.Debug("fit mixed model", "formula", raw)
					if !compare {
						continue
					}
					f.Group = ""
					f.Raw = stripRandomTerm(raw)
				}

				res, err := fit.OLS(ds, f)
				if err != nil {
					return err
				}
				models = append(models, report.FromOLS(res))
				log.Debug("fit ols model", "formula", f.Raw)
			}

			if err := exportDataset(cmd, sc.Name, ds, models); err != nil {
				return err
			}

			comparison := report.BuildComparison(sc.Name, ds, models)
			if asJSON, err := jsonOutput(cmd); err != nil {
				return err
			} else if asJSON {
				return printJSON(cmd, comparison)
			}
			report.PrintComparison(cmd.OutOrStdout(), comparison)
			return nil
		},
	}
	cmd.Flags().Bool("compare", false, "Also fit each mixed formula by OLS without the random term")
	addExportFlags(cmd)
	return cmd
}

// stripRandomTerm removes the "(1|...)" term from a formula string for
// display of the OLS counterpart.
func stripRandomTerm(raw string) string {
	parts := strings.Split(raw, "+")
	kept := parts[:0]
	for _, p := range parts {
		if strings.Contains(p, "|") {
			continue
		}
		kept = append(kept, strings.TrimSpace(p))
	}
	return strings.Join(kept, " + ")
}
