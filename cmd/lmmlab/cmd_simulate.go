package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lmmlab/internal/export"
	"lmmlab/internal/longsim"
	"lmmlab/internal/report"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Simulate a longitudinal panel and summarize it",
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := loadScenario(cmd)
			if err != nil {
				return err
			}
			log := newLogger(cmd)

			ds, err := longsim.Simulate(sc.Params)
			if err != nil {
				return err
			}
			log.Debug("simulated panel", "scenario", sc.Name, "rows", ds.Rows())

			if err := exportDataset(cmd, sc.Name, ds, nil); err != nil {
				return err
			}

			summary := report.Summarize(ds)
			if asJSON, err := jsonOutput(cmd); err != nil {
				return err
			} else if asJSON {
				return printJSON(cmd, summary)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Scenario: %s\n", sc.Name)
			fmt.Fprintf(out, "Panel: %d individuals x %d timepoints = %d rows\n",
				summary.Individuals, summary.Timepoints, summary.Rows)
			fmt.Fprintf(out, "corr(E, Y) = %.3f\n", summary.CorrEY)
			for _, v := range summary.Variables {
				fmt.Fprintf(out, "- %s | mean %.3f | sd %.3f | empirical ICC %.3f\n",
					v.Name, v.Mean, v.StdDev, v.ICC)
			}
			return nil
		},
	}
	addExportFlags(cmd)
	return cmd
}

func addExportFlags(cmd *cobra.Command) {
	cmd.Flags().String("csv", "", "Write the panel to a CSV file")
	cmd.Flags().String("db", "", "Write the run to a SQLite database")
}

// exportDataset honors the --csv and --db flags.
func exportDataset(cmd *cobra.Command, name string, ds *longsim.Dataset, models []report.ModelReport) error {
	if path, _ := cmd.Flags().GetString("csv"); path != "" {
		if err := export.WriteCSV(ds, path); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}
	if path, _ := cmd.Flags().GetString("db"); path != "" {
		store, err := export.OpenStore(path)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.SaveRun(cmd.Context(), name, ds, models); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
	}
	return nil
}
