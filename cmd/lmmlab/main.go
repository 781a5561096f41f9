package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"lmmlab/internal/scenario"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "lmmlab",
		Short: "Longitudinal mixed model lab",
		Long: `lmmlab simulates longitudinal (repeated-measures) datasets and compares
linear mixed models against ordinary least squares under configurable
clustering and confounding.

Scenarios are YAML files; run 'lmmlab sample-config' to get a starting
point, then 'lmmlab fit --config scenario.yaml'.`,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to scenario file (empty = embedded sample)")
	rootCmd.PersistentFlags().String("format", "text", "Output format: text or json")
	rootCmd.PersistentFlags().Bool("verbose", false, "Log progress to stderr")

	rootCmd.AddCommand(
		newVersionCmd(),
		newSimulateCmd(),
		newFitCmd(),
		newSweepCmd(),
		newSampleConfigCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "lmmlab version %s\n", version)
		},
	}
}

func newSampleConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample-config [path]",
		Short: "Write the sample scenario file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				fmt.Fprint(cmd.OutOrStdout(), scenario.Sample())
				return nil
			}
			if err := os.WriteFile(args[0], []byte(scenario.Sample()), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample scenario to %s\n", args[0])
			return nil
		},
	}
	return cmd
}

// loadScenario resolves the --config flag into a validated scenario.
func loadScenario(cmd *cobra.Command) (*scenario.Scenario, error) {
	path, _ := cmd.Flags().GetString("config")
	return scenario.Load(path)
}

// jsonOutput reports whether --format asks for JSON.
func jsonOutput(cmd *cobra.Command) (bool, error) {
	format, _ := cmd.Flags().GetString("format")
	switch strings.ToLower(format) {
	case "json":
		return true, nil
	case "text":
		return false, nil
	}
	return false, fmt.Errorf("unknown format %q (want text or json)", format)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newLogger builds the stderr progress logger. Quiet unless --verbose.
func newLogger(cmd *cobra.Command) *slog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}
