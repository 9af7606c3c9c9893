package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/report"
)

var artifactPaths []string

func main() {
	rootCmd := &cobra.Command{
		Use:   "e2e-query",
		Short: "Query E2E run history",
		Long:  `CLI tool to query and analyze E2E results stored as results.json artifacts`,
	}

	rootCmd.PersistentFlags().StringSliceVar(&artifactPaths, "artifacts", []string{getEnvOrDefault("E2E_ARTIFACT_ROOT", "e2e/artifacts")},
		"results.json files, run directories or an artifact root")

	rootCmd.AddCommand(
		newFailuresCmd(),
		newSuccessRateCmd(),
		newFlakyTestsCmd(),
		newTimingsCmd(),
		newErrorPatternCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadHistory() (*report.History, error) {
	h, err := report.LoadHistory(artifactPaths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}
	return h, nil
}

func printFailures(failures []report.FailureInfo, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(failures, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tTEST NAME\tCATEGORY\tDIFF\tMESSAGE")
	for _, f := range failures {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", f.RunID, f.TestName, f.Category, f.Diff, f.Message)
	}
	return w.Flush()
}

func newFailuresCmd() *cobra.Command {
	var category string
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "failures",
		Short: "List failed tests, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := loadHistory()
			if err != nil {
				return err
			}
			failures := h.Failures(category, limit)
			if len(failures) == 0 {
				fmt.Println("No failures found")
				return nil
			}
			return printFailures(failures, asJSON)
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Only failures of this category (NotIsomorphic, StoreNotReady, ...)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of results")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")

	return cmd
}

func newSuccessRateCmd() *cobra.Command {
	var tag string

	cmd := &cobra.Command{
		Use:   "success-rate",
		Short: "Calculate test success rate",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := loadHistory()
			if err != nil {
				return err
			}
			rate := h.SuccessRate(tag)

			fmt.Println("\n=== Test Success Rate ===")
			fmt.Printf("Runs:         %d\n", len(h.Runs))
			fmt.Printf("Total:        %d\n", rate.Total)
			fmt.Printf("Passed:       %d\n", rate.Passed)
			fmt.Printf("Failed:       %d\n", rate.Failed)
			fmt.Printf("Skipped:      %d\n", rate.Skipped)
			fmt.Printf("Pending:      %d\n", rate.Pending)
			fmt.Printf("Success Rate: %.2f%%\n", rate.SuccessRate)
			return nil
		},
	}

	cmd.Flags().StringVar(&tag, "tag", "", "Only tests carrying this tag")

	return cmd
}

func newFlakyTestsCmd() *cobra.Command {
	var threshold float64

	cmd := &cobra.Command{
		Use:   "flaky-tests",
		Short: "Find tests with inconsistent pass/fail patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := loadHistory()
			if err != nil {
				return err
			}
			tests := h.FlakyTests(threshold)
			if len(tests) == 0 {
				fmt.Println("No flaky tests found!")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TEST NAME\tPASSED\tFAILED\tTOTAL\tPASS RATE")
			for _, t := range tests {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.2f%%\n", t.TestName, t.Passed, t.Failed, t.Total, t.PassRate*100)
			}
			return w.Flush()
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", 0.2, "Threshold for flakiness (0.2 = 20%)")

	return cmd
}

func newTimingsCmd() *cobra.Command {
	var test string

	cmd := &cobra.Command{
		Use:   "timings",
		Short: "Average durations per step action",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := loadHistory()
			if err != nil {
				return err
			}
			timings := h.AverageTimings(test)
			if len(timings) == 0 {
				fmt.Println("No timing data found")
				return nil
			}

			keys := make([]string, 0, len(timings))
			for key := range timings {
				keys = append(keys, key)
			}
			sort.Strings(keys)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "METRIC\tAVG TIME (seconds)")
			for _, key := range keys {
				fmt.Fprintf(w, "%s\t%.3f\n", key, timings[key].Seconds())
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&test, "test", "", "Only this test")

	return cmd
}

func newErrorPatternCmd() *cobra.Command {
	var pattern string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "error-pattern",
		Short: "Find failures matching an error pattern (regex)",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := loadHistory()
			if err != nil {
				return err
			}
			failures, err := h.ByErrorPattern(pattern)
			if err != nil {
				return err
			}
			if len(failures) == 0 {
				fmt.Printf("No tests found matching pattern: %s\n", pattern)
				return nil
			}
			return printFailures(failures, asJSON)
		},
	}

	cmd.Flags().StringVar(&pattern, "pattern", "", "Error message pattern (regex) (required)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	cmd.MarkFlagRequired("pattern")

	return cmd
}

func getEnvOrDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}
