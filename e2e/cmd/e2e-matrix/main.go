package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/fixtures"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/matrix"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/steps"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "e2e-matrix",
		Short: "Generate round-trip test specs from a fixture matrix",
		Long:  `Tool to expand fixtures x insert modes x scenarios into runnable test specs`,
	}

	rootCmd.AddCommand(
		newGenerateCmd(),
		newReportCmd(),
		newValidateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newGenerateCmd() *cobra.Command {
	var matrixFile string
	var outputFile string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate test specs from a matrix file",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := matrix.Load(matrixFile)
			if err != nil {
				return err
			}
			specs, err := matrix.NewGenerator(m).Generate()
			if err != nil {
				return fmt.Errorf("failed to generate specs: %w", err)
			}

			var output []byte
			for i, testSpec := range specs {
				specData, err := yaml.Marshal(testSpec)
				if err != nil {
					return fmt.Errorf("failed to marshal spec: %w", err)
				}
				if i > 0 {
					output = append(output, []byte("---\n")...)
				}
				output = append(output, specData...)
			}

			if outputFile == "" || outputFile == "-" {
				fmt.Print(string(output))
				return nil
			}
			if err := os.MkdirAll(filepath.Dir(outputFile), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(outputFile, output, 0o644); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
			fmt.Printf("Generated %d test specs to %s\n", len(specs), outputFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&matrixFile, "matrix", "m", "", "Matrix file path (required)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.MarkFlagRequired("matrix")

	return cmd
}

func newReportCmd() *cobra.Command {
	var matrixFile string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize the combinations of a matrix",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := matrix.Load(matrixFile)
			if err != nil {
				return err
			}
			fmt.Println(matrix.NewGenerator(m).GenerateReport())
			return nil
		},
	}

	cmd.Flags().StringVarP(&matrixFile, "matrix", "m", "", "Matrix file path (required)")
	cmd.MarkFlagRequired("matrix")

	return cmd
}

func newValidateCmd() *cobra.Command {
	var matrixFile string
	var registryFile string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a matrix file against the fixture registry and step actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := matrix.Load(matrixFile)
			if err != nil {
				return err
			}
			if err := m.Validate(); err != nil {
				return fmt.Errorf("matrix validation failed: %w", err)
			}
			if registryFile != "" {
				registry, err := fixtures.LoadRegistry(registryFile)
				if err != nil {
					return err
				}
				for _, name := range m.Fixtures {
					if _, ok := registry.Get(name); !ok {
						return fmt.Errorf("matrix validation failed: unknown fixture %q", name)
					}
				}
			}
			actions := steps.DefaultRegistry()
			for _, scenario := range m.Scenarios {
				for _, step := range scenario.Steps {
					if !actions.Has(step.Action) {
						return fmt.Errorf("matrix validation failed: scenario %s: unknown action %q", scenario.Name, step.Action)
					}
				}
				for _, assertion := range scenario.Assertions {
					if !actions.Has("assert." + assertion.Type) {
						return fmt.Errorf("matrix validation failed: scenario %s: unknown assertion %q", scenario.Name, assertion.Type)
					}
				}
			}

			fmt.Println("✓ Matrix file is valid")
			return nil
		},
	}

	cmd.Flags().StringVarP(&matrixFile, "matrix", "m", "", "Matrix file path (required)")
	cmd.Flags().StringVar(&registryFile, "fixture-registry", "e2e/fixtures/registry.yaml", "Fixture registry to check fixture names against")
	cmd.MarkFlagRequired("matrix")

	return cmd
}
