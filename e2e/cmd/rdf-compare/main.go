package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/compare"
	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/rdf"
)

// errMismatch signals a negative verdict without printing usage.
var errMismatch = errors.New("graphs differ")

func main() {
	rootCmd := &cobra.Command{
		Use:           "rdf-compare",
		Short:         "Compare RDF graphs up to blank node renaming",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newIsomorphicCmd(),
		newDiffCmd(),
		newCanonCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errMismatch) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func loadPair(args []string) (*rdf.Graph, *rdf.Graph, error) {
	first, err := rdf.ParseFile(args[0], args[0])
	if err != nil {
		return nil, nil, err
	}
	second, err := rdf.ParseFile(args[1], args[1])
	if err != nil {
		return nil, nil, err
	}
	return first, second, nil
}

func newIsomorphicCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "isomorphic FIRST SECOND",
		Short: "Exit 0 when the graphs are isomorphic, 1 otherwise",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			first, second, err := loadPair(args)
			if err != nil {
				return err
			}
			ok := compare.IsIsomorphic(first, second)
			if !quiet {
				fmt.Printf("%s (%d) vs %s (%d): isomorphic=%t\n", args[0], first.Len(), args[1], second.Len(), ok)
			}
			if !ok {
				return errMismatch
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Only set the exit status")

	return cmd
}

func newDiffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff FIRST SECOND",
		Short: "Print statements shared by and exclusive to each graph",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			first, second, err := loadPair(args)
			if err != nil {
				return err
			}
			diff := compare.Diff(first, second)
			fmt.Print(diff.Report())
			if !diff.Equal() {
				return errMismatch
			}
			return nil
		},
	}

	return cmd
}

func newCanonCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "canon FILE",
		Short: "Print the graph with canonical blank node labels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := rdf.ParseFile(args[0], args[0])
			if err != nil {
				return err
			}
			if !rdf.CanSerialize(format) {
				return fmt.Errorf("unsupported output format %q", format)
			}
			return compare.Canonicalize(g).Write(os.Stdout, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", rdf.MimeNTriples, "Output content type")

	return cmd
}
