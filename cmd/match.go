package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/phasebridge/transition-cli/internal/resolve"
)

var matchCmd = &cobra.Command{
	Use:   "match <name-a> <name-b>",
	Short: "Explain how two vendor names would fuzzy-match",
	Long:  "Prints the normalized forms and token similarity of two entity names, and whether the pair clears the configured fuzzy threshold. Useful for calibrating resolver.fuzzy_threshold.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		printMatch(os.Stdout, args[0], args[1], cfg.Resolver.FuzzyThreshold, cfg.Resolver.FuzzyDiscount)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)
}

func printMatch(out io.Writer, a, b string, threshold, discount float64) {
	sim := resolve.Similarity(a, b)
	clears := sim >= threshold

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Name A:\t%s\n", a)
	_, _ = fmt.Fprintf(w, "Normalized A:\t%s\n", resolve.NormalizeName(a))
	_, _ = fmt.Fprintf(w, "Name B:\t%s\n", b)
	_, _ = fmt.Fprintf(w, "Normalized B:\t%s\n", resolve.NormalizeName(b))
	_, _ = fmt.Fprintf(w, "Similarity:\t%.4f\n", sim)
	_, _ = fmt.Fprintf(w, "Threshold:\t%.4f\n", threshold)
	if clears {
		_, _ = fmt.Fprintf(w, "Result:\tMATCH (confidence %.4f after %.2f discount)\n", sim*discount, discount)
	} else {
		_, _ = fmt.Fprintln(w, "Result:\tNO MATCH")
	}
	_ = w.Flush()
}
