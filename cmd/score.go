package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/hygiene-cli/internal/model"
	"github.com/sells-group/hygiene-cli/internal/resolve"
)

var scoreCmd = &cobra.Command{
	Use:   "score <name-a> <name-b>",
	Short: "Print the similarity breakdown of two company names",
	Long:  "Scores two names with the configured weights and reports which merge tier the score falls into. Useful for tuning dedup thresholds.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("offline"); err != nil {
			return err
		}
		scorer := resolve.NewScorer(scorerWeights(cfg))
		sim := scorer.Compare(args[0], args[1])
		th := resolve.Thresholds{High: cfg.Dedup.HighThreshold, Moderate: cfg.Dedup.ModerateThreshold}
		formatScore(os.Stdout, args[0], args[1], sim, th)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)
}

// scoreTier names the merge rule a score satisfies.
func scoreTier(sim model.Similarity, th resolve.Thresholds) string {
	switch {
	case sim.NormalizedMatch:
		return "duplicate (normalized names match)"
	case sim.Combined >= th.High:
		return "duplicate (high similarity)"
	case sim.Combined >= th.Moderate:
		return "duplicate only with matching country or headquarters"
	default:
		return "distinct"
	}
}

// formatScore writes the breakdown of one comparison to out.
func formatScore(out io.Writer, a, b string, sim model.Similarity, th resolve.Thresholds) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "A:\t%s\t(%s)\n", a, resolve.NormalizeName(a))
	_, _ = fmt.Fprintf(w, "B:\t%s\t(%s)\n", b, resolve.NormalizeName(b))
	_, _ = fmt.Fprintf(w, "Levenshtein:\t%.4f\n", sim.Levenshtein)
	_, _ = fmt.Fprintf(w, "Jaro-Winkler:\t%.4f\n", sim.JaroWinkler)
	_, _ = fmt.Fprintf(w, "Phonetic:\t%.4f\n", sim.Phonetic)
	_, _ = fmt.Fprintf(w, "Combined:\t%.4f\n", sim.Combined)
	_, _ = fmt.Fprintf(w, "Thresholds:\thigh %.2f, moderate %.2f\n", th.High, th.Moderate)
	_, _ = fmt.Fprintf(w, "Verdict:\t%s\n", scoreTier(sim, th))
	_ = w.Flush()
}
