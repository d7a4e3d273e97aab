package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/hygiene-cli/internal/maintenance"
	"github.com/sells-group/hygiene-cli/internal/model"
	"github.com/sells-group/hygiene-cli/internal/report"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Build and export dry-run change plans",
}

var planExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Run a dry run and export the plan for review",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("run"); err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("out")
		skip, _ := cmd.Flags().GetStringSlice("skip")

		res, err := exportPlan(cmd.Context(), out, skip)
		if err != nil {
			return err
		}
		formatPlanSummary(os.Stdout, res)
		if !res.Success {
			return eris.Errorf("plan %s ended %s", res.RunID, res.Status)
		}
		return nil
	},
}

func init() {
	planExportCmd.Flags().String("out", "plan.xlsx", "output file (.xlsx or .json)")
	planExportCmd.Flags().StringSlice("skip", nil, "comma-separated phase ids to skip")

	planCmd.AddCommand(planExportCmd)
	rootCmd.AddCommand(planCmd)
}

func exportPlan(ctx context.Context, out string, skip []string) (*model.Result, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer st.Close() //nolint:errcheck

	eng, err := newEngine(st)
	if err != nil {
		return nil, err
	}

	res := eng.Run(ctx, maintenance.Options{DryRun: true, SkipPhases: skip})
	if err := report.Write(out, res); err != nil {
		return res, err
	}
	return res, nil
}

// formatPlanSummary writes per-phase planned counts and the plan totals.
func formatPlanSummary(out io.Writer, res *model.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PHASE\tSTATUS\tFLAGGED")
	_, _ = fmt.Fprintln(w, "-----\t------\t-------")
	for _, p := range res.Details {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\n", p.Phase, p.Status, p.Flagged)
	}
	_ = w.Flush()

	if p := res.Plan; p != nil {
		_, _ = fmt.Fprintf(out, "\n%d merges, %d deletions, %d normalizations, %d unmapped, %d fixes (est. %dms)\n",
			len(p.Merges), len(p.Deletions), len(p.Normalizations), len(p.Unmapped), len(p.Fixes), p.EstimatedMs)
	}
	for _, e := range res.Errors {
		_, _ = fmt.Fprintf(out, "error [%s] %s: %s\n", e.Kind, e.Phase, e.Message)
	}
}
