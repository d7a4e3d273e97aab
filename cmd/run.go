package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/hygiene-cli/internal/maintenance"
	"github.com/sells-group/hygiene-cli/internal/model"
	"github.com/sells-group/hygiene-cli/internal/report"
)

var (
	runDryRun bool
	runID     string
	runSkip   []string
	runReport string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the maintenance phases",
	Long:  "Runs deduplication and the corrective phases against the store. With --dry-run, builds the change plan without writing.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("run"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		res, err := executeRun(ctx, maintenance.Options{
			DryRun:     runDryRun,
			RunID:      runID,
			SkipPhases: runSkip,
		}, runReport, os.Stdout)
		if err != nil {
			return err
		}
		if !res.Success {
			return eris.Errorf("maintenance run %s ended %s", res.RunID, res.Status)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "build the change plan without writing")
	runCmd.Flags().StringVar(&runID, "run-id", "", "caller-supplied run id (persists the run record)")
	runCmd.Flags().StringSliceVar(&runSkip, "skip", nil, "comma-separated phase ids to skip")
	runCmd.Flags().StringVar(&runReport, "report", "", "write the result to a .json or .xlsx file")
	rootCmd.AddCommand(runCmd)
}

// executeRun runs the engine once, writes the optional report, sends a
// webhook alert for degraded runs and prints the result JSON to out.
func executeRun(ctx context.Context, opts maintenance.Options, reportPath string, out io.Writer) (*model.Result, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer st.Close() //nolint:errcheck

	eng, err := newEngine(st)
	if err != nil {
		return nil, err
	}

	res := eng.Run(ctx, opts)

	zap.L().Info("maintenance complete",
		zap.String("run_id", res.RunID),
		zap.String("status", string(res.Status)),
		zap.Bool("dry_run", res.DryRun),
		zap.Int("items_updated", res.ItemsUpdated),
		zap.Int("items_failed", res.ItemsFailed),
		zap.Int("errors", len(res.Errors)),
	)

	if reportPath != "" {
		if err := report.Write(reportPath, res); err != nil {
			return res, err
		}
		zap.L().Info("report written", zap.String("path", reportPath))
	}

	newAlerter().NotifyRun(context.WithoutCancel(ctx), res)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return res, eris.Wrap(err, "encode result")
	}
	return res, nil
}
