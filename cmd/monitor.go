package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/hygiene-cli/internal/monitoring"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch run history and alert on failures",
	Long:  "Collects maintenance run metrics on an interval and posts webhook alerts when the failure rate climbs or no run has succeeded recently.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("monitor"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		checker := monitoring.NewChecker(monitoring.NewCollector(st), newAlerter(), cfg.Monitoring, zap.L())

		once, _ := cmd.Flags().GetBool("once")
		if !once {
			checker.Run(ctx)
			return nil
		}

		alerts, sent, err := checker.Check(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("monitor check complete", zap.Int("alerts", len(alerts)), zap.Int("sent", sent))
		if alerts == nil {
			alerts = []monitoring.Alert{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(alerts)
	},
}

func init() {
	monitorCmd.Flags().Bool("once", false, "run a single check, print triggered alerts and exit")
	rootCmd.AddCommand(monitorCmd)
}
