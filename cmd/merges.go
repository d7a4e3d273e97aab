package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/hygiene-cli/internal/model"
	"github.com/sells-group/hygiene-cli/internal/store"
)

var mergesCmd = &cobra.Command{
	Use:   "merges",
	Short: "Browse the merge audit log",
}

var mergesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List executed merges",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("run"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runID, _ := cmd.Flags().GetString("run-id")
		entity, _ := cmd.Flags().GetString("entity")
		keptID, _ := cmd.Flags().GetInt64("kept-id")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		entries, err := st.ListMergeLog(ctx, store.MergeLogFilter{
			RunID:  runID,
			KeptID: keptID,
			Entity: model.EntityKind(entity),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "merges list")
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "No merges found.")
			return nil
		}
		formatMergeLog(os.Stdout, entries)
		return nil
	},
}

func init() {
	mergesListCmd.Flags().String("run-id", "", "filter by run id")
	mergesListCmd.Flags().String("entity", "", "filter by entity (company, funding_round)")
	mergesListCmd.Flags().Int64("kept-id", 0, "filter by surviving record id")
	mergesListCmd.Flags().Int("limit", 50, "max number of entries to display")
	mergesListCmd.Flags().Bool("json", false, "print full entries with before/after snapshots as JSON")

	mergesCmd.AddCommand(mergesListCmd)
	rootCmd.AddCommand(mergesCmd)
}

// formatMergeLog writes a tabular list of merge log entries to out.
func formatMergeLog(out io.Writer, entries []model.MergeLogEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ENTITY\tKEPT\tMERGED\tNAME\tSCORE\tFIELDS\tCHILDREN\tRUN\tAT")
	_, _ = fmt.Fprintln(w, "------\t----\t------\t----\t-----\t------\t--------\t---\t--")

	for _, e := range entries {
		var moved int64
		for _, n := range e.ChildrenMoved {
			moved += n
		}
		name := e.MergedFromName
		if len(name) > 30 {
			name = name[:27] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%.3f\t%s\t%d\t%s\t%s\n",
			e.Entity,
			e.KeptID,
			e.MergedFromID,
			name,
			e.Similarity.Combined,
			strings.Join(e.FieldsTransferred, ","),
			moved,
			truncateID(e.RunID),
			e.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}
