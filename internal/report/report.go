// Package report writes maintenance results and dry-run plans to JSON or
// XLSX files for review.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/hygiene-cli/internal/model"
)

// Sheet names in the exported workbook.
const (
	SheetSummary        = "Summary"
	SheetPhases         = "Phases"
	SheetErrors         = "Errors"
	SheetMerges         = "Merges"
	SheetDeletions      = "Deletions"
	SheetNormalizations = "Normalizations"
	SheetUnmapped       = "Unmapped"
	SheetFixes          = "Fixes"
)

// Write saves res to path. The format follows the file extension: .json or
// .xlsx.
func Write(path string, res *model.Result) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return WriteJSON(path, res)
	case ".xlsx":
		return WriteXLSX(path, res)
	default:
		return eris.Errorf("report: unsupported format %q (want .json or .xlsx)", filepath.Ext(path))
	}
}

// WriteJSON saves res as indented JSON.
func WriteJSON(path string, res *model.Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return eris.Wrap(err, "report: marshal result")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "report: write %s", path)
	}
	return nil
}

// WriteXLSX saves res as a workbook with one sheet per section. Plan sheets
// are added only when res carries a plan.
func WriteXLSX(path string, res *model.Result) error {
	f := xlsx.NewFile()

	if err := addSheet(f, SheetSummary, []string{"Field", "Value"}, summaryRows(res)); err != nil {
		return err
	}

	phases := make([][]string, 0, len(res.Details))
	for _, p := range res.Details {
		phases = append(phases, []string{
			string(p.Phase), PhaseTitle(p.Phase), string(p.Status),
			itoa(p.Processed), itoa(p.Updated), itoa(p.Failed), itoa(p.Skipped), itoa(p.Flagged),
			fmt.Sprint(p.DurationMs), p.Error,
		})
	}
	if err := addSheet(f, SheetPhases,
		[]string{"Phase", "Name", "Status", "Processed", "Updated", "Failed", "Skipped", "Flagged", "Duration (ms)", "Error"},
		phases); err != nil {
		return err
	}

	errs := make([][]string, 0, len(res.Errors))
	for _, e := range res.Errors {
		errs = append(errs, []string{string(e.Phase), string(e.Kind), e.Message})
	}
	if err := addSheet(f, SheetErrors, []string{"Phase", "Kind", "Message"}, errs); err != nil {
		return err
	}

	if res.Plan != nil {
		if err := addPlanSheets(f, res.Plan); err != nil {
			return err
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}
	return nil
}

func addPlanSheets(f *xlsx.File, plan *model.Plan) error {
	merges := make([][]string, 0, len(plan.Merges))
	for _, m := range plan.Merges {
		merges = append(merges, []string{
			string(m.Entity), i64(m.KeepID), m.KeepName, i64(m.MergeID), m.MergeName,
			fmt.Sprintf("%.4f", m.Score.Combined), fmt.Sprintf("%.4f", m.Score.Levenshtein),
			fmt.Sprintf("%.4f", m.Score.JaroWinkler), fmt.Sprintf("%.4f", m.Score.Phonetic),
			strings.Join(m.Signals, ", "), m.Justification,
		})
	}
	if err := addSheet(f, SheetMerges,
		[]string{"Entity", "Keep ID", "Keep Name", "Merge ID", "Merge Name", "Combined", "Levenshtein", "Jaro-Winkler", "Phonetic", "Signals", "Justification"},
		merges); err != nil {
		return err
	}

	dels := make([][]string, 0, len(plan.Deletions))
	for _, d := range plan.Deletions {
		dels = append(dels, []string{string(d.Phase), d.Table, d.Column, i64(d.ID), d.Reason})
	}
	if err := addSheet(f, SheetDeletions, []string{"Phase", "Table", "Match Column", "ID", "Reason"}, dels); err != nil {
		return err
	}

	norms := make([][]string, 0, len(plan.Normalizations))
	for _, n := range plan.Normalizations {
		norms = append(norms, []string{string(n.Phase), n.Table, n.Column, i64(n.ID), n.From, n.To})
	}
	if err := addSheet(f, SheetNormalizations, []string{"Phase", "Table", "Column", "ID", "From", "To"}, norms); err != nil {
		return err
	}

	unmapped := make([][]string, 0, len(plan.Unmapped))
	for _, u := range plan.Unmapped {
		unmapped = append(unmapped, []string{string(u.Phase), u.Table, u.Column, i64(u.ID), u.Value})
	}
	if err := addSheet(f, SheetUnmapped, []string{"Phase", "Table", "Column", "ID", "Value"}, unmapped); err != nil {
		return err
	}

	fixes := make([][]string, 0, len(plan.Fixes))
	for _, x := range plan.Fixes {
		fixes = append(fixes, []string{x.Table, x.Column, i64(x.ID), x.Value, x.Reason})
	}
	return addSheet(f, SheetFixes, []string{"Table", "Column", "ID", "Value", "Reason"}, fixes)
}

func summaryRows(res *model.Result) [][]string {
	rows := [][]string{
		{"Run ID", res.RunID},
		{"Status", string(res.Status)},
		{"Success", fmt.Sprint(res.Success)},
		{"Dry Run", fmt.Sprint(res.DryRun)},
		{"Items Processed", itoa(res.ItemsProcessed)},
		{"Items Updated", itoa(res.ItemsUpdated)},
		{"Items Failed", itoa(res.ItemsFailed)},
		{"Items Skipped", itoa(res.ItemsSkipped)},
		{"Duration (ms)", fmt.Sprint(res.DurationMs)},
		{"Errors", itoa(len(res.Errors))},
	}
	if p := res.Plan; p != nil {
		rows = append(rows,
			[]string{"Planned Merges", itoa(len(p.Merges))},
			[]string{"Planned Deletions", itoa(len(p.Deletions))},
			[]string{"Planned Normalizations", itoa(len(p.Normalizations))},
			[]string{"Unmapped Values", itoa(len(p.Unmapped))},
			[]string{"Planned Fixes", itoa(len(p.Fixes))},
			[]string{"Estimated Duration (ms)", fmt.Sprint(p.EstimatedMs)},
			[]string{"Generated At", p.GeneratedAt.UTC().Format("2006-01-02 15:04:05")},
		)
	}
	return rows
}

func addSheet(f *xlsx.File, name string, header []string, rows [][]string) error {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrapf(err, "report: add sheet %s", name)
	}
	writeRow(sheet, header)
	for _, r := range rows {
		writeRow(sheet, r)
	}
	return nil
}

func writeRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, v := range cells {
		row.AddCell().SetString(v)
	}
}

// PhaseTitle renders a phase id for display, e.g. "Normalize Countries".
func PhaseTitle(p model.Phase) string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(p), "_", " "))
}

func itoa(n int) string  { return strconv.Itoa(n) }
func i64(n int64) string { return strconv.FormatInt(n, 10) }
