package store

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hygiene-cli/internal/company"
	"github.com/sells-group/hygiene-cli/internal/model"
)

// companySelect reads a company with its derived child counters. Nullable
// text columns are coalesced so they scan into plain strings.
const companySelect = `SELECT c.id, c.name,
	COALESCE(c.website, ''), COALESCE(c.description, ''), COALESCE(c.industry, ''),
	COALESCE(c.headquarters, ''), COALESCE(c.country, ''), COALESCE(c.linkedin_url, ''),
	c.founded_year, c.employee_count, c.total_raised_usd, c.quality_score,
	c.founders, c.competitors, c.notable_clients, c.aliases,
	(SELECT COUNT(*) FROM funding_rounds fr WHERE fr.company_id = c.id),
	(SELECT COUNT(*) FROM company_enrichments ce WHERE ce.company_id = c.id),
	c.created_at, c.updated_at
FROM companies c`

const roundSelect = `SELECT r.id, r.company_id, COALESCE(r.company_name, ''), COALESCE(r.stage, ''),
	r.amount, COALESCE(r.currency, ''), r.amount_usd, r.announced_date, r.investors,
	COALESCE(r.lead_investor, ''), COALESCE(r.sector, ''), COALESCE(r.sector_normalized, ''),
	COALESCE(r.source, ''), COALESCE(r.source_url, ''), r.created_at, r.updated_at
FROM funding_rounds r`

const mergeLogColumns = `id, entity, kept_id, merged_from_id, merged_from_name, before_snapshot,
	after_snapshot, fields_transferred, children_moved, similarity, justification,
	COALESCE(run_id, ''), created_at`

const runColumns = `id, status, dry_run, skip_phases, phases, errors, items_processed,
	items_updated, items_failed, items_skipped, started_at, completed_at, duration_ms`

type scannable interface {
	Scan(dest ...any) error
}

func scanCompany(row scannable) (*company.Company, error) {
	var c company.Company
	var founders, competitors, clients, aliases []byte
	if err := row.Scan(
		&c.ID, &c.Name,
		&c.Website, &c.Description, &c.Industry,
		&c.Headquarters, &c.Country, &c.LinkedInURL,
		&c.FoundedYear, &c.EmployeeCount, &c.TotalRaisedUSD, &c.QualityScore,
		&founders, &competitors, &clients, &aliases,
		&c.RoundCount, &c.EnrichmentCount,
		&c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(founders, &c.Founders); err != nil {
		return nil, eris.Wrapf(err, "company %d: founders", c.ID)
	}
	if err := unmarshalJSON(competitors, &c.Competitors); err != nil {
		return nil, eris.Wrapf(err, "company %d: competitors", c.ID)
	}
	if err := unmarshalJSON(clients, &c.NotableClients); err != nil {
		return nil, eris.Wrapf(err, "company %d: notable_clients", c.ID)
	}
	if err := unmarshalJSON(aliases, &c.Aliases); err != nil {
		return nil, eris.Wrapf(err, "company %d: aliases", c.ID)
	}
	return &c, nil
}

func scanRound(row scannable) (*company.FundingRound, error) {
	var r company.FundingRound
	var investors []byte
	if err := row.Scan(
		&r.ID, &r.CompanyID, &r.CompanyName, &r.Stage,
		&r.Amount, &r.Currency, &r.AmountUSD, &r.AnnouncedDate, &investors,
		&r.LeadInvestor, &r.Sector, &r.SectorNormalized,
		&r.Source, &r.SourceURL, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(investors, &r.Investors); err != nil {
		return nil, eris.Wrapf(err, "round %d: investors", r.ID)
	}
	return &r, nil
}

func scanMergeLog(row scannable) (*model.MergeLogEntry, error) {
	var e model.MergeLogEntry
	var entity string
	var before, after, fields, children, sim []byte
	if err := row.Scan(
		&e.ID, &entity, &e.KeptID, &e.MergedFromID, &e.MergedFromName, &before,
		&after, &fields, &children, &sim, &e.Justification,
		&e.RunID, &e.CreatedAt,
	); err != nil {
		return nil, err
	}
	e.Entity = model.EntityKind(entity)
	for _, f := range []struct {
		raw  []byte
		dest any
		name string
	}{
		{before, &e.Before, "before_snapshot"},
		{after, &e.After, "after_snapshot"},
		{fields, &e.FieldsTransferred, "fields_transferred"},
		{children, &e.ChildrenMoved, "children_moved"},
		{sim, &e.Similarity, "similarity"},
	} {
		if err := unmarshalJSON(f.raw, f.dest); err != nil {
			return nil, eris.Wrapf(err, "merge log %d: %s", e.ID, f.name)
		}
	}
	return &e, nil
}

func scanRun(row scannable) (*model.MaintenanceRun, error) {
	var r model.MaintenanceRun
	var status string
	var skip, phases, errs []byte
	if err := row.Scan(
		&r.ID, &status, &r.DryRun, &skip, &phases, &errs, &r.ItemsProcessed,
		&r.ItemsUpdated, &r.ItemsFailed, &r.ItemsSkipped, &r.StartedAt, &r.CompletedAt, &r.DurationMs,
	); err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	if err := unmarshalJSON(skip, &r.SkipPhases); err != nil {
		return nil, eris.Wrapf(err, "run %s: skip_phases", r.ID)
	}
	if err := unmarshalJSON(phases, &r.Phases); err != nil {
		return nil, eris.Wrapf(err, "run %s: phases", r.ID)
	}
	if err := unmarshalJSON(errs, &r.Errors); err != nil {
		return nil, eris.Wrapf(err, "run %s: errors", r.ID)
	}
	return &r, nil
}

// marshalJSON encodes v, writing nil slices and maps as empty JSON values
// rather than null.
func marshalJSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		switch v.(type) {
		case map[string]int64:
			return []byte("{}"), nil
		default:
			return []byte("[]"), nil
		}
	}
	return b, nil
}

func unmarshalJSON(raw []byte, dest any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

// companyJSON holds the encoded JSON columns of a company.
type companyJSON struct {
	founders, competitors, clients, aliases []byte
}

func encodeCompanyJSON(c *company.Company) (*companyJSON, error) {
	var out companyJSON
	var err error
	if out.founders, err = marshalJSON(c.Founders); err != nil {
		return nil, eris.Wrap(err, "marshal founders")
	}
	if out.competitors, err = marshalJSON(c.Competitors); err != nil {
		return nil, eris.Wrap(err, "marshal competitors")
	}
	if out.clients, err = marshalJSON(c.NotableClients); err != nil {
		return nil, eris.Wrap(err, "marshal notable_clients")
	}
	if out.aliases, err = marshalJSON(c.Aliases); err != nil {
		return nil, eris.Wrap(err, "marshal aliases")
	}
	return &out, nil
}

// mergeLogJSON holds the encoded JSON columns of a merge log entry.
type mergeLogJSON struct {
	before, after, fields, children, similarity []byte
}

func encodeMergeLogJSON(e *model.MergeLogEntry) (*mergeLogJSON, error) {
	var out mergeLogJSON
	var err error
	if out.before, err = json.Marshal(e.Before); err != nil {
		return nil, eris.Wrap(err, "marshal before snapshot")
	}
	if out.after, err = json.Marshal(e.After); err != nil {
		return nil, eris.Wrap(err, "marshal after snapshot")
	}
	if out.fields, err = marshalJSON(e.FieldsTransferred); err != nil {
		return nil, eris.Wrap(err, "marshal fields transferred")
	}
	if out.children, err = marshalJSON(e.ChildrenMoved); err != nil {
		return nil, eris.Wrap(err, "marshal children moved")
	}
	if out.similarity, err = json.Marshal(e.Similarity); err != nil {
		return nil, eris.Wrap(err, "marshal similarity")
	}
	return &out, nil
}

// runJSON holds the encoded JSON columns of a maintenance run.
type runJSON struct {
	skip, phases, errors []byte
}

func encodeRunJSON(r *model.MaintenanceRun) (*runJSON, error) {
	var out runJSON
	var err error
	if out.skip, err = marshalJSON(r.SkipPhases); err != nil {
		return nil, eris.Wrap(err, "marshal skip phases")
	}
	if out.phases, err = marshalJSON(r.Phases); err != nil {
		return nil, eris.Wrap(err, "marshal phases")
	}
	if out.errors, err = marshalJSON(r.Errors); err != nil {
		return nil, eris.Wrap(err, "marshal errors")
	}
	return &out, nil
}

// nilIfEmpty maps "" to NULL.
func nilIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

// chunk splits ids into slices of at most size elements.
func chunk(ids []int64, size int) [][]int64 {
	if size <= 0 {
		size = len(ids)
	}
	var out [][]int64
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
