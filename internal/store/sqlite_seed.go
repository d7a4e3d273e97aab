package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hygiene-cli/internal/company"
)

// InsertCompany adds a company row and sets c.ID. It backs fixtures and
// local imports; the maintenance engine itself never inserts companies.
func (s *SQLiteStore) InsertCompany(ctx context.Context, c *company.Company) error {
	js, err := encodeCompanyJSON(c)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert company")
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO companies (name, website, description, industry, headquarters, country,
			linkedin_url, founded_year, employee_count, total_raised_usd, quality_score,
			founders, competitors, notable_clients, aliases, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Name, nilIfEmpty(c.Website), nilIfEmpty(c.Description), nilIfEmpty(c.Industry),
		nilIfEmpty(c.Headquarters), nilIfEmpty(c.Country), nilIfEmpty(c.LinkedInURL),
		c.FoundedYear, c.EmployeeCount, c.TotalRaisedUSD, c.QualityScore,
		string(js.founders), string(js.competitors), string(js.clients), string(js.aliases), now, now,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert company %q", c.Name)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return eris.Wrap(err, "sqlite: company id")
	}
	c.CreatedAt, c.UpdatedAt = now, now
	return nil
}

// InsertRound adds a funding round row and sets r.ID.
func (s *SQLiteStore) InsertRound(ctx context.Context, r *company.FundingRound) error {
	investors, err := marshalJSON(r.Investors)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert round")
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO funding_rounds (company_id, company_name, stage, amount, currency, amount_usd,
			announced_date, investors, lead_investor, sector, sector_normalized, source, source_url,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.CompanyID, nilIfEmpty(r.CompanyName), nilIfEmpty(r.Stage), r.Amount, nilIfEmpty(r.Currency), r.AmountUSD,
		r.AnnouncedDate, string(investors), nilIfEmpty(r.LeadInvestor), nilIfEmpty(r.Sector),
		nilIfEmpty(r.SectorNormalized), nilIfEmpty(r.Source), nilIfEmpty(r.SourceURL), now, now,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert round")
	}
	if r.ID, err = res.LastInsertId(); err != nil {
		return eris.Wrap(err, "sqlite: round id")
	}
	r.CreatedAt, r.UpdatedAt = now, now
	return nil
}

// InsertEnrichment adds a company_enrichments row for companyID.
func (s *SQLiteStore) InsertEnrichment(ctx context.Context, companyID int64, source, payload string) (int64, error) {
	if payload == "" {
		payload = "{}"
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO company_enrichments (company_id, source, payload, fetched_at) VALUES (?, ?, ?, ?)`,
		companyID, source, payload, time.Now().UTC())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert enrichment")
	}
	id, err := res.LastInsertId()
	return id, eris.Wrap(err, "sqlite: enrichment id")
}

// CountEnrichments returns the number of enrichment rows.
func (s *SQLiteStore) CountEnrichments(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM company_enrichments`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count enrichments")
}
