package company

import (
	"time"
)

// FundingRound is a financing event owned by a company. CompanyID is nil for
// unlinked rounds.
type FundingRound struct {
	ID               int64      `json:"id" db:"id"`
	CompanyID        *int64     `json:"company_id,omitempty" db:"company_id"`
	CompanyName      string     `json:"company_name,omitempty" db:"company_name"`
	Stage            string     `json:"stage,omitempty" db:"stage"`
	Amount           *float64   `json:"amount,omitempty" db:"amount"`
	Currency         string     `json:"currency,omitempty" db:"currency"`
	AmountUSD        *float64   `json:"amount_usd,omitempty" db:"amount_usd"`
	AnnouncedDate    *time.Time `json:"announced_date,omitempty" db:"announced_date"`
	Investors        []string   `json:"investors,omitempty" db:"investors"`
	LeadInvestor     string     `json:"lead_investor,omitempty" db:"lead_investor"`
	Sector           string     `json:"sector,omitempty" db:"sector"`
	SectorNormalized string     `json:"sector_normalized,omitempty" db:"sector_normalized"`
	Source           string     `json:"source,omitempty" db:"source"`
	SourceURL        string     `json:"source_url,omitempty" db:"source_url"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Clone returns a deep copy of r.
func (r *FundingRound) Clone() *FundingRound {
	if r == nil {
		return nil
	}
	out := *r
	out.CompanyID = clonePtr(r.CompanyID)
	out.Amount = clonePtr(r.Amount)
	out.AmountUSD = clonePtr(r.AmountUSD)
	out.AnnouncedDate = clonePtr(r.AnnouncedDate)
	out.Investors = cloneSlice(r.Investors)
	return &out
}

// EffectiveAmount prefers the USD-converted amount when present.
func (r *FundingRound) EffectiveAmount() *float64 {
	if r.AmountUSD != nil {
		return r.AmountUSD
	}
	return r.Amount
}
