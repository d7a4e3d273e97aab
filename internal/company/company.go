// Package company defines the company and funding round records maintained by
// the hygiene engine.
package company

import (
	"time"
)

// Company is a deduplicated company record.
type Company struct {
	ID           int64  `json:"id" db:"id"`
	Name         string `json:"name" db:"name"`
	Website      string `json:"website,omitempty" db:"website"`
	Description  string `json:"description,omitempty" db:"description"`
	Industry     string `json:"industry,omitempty" db:"industry"`
	Headquarters string `json:"headquarters,omitempty" db:"headquarters"`
	Country      string `json:"country,omitempty" db:"country"`
	LinkedInURL  string `json:"linkedin_url,omitempty" db:"linkedin_url"`

	FoundedYear    *int     `json:"founded_year,omitempty" db:"founded_year"`
	EmployeeCount  *int     `json:"employee_count,omitempty" db:"employee_count"`
	TotalRaisedUSD *float64 `json:"total_raised_usd,omitempty" db:"total_raised_usd"`
	QualityScore   *float64 `json:"quality_score,omitempty" db:"quality_score"`

	// JSON columns
	Founders       []Founder `json:"founders,omitempty" db:"founders"`
	Competitors    []string  `json:"competitors,omitempty" db:"competitors"`
	NotableClients []string  `json:"notable_clients,omitempty" db:"notable_clients"`
	Aliases        []string  `json:"aliases,omitempty" db:"aliases"`

	// Derived on load; never written.
	RoundCount      int `json:"round_count" db:"-"`
	EnrichmentCount int `json:"enrichment_count" db:"-"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Founder is one entry of a company's founders list.
type Founder struct {
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	LinkedInURL string `json:"linkedin_url,omitempty"`
}

// NameRef is the light projection used for candidate grouping.
type NameRef struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Clone returns a deep copy of c.
func (c *Company) Clone() *Company {
	if c == nil {
		return nil
	}
	out := *c
	out.FoundedYear = clonePtr(c.FoundedYear)
	out.EmployeeCount = clonePtr(c.EmployeeCount)
	out.TotalRaisedUSD = clonePtr(c.TotalRaisedUSD)
	out.QualityScore = clonePtr(c.QualityScore)
	out.Founders = cloneSlice(c.Founders)
	out.Competitors = cloneSlice(c.Competitors)
	out.NotableClients = cloneSlice(c.NotableClients)
	out.Aliases = cloneSlice(c.Aliases)
	return &out
}

// ChildCount returns the number of rows in other tables that reference c.
func (c *Company) ChildCount() int {
	return c.RoundCount + c.EnrichmentCount
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}
