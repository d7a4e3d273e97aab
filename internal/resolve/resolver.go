package resolve

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/hygiene-cli/internal/company"
	"github.com/sells-group/hygiene-cli/internal/model"
)

// Child table names reported in PlannedMerge.ChildrenMoved.
const (
	ChildFundingRounds = "funding_rounds"
	ChildEnrichments   = "company_enrichments"
)

// Thresholds are the combined-score cutoffs for duplicate classification.
type Thresholds struct {
	High     float64
	Moderate float64
}

// DefaultThresholds returns the cutoffs used when none are configured.
func DefaultThresholds() Thresholds {
	return Thresholds{High: 0.92, Moderate: 0.85}
}

// Canonicalizer maps a raw categorical value to its canonical form.
type Canonicalizer interface {
	Canonical(raw string) (string, bool)
}

// Resolver classifies candidate pairs and plans merges.
type Resolver struct {
	scorer     *Scorer
	thresholds Thresholds
	countries  Canonicalizer
	log        *zap.Logger
}

// NewResolver creates a Resolver. countries may be nil, in which case only
// raw country strings are compared.
func NewResolver(scorer *Scorer, th Thresholds, countries Canonicalizer, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		scorer:     scorer,
		thresholds: th,
		countries:  countries,
		log:        logger.With(zap.String("component", "resolver")),
	}
}

// ResolveCompanies compares every pair in group and returns one PlannedMerge
// per duplicate pair. Pairs touching an id in visited are skipped, and every
// merged-away id is added to visited before the next pair is considered.
func (r *Resolver) ResolveCompanies(group []company.Company, visited IDSet) []model.PlannedMerge {
	members := make([]*company.Company, len(group))
	for i := range group {
		members[i] = &group[i]
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })

	norms := make([]string, len(members))
	for i, c := range members {
		norms[i] = NormalizeName(c.Name)
	}

	var out []model.PlannedMerge
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			a, b := members[i], members[j]
			if visited.Has(a.ID) || visited.Has(b.ID) {
				continue
			}

			score := r.scorer.CompareNormalized(norms[i], norms[j])
			signals, dup := r.classify(a, b, score)
			if !dup {
				continue
			}

			keep, merge := chooseKeep(a, b, a.ID, b.ID, Completeness(a), Completeness(b))
			pm := PlanCompanyMerge(keep, merge, score, signals)
			visited.Add(merge.ID)
			out = append(out, pm)

			r.log.Debug("planned company merge",
				zap.Int64("keep_id", keep.ID),
				zap.Int64("merge_id", merge.ID),
				zap.Float64("combined", score.Combined),
				zap.String("justification", pm.Justification),
			)
		}
	}
	return out
}

// PlanCompanyMerge builds the PlannedMerge for an already classified pair.
// Transfers are computed on a copy; keep is not modified.
func PlanCompanyMerge(keep, merge *company.Company, score model.Similarity, signals []string) model.PlannedMerge {
	fields := MergeCompany(keep.Clone(), merge)
	children := map[string]int64{}
	if merge.RoundCount > 0 {
		children[ChildFundingRounds] = int64(merge.RoundCount)
	}
	if merge.EnrichmentCount > 0 {
		children[ChildEnrichments] = int64(merge.EnrichmentCount)
	}
	return model.PlannedMerge{
		Entity:            model.EntityCompany,
		KeepID:            keep.ID,
		KeepName:          keep.Name,
		MergeID:           merge.ID,
		MergeName:         merge.Name,
		Score:             score,
		FieldsTransferred: fields,
		ChildrenMoved:     children,
		Signals:           signals,
		Justification:     strings.Join(signals, "; "),
	}
}

// classify returns the signals that fired and whether the pair is a duplicate.
func (r *Resolver) classify(a, b *company.Company, s model.Similarity) ([]string, bool) {
	var signals []string
	if s.NormalizedMatch {
		signals = append(signals, "exact normalized match")
	}
	high := s.Combined >= r.thresholds.High
	if high && !s.NormalizedMatch {
		signals = append(signals, fmt.Sprintf("high name similarity (%.2f)", s.Combined))
	}
	if s.Phonetic >= 1 && !s.NormalizedMatch {
		signals = append(signals, "phonetic match")
	}
	location, sameLoc := r.sameLocation(a, b)
	if sameLoc {
		signals = append(signals, location)
	}

	moderate := s.Combined >= r.thresholds.Moderate && sameLoc
	if moderate && !high && !s.NormalizedMatch {
		signals = append(signals, fmt.Sprintf("moderate name similarity (%.2f)", s.Combined))
	}
	return signals, s.NormalizedMatch || high || moderate
}

// sameLocation compares canonical countries, falling back to normalized
// headquarters when either country is missing.
func (r *Resolver) sameLocation(a, b *company.Company) (string, bool) {
	ca, cb := r.country(a.Country), r.country(b.Country)
	if ca != "" && cb != "" {
		if strings.EqualFold(ca, cb) {
			return fmt.Sprintf("same country (%s)", ca), true
		}
		return "", false
	}
	ha, hb := NormalizeText(a.Headquarters), NormalizeText(b.Headquarters)
	if ha != "" && ha == hb {
		return fmt.Sprintf("same headquarters (%s)", a.Headquarters), true
	}
	return "", false
}

func (r *Resolver) country(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if r.countries != nil {
		if c, ok := r.countries.Canonical(raw); ok {
			return c
		}
	}
	return raw
}
