package resolve

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/hygiene-cli/internal/company"
	"github.com/sells-group/hygiene-cli/internal/model"
)

const (
	// amountTolerance is the relative difference under which two round
	// amounts are treated as the same figure reported by different sources.
	amountTolerance = 0.10
	roundDateWindow = 31 * 24 * time.Hour
)

// RoundKey buckets a round by company, canonical stage and announcement
// month. Rounds without a company or date are not grouped.
func RoundKey(r *company.FundingRound, stages Canonicalizer) string {
	if r.CompanyID == nil || r.AnnouncedDate == nil {
		return ""
	}
	stage := NormalizeText(r.Stage)
	if stages != nil {
		if c, ok := stages.Canonical(r.Stage); ok {
			stage = c
		}
	}
	return strconv.FormatInt(*r.CompanyID, 10) + "|" + strings.ToLower(stage) + "|" + r.AnnouncedDate.UTC().Format("2006-01")
}

// ResolveRounds plans merges inside one round group. Two rounds are
// duplicates when their amounts agree within tolerance (or either amount is
// unknown) and their dates fall within a month of each other.
func (r *Resolver) ResolveRounds(group []company.FundingRound, visited IDSet) []model.PlannedMerge {
	members := make([]*company.FundingRound, len(group))
	for i := range group {
		members[i] = &group[i]
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })

	var out []model.PlannedMerge
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			a, b := members[i], members[j]
			if visited.Has(a.ID) || visited.Has(b.ID) {
				continue
			}
			score, signals, dup := compareRounds(a, b)
			if !dup {
				continue
			}
			keep, merge := chooseKeep(a, b, a.ID, b.ID, RoundCompleteness(a), RoundCompleteness(b))
			pm := PlanRoundMerge(keep, merge, score, signals)
			visited.Add(merge.ID)
			out = append(out, pm)

			r.log.Debug("planned round merge",
				zap.Int64("keep_id", keep.ID),
				zap.Int64("merge_id", merge.ID),
				zap.String("justification", pm.Justification),
			)
		}
	}
	return out
}

// PlanRoundMerge builds the PlannedMerge for a duplicate round pair.
func PlanRoundMerge(keep, merge *company.FundingRound, score model.Similarity, signals []string) model.PlannedMerge {
	return model.PlannedMerge{
		Entity:            model.EntityFundingRound,
		KeepID:            keep.ID,
		KeepName:          roundLabel(keep),
		MergeID:           merge.ID,
		MergeName:         roundLabel(merge),
		Score:             score,
		FieldsTransferred: MergeRound(keep.Clone(), merge),
		Signals:           signals,
		Justification:     strings.Join(signals, "; "),
	}
}

func compareRounds(a, b *company.FundingRound) (model.Similarity, []string, bool) {
	signals := []string{"same company, stage and month"}

	amountScore := 1.0
	amtA, amtB := a.EffectiveAmount(), b.EffectiveAmount()
	if amtA != nil && amtB != nil {
		amountScore = amountProximity(*amtA, *amtB)
		if amountScore == 0 {
			return model.Similarity{}, nil, false
		}
		signals = append(signals, fmt.Sprintf("amounts within %.0f%%", amountTolerance*100))
	} else {
		signals = append(signals, "amount missing on one side")
	}

	dateScore := 1 - math.Abs(a.AnnouncedDate.Sub(*b.AnnouncedDate).Hours())/roundDateWindow.Hours()
	if dateScore < 0 {
		return model.Similarity{}, nil, false
	}

	inv := investorOverlap(a.Investors, b.Investors)
	if inv > 0 {
		signals = append(signals, "shared investors")
	}

	combined := 0.5*amountScore + 0.3*dateScore + 0.2*inv
	return model.Similarity{Combined: round4(clamp01(combined))}, signals, true
}

// amountProximity is 1 for equal amounts, falling linearly to 0 at the
// tolerance boundary.
func amountProximity(a, b float64) float64 {
	hi := math.Max(math.Abs(a), math.Abs(b))
	if hi == 0 {
		return 1
	}
	rel := math.Abs(a-b) / hi
	if rel > amountTolerance {
		return 0
	}
	return 1 - rel/amountTolerance*0.5
}

// investorOverlap is the Jaccard index of two investor lists. Two empty lists
// carry no signal.
func investorOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[NormalizeName(s)] = true
	}
	inter := 0
	union := len(set)
	seenB := make(map[string]bool, len(b))
	for _, s := range b {
		k := NormalizeName(s)
		if seenB[k] {
			continue
		}
		seenB[k] = true
		if set[k] {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}

func roundLabel(r *company.FundingRound) string {
	parts := []string{}
	if r.CompanyName != "" {
		parts = append(parts, r.CompanyName)
	}
	if r.Stage != "" {
		parts = append(parts, r.Stage)
	}
	if r.AnnouncedDate != nil {
		parts = append(parts, r.AnnouncedDate.UTC().Format("2006-01-02"))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("round %d", r.ID)
	}
	return strings.Join(parts, " ")
}
