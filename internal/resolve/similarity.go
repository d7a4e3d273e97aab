package resolve

import (
	"math"

	"github.com/sells-group/hygiene-cli/internal/model"
)

// Weights tunes how the similarity components blend into the combined score.
type Weights struct {
	Edit        float64 // weight of the edit-distance family (Levenshtein + Jaro-Winkler)
	Phonetic    float64 // weight of the phonetic score
	PrefixScale float64 // Jaro-Winkler prefix scale, at most 0.25
}

// DefaultWeights returns the weights used when none are configured.
func DefaultWeights() Weights {
	return Weights{Edit: 0.7, Phonetic: 0.3, PrefixScale: 0.1}
}

// Scorer compares company names. It is safe for concurrent use.
type Scorer struct {
	edit        float64
	phonetic    float64
	prefixScale float64
}

// NewScorer builds a Scorer. Weights are rescaled to sum to one; zero or
// negative weights fall back to the defaults.
func NewScorer(w Weights) *Scorer {
	def := DefaultWeights()
	if w.Edit < 0 || w.Phonetic < 0 || w.Edit+w.Phonetic == 0 {
		w.Edit, w.Phonetic = def.Edit, def.Phonetic
	}
	if w.PrefixScale <= 0 || w.PrefixScale > 0.25 {
		w.PrefixScale = def.PrefixScale
	}
	total := w.Edit + w.Phonetic
	return &Scorer{
		edit:        w.Edit / total,
		phonetic:    w.Phonetic / total,
		prefixScale: w.PrefixScale,
	}
}

// Compare scores two raw names.
func (s *Scorer) Compare(a, b string) model.Similarity {
	return s.CompareNormalized(NormalizeName(a), NormalizeName(b))
}

// CompareNormalized scores two names that already went through NormalizeName.
func (s *Scorer) CompareNormalized(na, nb string) model.Similarity {
	if na == "" || nb == "" {
		return model.Similarity{}
	}

	lev := math.Max(Levenshtein(na, nb), Levenshtein(TokenSort(na), TokenSort(nb)))
	jw := JaroWinkler(na, nb, s.prefixScale)
	ph := PhoneticScore(na, nb)

	sim := model.Similarity{
		Levenshtein:     round4(lev),
		JaroWinkler:     round4(jw),
		Phonetic:        round4(ph),
		NormalizedMatch: na == nb,
	}
	if sim.NormalizedMatch {
		sim.Combined = 1
		return sim
	}
	sim.Combined = round4(clamp01(s.edit*(lev+jw)/2 + s.phonetic*ph))
	return sim
}

// Levenshtein returns 1 - distance/maxLen over runes. Two empty strings are
// identical.
func Levenshtein(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshteinDistance(ra, rb))/float64(maxLen)
}

// levenshteinDistance is the two-row dynamic programming edit distance.
func levenshteinDistance(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// Jaro returns the Jaro similarity of a and b.
func Jaro(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 1
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	window := max(len(ra), len(rb))/2 - 1
	if window < 0 {
		window = 0
	}
	matchA := make([]bool, len(ra))
	matchB := make([]bool, len(rb))

	matches := 0
	for i := range ra {
		lo := max(0, i-window)
		hi := min(len(rb), i+window+1)
		for j := lo; j < hi; j++ {
			if matchB[j] || ra[i] != rb[j] {
				continue
			}
			matchA[i], matchB[j] = true, true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0
	}

	transpositions := 0
	k := 0
	for i := range ra {
		if !matchA[i] {
			continue
		}
		for !matchB[k] {
			k++
		}
		if ra[i] != rb[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	return (m/float64(len(ra)) + m/float64(len(rb)) + (m-float64(transpositions)/2)/m) / 3
}

// JaroWinkler boosts the Jaro score by the length of the common prefix (up
// to four runes) times prefixScale.
func JaroWinkler(a, b string, prefixScale float64) float64 {
	j := Jaro(a, b)
	ra, rb := []rune(a), []rune(b)
	prefix := 0
	for prefix < 4 && prefix < len(ra) && prefix < len(rb) && ra[prefix] == rb[prefix] {
		prefix++
	}
	return clamp01(j + float64(prefix)*prefixScale*(1-j))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
