package resolve

import (
	"sort"
	"strings"
)

// KeyFunc maps a raw name to its grouping bucket. An empty key excludes the
// record from grouping.
type KeyFunc func(name string) string

// NameKey buckets by the full normalized name.
func NameKey(name string) string {
	return NormalizeName(name)
}

// PrefixKey buckets by the first n runes of the normalized name with spaces
// removed. It produces larger groups than NameKey so fuzzy variants meet.
func PrefixKey(n int) KeyFunc {
	if n <= 0 {
		n = 5
	}
	return func(name string) string {
		r := []rune(strings.ReplaceAll(NormalizeName(name), " ", ""))
		if len(r) > n {
			r = r[:n]
		}
		return string(r)
	}
}

// Group is one bucket of candidate duplicates.
type Group struct {
	Key string
	IDs []int64
}

// Grouper accumulates candidates page by page and yields buckets with at
// least two members.
type Grouper struct {
	key     KeyFunc
	buckets map[string][]int64
	seen    int
}

// NewGrouper creates a Grouper. A nil key uses NameKey.
func NewGrouper(key KeyFunc) *Grouper {
	if key == nil {
		key = NameKey
	}
	return &Grouper{key: key, buckets: make(map[string][]int64)}
}

// Add places one candidate into its bucket.
func (g *Grouper) Add(id int64, name string) {
	g.seen++
	k := g.key(name)
	if k == "" {
		return
	}
	g.buckets[k] = append(g.buckets[k], id)
}

// Seen returns how many candidates were added.
func (g *Grouper) Seen() int {
	return g.seen
}

// Groups returns every bucket with two or more ids, ordered by key, with ids
// ascending inside each group.
func (g *Grouper) Groups() []Group {
	var out []Group
	for k, ids := range g.buckets {
		if len(ids) < 2 {
			continue
		}
		sorted := make([]int64, len(ids))
		copy(sorted, ids)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		out = append(out, Group{Key: k, IDs: sorted})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// IDSet tracks ids already merged away within one batch.
type IDSet map[int64]struct{}

// Add marks id as visited.
func (s IDSet) Add(id int64) {
	s[id] = struct{}{}
}

// Has reports whether id was visited.
func (s IDSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}
