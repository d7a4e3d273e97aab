package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrouper_SkipsSingletons(t *testing.T) {
	g := NewGrouper(nil)
	g.Add(3, "Acme Inc")
	g.Add(1, "ACME")
	g.Add(2, "Globex")
	g.Add(4, "acme, ltd.")
	g.Add(5, "")

	groups := g.Groups()
	require.Len(t, groups, 1)
	assert.Equal(t, "acme", groups[0].Key)
	assert.Equal(t, []int64{1, 3, 4}, groups[0].IDs)
	assert.Equal(t, 5, g.Seen())
}

func TestGrouper_DeterministicOrder(t *testing.T) {
	g := NewGrouper(NameKey)
	g.Add(1, "Zeta")
	g.Add(2, "Zeta SA")
	g.Add(3, "Alpha")
	g.Add(4, "Alpha GmbH")

	groups := g.Groups()
	require.Len(t, groups, 2)
	assert.Equal(t, "alpha", groups[0].Key)
	assert.Equal(t, "zeta", groups[1].Key)
}

func TestPrefixKey(t *testing.T) {
	key := PrefixKey(5)
	assert.Equal(t, "docto", key("Doctolib"))
	assert.Equal(t, "docto", key("Docto Lib SAS"))
	assert.Equal(t, "ab", key("AB"))
	assert.Equal(t, "", key(""))

	g := NewGrouper(key)
	g.Add(1, "Doctolib")
	g.Add(2, "Doctolibe")
	require.Len(t, g.Groups(), 1)
}

func TestIDSet(t *testing.T) {
	s := IDSet{}
	assert.False(t, s.Has(1))
	s.Add(1)
	assert.True(t, s.Has(1))
}
