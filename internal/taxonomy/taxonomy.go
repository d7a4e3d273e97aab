// Package taxonomy maps free-text categorical values (countries, funding
// stages, industries) onto a fixed canonical vocabulary.
package taxonomy

import (
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// Rule maps a set of aliases (exact) and substrings (token-bounded contains)
// to one canonical value.
type Rule struct {
	Canonical string   `yaml:"canonical"`
	Aliases   []string `yaml:"aliases"`
	Contains  []string `yaml:"contains"`
}

// Table is a read-only lookup for one categorical field.
type Table struct {
	name     string
	exact    map[string]string
	contains []containsRule
}

type containsRule struct {
	needle    string
	canonical string
}

// NewTable builds a table. Later rules win on alias collisions, so override
// rules should be passed after the built-ins.
func NewTable(name string, rules []Rule) *Table {
	t := &Table{name: name, exact: make(map[string]string)}
	t.add(rules)
	return t
}

func (t *Table) add(rules []Rule) {
	for _, r := range rules {
		if strings.TrimSpace(r.Canonical) == "" {
			continue
		}
		t.exact[Key(r.Canonical)] = r.Canonical
		for _, a := range r.Aliases {
			if k := Key(a); k != "" {
				t.exact[k] = r.Canonical
			}
		}
		for _, c := range r.Contains {
			if k := Key(c); k != "" {
				t.contains = append(t.contains, containsRule{needle: k, canonical: r.Canonical})
			}
		}
	}
	// Longest needle first so "pre seed" beats "seed".
	sort.SliceStable(t.contains, func(i, j int) bool {
		return len(t.contains[i].needle) > len(t.contains[j].needle)
	})
}

// Name returns the table's field name.
func (t *Table) Name() string {
	return t.name
}

// Canonical looks raw up by exact alias first, then by token-bounded
// substring. Canonical values map to themselves, which makes repeated
// normalization a no-op.
func (t *Table) Canonical(raw string) (string, bool) {
	k := Key(raw)
	if k == "" {
		return "", false
	}
	if c, ok := t.exact[k]; ok {
		return c, true
	}
	padded := " " + k + " "
	for _, r := range t.contains {
		if strings.Contains(padded, " "+r.needle+" ") {
			return r.canonical, true
		}
	}
	return "", false
}

var fold = cases.Fold()

// Key is the lookup form of a value: case folded, accents stripped,
// punctuation turned into spaces, whitespace collapsed.
func Key(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, s); err == nil {
		s = out
	}
	s = fold.String(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}

// Taxonomy bundles the three lookup tables.
type Taxonomy struct {
	Countries  *Table
	Stages     *Table
	Industries *Table
}

// Default returns the built-in taxonomy.
func Default() *Taxonomy {
	return &Taxonomy{
		Countries:  NewTable("country", countryRules),
		Stages:     NewTable("stage", stageRules),
		Industries: NewTable("industry", industryRules),
	}
}

// overrideFile is the YAML layout accepted by Load.
type overrideFile struct {
	Countries  []Rule `yaml:"countries"`
	Stages     []Rule `yaml:"stages"`
	Industries []Rule `yaml:"industries"`
}

// Load returns the built-in taxonomy extended with rules from a YAML file.
// An empty path returns Default().
func Load(path string) (*Taxonomy, error) {
	tx := Default()
	if path == "" {
		return tx, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "taxonomy: read %s", path)
	}
	var of overrideFile
	if err := yaml.Unmarshal(data, &of); err != nil {
		return nil, eris.Wrapf(err, "taxonomy: parse %s", path)
	}
	tx.Countries.add(of.Countries)
	tx.Stages.add(of.Stages)
	tx.Industries.add(of.Industries)
	return tx, nil
}

// CountryFromLocation infers a canonical country from a free-text location
// such as "Berlin, Germany". The last comma-separated segment is tried first,
// then the whole string.
func (tx *Taxonomy) CountryFromLocation(loc string) (string, bool) {
	loc = strings.TrimSpace(loc)
	if loc == "" {
		return "", false
	}
	if i := strings.LastIndex(loc, ","); i >= 0 {
		if c, ok := tx.Countries.Canonical(loc[i+1:]); ok {
			return c, true
		}
	}
	return tx.Countries.Canonical(loc)
}
