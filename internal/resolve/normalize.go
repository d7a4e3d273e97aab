// Package resolve scores company name similarity, groups candidate duplicates
// and decides which record of a duplicate pair survives a merge.
package resolve

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalSuffixes lists trailing legal-entity tokens stripped during name
// normalization. Tokens are matched after punctuation removal, so "L.L.C."
// arrives here as "llc".
var legalSuffixes = map[string]bool{
	"inc": true, "incorporated": true,
	"corp": true, "corporation": true,
	"co": true, "company": true,
	"ltd": true, "limited": true,
	"llc": true, "llp": true, "lp": true, "plc": true, "pllc": true,
	"gmbh": true, "ag": true, "kg": true, "ug": true,
	"sa": true, "sas": true, "sarl": true, "sasu": true, "se": true,
	"bv": true, "nv": true,
	"srl": true, "spa": true, "sl": true,
	"oy": true, "ab": true, "asa": true, "aps": true,
	"pty": true, "pte": true, "kk": true,
}

// dropped removes punctuation that joins a token rather than splitting it.
var dropped = strings.NewReplacer(".", "", "'", "", "’", "")

// NormalizeName reduces a company name to a comparison key:
//  1. strip diacritics
//  2. lowercase
//  3. rewrite "&" as "and" and treat remaining punctuation as spaces
//  4. strip trailing legal suffixes (repeatedly, "Co. Ltd" loses both)
//  5. collapse whitespace
//
// A name made only of a suffix keeps that token so it never collapses to "".
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	name = strings.ToLower(stripDiacritics(name))
	name = strings.ReplaceAll(name, "&", " and ")
	name = dropped.Replace(name)

	tokens := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	stripped := false
	for len(tokens) > 1 && legalSuffixes[tokens[len(tokens)-1]] {
		tokens = tokens[:len(tokens)-1]
		stripped = true
	}
	// "Foo GmbH & Co. KG" leaves a dangling "and".
	if stripped && len(tokens) > 1 && tokens[len(tokens)-1] == "and" {
		tokens = tokens[:len(tokens)-1]
		for len(tokens) > 1 && legalSuffixes[tokens[len(tokens)-1]] {
			tokens = tokens[:len(tokens)-1]
		}
	}

	return strings.Join(tokens, " ")
}

// NormalizeText lowercases and strips diacritics without touching suffixes.
// Used for list-field dedup keys and location comparison.
func NormalizeText(s string) string {
	s = strings.ToLower(stripDiacritics(strings.TrimSpace(s)))
	return strings.Join(strings.Fields(s), " ")
}

// TokenSort returns the normalized tokens sorted alphabetically, making
// comparisons insensitive to word order.
func TokenSort(normalized string) string {
	tokens := strings.Fields(normalized)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
