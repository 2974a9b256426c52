package catalog

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	apostropheRegex  = regexp.MustCompile(`['\x{2019}]`)
	nonAlnumRunRegex = regexp.MustCompile(`[^a-z0-9]+`)
)

// foldDiacritics strips combining marks so "Amélie" compares equal to "Amelie".
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// ComparisonKey lower-cases a title and drops everything that is not an ASCII
// letter or digit. An empty key is unmatchable.
func ComparisonKey(title string) string {
	folded := strings.ToLower(foldDiacritics(title))

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Slug builds the catalog's URL path prefix for a title: apostrophes removed,
// "&" spelled out, non-alphanumeric runs collapsed to single hyphens, and one
// trailing hyphen. Returns "" when nothing sluggable remains.
func Slug(title string) string {
	s := strings.ToLower(strings.TrimSpace(foldDiacritics(title)))
	s = apostropheRegex.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "&", "and")
	s = nonAlnumRunRegex.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return ""
	}
	return s + "-"
}
