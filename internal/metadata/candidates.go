package metadata

import (
	"slices"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"

	"github.com/slipstream/mediabridge/internal/catalog"
	"github.com/slipstream/mediabridge/internal/metadata/tmdb"
)

// CandidateSource records where a title candidate came from.
type CandidateSource string

const (
	SourcePrimary        CandidateSource = "primary"
	SourceAlternate      CandidateSource = "alternate"
	SourceOriginal       CandidateSource = "original"
	SourceTransliterated CandidateSource = "transliterated"
)

// Candidate is one title to try against the catalog search.
type Candidate struct {
	Text   string
	Source CandidateSource
}

// CandidateOptions controls how the candidate list is built.
type CandidateOptions struct {
	// Countries restricts alternate titles to these ISO 3166-1 codes. Empty allows all.
	Countries []string
	// Max caps the number of candidates. Zero means no cap.
	Max int
}

// BuildCandidates returns the ordered search candidates: the primary title,
// then alternates, then the original-language title, then ASCII
// transliterations of any non-ASCII entry. The original title is not subject
// to the country filter.
// Entries whose comparison keys collide with an earlier one are dropped, as
// are entries with an empty key since they can never match.
func BuildCandidates(primary, original string, alternates []tmdb.AlternativeTitle, opts CandidateOptions) []Candidate {
	seen := make(map[string]struct{})
	var out []Candidate

	add := func(text string, source CandidateSource) {
		text = strings.TrimSpace(text)
		key := catalog.ComparisonKey(text)
		if key == "" {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, Candidate{Text: text, Source: source})
	}

	texts := []string{primary}
	add(primary, SourcePrimary)
	for _, alt := range alternates {
		if len(opts.Countries) > 0 && !slices.ContainsFunc(opts.Countries, func(c string) bool {
			return strings.EqualFold(c, alt.Country)
		}) {
			continue
		}
		texts = append(texts, alt.Title)
		add(alt.Title, SourceAlternate)
	}
	if original != "" {
		texts = append(texts, original)
		add(original, SourceOriginal)
	}

	for _, text := range texts {
		if isASCII(text) {
			continue
		}
		add(unidecode.Unidecode(text), SourceTransliterated)
	}

	if opts.Max > 0 && len(out) > opts.Max {
		out = out[:opts.Max]
	}
	return out
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}
