package catalog

import "strings"

// Tier records which similarity test accepted a row.
type Tier int

const (
	TierNone Tier = iota
	TierExact
	TierContains
	TierOverlap
)

func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierContains:
		return "contains"
	case TierOverlap:
		return "overlap"
	default:
		return "none"
	}
}

// Match is an accepted search row.
type Match struct {
	Row   Row
	Tier  Tier
	Score float64
}

// MatcherOptions tunes the acceptance policy.
type MatcherOptions struct {
	// MinOverlap is the character-overlap ratio accepted by the last tier.
	MinOverlap float64
	// YearTolerance is how far a row's known year may drift from the
	// requested year. Negative disables the year check.
	YearTolerance int
}

// DefaultMatcherOptions returns the reference policy.
func DefaultMatcherOptions() MatcherOptions {
	return MatcherOptions{MinOverlap: 0.6, YearTolerance: 1}
}

// Matcher finds the catalog subject for a title inside a search payload.
type Matcher struct {
	parser Parser
	opts   MatcherOptions
}

// NewMatcher creates a matcher. A nil parser uses DefaultParser.
func NewMatcher(parser Parser, opts MatcherOptions) *Matcher {
	if parser == nil {
		parser = DefaultParser()
	}
	if opts.MinOverlap <= 0 {
		opts.MinOverlap = DefaultMatcherOptions().MinOverlap
	}
	return &Matcher{parser: parser, opts: opts}
}

// Parser returns the parser the matcher reads payloads with.
func (m *Matcher) Parser() Parser {
	return m.parser
}

// Match parses payload and returns the first row, in document order, that
// matches title. year <= 0 skips the year check.
func (m *Matcher) Match(payload, title string, year int) (Match, bool) {
	return m.MatchRows(m.parser.ParseRows(payload), title, year)
}

// MatchRows applies the acceptance policy to already parsed rows.
func (m *Matcher) MatchRows(rows []Row, title string, year int) (Match, bool) {
	queryKey := ComparisonKey(title)
	if queryKey == "" {
		return Match{}, false
	}

	for _, row := range rows {
		if !m.yearAccepted(row.Year, year) {
			continue
		}
		candidateKey := ComparisonKey(row.Title)
		if candidateKey == "" {
			continue
		}
		if tier, score := m.classify(candidateKey, queryKey); tier != TierNone {
			return Match{Row: row, Tier: tier, Score: score}, true
		}
	}
	return Match{}, false
}

// FindSubjectID returns the subject id of the first matching row, or "".
func (m *Matcher) FindSubjectID(payload, title string) string {
	match, ok := m.Match(payload, title, 0)
	if !ok {
		return ""
	}
	return match.Row.SubjectID
}

func (m *Matcher) classify(candidateKey, queryKey string) (Tier, float64) {
	if candidateKey == queryKey {
		return TierExact, 1
	}
	if strings.Contains(candidateKey, queryKey) || strings.Contains(queryKey, candidateKey) {
		return TierContains, 1
	}
	if ratio := OverlapRatio(candidateKey, queryKey); ratio >= m.opts.MinOverlap {
		return TierOverlap, ratio
	}
	return TierNone, 0
}

func (m *Matcher) yearAccepted(rowYear, wantYear int) bool {
	if m.opts.YearTolerance < 0 || rowYear <= 0 || wantYear <= 0 {
		return true
	}
	diff := rowYear - wantYear
	if diff < 0 {
		diff = -diff
	}
	return diff <= m.opts.YearTolerance
}

// OverlapRatio is the fraction of characters in candidateKey that occur
// anywhere in queryKey. Order and multiplicity in queryKey are ignored.
func OverlapRatio(candidateKey, queryKey string) float64 {
	if candidateKey == "" {
		return 0
	}
	var present [256]bool
	for i := 0; i < len(queryKey); i++ {
		present[queryKey[i]] = true
	}
	hits := 0
	for i := 0; i < len(candidateKey); i++ {
		if present[candidateKey[i]] {
			hits++
		}
	}
	return float64(hits) / float64(len(candidateKey))
}
