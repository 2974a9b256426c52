package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_ContainmentMatches(t *testing.T) {
	m := NewMatcher(nil, DefaultMatcherOptions())
	rows := []Row{{SubjectID: "1111111111111111111", Title: "The Movie: Director's Cut"}}

	match, ok := m.MatchRows(rows, "The Movie", 0)
	require.True(t, ok)
	assert.Equal(t, "1111111111111111111", match.Row.SubjectID)
	assert.Equal(t, TierContains, match.Tier)
}

func TestMatcher_UnrelatedDoesNotMatch(t *testing.T) {
	m := NewMatcher(nil, DefaultMatcherOptions())
	rows := []Row{{SubjectID: "1111111111111111111", Title: "Completely Unrelated Title"}}

	_, ok := m.MatchRows(rows, "Foo", 0)
	assert.False(t, ok)
}

func TestMatcher_Tiers(t *testing.T) {
	tests := []struct {
		name  string
		row   string
		query string
		want  Tier
	}{
		{"exact after normalization", "The Matrix!", "the matrix", TierExact},
		{"query contains row", "Matrix", "The Matrix", TierContains},
		{"row contains query", "The Matrix (Hindi)", "The Matrix", TierContains},
		{"subtitle truncation", "Amelie Poulain", "Le Fabuleux Destin d'Amelie Poulain", TierContains},
		{"reordered words", "Matrix The", "The Matrix", TierOverlap},
		{"unrelated", "Zzyzx Quick Jump", "The Matrix", TierNone},
	}

	m := NewMatcher(nil, DefaultMatcherOptions())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match, ok := m.MatchRows([]Row{{SubjectID: "1234567890123456789", Title: tt.row}}, tt.query, 0)
			if tt.want == TierNone {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.want, match.Tier)
		})
	}
}

func TestMatcher_FirstMatchWinsInDocumentOrder(t *testing.T) {
	m := NewMatcher(nil, DefaultMatcherOptions())
	rows := []Row{
		{SubjectID: "1000000000000000001", Title: "Pulp Fiction"},
		{SubjectID: "1000000000000000002", Title: "The Matrix Reloaded"},
		{SubjectID: "1000000000000000003", Title: "The Matrix"},
	}

	match, ok := m.MatchRows(rows, "The Matrix", 0)
	require.True(t, ok)
	assert.Equal(t, "1000000000000000002", match.Row.SubjectID)
}

func TestMatcher_YearFolding(t *testing.T) {
	m := NewMatcher(nil, DefaultMatcherOptions())
	rows := []Row{
		{SubjectID: "1000000000000000001", Title: "Dune", Year: 1984},
		{SubjectID: "1000000000000000002", Title: "Dune", Year: 2021},
	}

	match, ok := m.MatchRows(rows, "Dune", 2021)
	require.True(t, ok)
	assert.Equal(t, "1000000000000000002", match.Row.SubjectID)

	// Tolerance allows an off-by-one festival vs. wide release year.
	match, ok = m.MatchRows(rows, "Dune", 1985)
	require.True(t, ok)
	assert.Equal(t, "1000000000000000001", match.Row.SubjectID)

	// Unknown request year skips the check.
	match, ok = m.MatchRows(rows, "Dune", 0)
	require.True(t, ok)
	assert.Equal(t, "1000000000000000001", match.Row.SubjectID)
}

func TestMatcher_YearCheckDisabled(t *testing.T) {
	m := NewMatcher(nil, MatcherOptions{MinOverlap: 0.6, YearTolerance: -1})
	rows := []Row{{SubjectID: "1000000000000000001", Title: "Dune", Year: 1984}}

	_, ok := m.MatchRows(rows, "Dune", 2021)
	assert.True(t, ok)
}

func TestMatcher_EmptyQueryNeverMatches(t *testing.T) {
	m := NewMatcher(nil, DefaultMatcherOptions())
	rows := []Row{{SubjectID: "1000000000000000001", Title: "Anything"}}

	_, ok := m.MatchRows(rows, "!!!", 0)
	assert.False(t, ok)
}

func TestMatcher_FindSubjectID(t *testing.T) {
	m := NewMatcher(nil, DefaultMatcherOptions())
	assert.Equal(t, "1234567890123456789", m.FindSubjectID(samplePayload, "The Matrix"))
	assert.Equal(t, "", m.FindSubjectID(samplePayload, "Foo"))
}

func TestOverlapRatio(t *testing.T) {
	assert.InDelta(t, 1.0, OverlapRatio("abc", "cba"), 1e-9)
	assert.InDelta(t, 0.5, OverlapRatio("abxy", "ab"), 1e-9)
	assert.InDelta(t, 0.0, OverlapRatio("", "abc"), 1e-9)
}

func TestTier_String(t *testing.T) {
	assert.Equal(t, "exact", TierExact.String())
	assert.Equal(t, "contains", TierContains.String())
	assert.Equal(t, "overlap", TierOverlap.String())
	assert.Equal(t, "none", TierNone.String())
}
