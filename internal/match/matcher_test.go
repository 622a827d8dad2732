package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markahope-aag/labelcheck-sub001/internal/normalize"
	"github.com/markahope-aag/labelcheck-sub001/internal/vocab"
)

func grasSnapshot(t *testing.T, records ...vocab.IngredientRecord) *vocab.Snapshot {
	t.Helper()
	snap, err := vocab.NewIngredientSnapshot(vocab.GRAS, records, time.Hour)
	require.NoError(t, err)
	return snap
}

func active(name string, synonyms ...string) vocab.IngredientRecord {
	return vocab.IngredientRecord{CanonicalName: name, Synonyms: synonyms, Active: true}
}

func TestMatchExact(t *testing.T) {
	snap := grasSnapshot(t, active("Ascorbic Acid", "Vitamin C"))
	m := New()

	result := m.Match(normalize.Name("ascorbic acid"), snap)
	assert.Equal(t, TypeExact, result.Type)
	assert.Equal(t, ConfidenceHigh, result.Confidence)
	require.NotNil(t, result.Record)
	assert.Equal(t, "Ascorbic Acid", result.Record.CanonicalName)
}

func TestMatchSynonym(t *testing.T) {
	snap := grasSnapshot(t, active("Ascorbic Acid", "Vitamin C"))
	m := New()

	result := m.Match(normalize.Name("Vitamin C"), snap)
	assert.Equal(t, TypeSynonym, result.Type)
	assert.Equal(t, ConfidenceHigh, result.Confidence)
	require.NotNil(t, result.Record)
	assert.Equal(t, "Ascorbic Acid", result.Record.CanonicalName)
}

func TestMatchFuzzySharedWord(t *testing.T) {
	// Only the sodium salt is listed; the calcium salt must surface as an
	// ambiguous low-confidence hit, never as exact.
	snap := grasSnapshot(t, active("Sodium Propionate"))
	m := New()

	result := m.Match(normalize.Name("Calcium Propionate"), snap)
	assert.Equal(t, TypeFuzzy, result.Type)
	assert.Equal(t, ConfidenceLow, result.Confidence)
	require.NotNil(t, result.Record)
	assert.Equal(t, "Sodium Propionate", result.Record.CanonicalName)
}

func TestMatchExactBeatsFuzzy(t *testing.T) {
	snap := grasSnapshot(t,
		active("Sodium Propionate"),
		active("Calcium Propionate"),
	)
	m := New()

	result := m.Match(normalize.Name("Sodium Propionate"), snap)
	assert.Equal(t, TypeExact, result.Type)
	assert.Equal(t, "Sodium Propionate", result.Record.CanonicalName)
}

func TestMatchFuzzySubstring(t *testing.T) {
	snap := grasSnapshot(t, active("Lecithin"))
	m := New()

	result := m.Match(normalize.Name("Soy Lecithin"), snap)
	assert.Equal(t, TypeFuzzy, result.Type)
	assert.Equal(t, "Lecithin", result.Record.CanonicalName)
}

func TestMatchNone(t *testing.T) {
	snap := grasSnapshot(t, active("Ascorbic Acid"))
	m := New()

	result := m.Match(normalize.Name("Unobtainium Extract"), snap)
	assert.Equal(t, TypeNone, result.Type)
	assert.Empty(t, result.Confidence)
	assert.Nil(t, result.Record)
	assert.False(t, result.Matched())
}

func TestMatchEmptyInput(t *testing.T) {
	snap := grasSnapshot(t, active("Ascorbic Acid"))
	m := New()

	assert.Equal(t, TypeNone, m.Match("", snap).Type)
}

func TestFuzzyTieBreakLongestCommonSubstring(t *testing.T) {
	snap := grasSnapshot(t,
		active("Propionate"),
		active("Calcium Propionate"),
	)
	m := New()

	// "sodium propionate" shares "ium propionate" with the calcium entry but
	// only "propionate" with the bare entry; the longer overlap wins.
	result := m.Match(normalize.Name("Sodium Propionate"), snap)
	assert.Equal(t, TypeFuzzy, result.Type)
	assert.Equal(t, "Calcium Propionate", result.Record.CanonicalName)
}

func TestFuzzyTieBreakShortestName(t *testing.T) {
	snap := grasSnapshot(t,
		active("Potassium Sorbate"),
		active("Sodium Sorbate"),
	)
	m := New()

	// Both candidates share "sorbate"; the shorter canonical name wins.
	result := m.Match(normalize.Name("Sorbate"), snap)
	assert.Equal(t, TypeFuzzy, result.Type)
	assert.Equal(t, "Sodium Sorbate", result.Record.CanonicalName)
}

func TestWithPrefer(t *testing.T) {
	snap := grasSnapshot(t,
		active("Potassium Sorbate"),
		active("Sodium Sorbate"),
	)
	// Inverted policy: longest name wins.
	m := New(WithPrefer(func(a, b Candidate) bool {
		return len(a.Name) > len(b.Name)
	}))

	result := m.Match(normalize.Name("Sorbate"), snap)
	assert.Equal(t, "Potassium Sorbate", result.Record.CanonicalName)
}

func TestBestFuzzy(t *testing.T) {
	m := New()

	idx := m.BestFuzzy("whey protein isolate", []string{"casein", "whey protein", "whey"})
	assert.Equal(t, 1, idx)

	assert.Equal(t, -1, m.BestFuzzy("sugar", []string{"casein", "whey"}))
}

func TestConfidenceFor(t *testing.T) {
	assert.Equal(t, ConfidenceHigh, ConfidenceFor(TypeExact))
	assert.Equal(t, ConfidenceHigh, ConfidenceFor(TypeSynonym))
	assert.Equal(t, ConfidenceLow, ConfidenceFor(TypeFuzzy))
	assert.Empty(t, ConfidenceFor(TypeNone))
}

func TestLongestCommonSubstring(t *testing.T) {
	assert.Equal(t, 0, longestCommonSubstring("", "abc"))
	assert.Equal(t, 3, longestCommonSubstring("abc", "abc"))
	assert.Equal(t, len("ium propionate"), longestCommonSubstring("sodium propionate", "calcium propionate"))
	assert.Equal(t, 1, longestCommonSubstring("ab", "ba"))
}
