package allergen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markahope-aag/labelcheck-sub001/internal/match"
	"github.com/markahope-aag/labelcheck-sub001/internal/vocab"
)

func allergenSnapshot(t *testing.T) *vocab.Snapshot {
	t.Helper()
	snap, err := vocab.NewAllergenSnapshot([]vocab.AllergenRecord{
		{Category: vocab.Milk, Derivatives: []string{"whey protein", "whey", "casein", "lactose"}},
		{Category: vocab.Eggs, Derivatives: []string{"albumin", "ovalbumin"}},
		{Category: vocab.Wheat, Derivatives: []string{"semolina", "farina", "durum"}},
		{Category: vocab.Soybeans, Derivatives: []string{"soy lecithin", "edamame"}},
	}, time.Hour)
	require.NoError(t, err)
	return snap
}

func TestResolveHiddenSource(t *testing.T) {
	r := New(match.New())
	report := r.Resolve([]string{"whey protein", "sugar"}, allergenSnapshot(t))

	assert.Equal(t, 2, report.TotalIngredients)
	assert.Equal(t, []vocab.Category{vocab.Milk}, report.DetectedCategories)
	assert.True(t, report.ContainsRequired)

	require.Len(t, report.PerIngredient, 1)
	res := report.PerIngredient[0]
	assert.Equal(t, "whey protein", res.Ingredient)
	assert.Equal(t, vocab.Milk, res.Category)
	assert.Equal(t, match.TypeExact, res.MatchType)
	assert.Equal(t, match.ConfidenceHigh, res.Confidence)
}

func TestResolveExactIsCaseInsensitive(t *testing.T) {
	r := New(match.New())
	report := r.Resolve([]string{"  CASEIN "}, allergenSnapshot(t))

	assert.Equal(t, []vocab.Category{vocab.Milk}, report.DetectedCategories)
	require.Len(t, report.PerIngredient, 1)
	assert.Equal(t, match.TypeExact, report.PerIngredient[0].MatchType)
}

func TestResolveFuzzyDerivative(t *testing.T) {
	r := New(match.New())
	// Not an exact derivative, but shares the significant word "whey".
	report := r.Resolve([]string{"sweet whey powder"}, allergenSnapshot(t))

	assert.Equal(t, []vocab.Category{vocab.Milk}, report.DetectedCategories)
	require.NotEmpty(t, report.PerIngredient)
	res := report.PerIngredient[0]
	assert.Equal(t, match.TypeFuzzy, res.MatchType)
	assert.Equal(t, match.ConfidenceLow, res.Confidence)
	assert.Equal(t, vocab.Milk, res.Category)
}

func TestResolveCompoundIngredientMultipleConcerns(t *testing.T) {
	r := New(match.New())
	// A compound ingredient touching two categories raises one resolution
	// per concern.
	report := r.Resolve([]string{"whey and albumin blend"}, allergenSnapshot(t))

	assert.Equal(t, []vocab.Category{vocab.Milk, vocab.Eggs}, report.DetectedCategories)
	require.Len(t, report.PerIngredient, 2)
	categories := []vocab.Category{report.PerIngredient[0].Category, report.PerIngredient[1].Category}
	assert.Contains(t, categories, vocab.Milk)
	assert.Contains(t, categories, vocab.Eggs)
}

func TestResolveNoAllergens(t *testing.T) {
	r := New(match.New())
	report := r.Resolve([]string{"sugar", "salt", "water"}, allergenSnapshot(t))

	assert.Empty(t, report.DetectedCategories)
	assert.Empty(t, report.PerIngredient)
	assert.False(t, report.ContainsRequired)
	assert.Equal(t, 3, report.TotalIngredients)
}

func TestResolveBlankEntriesSkipped(t *testing.T) {
	r := New(match.New())
	report := r.Resolve([]string{"", "   ", "lactose"}, allergenSnapshot(t))

	assert.Equal(t, 3, report.TotalIngredients)
	assert.Equal(t, []vocab.Category{vocab.Milk}, report.DetectedCategories)
	require.Len(t, report.PerIngredient, 1)
}
