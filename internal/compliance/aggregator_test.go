package compliance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markahope-aag/labelcheck-sub001/internal/match"
	"github.com/markahope-aag/labelcheck-sub001/internal/vocab"
	"github.com/markahope-aag/labelcheck-sub001/internal/vocab/cache"
	"github.com/markahope-aag/labelcheck-sub001/internal/vocab/store"
	"github.com/markahope-aag/labelcheck-sub001/pkg/config"
)

type recordingTracker struct {
	mu     sync.Mutex
	events []any
}

func (t *recordingTracker) Track(event any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

func (t *recordingTracker) aggregates() []AggregateEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []AggregateEvent
	for _, ev := range t.events {
		if ae, ok := ev.(AggregateEvent); ok {
			out = append(out, ae)
		}
	}
	return out
}

func testStore() *store.MemoryStore {
	st := store.NewMemory()
	st.SetIngredients(vocab.GRAS, []vocab.IngredientRecord{
		{CanonicalName: "Ascorbic Acid", Synonyms: []string{"Vitamin C"}, Active: true},
		{CanonicalName: "Sodium Propionate", Active: true},
		{CanonicalName: "Citric Acid", Active: true},
	})
	st.SetIngredients(vocab.NDI, []vocab.IngredientRecord{
		{CanonicalName: "Beta-Alanine", Active: true},
	})
	st.SetIngredients(vocab.ODI, []vocab.IngredientRecord{
		{CanonicalName: "Ginseng", Synonyms: []string{"Panax Ginseng"}, Active: true},
		{CanonicalName: "Beta-Alanine Blend", Active: true},
	})
	st.SetAllergens([]vocab.AllergenRecord{
		{Category: vocab.Milk, Derivatives: []string{"whey", "casein"}},
		{Category: vocab.Soybeans, Derivatives: []string{"soy lecithin"}},
	})
	return st
}

func testAggregator(t *testing.T, opts ...Option) *Aggregator {
	t.Helper()
	c := cache.New(testStore(), config.VocabularyConfig{
		DefaultTTL:        time.Hour,
		RefreshTimeout:    time.Second,
		RefreshMaxRetries: 1,
	})
	return NewAggregator(c, match.New(), opts...)
}

func TestCheckGRASAllRecognized(t *testing.T) {
	agg := testAggregator(t)

	report, err := agg.CheckGRAS(context.Background(), []string{"Ascorbic Acid", "vitamin c", "  CITRIC ACID  "})
	require.NoError(t, err)

	assert.Equal(t, string(vocab.GRAS), report.Vocabulary)
	assert.Equal(t, 3, report.TotalIngredients)
	assert.Len(t, report.Matched, 3)
	assert.Empty(t, report.Unmatched)
	assert.False(t, report.Critical)

	assert.Equal(t, match.TypeExact, report.Matched[0].Type)
	assert.Equal(t, match.TypeSynonym, report.Matched[1].Type)
	assert.Equal(t, "vitamin c", report.Matched[1].Input)
}

func TestCheckGRASUnmatchedIsCritical(t *testing.T) {
	agg := testAggregator(t)

	report, err := agg.CheckGRAS(context.Background(), []string{"Citric Acid", "Unobtainium Extract"})
	require.NoError(t, err)

	assert.Len(t, report.Matched, 1)
	assert.Equal(t, []string{"Unobtainium Extract"}, report.Unmatched)
	assert.True(t, report.Critical, "any unrecognized substance flags the report")
}

func TestCheckGRASBlankEntries(t *testing.T) {
	agg := testAggregator(t)

	report, err := agg.CheckGRAS(context.Background(), []string{"", "   ", "Citric Acid"})
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalIngredients)
	assert.Len(t, report.Matched, 1)
	assert.Len(t, report.Unmatched, 2, "blank entries land in unmatched, processing continues")
	assert.True(t, report.Critical)
}

func TestCheckNDIODIEitherVocabularyCompliant(t *testing.T) {
	agg := testAggregator(t)

	report, err := agg.CheckNDIODI(context.Background(), []string{"Beta-Alanine", "Panax Ginseng"})
	require.NoError(t, err)

	assert.Equal(t, "ndi+odi", report.Vocabulary)
	assert.Len(t, report.Matched, 2)
	assert.Empty(t, report.Unmatched)
	assert.False(t, report.Critical)
}

func TestCheckNDIODIBetterOfTwoWins(t *testing.T) {
	agg := testAggregator(t)

	// "beta-alanine" is exact in NDI but only fuzzy in ODI ("Beta-Alanine
	// Blend"); the exact hit must win.
	report, err := agg.CheckNDIODI(context.Background(), []string{"beta-alanine"})
	require.NoError(t, err)

	require.Len(t, report.Matched, 1)
	assert.Equal(t, match.TypeExact, report.Matched[0].Type)
	assert.Equal(t, "Beta-Alanine", report.Matched[0].Record.CanonicalName)
}

func TestCheckNDIODIUnmatchedIsCritical(t *testing.T) {
	agg := testAggregator(t)

	report, err := agg.CheckNDIODI(context.Background(), []string{"Unlisted Novel Compound"})
	require.NoError(t, err)

	assert.Empty(t, report.Matched)
	assert.True(t, report.Critical)
}

func TestCheckAllergens(t *testing.T) {
	agg := testAggregator(t)

	report, err := agg.CheckAllergens(context.Background(), []string{"whey", "sugar"})
	require.NoError(t, err)

	assert.Equal(t, []vocab.Category{vocab.Milk}, report.DetectedCategories)
	assert.True(t, report.ContainsRequired)
}

func TestWithCriticalPolicyOverride(t *testing.T) {
	agg := testAggregator(t, WithCriticalPolicy(vocab.GRAS, NeverCritical))

	report, err := agg.CheckGRAS(context.Background(), []string{"Unobtainium Extract"})
	require.NoError(t, err)

	assert.Len(t, report.Unmatched, 1)
	assert.False(t, report.Critical)
}

func TestCheckUnknownVocabulary(t *testing.T) {
	agg := testAggregator(t)

	_, err := agg.Check(context.Background(), vocab.ID("bogus"), []string{"salt"})
	assert.Error(t, err)
}

func TestAggregateEventEmitted(t *testing.T) {
	tracker := &recordingTracker{}
	agg := testAggregator(t, WithTracker(tracker))

	_, err := agg.CheckGRAS(context.Background(), []string{"Citric Acid", "Unobtainium Extract"})
	require.NoError(t, err)

	events := tracker.aggregates()
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, "compliance_aggregate", ev.Type)
	assert.Equal(t, string(vocab.GRAS), ev.Vocabulary)
	assert.Equal(t, 2, ev.TotalCount)
	assert.Equal(t, 1, ev.MatchedCount)
	assert.Equal(t, 1, ev.UnmatchedCount)
	assert.True(t, ev.Critical)
	assert.False(t, ev.Timestamp.IsZero())
}
