package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markahope-aag/labelcheck-sub001/internal/vocab"
	"github.com/markahope-aag/labelcheck-sub001/internal/vocab/store"
	"github.com/markahope-aag/labelcheck-sub001/pkg/config"
	errs "github.com/markahope-aag/labelcheck-sub001/pkg/errors"
)

type capturingTracker struct {
	mu     sync.Mutex
	events []any
}

func (t *capturingTracker) Track(event any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

func (t *capturingTracker) refreshOutcomes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for _, ev := range t.events {
		if re, ok := ev.(RefreshEvent); ok {
			out = append(out, re.Outcome)
		}
	}
	return out
}

func testConfig(ttl time.Duration) config.VocabularyConfig {
	return config.VocabularyConfig{
		DefaultTTL:        ttl,
		RefreshTimeout:    time.Second,
		RefreshMaxRetries: 1,
	}
}

func seededStore() *store.MemoryStore {
	st := store.NewMemory()
	st.SetIngredients(vocab.GRAS, []vocab.IngredientRecord{
		{CanonicalName: "Ascorbic Acid", Synonyms: []string{"Vitamin C"}, Active: true},
	})
	st.SetAllergens([]vocab.AllergenRecord{
		{Category: vocab.Milk, Derivatives: []string{"whey"}},
	})
	return st
}

func TestGetLoadsAndCachesSnapshot(t *testing.T) {
	st := seededStore()
	c := New(st, testConfig(time.Hour))
	ctx := context.Background()

	snap, err := c.Get(ctx, vocab.GRAS)
	require.NoError(t, err)
	_, _, ok := snap.Lookup("ascorbic acid")
	assert.True(t, ok)
	assert.EqualValues(t, 1, st.Fetches())

	again, err := c.Get(ctx, vocab.GRAS)
	require.NoError(t, err)
	assert.Same(t, snap, again, "live snapshot is returned without a store fetch")
	assert.EqualValues(t, 1, st.Fetches())

	hits, misses, ok := c.Stats(vocab.GRAS)
	require.True(t, ok)
	assert.EqualValues(t, 1, hits)
	assert.EqualValues(t, 1, misses)
}

func TestGetUnknownVocabulary(t *testing.T) {
	c := New(seededStore(), testConfig(time.Hour))
	_, err := c.Get(context.Background(), vocab.ID("bogus"))
	assert.ErrorIs(t, err, errs.ErrVocabularyNotFound)
}

func TestGetRefreshesAfterTTL(t *testing.T) {
	st := seededStore()
	c := New(st, testConfig(time.Millisecond))
	ctx := context.Background()

	first, err := c.Get(ctx, vocab.GRAS)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	second, err := c.Get(ctx, vocab.GRAS)
	require.NoError(t, err)
	assert.NotSame(t, first, second, "expired slot triggers a fresh snapshot")
	assert.EqualValues(t, 2, st.Fetches())
}

func TestStaleOnError(t *testing.T) {
	st := seededStore()
	tracker := &capturingTracker{}
	c := New(st, testConfig(time.Millisecond), WithTracker(tracker))
	ctx := context.Background()

	first, err := c.Get(ctx, vocab.GRAS)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	st.SetFailing(true)

	snap, err := c.Get(ctx, vocab.GRAS)
	require.NoError(t, err, "a failed refresh must serve the prior snapshot, not an error")
	assert.Same(t, first, snap)
	assert.Contains(t, tracker.refreshOutcomes(), OutcomeStaleServed)
}

func TestFirstLoadFailureSurfaces(t *testing.T) {
	st := seededStore()
	st.SetFailing(true)
	c := New(st, testConfig(time.Hour))

	_, err := c.Get(context.Background(), vocab.GRAS)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrStoreUnavailable)
}

func TestInvalidDataKeepsPriorSnapshot(t *testing.T) {
	st := seededStore()
	tracker := &capturingTracker{}
	c := New(st, testConfig(time.Millisecond), WithTracker(tracker))
	ctx := context.Background()

	first, err := c.Get(ctx, vocab.Allergens)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	// A derivative aliased to two categories aborts the refresh.
	st.SetAllergens([]vocab.AllergenRecord{
		{Category: vocab.Milk, Derivatives: []string{"whey"}},
		{Category: vocab.Eggs, Derivatives: []string{"whey"}},
	})

	snap, err := c.Get(ctx, vocab.Allergens)
	require.NoError(t, err)
	assert.Same(t, first, snap, "conflicting reference data leaves the prior snapshot in effect")
	assert.Contains(t, tracker.refreshOutcomes(), OutcomeStaleServed)
}

func TestInvalidate(t *testing.T) {
	st := seededStore()
	c := New(st, testConfig(time.Hour))
	ctx := context.Background()

	first, err := c.Get(ctx, vocab.GRAS)
	require.NoError(t, err)

	require.NoError(t, c.Invalidate(vocab.GRAS))
	second, err := c.Get(ctx, vocab.GRAS)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.EqualValues(t, 2, st.Fetches())

	assert.ErrorIs(t, c.Invalidate(vocab.ID("bogus")), errs.ErrVocabularyNotFound)
}

func TestInvalidateAll(t *testing.T) {
	st := seededStore()
	c := New(st, testConfig(time.Hour))
	ctx := context.Background()

	_, err := c.Get(ctx, vocab.GRAS)
	require.NoError(t, err)
	_, err = c.Get(ctx, vocab.Allergens)
	require.NoError(t, err)
	require.EqualValues(t, 2, st.Fetches())

	c.InvalidateAll()
	_, err = c.Get(ctx, vocab.GRAS)
	require.NoError(t, err)
	_, err = c.Get(ctx, vocab.Allergens)
	require.NoError(t, err)
	assert.EqualValues(t, 4, st.Fetches())
}

func TestSingleFlightRefresh(t *testing.T) {
	st := seededStore()
	c := New(st, testConfig(time.Hour))
	ctx := context.Background()

	const workers = 32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			snap, err := c.Get(ctx, vocab.GRAS)
			assert.NoError(t, err)
			assert.NotNil(t, snap)
		}()
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, 1, st.Fetches(), "concurrent misses must collapse into one store fetch")
}
