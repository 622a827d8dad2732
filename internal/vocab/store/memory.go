package store

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/markahope-aag/labelcheck-sub001/internal/vocab"
	errs "github.com/markahope-aag/labelcheck-sub001/pkg/errors"
)

// MemoryStore is an in-memory Reference Store for tests and local
// development. It supports error injection and counts fetches so cache
// behavior (single-flight, stale-on-error) can be asserted.
type MemoryStore struct {
	mu          sync.RWMutex
	ingredients map[vocab.ID][]vocab.IngredientRecord
	allergens   []vocab.AllergenRecord
	failing     bool

	fetches atomic.Int64
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		ingredients: make(map[vocab.ID][]vocab.IngredientRecord),
	}
}

// SetIngredients replaces the records of one vocabulary.
func (s *MemoryStore) SetIngredients(id vocab.ID, records []vocab.IngredientRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ingredients[id] = records
}

// SetAllergens replaces the allergen vocabulary.
func (s *MemoryStore) SetAllergens(records []vocab.AllergenRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allergens = records
}

// SetFailing toggles error injection: while failing, every list call returns
// ErrStoreUnavailable.
func (s *MemoryStore) SetFailing(failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = failing
}

// Fetches returns the total number of list calls served or failed.
func (s *MemoryStore) Fetches() int64 {
	return s.fetches.Load()
}

// ListIngredients returns the active records of the given vocabulary.
func (s *MemoryStore) ListIngredients(_ context.Context, id vocab.ID) ([]vocab.IngredientRecord, error) {
	s.fetches.Add(1)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failing {
		return nil, errs.ErrStoreUnavailable
	}
	records := s.ingredients[id]
	out := make([]vocab.IngredientRecord, 0, len(records))
	for _, rec := range records {
		if rec.Active {
			out = append(out, rec)
		}
	}
	return out, nil
}

// ListAllergens returns the allergen vocabulary.
func (s *MemoryStore) ListAllergens(_ context.Context) ([]vocab.AllergenRecord, error) {
	s.fetches.Add(1)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failing {
		return nil, errs.ErrStoreUnavailable
	}
	out := make([]vocab.AllergenRecord, len(s.allergens))
	copy(out, s.allergens)
	return out, nil
}
