package vocab

import (
	"fmt"
	"time"

	"github.com/markahope-aag/labelcheck-sub001/internal/normalize"
	errs "github.com/markahope-aag/labelcheck-sub001/pkg/errors"
)

// NamedRecord pairs an active ingredient record with its normalized
// canonical name, for callers that scan the whole vocabulary (fuzzy
// matching).
type NamedRecord struct {
	Normalized string
	Record     *IngredientRecord
}

// NamedDerivative pairs a normalized allergen derivative with its category.
type NamedDerivative struct {
	Normalized string
	Original   string
	Category   Category
}

// Snapshot is an immutable, fully indexed, point-in-time view of one
// vocabulary. All lookup structures are built at construction and never
// mutated afterwards; replacement is a whole-snapshot swap in the cache, so
// any number of concurrent readers may share one snapshot without locks.
type Snapshot struct {
	ID       ID
	LoadedAt time.Time
	TTL      time.Duration

	records   []IngredientRecord
	allergens []AllergenRecord

	// nameIndex folds every active record's normalized canonical name and
	// synonyms into one map for O(1) exact and synonym lookup.
	nameIndex  map[string]indexedName
	canonicals []NamedRecord

	derivIndex  map[string]Category
	derivatives []NamedDerivative
}

type indexedName struct {
	record  *IngredientRecord
	synonym bool
}

// NewIngredientSnapshot builds a snapshot over GRAS/NDI/ODI-shaped records.
// Inactive records are retained for audit but excluded from every index.
// Duplicate normalized canonical names are a data-quality defect and abort
// the build.
func NewIngredientSnapshot(id ID, records []IngredientRecord, ttl time.Duration) (*Snapshot, error) {
	s := &Snapshot{
		ID:         id,
		LoadedAt:   time.Now().UTC(),
		TTL:        ttl,
		records:    records,
		nameIndex:  make(map[string]indexedName, len(records)*2),
		canonicals: make([]NamedRecord, 0, len(records)),
	}
	for i := range records {
		rec := &s.records[i]
		if !rec.Active {
			continue
		}
		canonical := normalize.Name(rec.CanonicalName)
		if canonical == "" {
			return nil, fmt.Errorf("%w: empty canonical name in %s", errs.ErrInvalidReferenceData, id)
		}
		if prior, exists := s.nameIndex[canonical]; exists && !prior.synonym {
			return nil, fmt.Errorf("%w: duplicate canonical name %q in %s", errs.ErrInvalidReferenceData, rec.CanonicalName, id)
		}
		s.nameIndex[canonical] = indexedName{record: rec}
		s.canonicals = append(s.canonicals, NamedRecord{Normalized: canonical, Record: rec})
		for _, syn := range rec.Synonyms {
			name := normalize.Name(syn)
			if name == "" {
				continue
			}
			// A synonym colliding with an existing canonical name must not
			// shadow it; canonical entries win.
			if _, exists := s.nameIndex[name]; exists {
				continue
			}
			s.nameIndex[name] = indexedName{record: rec, synonym: true}
		}
	}
	return s, nil
}

// NewAllergenSnapshot builds a snapshot over the allergen vocabulary. A
// derivative string mapping to more than one category (or appearing twice in
// one category) is rejected; derivative-to-category must stay a function.
func NewAllergenSnapshot(records []AllergenRecord, ttl time.Duration) (*Snapshot, error) {
	s := &Snapshot{
		ID:         Allergens,
		LoadedAt:   time.Now().UTC(),
		TTL:        ttl,
		allergens:  records,
		derivIndex: make(map[string]Category),
	}
	for _, rec := range records {
		if !ValidCategory(rec.Category) {
			return nil, fmt.Errorf("%w: unknown allergen category %q", errs.ErrInvalidReferenceData, rec.Category)
		}
		for _, d := range rec.Derivatives {
			name := normalize.Name(d)
			if name == "" {
				continue
			}
			if prior, exists := s.derivIndex[name]; exists {
				return nil, fmt.Errorf("%w: derivative %q maps to both %s and %s",
					errs.ErrInvalidReferenceData, d, prior, rec.Category)
			}
			s.derivIndex[name] = rec.Category
			s.derivatives = append(s.derivatives, NamedDerivative{
				Normalized: name,
				Original:   d,
				Category:   rec.Category,
			})
		}
	}
	return s, nil
}

// Expired reports whether the snapshot has outlived its TTL as of now.
func (s *Snapshot) Expired(now time.Time) bool {
	return now.Sub(s.LoadedAt) > s.TTL
}

// Lookup returns the active record whose canonical name or synonym equals
// the normalized input. synonym reports which of the two matched.
func (s *Snapshot) Lookup(normalized string) (rec *IngredientRecord, synonym bool, ok bool) {
	entry, ok := s.nameIndex[normalized]
	if !ok {
		return nil, false, false
	}
	return entry.record, entry.synonym, true
}

// Canonicals returns the active records with their normalized canonical
// names. Callers must not mutate the returned slice.
func (s *Snapshot) Canonicals() []NamedRecord {
	return s.canonicals
}

// DerivativeCategory returns the allergen category for a normalized
// derivative string.
func (s *Snapshot) DerivativeCategory(normalized string) (Category, bool) {
	c, ok := s.derivIndex[normalized]
	return c, ok
}

// Derivatives returns every normalized derivative with its category.
// Callers must not mutate the returned slice.
func (s *Snapshot) Derivatives() []NamedDerivative {
	return s.derivatives
}

// Len returns the number of records behind the snapshot.
func (s *Snapshot) Len() int {
	if s.ID == Allergens {
		return len(s.allergens)
	}
	return len(s.records)
}
