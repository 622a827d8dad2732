// Package store provides Reference Store implementations: the durable source
// of truth for ingredient and allergen vocabularies. The matching engine
// only ever sees fully materialized record lists, fetched once per snapshot
// refresh.
package store

import (
	"context"

	"github.com/markahope-aag/labelcheck-sub001/internal/vocab"
)

// Store lists active reference records per vocabulary. Implementations may
// fail; the vocabulary cache recovers via its stale-on-error policy.
type Store interface {
	// ListIngredients returns the active records of the GRAS, NDI, or ODI
	// vocabulary.
	ListIngredients(ctx context.Context, id vocab.ID) ([]vocab.IngredientRecord, error)

	// ListAllergens returns the full allergen vocabulary, one record per
	// category.
	ListAllergens(ctx context.Context) ([]vocab.AllergenRecord, error)
}
