package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/markahope-aag/labelcheck-sub001/internal/vocab"
	errs "github.com/markahope-aag/labelcheck-sub001/pkg/errors"
	"github.com/markahope-aag/labelcheck-sub001/pkg/postgres"
)

// PostgresStore reads reference vocabularies from PostgreSQL.
//
// Schema:
//
//	CREATE TABLE ingredient_records (
//	    id             BIGSERIAL PRIMARY KEY,
//	    vocabulary     TEXT NOT NULL,
//	    canonical_name TEXT NOT NULL,
//	    synonyms       TEXT[] NOT NULL DEFAULT '{}',
//	    status_fields  JSONB NOT NULL DEFAULT '{}',
//	    active         BOOLEAN NOT NULL DEFAULT TRUE,
//	    UNIQUE (vocabulary, canonical_name)
//	);
//
//	CREATE TABLE allergen_derivatives (
//	    id         BIGSERIAL PRIMARY KEY,
//	    category   TEXT NOT NULL,
//	    derivative TEXT NOT NULL,
//	    UNIQUE (derivative)
//	);
type PostgresStore struct {
	client *postgres.Client
}

// NewPostgres creates a PostgresStore backed by the given client.
func NewPostgres(client *postgres.Client) *PostgresStore {
	return &PostgresStore{client: client}
}

// ListIngredients returns every active record of the given vocabulary.
func (s *PostgresStore) ListIngredients(ctx context.Context, id vocab.ID) ([]vocab.IngredientRecord, error) {
	rows, err := s.client.DB.QueryContext(ctx,
		`SELECT canonical_name, synonyms, status_fields, active
		   FROM ingredient_records
		  WHERE vocabulary = $1 AND active = TRUE
		  ORDER BY canonical_name`,
		string(id),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s records: %v", errs.ErrStoreUnavailable, id, err)
	}
	defer rows.Close()

	var records []vocab.IngredientRecord
	for rows.Next() {
		var (
			rec       vocab.IngredientRecord
			synonyms  pq.StringArray
			rawStatus []byte
		)
		if err := rows.Scan(&rec.CanonicalName, &synonyms, &rawStatus, &rec.Active); err != nil {
			return nil, fmt.Errorf("scanning %s record: %w", id, err)
		}
		rec.Synonyms = []string(synonyms)
		if len(rawStatus) > 0 {
			if err := json.Unmarshal(rawStatus, &rec.StatusFields); err != nil {
				return nil, fmt.Errorf("%w: status_fields for %q: %v", errs.ErrInvalidReferenceData, rec.CanonicalName, err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading %s records: %v", errs.ErrStoreUnavailable, id, err)
	}
	return records, nil
}

// ListAllergens returns the allergen vocabulary grouped by category.
func (s *PostgresStore) ListAllergens(ctx context.Context) ([]vocab.AllergenRecord, error) {
	rows, err := s.client.DB.QueryContext(ctx,
		`SELECT category, derivative
		   FROM allergen_derivatives
		  ORDER BY category, derivative`,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: listing allergen derivatives: %v", errs.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	byCategory := make(map[vocab.Category][]string)
	var order []vocab.Category
	for rows.Next() {
		var category, derivative string
		if err := rows.Scan(&category, &derivative); err != nil {
			return nil, fmt.Errorf("scanning allergen derivative: %w", err)
		}
		c := vocab.Category(category)
		if _, seen := byCategory[c]; !seen {
			order = append(order, c)
		}
		byCategory[c] = append(byCategory[c], derivative)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading allergen derivatives: %v", errs.ErrStoreUnavailable, err)
	}

	records := make([]vocab.AllergenRecord, 0, len(order))
	for _, c := range order {
		records = append(records, vocab.AllergenRecord{
			Category:    c,
			Derivatives: byCategory[c],
		})
	}
	return records, nil
}
