// Command importer loads reference vocabulary data from JSON files into the
// Postgres reference store. The import validates the data by building a
// snapshot first, so conflicting allergen derivatives or duplicate canonical
// names reject the whole file before any row is written.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lib/pq"

	"github.com/markahope-aag/labelcheck-sub001/internal/vocab"
	"github.com/markahope-aag/labelcheck-sub001/pkg/config"
	"github.com/markahope-aag/labelcheck-sub001/pkg/logger"
	"github.com/markahope-aag/labelcheck-sub001/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	vocabName := flag.String("vocab", "", "vocabulary to import (gras, ndi, odi, allergens)")
	filePath := flag.String("file", "", "path to the JSON data file")
	replace := flag.Bool("replace", true, "delete existing records for the vocabulary before importing")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	id := vocab.ID(*vocabName)
	if !id.Valid() {
		fmt.Fprintf(os.Stderr, "unknown vocabulary %q (want gras, ndi, odi, or allergens)\n", *vocabName)
		os.Exit(1)
	}
	if *filePath == "" {
		fmt.Fprintln(os.Stderr, "-file is required")
		os.Exit(1)
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		slog.Error("failed to read data file", "file", *filePath, "error", err)
		os.Exit(1)
	}

	client, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var count int
	if id == vocab.Allergens {
		count, err = importAllergens(ctx, client, data, *replace)
	} else {
		count, err = importIngredients(ctx, client, id, data, *replace)
	}
	if err != nil {
		slog.Error("import failed", "vocabulary", id, "error", err)
		os.Exit(1)
	}
	slog.Info("import complete", "vocabulary", id, "records", count)
}

func importIngredients(ctx context.Context, client *postgres.Client, id vocab.ID, data []byte, replace bool) (int, error) {
	var records []vocab.IngredientRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return 0, fmt.Errorf("parsing ingredient records: %w", err)
	}

	// Snapshot construction runs the same validation the cache applies at
	// refresh time, rejecting the file before touching the store.
	if _, err := vocab.NewIngredientSnapshot(id, records, time.Hour); err != nil {
		return 0, err
	}

	err := client.InTx(ctx, func(tx *sql.Tx) error {
		if replace {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM ingredient_records WHERE vocabulary = $1`, string(id)); err != nil {
				return fmt.Errorf("clearing %s records: %w", id, err)
			}
		}
		for _, rec := range records {
			status, err := json.Marshal(rec.StatusFields)
			if err != nil {
				return fmt.Errorf("encoding status fields for %q: %w", rec.CanonicalName, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO ingredient_records (vocabulary, canonical_name, synonyms, status_fields, active)
				 VALUES ($1, $2, $3, $4, $5)`,
				string(id), rec.CanonicalName, pq.Array(rec.Synonyms), status, rec.Active,
			); err != nil {
				return fmt.Errorf("inserting %q: %w", rec.CanonicalName, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

func importAllergens(ctx context.Context, client *postgres.Client, data []byte, replace bool) (int, error) {
	var records []vocab.AllergenRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return 0, fmt.Errorf("parsing allergen records: %w", err)
	}

	// Rejects a derivative aliased to two categories before any write.
	if _, err := vocab.NewAllergenSnapshot(records, time.Hour); err != nil {
		return 0, err
	}

	count := 0
	err := client.InTx(ctx, func(tx *sql.Tx) error {
		if replace {
			if _, err := tx.ExecContext(ctx, `DELETE FROM allergen_derivatives`); err != nil {
				return fmt.Errorf("clearing allergen derivatives: %w", err)
			}
		}
		for _, rec := range records {
			for _, d := range rec.Derivatives {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO allergen_derivatives (category, derivative) VALUES ($1, $2)`,
					string(rec.Category), d,
				); err != nil {
					return fmt.Errorf("inserting derivative %q: %w", d, err)
				}
				count++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
