// Package allergen resolves ingredient-label strings to the nine major food
// allergen categories, including through disguised derivative names such as
// "whey" for milk. It specializes the match cascade over the allergen
// vocabulary: derivatives are matched exactly first, then fuzzily, and a hit
// carries the category the derivative belongs to.
package allergen

import (
	"github.com/markahope-aag/labelcheck-sub001/internal/match"
	"github.com/markahope-aag/labelcheck-sub001/internal/normalize"
	"github.com/markahope-aag/labelcheck-sub001/internal/vocab"
)

// Resolution records one allergen concern raised by one ingredient.
type Resolution struct {
	Ingredient string           `json:"ingredient"`
	Derivative string           `json:"derivative"`
	Category   vocab.Category   `json:"category"`
	MatchType  match.Type       `json:"match_type"`
	Confidence match.Confidence `json:"confidence"`
}

// Report aggregates allergen exposure over an ingredient list.
type Report struct {
	TotalIngredients   int              `json:"total_ingredients"`
	DetectedCategories []vocab.Category `json:"detected_categories"`
	PerIngredient      []Resolution     `json:"per_ingredient"`
	// ContainsRequired is true when any category was detected, meaning the
	// label needs a "contains" declaration.
	ContainsRequired bool `json:"contains_required"`
}

// Resolver resolves ingredients against an allergen snapshot. Stateless and
// safe for concurrent use.
type Resolver struct {
	matcher *match.Matcher
}

// New creates a Resolver sharing the given matcher's fuzzy policy.
func New(m *match.Matcher) *Resolver {
	return &Resolver{matcher: m}
}

// Resolve classifies every ingredient against the allergen vocabulary.
// Derivative-to-category is a function (enforced at snapshot build), so an
// exact hit yields exactly one resolution. A fuzzy scan may raise one
// resolution per category when a compound ingredient touches several
// independent allergen concerns.
func (r *Resolver) Resolve(ingredients []string, snap *vocab.Snapshot) Report {
	report := Report{TotalIngredients: len(ingredients)}
	detected := make(map[vocab.Category]struct{})

	for _, raw := range ingredients {
		name := normalize.Name(raw)
		if name == "" {
			continue
		}

		if category, ok := snap.DerivativeCategory(name); ok {
			report.PerIngredient = append(report.PerIngredient, Resolution{
				Ingredient: raw,
				Derivative: name,
				Category:   category,
				MatchType:  match.TypeExact,
				Confidence: match.ConfidenceHigh,
			})
			detected[category] = struct{}{}
			continue
		}

		for _, res := range r.fuzzyResolutions(raw, name, snap) {
			report.PerIngredient = append(report.PerIngredient, res)
			detected[res.Category] = struct{}{}
		}
	}

	// Deterministic category order, independent of map iteration.
	for _, c := range vocab.Categories() {
		if _, ok := detected[c]; ok {
			report.DetectedCategories = append(report.DetectedCategories, c)
		}
	}
	report.ContainsRequired = len(report.DetectedCategories) > 0
	return report
}

// fuzzyResolutions scans each category's derivatives independently and
// returns at most one low-confidence resolution per category.
func (r *Resolver) fuzzyResolutions(raw, normalized string, snap *vocab.Snapshot) []Resolution {
	byCategory := make(map[vocab.Category][]vocab.NamedDerivative)
	for _, d := range snap.Derivatives() {
		byCategory[d.Category] = append(byCategory[d.Category], d)
	}

	var out []Resolution
	for _, c := range vocab.Categories() {
		derivatives := byCategory[c]
		if len(derivatives) == 0 {
			continue
		}
		names := make([]string, len(derivatives))
		for i, d := range derivatives {
			names[i] = d.Normalized
		}
		idx := r.matcher.BestFuzzy(normalized, names)
		if idx < 0 {
			continue
		}
		out = append(out, Resolution{
			Ingredient: raw,
			Derivative: derivatives[idx].Original,
			Category:   c,
			MatchType:  match.TypeFuzzy,
			Confidence: match.ConfidenceLow,
		})
	}
	return out
}
