// Package vocab defines the reference vocabularies the matching engine runs
// against: the GRAS, NDI, and ODI ingredient lists and the major food
// allergen list, together with the immutable indexed snapshots served by the
// cache.
package vocab

// ID identifies one reference vocabulary.
type ID string

const (
	GRAS      ID = "gras"
	NDI       ID = "ndi"
	ODI       ID = "odi"
	Allergens ID = "allergens"
)

// All lists every vocabulary identifier.
func All() []ID {
	return []ID{GRAS, NDI, ODI, Allergens}
}

// Valid reports whether id names a known vocabulary.
func (id ID) Valid() bool {
	switch id {
	case GRAS, NDI, ODI, Allergens:
		return true
	}
	return false
}

func (id ID) String() string { return string(id) }

// IngredientRecord is one canonical entry in the GRAS, NDI, or ODI
// vocabulary. StatusFields carries vocabulary-specific metadata (GRAS notice
// number, NDI notification number, source citation) that the matching
// algorithm never inspects.
type IngredientRecord struct {
	CanonicalName string            `json:"canonical_name"`
	Synonyms      []string          `json:"synonyms,omitempty"`
	StatusFields  map[string]string `json:"status_fields,omitempty"`
	Active        bool              `json:"active"`
}

// Category is one of the nine canonical major food allergen categories.
type Category string

const (
	Milk                 Category = "milk"
	Eggs                 Category = "eggs"
	Fish                 Category = "fish"
	CrustaceanShellfish  Category = "crustacean_shellfish"
	TreeNuts             Category = "tree_nuts"
	Peanuts              Category = "peanuts"
	Wheat                Category = "wheat"
	Soybeans             Category = "soybeans"
	Sesame               Category = "sesame"
)

// Categories lists all nine allergen categories.
func Categories() []Category {
	return []Category{
		Milk, Eggs, Fish, CrustaceanShellfish, TreeNuts,
		Peanuts, Wheat, Soybeans, Sesame,
	}
}

// ValidCategory reports whether c is one of the nine canonical categories.
func ValidCategory(c Category) bool {
	switch c {
	case Milk, Eggs, Fish, CrustaceanShellfish, TreeNuts, Peanuts, Wheat, Soybeans, Sesame:
		return true
	}
	return false
}

func (c Category) String() string { return string(c) }

// AllergenRecord maps one allergen category to the ingredient-label strings
// known to contain it. Derivative strings are unique within a category and,
// by import-time invariant, across the whole vocabulary.
type AllergenRecord struct {
	Category    Category `json:"category"`
	Derivatives []string `json:"derivatives"`
}
