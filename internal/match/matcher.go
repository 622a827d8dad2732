// Package match classifies normalized ingredient names against a vocabulary
// snapshot using an ordered strategy cascade: exact canonical-name match,
// then synonym match, then fuzzy match. Exact and synonym hits come from
// curated data and are trusted outright; fuzzy hits are inherently ambiguous
// ("sodium propionate" vs "calcium propionate") and carry low confidence so
// downstream reporting flags them for review instead of asserting compliance.
package match

import (
	"strings"

	"github.com/markahope-aag/labelcheck-sub001/internal/normalize"
	"github.com/markahope-aag/labelcheck-sub001/internal/vocab"
)

// Type tags how a match was found.
type Type string

const (
	TypeExact   Type = "exact"
	TypeSynonym Type = "synonym"
	TypeFuzzy   Type = "fuzzy"
	TypeNone    Type = "none"
)

// Confidence grades how much a match result can be trusted.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ConfidenceFor derives the confidence level from the match type. The
// mapping is fixed: curated hits are high, fuzzy hits are low, no hit
// carries no confidence.
func ConfidenceFor(t Type) Confidence {
	switch t {
	case TypeExact, TypeSynonym:
		return ConfidenceHigh
	case TypeFuzzy:
		return ConfidenceLow
	default:
		return ""
	}
}

// Result is the outcome of matching one input string against one vocabulary.
type Result struct {
	Input      string                  `json:"input"`
	Record     *vocab.IngredientRecord `json:"matched_record,omitempty"`
	Type       Type                    `json:"match_type"`
	Confidence Confidence              `json:"confidence,omitempty"`
}

// Matched reports whether the result carries any match at all.
func (r Result) Matched() bool {
	return r.Type != TypeNone
}

// Candidate is one fuzzy-match contender, scored against the input.
type Candidate struct {
	Name   string // normalized name
	Common int    // length of the longest substring shared with the input
}

// Prefer reports whether candidate a should win over candidate b. The
// tie-break policy is configurable; the default was inferred from observed
// mismatches in curated data and should be validated against the live
// ingredient set.
type Prefer func(a, b Candidate) bool

// DefaultPrefer prefers the candidate sharing the longest common substring
// with the input, breaking ties by shortest name so a general-purpose entry
// beats a highly qualified one.
func DefaultPrefer(a, b Candidate) bool {
	if a.Common != b.Common {
		return a.Common > b.Common
	}
	return len(a.Name) < len(b.Name)
}

// Matcher runs the match cascade. Stateless and safe for concurrent use.
type Matcher struct {
	prefer Prefer
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithPrefer overrides the fuzzy tie-break policy.
func WithPrefer(p Prefer) Option {
	return func(m *Matcher) { m.prefer = p }
}

// New creates a Matcher with the default tie-break policy.
func New(opts ...Option) *Matcher {
	m := &Matcher{prefer: DefaultPrefer}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match classifies a normalized input against the snapshot, stopping at the
// first cascade stage that produces a hit. Empty input yields TypeNone.
func (m *Matcher) Match(normalizedInput string, snap *vocab.Snapshot) Result {
	result := Result{Input: normalizedInput, Type: TypeNone}
	if normalizedInput == "" || snap == nil {
		return result
	}

	if rec, synonym, ok := snap.Lookup(normalizedInput); ok {
		result.Record = rec
		result.Type = TypeExact
		if synonym {
			result.Type = TypeSynonym
		}
		result.Confidence = ConfidenceFor(result.Type)
		return result
	}

	if rec := m.bestFuzzyRecord(normalizedInput, snap.Canonicals()); rec != nil {
		result.Record = rec
		result.Type = TypeFuzzy
		result.Confidence = ConfidenceLow
	}
	return result
}

// bestFuzzyRecord scans the vocabulary for fuzzy candidates and returns the
// preferred record, or nil when no candidate qualifies.
func (m *Matcher) bestFuzzyRecord(input string, records []vocab.NamedRecord) *vocab.IngredientRecord {
	inputWords := normalize.SignificantWords(input)
	var (
		best       Candidate
		bestRecord *vocab.IngredientRecord
	)
	for i := range records {
		name := records[i].Normalized
		if !Related(input, inputWords, name) {
			continue
		}
		c := Candidate{Name: name, Common: longestCommonSubstring(input, name)}
		if bestRecord == nil || m.prefer(c, best) {
			best = c
			bestRecord = records[i].Record
		}
	}
	return bestRecord
}

// BestFuzzy returns the index of the preferred fuzzy candidate among names,
// or -1 when none qualifies. Used by the allergen resolver, which matches
// against derivative strings instead of ingredient records.
func (m *Matcher) BestFuzzy(normalizedInput string, names []string) int {
	inputWords := normalize.SignificantWords(normalizedInput)
	bestIdx := -1
	var best Candidate
	for i, name := range names {
		if !Related(normalizedInput, inputWords, name) {
			continue
		}
		c := Candidate{Name: name, Common: longestCommonSubstring(normalizedInput, name)}
		if bestIdx < 0 || m.prefer(c, best) {
			best = c
			bestIdx = i
		}
	}
	return bestIdx
}

// Related reports whether input and name qualify as fuzzy-related: one
// contains the other, or the two share a significant word. inputWords must
// be normalize.SignificantWords(input), hoisted out so vocabulary scans
// compute it once.
func Related(input string, inputWords []string, name string) bool {
	if strings.Contains(name, input) || strings.Contains(input, name) {
		return true
	}
	for _, w := range inputWords {
		for _, nw := range normalize.SignificantWords(name) {
			if w == nw {
				return true
			}
		}
	}
	return false
}

// longestCommonSubstring returns the length of the longest contiguous
// substring shared by a and b.
func longestCommonSubstring(a, b string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	best := 0
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > best {
					best = curr[j]
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}
	return best
}
