// Package normalize converts free-text ingredient names into a canonical
// comparison form. Normalization is pure and total: any input yields a
// deterministic output and two inputs differing only in case, surrounding
// whitespace, or symbol noise normalize identically.
package normalize

import (
	"strings"
	"unicode"
)

// DefaultCutset is the set of symbol characters stripped from the leading
// and trailing edges of an ingredient name.
const DefaultCutset = "*.,;:!?'\"`~#%&+=<>/\\|_-"

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"by": {}, "for": {}, "from": {}, "in": {}, "is": {}, "it": {},
	"of": {}, "on": {}, "or": {}, "the": {}, "to": {}, "with": {},
	"acid": {}, "extract": {}, "powder": {}, "other": {},
	"contains": {}, "less": {}, "than": {}, "each": {}, "following": {},
}

// Name normalizes a raw ingredient string using the default symbol cutset.
func Name(raw string) string {
	return NameWithCutset(raw, DefaultCutset)
}

// NameWithCutset normalizes a raw ingredient string, stripping the given
// symbol characters from the edges of the string and of each parenthetical
// group's contents. Parentheses themselves are retained so qualifier text
// like "(root)" survives normalization.
func NameWithCutset(raw, cutset string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = collapseWhitespace(s)
	// Trim symbols and spaces together so mixed edge noise like "- -name"
	// is removed in a single pass, keeping normalization idempotent.
	s = strings.Trim(s, cutset+" ")
	return s
}

// collapseWhitespace replaces every run of whitespace with a single space.
func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// SignificantWords returns the words of a normalized name that carry matching
// weight: at least four characters long and not a common label stopword.
// Parentheses are stripped from word edges so "(root)" yields "root".
func SignificantWords(normalized string) []string {
	fields := strings.Fields(normalized)
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		w := strings.Trim(f, "()"+DefaultCutset)
		if len(w) < 4 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		words = append(words, w)
	}
	return words
}
