package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"already normalized", "ascorbic acid", "ascorbic acid"},
		{"mixed case", "Ascorbic Acid", "ascorbic acid"},
		{"surrounding whitespace", "  Vitamin C  ", "vitamin c"},
		{"internal whitespace runs", "vitamin   \t c", "vitamin c"},
		{"symbol noise", "**Niacin**", "niacin"},
		{"mixed edge noise", "- -Riboflavin- ", "riboflavin"},
		{"parenthetical retained", "Ginger (Root)", "ginger (root)"},
		{"empty", "", ""},
		{"only noise", " *,. ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Name(tt.input))
		})
	}
}

func TestNameIdempotent(t *testing.T) {
	inputs := []string{
		"Ascorbic Acid",
		"  vitamin   c  ",
		"**Soy Lecithin (Emulsifier)**",
		"- -whey protein- ",
		"",
		"CALCIUM PROPIONATE.",
	}
	for _, in := range inputs {
		once := Name(in)
		assert.Equal(t, once, Name(once), "normalize must be idempotent for %q", in)
	}
}

func TestNameEquivalence(t *testing.T) {
	assert.Equal(t, Name("Vitamin C"), Name("  vitamin   c  "))
	assert.Equal(t, Name("WHEY PROTEIN"), Name("whey protein"))
	assert.Equal(t, Name("Salt."), Name("salt"))
}

func TestNameWithCutset(t *testing.T) {
	assert.Equal(t, "*salt*", NameWithCutset("*salt*", "#"), "custom cutset leaves default symbols alone")
	assert.Equal(t, "salt", NameWithCutset("#salt#", "#"))
}

func TestSignificantWords(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"sodium propionate", []string{"sodium", "propionate"}},
		{"citric acid", []string{"citric"}},       // "acid" is a stopword
		{"oil of lemon", []string{"lemon"}},       // "of" too short, "oil" too short
		{"ginger (root)", []string{"ginger", "root"}},
		{"", nil},
	}
	for _, tt := range tests {
		got := SignificantWords(tt.input)
		if tt.want == nil {
			assert.Empty(t, got)
			continue
		}
		assert.Equal(t, tt.want, got, "input %q", tt.input)
	}
}
