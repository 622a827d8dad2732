package benchmark

import (
	"testing"

	"github.com/markahope-aag/labelcheck-sub001/internal/normalize"
)

var sampleNames = map[string]string{
	"clean":     "ascorbic acid",
	"mixed":     "  Soy   Lecithin (Emulsifier)  ",
	"noisy":     "**CALCIUM   Propionate**, ;;preservative;; ",
	"compound":  "Organic Whey Protein Concentrate (Milk) - Non-GMO",
	"wordsalad": "natural and artificial flavors including extract of ginger root powder",
}

func BenchmarkNormalizeName(b *testing.B) {
	for name, input := range sampleNames {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(input)))
			for i := 0; i < b.N; i++ {
				out := normalize.Name(input)
				_ = out
			}
		})
	}
}

func BenchmarkNormalizeNameParallel(b *testing.B) {
	input := sampleNames["compound"]
	b.ReportAllocs()
	b.SetBytes(int64(len(input)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			out := normalize.Name(input)
			_ = out
		}
	})
}

func BenchmarkSignificantWords(b *testing.B) {
	for name, input := range sampleNames {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				words := normalize.SignificantWords(normalize.Name(input))
				_ = words
			}
		})
	}
}
