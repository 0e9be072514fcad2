package common

import (
	"math"
	"strings"
	"unicode"
)

// Cosine returns the cosine similarity of two vectors, or 0 when either is
// empty or the dimensions differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Stems lowercases, strips punctuation and crudely de-suffixes each token.
// Good enough for coarse situation keys; not a linguistic stemmer.
func Stems(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	stems := make([]string, 0, len(fields))
	for _, f := range fields {
		for _, suffix := range []string{"ing", "ed", "es", "s"} {
			if len(f) > len(suffix)+2 && strings.HasSuffix(f, suffix) {
				f = strings.TrimSuffix(f, suffix)
				break
			}
		}
		stems = append(stems, f)
	}
	return stems
}

// SituationKey collapses text into a sorted, deduplicated bag of stems.
func SituationKey(text string) string {
	stems := Stems(text)
	seen := make(map[string]bool, len(stems))
	uniq := make([]string, 0, len(stems))
	for _, s := range stems {
		if !seen[s] {
			seen[s] = true
			uniq = append(uniq, s)
		}
	}
	sortStrings(uniq)
	return strings.Join(uniq, " ")
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
