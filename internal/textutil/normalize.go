package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds compatibility forms (ligatures, full-width digits), lowercases
// with Unicode rules, and collapses every whitespace run to a single space.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	folded := norm.NFKC.String(text)
	lowered := cases.Lower(language.Und).String(folded)
	return strings.Join(strings.Fields(lowered), " ")
}

// Words splits text into word tokens on any rune that is neither a letter nor
// a digit. Input is expected to be normalized already.
func Words(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// WordSet returns the distinct words of text.
func WordSet(text string) map[string]struct{} {
	words := Words(text)
	set := make(map[string]struct{}, len(words))
	for _, word := range words {
		set[word] = struct{}{}
	}
	return set
}

// Jaccard returns |a ∩ b| / |a ∪ b|. Two empty sets score 0.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	intersection := 0
	for word := range small {
		if _, ok := large[word]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
