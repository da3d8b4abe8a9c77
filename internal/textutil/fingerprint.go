package textutil

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Fingerprint represents a term-frequency vector for text similarity comparison.
type Fingerprint struct {
	tokens map[string]float64
	norm   float64
}

// NewFingerprint creates a fingerprint from the provided text.
// Returns nil if the text produces no valid tokens.
func NewFingerprint(text string) *Fingerprint {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}
	var sum float64
	for _, count := range counts {
		sum += count * count
	}
	return &Fingerprint{
		tokens: counts,
		norm:   math.Sqrt(sum),
	}
}

// Tokenize splits text into overlapping character bigrams after comparison
// normalization. Japanese has no word separators, so bigrams stand in for
// words. A single-character text yields one unigram.
func Tokenize(text string) []string {
	runes := []rune(ComparisonKey(text))
	switch len(runes) {
	case 0:
		return nil
	case 1:
		return []string{string(runes)}
	}
	terms := make([]string, 0, len(runes)-1)
	for i := 0; i+1 < len(runes); i++ {
		terms = append(terms, string(runes[i:i+2]))
	}
	return terms
}

// ComparisonKey folds text for equality and similarity checks: NFKC
// normalization, lowercase, and removal of whitespace and punctuation.
func ComparisonKey(text string) string {
	folded := strings.ToLower(norm.NFKC.String(text))
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CosineSimilarity compares two fingerprints. It is 0 when either side is
// nil or empty and 1 for identical bigram distributions.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	small, large := a.tokens, b.tokens
	if len(small) > len(large) {
		small, large = large, small
	}
	var dot float64
	for token, count := range small {
		dot += count * large[token]
	}
	return dot / (a.norm * b.norm)
}

// TokenCount returns the number of unique tokens in the fingerprint.
func (f *Fingerprint) TokenCount() int {
	if f == nil {
		return 0
	}
	return len(f.tokens)
}
