package section

import (
	"math"
	"strings"
)

// DefaultWordCount applies to unknown or absent length types.
const DefaultWordCount = 1000

// DefaultTolerance is the accepted relative deviation from a requested length.
const DefaultTolerance = 0.10

var lengthTypes = map[string]int{
	"breve":       300,
	"media":       800,
	"dettagliata": 2000,
}

// LengthTypes returns the recognized length types and their word counts.
func LengthTypes() map[string]int {
	out := make(map[string]int, len(lengthTypes))
	for k, v := range lengthTypes {
		out[k] = v
	}
	return out
}

// ResolveWordCount returns explicit when positive, otherwise the word count
// of lengthType.
func ResolveWordCount(explicit int, lengthType string) int {
	if explicit > 0 {
		return explicit
	}
	if n, ok := lengthTypes[strings.ToLower(strings.TrimSpace(lengthType))]; ok {
		return n
	}
	return DefaultWordCount
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// WithinTolerance reports whether text is within tol (a fraction) of requested words.
func WithinTolerance(text string, requested int, tol float64) bool {
	if requested <= 0 {
		return false
	}
	deviation := math.Abs(float64(WordCount(text)-requested)) / float64(requested)
	return deviation <= tol
}
