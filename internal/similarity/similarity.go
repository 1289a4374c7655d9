// Package similarity holds the string-distance and numeric-deviation
// primitives used by the integrity checks.
package similarity

import (
	"math"
	"strings"
	"unicode/utf8"
)

// EditDistance returns the Levenshtein distance between a and b with unit
// cost insert, delete and substitute, counted in runes.
func EditDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) < len(rb) {
		ra, rb = rb, ra
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// TitleSimilarity returns 1 - distance/max(len) over the lower-cased titles.
// Two empty titles are identical.
func TitleSimilarity(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(EditDistance(a, b))/float64(longest)
}

// RelativeDeviation returns |value - reference| / reference. A non-positive
// reference has no meaningful deviation and yields ok=false.
func RelativeDeviation(value, reference float64) (float64, bool) {
	if reference <= 0 || math.IsNaN(reference) || math.IsInf(reference, 0) {
		return 0, false
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return math.Abs(value-reference) / reference, true
}
