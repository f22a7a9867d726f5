package verification

import (
	"math"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Normalize trims and case-folds a claimed or stored value.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Score returns an edit-distance similarity in [0,100]. It is symmetric and
// scores identical non-empty strings at 100. Either side empty scores 0.
func Score(a, b string) int {
	a, b = Normalize(a), Normalize(b)
	if a == "" || b == "" {
		return 0
	}
	total := len([]rune(a)) + len([]rune(b))
	dist := levenshtein.ComputeDistance(a, b)
	return int(math.Round(100 * float64(total-dist) / float64(total)))
}

// NameMatches applies the first-or-last rule. A record with no name on file
// matches any claim.
func NameMatches(firstScore, lastScore int, storedFirst, storedLast string) bool {
	if Normalize(storedFirst) == "" && Normalize(storedLast) == "" {
		return true
	}
	return firstScore >= NameThreshold || lastScore >= NameThreshold
}
