// Package strings holds small string slice helpers.
package strings

import (
	"strings"
)

// DedupeAndTrim trims every element and drops empty and repeated ones,
// keeping first-seen order. Used for comma separated settings such as
// broker lists.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
