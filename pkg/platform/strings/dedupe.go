// Package strings holds small string helpers shared across modules.
package strings

import "strings"

// DedupeAndTrim trims each value and drops blanks and repeats, keeping first
// occurrence order. The result never aliases a non-empty input.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
