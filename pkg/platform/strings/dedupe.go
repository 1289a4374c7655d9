// Package strings holds small helpers for list-valued inputs such as media
// URLs and broker addresses.
package strings

import (
	"strings"
)

// DedupeAndTrim trims each value and drops blanks and repeats, keeping the
// first occurrence order. A nil or empty input is returned as is.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
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

// SplitAndDedupe splits raw on sep and applies DedupeAndTrim. It returns nil
// when raw holds no values.
func SplitAndDedupe(raw, sep string) []string {
	out := DedupeAndTrim(strings.Split(raw, sep))
	if len(out) == 0 {
		return nil
	}
	return out
}
