// Package dedupe removes and detects repeated values in slices.
package dedupe

import "strings"

// Trimmed trims each element and drops empties and repeats, keeping the
// first occurrence.
//
//	Trimmed([]string{"  a ", "b", "a", ""}) // []string{"a", "b"}
func Trimmed(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return Values(out)
}

// Values drops repeats, keeping the first occurrence of each value.
func Values[T comparable](values []T) []T {
	seen := make(map[T]struct{}, len(values))
	out := make([]T, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// FirstDuplicate returns the first value that occurs more than once.
func FirstDuplicate[T comparable](values []T) (T, bool) {
	seen := make(map[T]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			return v, true
		}
		seen[v] = struct{}{}
	}
	var zero T
	return zero, false
}
