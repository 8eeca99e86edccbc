// Package strings supplements the standard library with the small
// string helpers the services share.
package strings

import "strings"

// DedupeAndTrim trims every element and drops blanks and repeats,
// keeping first-seen order. Announcement audience lists run through
// this before they are stored.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		cleaned = append(cleaned, v)
	}
	return cleaned
}
