// Package strutil provides string helpers shared by the ai packages.
package strutil

import "strings"

// Truncate cuts s to maxLen runes and appends "..." when anything was cut.
// Used for log excerpts.
func Truncate(s string, maxLen int) string {
	if s == "" || maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// Prefix returns at most the first n runes of s, without a marker.
func Prefix(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// ContainsAnyFold reports the first of words found in s, ignoring case.
func ContainsAnyFold(s string, words []string) (string, bool) {
	lower := strings.ToLower(s)
	for _, w := range words {
		if strings.Contains(lower, strings.ToLower(w)) {
			return w, true
		}
	}
	return "", false
}
