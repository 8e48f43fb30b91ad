package redact

import (
	"strings"
)

// String masks the middle half of s, keeping its first and last quarters
// readable so secrets can still be told apart in logs.
func String(s string) string {
	runes := []rune(s)
	n := len(runes)
	if n == 0 {
		return ""
	}

	if n < 4 {
		return strings.Repeat("*", n)
	}

	head, tail := n/4, n-n/4

	return string(runes[:head]) + strings.Repeat("*", tail-head) + string(runes[tail:])
}
