// Package code allocates human-readable sequential codes such as PT-0001.
package code

import (
	"fmt"
	"strconv"
	"strings"
)

// Format renders n with at least four digits. Larger numbers keep every
// digit: Format("PT", 10000) is "PT-10000".
func Format(prefix string, n int) string {
	return fmt.Sprintf("%s-%04d", prefix, n)
}

// Parse extracts the number from a code of the given prefix. Codes with a
// different prefix, an empty or non-numeric suffix, or a non-positive
// number are rejected.
func Parse(prefix, code string) (int, bool) {
	rest, ok := strings.CutPrefix(code, prefix+"-")
	if !ok || rest == "" {
		return 0, false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// Next returns one past the highest well-formed number among codes, or 1.
// Malformed codes are skipped.
func Next(prefix string, codes []string) int {
	max := 0
	for _, c := range codes {
		if n, ok := Parse(prefix, c); ok && n > max {
			max = n
		}
	}
	return max + 1
}
