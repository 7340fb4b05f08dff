package util

import (
	"strings"
	"unicode"
)

// Words lowercases s and splits it on every rune that is neither a letter
// nor a digit.
func Words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// TermMatch reports whether the words of the shorter term appear as a
// contiguous run in the longer one. "security" matches "security review"
// but "ai" does not match "maintenance".
func TermMatch(a, b string) bool {
	wa, wb := Words(a), Words(b)
	if len(wa) == 0 || len(wb) == 0 {
		return false
	}
	if len(wa) > len(wb) {
		wa, wb = wb, wa
	}
	for i := 0; i+len(wa) <= len(wb); i++ {
		if equalWords(wa, wb[i:i+len(wa)]) {
			return true
		}
	}
	return false
}

func equalWords(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
