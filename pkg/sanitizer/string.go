package sanitizer

import (
	"strings"
	"unicode"
)

func Trim(s string) string {
	return strings.TrimSpace(s)
}

func ToLower(s string) string {
	return strings.ToLower(s)
}

// MaxLength cuts s to at most maxLen runes.
func MaxLength(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}

// Truncate is MaxLength in pipeline form.
func Truncate(maxLen int) func(string) string {
	return func(s string) string { return MaxLength(s, maxLen) }
}

// RemoveControlChars drops every control character, line breaks included.
// Header values and identifiers never legitimately contain them.
func RemoveControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// NormalizeEmail trims and lowercases an address. Dots and plus tags are
// kept: they are significant to some providers.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
