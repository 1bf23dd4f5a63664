package sanitizer

import "strings"

// FilterEmpty drops whitespace-only entries.
func FilterEmpty(slice []string) []string {
	result := make([]string, 0, len(slice))
	for _, item := range slice {
		if strings.TrimSpace(item) != "" {
			result = append(result, item)
		}
	}
	return result
}

// Deduplicate keeps the first occurrence of every item, preserving order.
func Deduplicate[T comparable](slice []T) []T {
	seen := make(map[T]struct{}, len(slice))
	result := make([]T, 0, len(slice))
	for _, item := range slice {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		result = append(result, item)
	}
	return result
}

func TrimStringSlice(slice []string) []string {
	result := make([]string, len(slice))
	for i, item := range slice {
		result[i] = strings.TrimSpace(item)
	}
	return result
}

// CleanStringSlice trims, drops empty entries and deduplicates. A nil or
// fully empty input yields nil so optional lists stay absent.
func CleanStringSlice(slice []string) []string {
	out := Apply(slice, TrimStringSlice, FilterEmpty, Deduplicate[string])
	if len(out) == 0 {
		return nil
	}
	return out
}
