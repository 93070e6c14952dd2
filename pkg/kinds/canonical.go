// Package kinds maps free-text resource kinds, possibly version-qualified type
// names such as V1beta1CronJob, to their version-neutral canonical kind.
package kinds

import "unicode"

// A Policy strips the version qualifier from a type name. Inputs without an
// embedded digit are returned unchanged.
type Policy func(typeName string) string

// Canonicalize strips the version qualifier using LastDigitPolicy.
func Canonicalize(typeName string) string {
	return LastDigitPolicy(typeName)
}

// LastDigitPolicy keeps the longest letter run that follows the last digit in
// typeName.
func LastDigitPolicy(typeName string) string {
	runes := []rune(typeName)

	last := -1
	for i, r := range runes {
		if unicode.IsDigit(r) {
			last = i
		}
	}
	if last < 0 {
		return typeName
	}

	end := last + 1
	for end < len(runes) && unicode.IsLetter(runes[end]) {
		end++
	}
	if end == last+1 {
		return typeName
	}
	return string(runes[last+1 : end])
}

// TrailingLetterPolicy scans from the end of typeName and keeps the letters
// collected before the first digit.
func TrailingLetterPolicy(typeName string) string {
	runes := []rune(typeName)

	start := len(runes)
	for start > 0 && unicode.IsLetter(runes[start-1]) {
		start--
	}
	if start == len(runes) || !containsDigit(runes[:start]) {
		return typeName
	}
	return string(runes[start:])
}

func containsDigit(runes []rune) bool {
	for _, r := range runes {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
