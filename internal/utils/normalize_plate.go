package utils

import (
	"strings"
	"unicode/utf8"
)

const (
	MinPlateLength = 2
	MaxPlateLength = 10
)

// NormalizePlate makes licence plates comparable: no spaces, dashes or dots,
// upper case.
func NormalizePlate(raw string) string {
	normalized := strings.TrimSpace(raw)
	normalized = strings.NewReplacer(" ", "", "-", "", ".", "").Replace(normalized)
	return strings.ToUpper(normalized)
}

func ValidPlate(normalized string) bool {
	n := utf8.RuneCountInString(normalized)
	return n >= MinPlateLength && n <= MaxPlateLength
}

// NormalizeStreet trims and collapses inner whitespace; case is preserved
// because rate table keys are case sensitive.
func NormalizeStreet(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
