package domain

import "strings"

// NormalizeHumanName trims leading/trailing whitespace and collapses internal whitespace runs.
// It is used for displayName normalization.
func NormalizeHumanName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NameKey folds a human name for identity matching: normalized whitespace, case-insensitive.
func NameKey(s string) string {
	return strings.ToLower(NormalizeHumanName(s))
}

// NormalizeEmail trims and lower-cases an email address for identity matching.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
