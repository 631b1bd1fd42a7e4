package identity

import "strings"

// NormalizeEmail trims surrounding whitespace. Emails are otherwise matched
// exactly as stored (case-sensitive).
func NormalizeEmail(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeName trims surrounding whitespace from a display name.
func NormalizeName(s string) string {
	return strings.TrimSpace(s)
}
