package identity

import "strings"

// NormalizeUsername performs case-insensitive canonicalization.
// Trim + lower-case only for now; unicode confusable handling can be added
// later behind a versioned policy.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidEmail is the minimal structural check applied at registration.
// Deliverability is out of scope; only the presence of "@" is required.
func ValidEmail(s string) bool {
	return strings.Contains(s, "@")
}
