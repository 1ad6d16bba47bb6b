/*
Package identity defines the canonical form of a user identity string.

Every boundary where an identity enters the system or is compared against
stored state must go through Normalize, so that "Alice ", "alice" and "ALICE"
all resolve to the same participant. Display names are stored separately and
keep their supplied casing.
*/
package identity

import "strings"

// Normalize returns the canonical form of a user identity: surrounding
// whitespace removed and all characters lower-cased.
func Normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Equal reports whether two identity strings refer to the same user after
// normalization.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// IsValid reports whether the identity is non-empty after normalization.
func IsValid(id string) bool {
	return Normalize(id) != ""
}
