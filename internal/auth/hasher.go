package auth

import (
	"crypto/sha256"
	"encoding/hex"
)

// saltKey is the fixed application-wide salt appended to every password
// before digesting. A fixed salt keeps the digest deterministic so stored
// values can be verified by equality, while still breaking trivial
// dictionary lookups. This scheme is carried over as-is and is not meant
// to be production-grade.
const saltKey = "budgetblu_salt"

// HashPassword returns the lowercase hex SHA-256 digest of the salted
// plaintext. Deterministic: equal inputs always produce equal digests.
// The empty string is hashable; rejecting empty passwords is the
// registration validator's job.
func HashPassword(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext + saltKey))
	return hex.EncodeToString(sum[:])
}
