// Package capability hashes and checks bearer secrets. Records keep only the hash;
// whoever holds the secret holds the capability.
package capability

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

func Hash(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// Matches reports whether secret hashes to hash. An empty secret never matches.
func Matches(hash, secret string) bool {
	if secret == "" || hash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(hash), []byte(Hash(secret))) == 1
}
