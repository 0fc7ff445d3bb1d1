package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint labels key material for display without exposing it: the
// first 8 bytes of its SHA-256, in hex. An all-zero key is shown as "-".
func Fingerprint(key []byte) string {
	zero := true
	for _, b := range key {
		if b != 0 {
			zero = false
			break
		}
	}
	if zero {
		return "-"
	}
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:8])
}
