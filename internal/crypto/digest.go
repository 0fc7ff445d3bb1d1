package crypto

import (
	"crypto/sha1" // #nosec G505 -- digest format is fixed by peers and stored files
	"encoding/binary"

	"tgstate/internal/domain"
)

// KeyDigest returns the SHA-1 of a secret-chat key, which both peers render
// so the users can compare keys out of band.
func KeyDigest(key domain.SecretKey) domain.Digest {
	return domain.Digest(sha1.Sum(key[:]))
}

// KeyFingerprint is the low 64 bits of SHA-1(key), read little-endian from
// the last eight bytes of the digest.
func KeyFingerprint(key []byte) int64 {
	sum := sha1.Sum(key)
	return int64(binary.LittleEndian.Uint64(sum[12:]))
}

// AuthKeyID identifies an authorization key without revealing it.
func AuthKeyID(key domain.AuthKey) int64 {
	return KeyFingerprint(key[:])
}
