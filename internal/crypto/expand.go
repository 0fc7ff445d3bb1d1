package crypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// ExpandKey stretches a Diffie–Hellman secret into len(out) bytes.
// Both sides must use the same salt and info.
func ExpandKey(secret, salt []byte, info string, out []byte) error {
	r := hkdf.New(sha256.New, secret, salt, []byte(info))
	_, err := io.ReadFull(r, out)
	return err
}
