// Package crypto exposes the primitives tgstate needs around key material.
//
// Contents
//
//   - SHA-1 content-binding digest of a secret-chat key (KeyDigest)
//   - 64-bit key fingerprints and authorization key ids (KeyFingerprint, AuthKeyID)
//   - Ephemeral X25519 exchanges (NewExchange, Agree, ParseExchangePublic)
//   - HKDF expansion of a shared secret into 256-byte keys (ExpandKey)
//   - Best-effort memory wiping for sensitive byte slices (Wipe)
//   - Short hex fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// The digest and fingerprint formulas are fixed by the on-disk formats and
// the peer protocol; they are not meant as general-purpose hashes.
package crypto
