package types

// ExchangeKeySize is the length of an X25519 key.
const ExchangeKeySize = 32

// ExchangePrivate is one side's ephemeral X25519 scalar. It is wiped once
// the shared secret has been expanded.
type ExchangePrivate [ExchangeKeySize]byte

// ExchangePublic is the X25519 point sent to the other side.
type ExchangePublic [ExchangeKeySize]byte

// SharedSecret is the raw X25519 output, expanded into an AuthKey or a
// SecretKey before use.
type SharedSecret [ExchangeKeySize]byte
