package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/curve25519"

	"tgstate/internal/domain"
)

// NewExchange returns an ephemeral X25519 pair for one key exchange.
// curve25519.X25519 clamps the scalar itself.
func NewExchange() (domain.ExchangePrivate, domain.ExchangePublic, error) {
	var priv domain.ExchangePrivate
	var pub domain.ExchangePublic
	if _, err := rand.Read(priv[:]); err != nil {
		return priv, pub, err
	}
	pb, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		Wipe(priv[:])
		return priv, pub, err
	}
	copy(pub[:], pb)
	return priv, pub, nil
}

// Agree computes the shared secret between our scalar and the peer's point.
// A low-order peer point is rejected.
func Agree(priv domain.ExchangePrivate, peer domain.ExchangePublic) (domain.SharedSecret, error) {
	var out domain.SharedSecret
	b, err := curve25519.X25519(priv[:], peer[:])
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	Wipe(b)
	return out, nil
}

// ParseExchangePublic checks the length of a point received off the wire.
func ParseExchangePublic(b []byte) (domain.ExchangePublic, error) {
	var pub domain.ExchangePublic
	if len(b) != len(pub) {
		return pub, fmt.Errorf("exchange key must be %d bytes, got %d", len(pub), len(b))
	}
	copy(pub[:], b)
	return pub, nil
}
