package types

import "strconv"

// AuthKeySize is the length of a shard authorization key in bytes.
const AuthKeySize = 256

// ShardID identifies a server shard (DC). Valid ids are small positive integers.
type ShardID int32

func (id ShardID) String() string { return "dc" + strconv.Itoa(int(id)) }

// AuthKey is the symmetric authorization key negotiated with a shard.
type AuthKey [AuthKeySize]byte

// IsZero reports whether no key material has been set.
func (k *AuthKey) IsZero() bool {
	var zero AuthKey
	return *k == zero
}

// Shard is the per-shard authorization record.
//
// A shard is persisted only when HasKey is true; the endpoint and key travel
// together or not at all.
type Shard struct {
	ID     ShardID
	Host   string
	Port   int32
	KeyID  int64
	Key    AuthKey
	HasKey bool
	Signed bool
}

// Endpoint returns host:port.
func (s Shard) Endpoint() string {
	return s.Host + ":" + strconv.Itoa(int(s.Port))
}

// UserID is a remote account identifier.
type UserID int32
