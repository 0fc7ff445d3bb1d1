package types

import (
	"encoding/hex"
	"strconv"
)

const (
	// SecretKeySize is the length of a secret-chat session key in bytes.
	SecretKeySize = 256
	// DigestSize is the length of the content-binding digest (SHA-1).
	DigestSize = 20
)

// SecretChatID identifies an encrypted peer-to-peer chat.
type SecretChatID int32

func (id SecretChatID) String() string { return strconv.Itoa(int(id)) }

// SecretKey is the symmetric key shared by both ends of a secret chat.
type SecretKey [SecretKeySize]byte

// IsZero reports whether no key material has been set.
func (k *SecretKey) IsZero() bool {
	var zero SecretKey
	return *k == zero
}

// Digest is the content-binding hash of a SecretKey shown to both peers.
type Digest [DigestSize]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// ChatState is the lifecycle state of a secret chat. The numeric values are
// the ones written to disk.
type ChatState int32

const (
	ChatNone      ChatState = 0
	ChatWaiting   ChatState = 1 // we requested, waiting for the peer
	ChatRequested ChatState = 2 // the peer requested, waiting for our decision
	ChatActive    ChatState = 3
	ChatDeleted   ChatState = 4
)

// Pending reports whether the chat is created but not yet usable.
func (s ChatState) Pending() bool { return s == ChatWaiting || s == ChatRequested }

func (s ChatState) String() string {
	switch s {
	case ChatNone:
		return "none"
	case ChatWaiting:
		return "waiting"
	case ChatRequested:
		return "requested"
	case ChatActive:
		return "active"
	case ChatDeleted:
		return "terminated"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// RekeyPhase tracks key renegotiation on an active chat. Only a committed key
// is ever persisted.
type RekeyPhase int32

const (
	RekeyIdle RekeyPhase = iota
	RekeyRequested
	RekeyAccepted
	RekeyCommitted
)

// SecretChat is one end-to-end encrypted session.
type SecretChat struct {
	ID             SecretChatID
	Name           string
	UserID         UserID
	AdminID        UserID
	Date           int32
	TTL            int32
	Layer          int32
	AccessHash     int64
	State          ChatState
	KeyFingerprint int64
	Key            SecretKey
	Digest         Digest
	InSeq          int32
	LastInSeq      int32
	OutSeq         int32
	Rekey          RekeyPhase
}

// Peer returns the other participant given our own id.
func (c SecretChat) Peer(ourID UserID) UserID {
	if c.AdminID == ourID {
		return c.UserID
	}
	return c.AdminID
}
