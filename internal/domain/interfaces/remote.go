package interfaces

import (
	"context"

	domaintypes "tgstate/internal/domain/types"
)

// Authenticator performs authentication round trips against the server.
type Authenticator interface {
	// Handshake negotiates an authorization key with a shard.
	Handshake(ctx context.Context, shard domaintypes.Shard) (keyID int64, key domaintypes.AuthKey, err error)
	SendCode(ctx context.Context, phone string) (domaintypes.SentCode, error)
	SignIn(ctx context.Context, phone, hash, code string) (domaintypes.UserID, error)
	SignUp(ctx context.Context, phone, hash string, reg domaintypes.Registration) (domaintypes.UserID, error)
	// ExportAuthorization copies the working shard's login to another shard.
	ExportAuthorization(ctx context.Context, from, to domaintypes.Shard) error
}

// SecretChatAcceptor completes the key exchange of an incoming request.
type SecretChatAcceptor interface {
	AcceptSecretChat(ctx context.Context, chat domaintypes.SecretChat) (key domaintypes.SecretKey, fingerprint int64, err error)
}

// SecretChatRequester starts a secret chat with a peer and, once the peer
// has accepted, finishes the key exchange.
type SecretChatRequester interface {
	// RequestSecretChat returns the new chat in the waiting state.
	RequestSecretChat(ctx context.Context, peer domaintypes.UserID) (domaintypes.SecretChat, error)
	// CompleteSecretChat derives the key of a chat the peer has accepted.
	CompleteSecretChat(ctx context.Context, chat domaintypes.SecretChat) (key domaintypes.SecretKey, fingerprint int64, err error)
}

// Syncer requests the initial server synchronization after login.
type Syncer interface {
	GetDifference(ctx context.Context, from domaintypes.Cursor) (domaintypes.Difference, error)
	GetDialogList(ctx context.Context) ([]domaintypes.Dialog, error)
	UpdateContactList(ctx context.Context) ([]domaintypes.Contact, error)
}

// Remote is the full server-facing surface.
type Remote interface {
	Authenticator
	SecretChatAcceptor
	SecretChatRequester
	Syncer
}
