package interfaces

import domaintypes "tgstate/internal/domain/types"

// AuthSnapshot is the content of the authorization store.
type AuthSnapshot struct {
	Shards  []domaintypes.Shard
	Working domaintypes.ShardID
	OurID   domaintypes.UserID
}

// AuthStore persists per-shard authorization material.
//
// Load returns found=false when the file is missing or foreign; the caller
// seeds defaults. A truncated file is an error.
type AuthStore interface {
	SaveAuth(snap AuthSnapshot) error
	LoadAuth() (snap AuthSnapshot, found bool, err error)
}

// CursorStore persists the update-stream cursor.
type CursorStore interface {
	SaveCursor(c domaintypes.Cursor) error
	LoadCursor() (c domaintypes.Cursor, found bool, err error)
}

// SecretChatStore persists active secret chats.
//
// SaveSecretChats writes only chats in the active state and reports how many
// records were written. LoadSecretChats accepts every known format version
// and returns complete records (digest filled in, missing counters zero).
type SecretChatStore interface {
	SaveSecretChats(chats []domaintypes.SecretChat) (written int, err error)
	LoadSecretChats() (chats []domaintypes.SecretChat, found bool, err error)
}
