package interfaces

import domaintypes "tgstate/internal/domain/types"

// UpdateHandler receives engine events in the order they were produced.
type UpdateHandler func(ev domaintypes.Event)

// ShardTable is the engine's view of shard authorization.
type ShardTable interface {
	Shards() []domaintypes.Shard
	Shard(id domaintypes.ShardID) (domaintypes.Shard, bool)
	MaxShardID() domaintypes.ShardID
	SetShardOption(id domaintypes.ShardID, host string, port int32)
	SetAuthKey(id domaintypes.ShardID, keyID int64, key domaintypes.AuthKey) error
	SetSigned(id domaintypes.ShardID) error
	Authorized(id domaintypes.ShardID) bool
	Signed(id domaintypes.ShardID) bool
	WorkingShard() domaintypes.ShardID
	SetWorkingShard(id domaintypes.ShardID)
	OurID() domaintypes.UserID
	SetOurID(id domaintypes.UserID)
}

// CursorTable is the engine's update-stream position.
type CursorTable interface {
	Cursor() domaintypes.Cursor
	SetPts(v int32)
	SetQts(v int32)
	SetSeq(v int32)
	SetDate(v int32)
	MessageReceived()
}

// SecretChatTable holds secret chats. Every setter is the only sanctioned
// way to change its field, and fails until CreateSecretChat has run.
type SecretChatTable interface {
	SecretChats() []domaintypes.SecretChat
	SecretChat(id domaintypes.SecretChatID) (domaintypes.SecretChat, bool)
	CreateSecretChat(id domaintypes.SecretChatID, userID, adminID domaintypes.UserID, name string) error
	RequestSecretChat(id domaintypes.SecretChatID) error
	SetChatDate(id domaintypes.SecretChatID, date int32) error
	SetChatTTL(id domaintypes.SecretChatID, ttl int32) error
	SetChatLayer(id domaintypes.SecretChatID, layer int32) error
	SetChatState(id domaintypes.SecretChatID, state domaintypes.ChatState) error
	SetChatKey(id domaintypes.SecretChatID, key domaintypes.SecretKey, fingerprint int64) error
	SetChatDigest(id domaintypes.SecretChatID, digest domaintypes.Digest) error
	SetChatSeq(id domaintypes.SecretChatID, in, lastIn, out int32) error
	SetChatAccessHash(id domaintypes.SecretChatID, hash int64) error
	SetChatTitle(id domaintypes.SecretChatID, name string) error
	SetChatAdmin(id domaintypes.SecretChatID, admin domaintypes.UserID) error
	SetRekeyPhase(id domaintypes.SecretChatID, phase domaintypes.RekeyPhase) error
	DeleteSecretChat(id domaintypes.SecretChatID) error
}

// Engine is the protocol engine state consumed by the stores and services.
type Engine interface {
	ShardTable
	CursorTable
	SecretChatTable

	// Subscribe installs the single update handler.
	Subscribe(h UpdateHandler)
	// Mute suppresses event delivery until the returned func is called.
	Mute() (unmute func())
}
