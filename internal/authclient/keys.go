package authclient

import (
	"tgstate/internal/crypto"
	"tgstate/internal/domain"
)

// DeriveAuthKey expands a handshake secret into a shard authorization key.
func DeriveAuthKey(shared domain.SharedSecret, shard domain.ShardID) (domain.AuthKey, error) {
	var key domain.AuthKey
	err := crypto.ExpandKey(shared[:], nil, "tgstate auth "+shard.String(), key[:])
	return key, err
}

// DeriveSecretKey expands a secret-chat exchange into the chat key. Both
// the requesting and the accepting side use it.
func DeriveSecretKey(shared domain.SharedSecret, chat domain.SecretChatID) (domain.SecretKey, error) {
	var key domain.SecretKey
	err := crypto.ExpandKey(shared[:], nil, "tgstate secret "+chat.String(), key[:])
	return key, err
}
