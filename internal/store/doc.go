// Package store provides file-based persistence for tgstate's session state.
//
// Three binary files live in one state directory per account:
//   - auth    per-shard authorization keys, working shard, account id (AuthFileStore)
//   - state   the update-stream cursor (CursorFileStore)
//   - secret  active secret chats with their keys and counters (SecretChatFileStore)
//
// Each file starts with its own magic number. A missing or foreign file
// loads as "not found" so callers fall back to defaults; a file that matches
// the magic but is truncated fails with ErrCorrupt. Writes go through a temp
// file and a rename, so a crash leaves either the old or the new file.
//
// Restore* helpers feed loaded records into the protocol engine through its
// mutation primitives. SealBackup and OpenBackup move all three files as one
// passphrase-protected blob.
package store
