package store

import (
	"fmt"

	"tgstate/internal/domain"
)

// RestoreAuth seeds the engine's shard table from st. When no usable file
// exists the built-in shard table for the chosen environment is used.
func RestoreAuth(st domain.AuthStore, eng domain.ShardTable, testMode bool) (bool, error) {
	snap, found, err := st.LoadAuth()
	if err != nil {
		return false, err
	}
	if !found || len(snap.Shards) == 0 {
		for _, sh := range DefaultShards(testMode) {
			eng.SetShardOption(sh.ID, sh.Host, sh.Port)
		}
		eng.SetWorkingShard(DefaultWorkingShard)
		return false, nil
	}

	for _, sh := range snap.Shards {
		eng.SetShardOption(sh.ID, sh.Host, sh.Port)
		if err := eng.SetAuthKey(sh.ID, sh.KeyID, sh.Key); err != nil {
			return true, err
		}
		if err := eng.SetSigned(sh.ID); err != nil {
			return true, err
		}
	}
	eng.SetWorkingShard(snap.Working)
	if snap.OurID != 0 {
		eng.SetOurID(snap.OurID)
	}
	return true, nil
}

// SnapshotAuth captures the engine's shard table for SaveAuth.
func SnapshotAuth(eng domain.ShardTable) domain.AuthSnapshot {
	return domain.AuthSnapshot{
		Shards:  eng.Shards(),
		Working: eng.WorkingShard(),
		OurID:   eng.OurID(),
	}
}

// RestoreCursor seeds the engine's cursor. A missing file leaves it at zero.
func RestoreCursor(st domain.CursorStore, eng domain.CursorTable) (bool, error) {
	c, found, err := st.LoadCursor()
	if err != nil || !found {
		return false, err
	}
	eng.SetSeq(c.Seq)
	eng.SetPts(c.Pts)
	eng.SetQts(c.Qts)
	eng.SetDate(c.Date)
	return true, nil
}

// RestoreSecretChats re-creates every stored chat in the engine and then
// applies each field through its own setter, the same way live updates
// arrive. It returns the number of chats restored.
func RestoreSecretChats(st domain.SecretChatStore, eng domain.SecretChatTable) (int, error) {
	chats, found, err := st.LoadSecretChats()
	if err != nil || !found {
		return 0, err
	}
	for _, c := range chats {
		if err := ReplaySecretChat(eng, c); err != nil {
			return 0, fmt.Errorf("restore secret chat %s: %w", c.ID, err)
		}
	}
	return len(chats), nil
}

// ReplaySecretChat creates a stored chat in the engine and applies every
// field through its setter. It is only for records read back from the
// secret-chat file; a server's view of a chat goes through MergeSecretChat.
func ReplaySecretChat(eng domain.SecretChatTable, c domain.SecretChat) error {
	if err := eng.CreateSecretChat(c.ID, c.UserID, c.AdminID, c.Name); err != nil {
		return err
	}
	steps := []func() error{
		func() error { return eng.SetChatDate(c.ID, c.Date) },
		func() error { return eng.SetChatTTL(c.ID, c.TTL) },
		func() error { return eng.SetChatLayer(c.ID, c.Layer) },
		func() error { return eng.SetChatState(c.ID, c.State) },
		func() error {
			if c.Key.IsZero() {
				return nil
			}
			return eng.SetChatKey(c.ID, c.Key, c.KeyFingerprint)
		},
		func() error { return eng.SetChatDigest(c.ID, c.Digest) },
		func() error { return eng.SetChatSeq(c.ID, c.InSeq, c.LastInSeq, c.OutSeq) },
		func() error { return eng.SetChatAccessHash(c.ID, c.AccessHash) },
	}
	return runSteps(steps)
}

// MergeSecretChat applies a chat reported by the server. The server owns
// the lifecycle state, date, ttl, layer, access hash, title and admin of a
// chat. The key, its fingerprint and digest and the sequence counters exist
// only here and are never taken from c.
//
// A chat the engine does not hold is created only for an incoming request.
// The state only moves forward, and never to active without a local key
// (ErrKeyless).
func MergeSecretChat(eng domain.SecretChatTable, c domain.SecretChat) error {
	cur, ok := eng.SecretChat(c.ID)
	if !ok || cur.State == domain.ChatDeleted {
		switch c.State {
		case domain.ChatRequested:
		case domain.ChatActive:
			return fmt.Errorf("%w: %s", ErrKeyless, c.ID)
		default:
			return nil
		}
		if err := eng.CreateSecretChat(c.ID, c.UserID, c.AdminID, c.Name); err != nil {
			return err
		}
		cur, _ = eng.SecretChat(c.ID)
	}

	var steps []func() error
	if cur.Date != c.Date {
		steps = append(steps, func() error { return eng.SetChatDate(c.ID, c.Date) })
	}
	if cur.TTL != c.TTL {
		steps = append(steps, func() error { return eng.SetChatTTL(c.ID, c.TTL) })
	}
	if cur.Layer != c.Layer {
		steps = append(steps, func() error { return eng.SetChatLayer(c.ID, c.Layer) })
	}
	if cur.AccessHash != c.AccessHash {
		steps = append(steps, func() error { return eng.SetChatAccessHash(c.ID, c.AccessHash) })
	}
	if c.Name != "" && cur.Name != c.Name {
		steps = append(steps, func() error { return eng.SetChatTitle(c.ID, c.Name) })
	}
	if c.AdminID != 0 && cur.AdminID != c.AdminID {
		steps = append(steps, func() error { return eng.SetChatAdmin(c.ID, c.AdminID) })
	}
	if stateRank(c.State) > stateRank(cur.State) {
		if c.State == domain.ChatActive && cur.Key.IsZero() {
			if err := runSteps(steps); err != nil {
				return err
			}
			return fmt.Errorf("%w: %s", ErrKeyless, c.ID)
		}
		steps = append(steps, func() error { return eng.SetChatState(c.ID, c.State) })
	}
	return runSteps(steps)
}

// stateRank orders lifecycle states; a chat never moves to a lower rank.
func stateRank(s domain.ChatState) int {
	switch s {
	case domain.ChatWaiting, domain.ChatRequested:
		return 1
	case domain.ChatActive:
		return 2
	case domain.ChatDeleted:
		return 3
	default:
		return 0
	}
}

func runSteps(steps []func() error) error {
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}
