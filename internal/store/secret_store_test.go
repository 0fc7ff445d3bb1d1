package store_test

import (
	"crypto/sha1"
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tgstate/internal/codec"
	"tgstate/internal/crypto"
	"tgstate/internal/domain"
	"tgstate/internal/engine"
	"tgstate/internal/store"
)

func activeChat(id domain.SecretChatID, name string) domain.SecretChat {
	key := keyOf(byte(id))
	return domain.SecretChat{
		ID:             id,
		Name:           name,
		UserID:         1000 + domain.UserID(id),
		AdminID:        42,
		Date:           1700000000,
		TTL:            60,
		Layer:          17,
		AccessHash:     -8765432123456789,
		State:          domain.ChatActive,
		KeyFingerprint: crypto.KeyFingerprint(key[:]),
		Key:            key,
		Digest:         crypto.KeyDigest(key),
		InSeq:          5,
		LastInSeq:      4,
		OutSeq:         9,
	}
}

func TestSecret_SaveLoad_Version2(t *testing.T) {
	dir := t.TempDir()
	var ss domain.SecretChatStore = store.NewSecretChatFileStore(dir)

	want := []domain.SecretChat{activeChat(1, "alice"), activeChat(2, "bob")}
	n, err := ss.SaveSecretChats(want)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, found, err := ss.LoadSecretChats()
	require.NoError(t, err)
	require.True(t, found)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("secret chats mismatch (-want +got):\n%s", diff)
	}

	raw := readRaw(t, dir, store.SecretFile)
	assert.EqualValues(t, 2, binary.LittleEndian.Uint32(raw[4:8]), "version")
	assert.EqualValues(t, 2, binary.LittleEndian.Uint32(raw[8:12]), "count")
}

func TestSecret_ActiveOnly(t *testing.T) {
	dir := t.TempDir()
	ss := store.NewSecretChatFileStore(dir)

	a := activeChat(1, "A")
	b := activeChat(2, "B")
	b.State = domain.ChatDeleted
	c := activeChat(3, "C")
	c.State = domain.ChatRequested

	n, err := ss.SaveSecretChats([]domain.SecretChat{c, b, a})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _, err := ss.LoadSecretChats()
	require.NoError(t, err)
	require.Len(t, got, 1)
	if diff := cmp.Diff(a, got[0]); diff != "" {
		t.Fatalf("active chat mismatch (-want +got):\n%s", diff)
	}
}

func TestSecret_EmptySetStillWritesHeader(t *testing.T) {
	dir := t.TempDir()
	ss := store.NewSecretChatFileStore(dir)

	n, err := ss.SaveSecretChats(nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, readRaw(t, dir, store.SecretFile), 12)

	got, found, err := ss.LoadSecretChats()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, got)
}

// legacyFile builds a secret-chat file in an older format by hand.
func legacyFile(version int32, c domain.SecretChat) []byte {
	w := codec.NewWriter(0x37a1988a)
	w.Int32(version)
	w.Int32(1)
	w.Int32(int32(c.ID))
	_ = w.String(c.Name, 1000)
	w.Int32(int32(c.UserID))
	w.Int32(int32(c.AdminID))
	w.Int32(c.Date)
	w.Int32(c.TTL)
	w.Int32(c.Layer)
	w.Int64(c.AccessHash)
	w.Int32(int32(c.State))
	w.Int64(c.KeyFingerprint)
	w.Raw(c.Key[:])
	if version >= 1 {
		w.Int32(c.InSeq)
		w.Int32(c.LastInSeq)
		w.Int32(c.OutSeq)
	}
	return w.Bytes()
}

func TestSecret_Version0_DefaultsCountersAndDigest(t *testing.T) {
	dir := t.TempDir()
	c := activeChat(7, "carol")
	writeRaw(t, dir, store.SecretFile, legacyFile(0, c))

	got, found, err := store.NewSecretChatFileStore(dir).LoadSecretChats()
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, got, 1)

	assert.Zero(t, got[0].InSeq)
	assert.Zero(t, got[0].LastInSeq)
	assert.Zero(t, got[0].OutSeq)
	assert.Equal(t, domain.Digest(sha1.Sum(c.Key[:])), got[0].Digest)
	assert.Equal(t, c.Key, got[0].Key)
	assert.Equal(t, c.KeyFingerprint, got[0].KeyFingerprint)
}

func TestSecret_Version1_KeepsCounters(t *testing.T) {
	dir := t.TempDir()
	c := activeChat(8, "dave")
	writeRaw(t, dir, store.SecretFile, legacyFile(1, c))

	got, _, err := store.NewSecretChatFileStore(dir).LoadSecretChats()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.EqualValues(t, 5, got[0].InSeq)
	assert.EqualValues(t, 4, got[0].LastInSeq)
	assert.EqualValues(t, 9, got[0].OutSeq)
	assert.Equal(t, crypto.KeyDigest(c.Key), got[0].Digest)
}

func TestSecret_UnknownVersion_HardError(t *testing.T) {
	dir := t.TempDir()
	writeRaw(t, dir, store.SecretFile, legacyFile(3, activeChat(1, "x")))

	_, _, err := store.NewSecretChatFileStore(dir).LoadSecretChats()
	assert.ErrorIs(t, err, store.ErrUnsupportedVersion)
}

func TestSecret_Truncated_Fails(t *testing.T) {
	dir := t.TempDir()
	ss := store.NewSecretChatFileStore(dir)
	_, err := ss.SaveSecretChats([]domain.SecretChat{activeChat(1, "alice")})
	require.NoError(t, err)

	b := readRaw(t, dir, store.SecretFile)
	writeRaw(t, dir, store.SecretFile, b[:len(b)-13])

	_, _, err = ss.LoadSecretChats()
	assert.ErrorIs(t, err, store.ErrCorrupt)
}

func TestSecret_EmptyNameRejected(t *testing.T) {
	ss := store.NewSecretChatFileStore(t.TempDir())
	_, err := ss.SaveSecretChats([]domain.SecretChat{activeChat(1, "")})
	assert.ErrorIs(t, err, store.ErrInvalidRecord)
}

func TestRestoreSecretChats_ReplaysIntoEngine(t *testing.T) {
	dir := t.TempDir()
	ss := store.NewSecretChatFileStore(dir)
	want := activeChat(3, "erin")
	_, err := ss.SaveSecretChats([]domain.SecretChat{want})
	require.NoError(t, err)

	eng := engine.New()
	var flags []domain.UpdateFlags
	eng.Subscribe(func(ev domain.Event) { flags = append(flags, ev.Flags) })

	n, err := store.RestoreSecretChats(ss, eng)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, ok := eng.SecretChat(3)
	require.True(t, ok)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("replayed chat mismatch (-want +got):\n%s", diff)
	}
	require.NotEmpty(t, flags)
	assert.Equal(t, domain.UpdateCreated, flags[0])
}

func TestRestoreCursor_SeedsEngine(t *testing.T) {
	dir := t.TempDir()
	cs := store.NewCursorFileStore(dir)
	want := domain.Cursor{Pts: 10, Qts: 20, Seq: 30, Date: 40}
	require.NoError(t, cs.SaveCursor(want))

	eng := engine.New()
	found, err := store.RestoreCursor(cs, eng)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, eng.Cursor())
}
