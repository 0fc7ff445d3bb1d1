package store

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"tgstate/internal/codec"
	"tgstate/internal/crypto"
	"tgstate/internal/domain"
)

const (
	// SecretFile is the file name of the secret-chat store.
	SecretFile  = "secret"
	secretMagic = 0x37a1988a

	// SecretFormatVersion is the version written by SaveSecretChats.
	// Version 1 added the three sequence counters, version 2 the digest.
	SecretFormatVersion = 2

	maxNameLen = 1000
	// countOffset is where the record count sits: after magic and version.
	countOffset = 8
)

// SecretChatFileStore keeps the active secret chats.
type SecretChatFileStore struct {
	dir  string
	mu   sync.Mutex
	opts options
}

func NewSecretChatFileStore(dir string, opts ...Option) *SecretChatFileStore {
	return &SecretChatFileStore{dir: dir, opts: buildOptions(opts)}
}

// SaveSecretChats rewrites the file with every active chat, ordered by id.
// Pending and terminated chats are skipped, so the count is only known
// after the records are written and is patched into its placeholder.
func (s *SecretChatFileStore) SaveSecretChats(chats []domain.SecretChat) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ordered := append([]domain.SecretChat(nil), chats...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	w := codec.NewWriter(secretMagic)
	w.Int32(SecretFormatVersion)
	w.Int32(0) // count placeholder

	written := 0
	for _, c := range ordered {
		if c.State != domain.ChatActive {
			continue
		}
		if err := encodeSecretChat(w, c); err != nil {
			return 0, err
		}
		written++
	}
	if err := w.PatchInt32(countOffset, int32(written)); err != nil {
		return 0, err
	}

	if err := replaceFile(s.dir, SecretFile, w.Bytes()); err != nil {
		return 0, fmt.Errorf("write secret chats: %w", err)
	}
	s.opts.written(SecretFile, w.Len())
	return written, nil
}

func encodeSecretChat(w *codec.Writer, c domain.SecretChat) error {
	if c.Name == "" {
		return fmt.Errorf("%w: secret chat %s has no name", ErrInvalidRecord, c.ID)
	}
	w.Int32(int32(c.ID))
	if err := w.String(c.Name, maxNameLen); err != nil {
		return fmt.Errorf("%w: secret chat %s name: %w", ErrInvalidRecord, c.ID, err)
	}
	w.Int32(int32(c.UserID))
	w.Int32(int32(c.AdminID))
	w.Int32(c.Date)
	w.Int32(c.TTL)
	w.Int32(c.Layer)
	w.Int64(c.AccessHash)
	w.Int32(int32(c.State))
	w.Int64(c.KeyFingerprint)
	w.Raw(c.Key[:])
	w.Raw(c.Digest[:])
	w.Int32(c.InSeq)
	w.Int32(c.LastInSeq)
	w.Int32(c.OutSeq)
	return nil
}

// LoadSecretChats reads a file of version 0, 1 or 2. Any other version is
// ErrUnsupportedVersion.
func (s *SecretChatFileStore) LoadSecretChats() ([]domain.SecretChat, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := loadFile(s.dir, SecretFile)
	if err != nil {
		return nil, false, err
	}
	r := codec.NewReader(bytes.NewReader(b))
	if err := r.Header(secretMagic); err != nil {
		return nil, false, nil
	}

	version, err := r.Int32()
	if err != nil {
		return nil, false, corrupt(SecretFile, err)
	}
	if version < 0 || version > SecretFormatVersion {
		return nil, false, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	count, err := r.Int32()
	if err != nil {
		return nil, false, corrupt(SecretFile, err)
	}
	if count < 0 {
		return nil, false, corrupt(SecretFile, fmt.Errorf("%w: negative count %d", codec.ErrCorrupt, count))
	}

	chats := make([]domain.SecretChat, 0, min(int(count), 64))
	for i := int32(0); i < count; i++ {
		c, err := decodeSecretChat(r, version)
		if err != nil {
			return nil, false, corrupt(SecretFile, fmt.Errorf("record %d: %w", i, err))
		}
		chats = append(chats, c)
	}
	return chats, true, nil
}

func decodeSecretChat(r *codec.Reader, version int32) (domain.SecretChat, error) {
	var (
		c   domain.SecretChat
		err error
		v   int32
	)
	if v, err = r.Int32(); err != nil {
		return c, err
	}
	c.ID = domain.SecretChatID(v)
	if c.Name, err = r.String(1, maxNameLen); err != nil {
		return c, err
	}
	if v, err = r.Int32(); err != nil {
		return c, err
	}
	c.UserID = domain.UserID(v)
	if v, err = r.Int32(); err != nil {
		return c, err
	}
	c.AdminID = domain.UserID(v)
	if c.Date, err = r.Int32(); err != nil {
		return c, err
	}
	if c.TTL, err = r.Int32(); err != nil {
		return c, err
	}
	if c.Layer, err = r.Int32(); err != nil {
		return c, err
	}
	if c.AccessHash, err = r.Int64(); err != nil {
		return c, err
	}
	if v, err = r.Int32(); err != nil {
		return c, err
	}
	c.State = domain.ChatState(v)
	if c.KeyFingerprint, err = r.Int64(); err != nil {
		return c, err
	}
	if err = r.Full(c.Key[:]); err != nil {
		return c, err
	}

	if version >= 2 {
		if err = r.Full(c.Digest[:]); err != nil {
			return c, err
		}
	} else {
		c.Digest = crypto.KeyDigest(c.Key)
	}

	if version >= 1 {
		if c.InSeq, err = r.Int32(); err != nil {
			return c, err
		}
		if c.LastInSeq, err = r.Int32(); err != nil {
			return c, err
		}
		if c.OutSeq, err = r.Int32(); err != nil {
			return c, err
		}
	}
	return c, nil
}

// Compile-time assertion that SecretChatFileStore implements domain.SecretChatStore.
var _ domain.SecretChatStore = (*SecretChatFileStore)(nil)
