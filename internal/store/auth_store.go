package store

import (
	"bytes"
	"fmt"
	"sync"

	"tgstate/internal/codec"
	"tgstate/internal/domain"
)

const (
	// AuthFile is the file name of the authorization store.
	AuthFile  = "auth"
	authMagic = 0x868aa81d

	// maxHostLen bounds the endpoint string; longer values are corrupt.
	maxHostLen = 100
	// maxShardSlots bounds the slot table so a garbage high-water mark
	// cannot drive a huge loop.
	maxShardSlots = 1 << 12
)

// AuthFileStore keeps per-shard authorization keys, the working shard and
// our account id.
//
// Layout: magic, high-water mark, working shard id, then one slot per id in
// [0, high-water mark] holding a present flag and, when set, port, endpoint,
// key id and the 256-byte key; finally our account id.
type AuthFileStore struct {
	dir  string
	mu   sync.Mutex
	opts options
}

func NewAuthFileStore(dir string, opts ...Option) *AuthFileStore {
	return &AuthFileStore{dir: dir, opts: buildOptions(opts)}
}

// SaveAuth rewrites the authorization file. Shards without a key are
// written as empty slots.
func (s *AuthFileStore) SaveAuth(snap domain.AuthSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slots := make(map[domain.ShardID]domain.Shard, len(snap.Shards))
	var hwm domain.ShardID
	for _, sh := range snap.Shards {
		if sh.ID < 0 || sh.ID >= maxShardSlots {
			return fmt.Errorf("%w: shard id %d", ErrInvalidRecord, sh.ID)
		}
		slots[sh.ID] = sh
		if sh.ID > hwm {
			hwm = sh.ID
		}
	}
	if hwm == 0 {
		return fmt.Errorf("%w: no shards to save", ErrInvalidRecord)
	}

	w := codec.NewWriter(authMagic)
	w.Int32(int32(hwm))
	w.Int32(int32(snap.Working))
	for id := domain.ShardID(0); id <= hwm; id++ {
		sh, ok := slots[id]
		if !ok || !sh.HasKey {
			w.Int32(0)
			continue
		}
		w.Int32(1)
		w.Int32(sh.Port)
		if err := w.String(sh.Host, maxHostLen); err != nil {
			return fmt.Errorf("%w: %s host: %w", ErrInvalidRecord, sh.ID, err)
		}
		w.Int64(sh.KeyID)
		w.Raw(sh.Key[:])
	}
	w.Int32(int32(snap.OurID))

	if err := replaceFile(s.dir, AuthFile, w.Bytes()); err != nil {
		return fmt.Errorf("write auth: %w", err)
	}
	s.opts.written(AuthFile, w.Len())
	return nil
}

// LoadAuth reads the authorization file. Every restored shard is marked
// signed. found=false means the caller should fall back to DefaultShards.
func (s *AuthFileStore) LoadAuth() (domain.AuthSnapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := loadFile(s.dir, AuthFile)
	if err != nil {
		return domain.AuthSnapshot{}, false, err
	}
	r := codec.NewReader(bytes.NewReader(b))
	if err := r.Header(authMagic); err != nil {
		return domain.AuthSnapshot{}, false, nil
	}

	snap, err := decodeAuth(r)
	if err != nil {
		return domain.AuthSnapshot{}, false, corrupt(AuthFile, err)
	}
	return snap, true, nil
}

func decodeAuth(r *codec.Reader) (domain.AuthSnapshot, error) {
	var snap domain.AuthSnapshot

	hwm, err := r.Int32()
	if err != nil {
		return snap, err
	}
	if hwm <= 0 || hwm >= maxShardSlots {
		return snap, fmt.Errorf("%w: high-water mark %d", codec.ErrCorrupt, hwm)
	}
	working, err := r.Int32()
	if err != nil {
		return snap, err
	}
	snap.Working = domain.ShardID(working)

	for id := int32(0); id <= hwm; id++ {
		present, err := r.Int32()
		if err != nil {
			return snap, err
		}
		if present == 0 {
			continue
		}
		sh := domain.Shard{ID: domain.ShardID(id), HasKey: true, Signed: true}
		if sh.Port, err = r.Int32(); err != nil {
			return snap, err
		}
		if sh.Host, err = r.String(0, maxHostLen); err != nil {
			return snap, err
		}
		if sh.KeyID, err = r.Int64(); err != nil {
			return snap, err
		}
		if err := r.Full(sh.Key[:]); err != nil {
			return snap, err
		}
		snap.Shards = append(snap.Shards, sh)
	}

	ourID, _, err := r.TrailingInt32()
	if err != nil {
		return snap, err
	}
	snap.OurID = domain.UserID(ourID)
	return snap, nil
}

// Compile-time assertion that AuthFileStore implements domain.AuthStore.
var _ domain.AuthStore = (*AuthFileStore)(nil)
