package store

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"tgstate/internal/codec"
	"tgstate/internal/domain"
)

const (
	// CursorFile is the file name of the update-cursor store.
	CursorFile  = "state"
	cursorMagic = 0x28949a93
)

// CursorFileStore keeps the update-stream cursor in a fixed 24-byte file:
// magic, a reserved version word, then pts, qts, seq and date.
type CursorFileStore struct {
	dir  string
	mu   sync.Mutex
	opts options
}

func NewCursorFileStore(dir string, opts ...Option) *CursorFileStore {
	return &CursorFileStore{dir: dir, opts: buildOptions(opts)}
}

// SaveCursor writes all four counters as one snapshot.
func (s *CursorFileStore) SaveCursor(c domain.Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := codec.NewWriter(cursorMagic)
	w.Int32(0) // reserved
	w.Int32(c.Pts)
	w.Int32(c.Qts)
	w.Int32(c.Seq)
	w.Int32(c.Date)

	if err := replaceFile(s.dir, CursorFile, w.Bytes()); err != nil {
		return fmt.Errorf("write cursor: %w", err)
	}
	s.opts.written(CursorFile, w.Len())
	return nil
}

// LoadCursor returns found=false for a missing or foreign file.
func (s *CursorFileStore) LoadCursor() (domain.Cursor, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := loadFile(s.dir, CursorFile)
	if err != nil {
		return domain.Cursor{}, false, err
	}

	r := codec.NewReader(bytes.NewReader(b))
	if err := r.Header(cursorMagic); err != nil {
		return domain.Cursor{}, false, nil
	}

	var fields [5]int32 // reserved, pts, qts, seq, date
	for i := range fields {
		if fields[i], err = r.Int32(); err != nil {
			return domain.Cursor{}, false, corrupt(CursorFile, err)
		}
	}
	return domain.Cursor{
		Pts:  fields[1],
		Qts:  fields[2],
		Seq:  fields[3],
		Date: fields[4],
	}, true, nil
}

func corrupt(file string, err error) error {
	if errors.Is(err, codec.ErrCorrupt) {
		return fmt.Errorf("%w: %s: %w", ErrCorrupt, file, err)
	}
	return fmt.Errorf("%s: %w", file, err)
}

// Compile-time assertion that CursorFileStore implements domain.CursorStore.
var _ domain.CursorStore = (*CursorFileStore)(nil)
