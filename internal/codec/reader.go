package codec

import (
	"errors"
	"fmt"
	"io"
)

// Reader decodes a record from r, tracking the offset for error messages.
type Reader struct {
	r   io.Reader
	off int64
	tmp [8]byte
}

func NewReader(r io.Reader) *Reader { return &Reader{r: r} }

// Offset returns the number of bytes consumed.
func (r *Reader) Offset() int64 { return r.off }

// Header consumes the magic number. A short read or a different magic is
// reported as ErrAbsent.
func (r *Reader) Header(magic uint32) error {
	n, err := io.ReadFull(r.r, r.tmp[:4])
	r.off += int64(n)
	if err != nil {
		return ErrAbsent
	}
	if got := byteOrder.Uint32(r.tmp[:4]); got != magic {
		return fmt.Errorf("%w: magic %#08x, want %#08x", ErrAbsent, got, magic)
	}
	return nil
}

// Full fills dst or fails with ErrCorrupt.
func (r *Reader) Full(dst []byte) error {
	n, err := io.ReadFull(r.r, dst)
	r.off += int64(n)
	if err != nil {
		return fmt.Errorf("%w: need %d bytes at offset %d, got %d", ErrCorrupt, len(dst), r.off-int64(n), n)
	}
	return nil
}

func (r *Reader) Uint32() (uint32, error) {
	if err := r.Full(r.tmp[:4]); err != nil {
		return 0, err
	}
	return byteOrder.Uint32(r.tmp[:4]), nil
}

func (r *Reader) Int32() (int32, error) {
	v, err := r.Uint32()
	return int32(v), err
}

func (r *Reader) Int64() (int64, error) {
	if err := r.Full(r.tmp[:8]); err != nil {
		return 0, err
	}
	return int64(byteOrder.Uint64(r.tmp[:8])), nil
}

// String reads a length-prefixed byte string whose length must satisfy
// lo <= n < hi. The bound is checked before allocating.
func (r *Reader) String(lo, hi int) (string, error) {
	n, err := r.Int32()
	if err != nil {
		return "", err
	}
	if int(n) < lo || int(n) >= hi {
		return "", fmt.Errorf("%w: %w: %d not in [%d,%d) at offset %d", ErrCorrupt, ErrLength, n, lo, hi, r.off-4)
	}
	b := make([]byte, n)
	if err := r.Full(b); err != nil {
		return "", err
	}
	return string(b), nil
}

// TrailingInt32 reads an optional final field. Clean end of input yields
// ok=false; a partial field is ErrCorrupt.
func (r *Reader) TrailingInt32() (v int32, ok bool, err error) {
	n, err := io.ReadFull(r.r, r.tmp[:4])
	r.off += int64(n)
	switch {
	case err == nil:
		return int32(byteOrder.Uint32(r.tmp[:4])), true, nil
	case errors.Is(err, io.EOF):
		return 0, false, nil
	default:
		return 0, false, fmt.Errorf("%w: trailing field has %d of 4 bytes", ErrCorrupt, n)
	}
}
