package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Writer accumulates a record in memory. Nothing touches the disk until
// the caller hands Bytes to a file.
type Writer struct {
	buf bytes.Buffer
	tmp [8]byte
}

// NewWriter starts a record with the given magic number.
func NewWriter(magic uint32) *Writer {
	w := &Writer{}
	w.Uint32(magic)
	return w
}

func (w *Writer) Uint32(v uint32) {
	byteOrder.PutUint32(w.tmp[:4], v)
	w.buf.Write(w.tmp[:4])
}

func (w *Writer) Int32(v int32) { w.Uint32(uint32(v)) }

func (w *Writer) Int64(v int64) {
	byteOrder.PutUint64(w.tmp[:8], uint64(v))
	w.buf.Write(w.tmp[:8])
}

// Raw appends b without a length prefix.
func (w *Writer) Raw(b []byte) { w.buf.Write(b) }

// String appends a length-prefixed byte string shorter than limit.
func (w *Writer) String(s string, limit int) error {
	if len(s) >= limit {
		return fmt.Errorf("%w: %d >= %d", ErrLength, len(s), limit)
	}
	w.Int32(int32(len(s)))
	w.buf.WriteString(s)
	return nil
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return w.buf.Len() }

// PatchInt32 overwrites four bytes at off, e.g. a count placeholder.
func (w *Writer) PatchInt32(off int, v int32) error {
	b := w.buf.Bytes()
	if off < 0 || off+4 > len(b) {
		return fmt.Errorf("codec: patch offset %d outside %d bytes", off, len(b))
	}
	byteOrder.PutUint32(b[off:off+4], uint32(v))
	return nil
}

// Bytes returns the encoded record. The slice aliases the writer's buffer.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

var byteOrder binary.ByteOrder = binary.LittleEndian
