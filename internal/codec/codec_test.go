package codec_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tgstate/internal/codec"
)

const testMagic = 0x11223344

func TestWriter_LittleEndianLayout(t *testing.T) {
	w := codec.NewWriter(testMagic)
	w.Int32(-1)
	w.Int64(0x0102030405060708)

	want := []byte{
		0x44, 0x33, 0x22, 0x11,
		0xff, 0xff, 0xff, 0xff,
		0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01,
	}
	assert.Equal(t, want, w.Bytes())
}

func TestReader_FieldsInOrder(t *testing.T) {
	w := codec.NewWriter(testMagic)
	w.Int32(42)
	w.Int64(-7)
	require.NoError(t, w.String("149.154.167.51", 100))
	w.Raw([]byte{9, 9, 9})

	r := codec.NewReader(bytes.NewReader(w.Bytes()))
	require.NoError(t, r.Header(testMagic))

	i, err := r.Int32()
	require.NoError(t, err)
	assert.EqualValues(t, 42, i)

	l, err := r.Int64()
	require.NoError(t, err)
	assert.EqualValues(t, -7, l)

	s, err := r.String(0, 100)
	require.NoError(t, err)
	assert.Equal(t, "149.154.167.51", s)

	raw := make([]byte, 3)
	require.NoError(t, r.Full(raw))
	assert.Equal(t, []byte{9, 9, 9}, raw)

	_, ok, err := r.TrailingInt32()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReader_Header_AbsentCases(t *testing.T) {
	cases := map[string][]byte{
		"empty":   nil,
		"short":   {0x44, 0x33},
		"foreign": {1, 2, 3, 4, 5, 6, 7, 8},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			err := codec.NewReader(bytes.NewReader(in)).Header(testMagic)
			assert.ErrorIs(t, err, codec.ErrAbsent)
		})
	}
}

func TestReader_TruncatedPayload_IsCorrupt(t *testing.T) {
	w := codec.NewWriter(testMagic)
	w.Int64(5)
	b := w.Bytes()[:len(w.Bytes())-1]

	r := codec.NewReader(bytes.NewReader(b))
	require.NoError(t, r.Header(testMagic))
	_, err := r.Int64()
	assert.ErrorIs(t, err, codec.ErrCorrupt)
}

func TestReader_String_RejectsBadLength(t *testing.T) {
	for _, n := range []int32{-1, 1000, 1 << 30} {
		w := codec.NewWriter(testMagic)
		w.Int32(n)
		r := codec.NewReader(bytes.NewReader(w.Bytes()))
		require.NoError(t, r.Header(testMagic))

		_, err := r.String(1, 1000)
		require.Error(t, err)
		assert.True(t, errors.Is(err, codec.ErrLength), "length %d: %v", n, err)
		assert.True(t, errors.Is(err, codec.ErrCorrupt), "length %d: %v", n, err)
	}
}

func TestReader_TrailingInt32_Partial(t *testing.T) {
	w := codec.NewWriter(testMagic)
	w.Raw([]byte{1, 2})
	r := codec.NewReader(bytes.NewReader(w.Bytes()))
	require.NoError(t, r.Header(testMagic))

	_, _, err := r.TrailingInt32()
	assert.ErrorIs(t, err, codec.ErrCorrupt)
}

func TestWriter_PatchInt32(t *testing.T) {
	w := codec.NewWriter(testMagic)
	w.Int32(0)
	w.Int32(0)
	require.NoError(t, w.PatchInt32(4, 3))
	require.Error(t, w.PatchInt32(10, 1))

	r := codec.NewReader(bytes.NewReader(w.Bytes()))
	require.NoError(t, r.Header(testMagic))
	v, err := r.Int32()
	require.NoError(t, err)
	assert.EqualValues(t, 3, v)
}

func TestWriter_String_TooLong(t *testing.T) {
	w := codec.NewWriter(testMagic)
	err := w.String("abcd", 4)
	assert.ErrorIs(t, err, codec.ErrLength)
}
