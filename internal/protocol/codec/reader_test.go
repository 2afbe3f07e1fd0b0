package codec

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderSequentialReads(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02, 0x03, 0xFF, 0xFE, 0x80, 0x00, 0x00, 0x01, 0xAB, 0xCD})

	u8, err := r.Uint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0x01), u8)

	u16, err := r.Uint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0203), u16)

	i16, err := r.Int16()
	require.NoError(t, err)
	assert.Equal(t, int16(-2), i16)

	i32, err := r.Int32()
	require.NoError(t, err)
	assert.Equal(t, int32(-2147483647), i32)

	assert.Equal(t, 9, r.Offset())
	s, err := r.HexString(2)
	require.NoError(t, err)
	assert.Equal(t, "abcd", s)
	assert.Equal(t, 0, r.Len())
}

func TestReaderShortRead(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02, 0x03})

	_, err := r.Uint32()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShortFrame))
	assert.Equal(t, ErrShortFrame, errors.Cause(err))
	// a failed read leaves the cursor untouched
	assert.Equal(t, 3, r.Len())

	require.NoError(t, r.Skip(3))
	_, err = r.Uint8()
	assert.ErrorIs(t, err, ErrShortFrame)
	assert.ErrorIs(t, r.Skip(-1), ErrShortFrame)
}

func TestBitsCheckAndFrom(t *testing.T) {
	var status uint16 = 0x4806
	assert.False(t, Check(status, 0))
	assert.True(t, Check(status, 1))
	assert.True(t, Check(status, 2))
	assert.True(t, Check(status, 11))
	assert.True(t, Check(status, 14))
	assert.False(t, Check(status, 15))

	var word uint32 = 0x0B000000
	assert.True(t, Check(word, 24))
	assert.False(t, Check(word, 2))
	assert.Equal(t, uint32(0x0B), From(word, 24))
	assert.Equal(t, uint8(0x0F), From(uint8(0xF0), 4))
}
