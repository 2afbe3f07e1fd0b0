// Package codec holds the byte-level helpers shared by the tracker decoders:
// a bounds-checked cursor, BCD date/time reading, coordinate conversion and
// status word bit tests.
package codec

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/pkg/errors"
)

// ErrShortFrame is returned when a read runs past the end of the frame.
var ErrShortFrame = errors.New("frame too short")

// Reader is a forward-only cursor over a single frame. It is not safe for
// concurrent use; every decode call creates its own.
type Reader struct {
	data []byte
	pos  int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return len(r.data) - r.pos
}

// Offset returns the current read position.
func (r *Reader) Offset() int {
	return r.pos
}

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, errors.Wrapf(ErrShortFrame, "read %d bytes at offset %d (len=%d)", n, r.pos, len(r.data))
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Slice returns the next n bytes without copying.
func (r *Reader) Slice(n int) ([]byte, error) {
	return r.take(n)
}

// Skip advances the cursor by n bytes.
func (r *Reader) Skip(n int) error {
	_, err := r.take(n)
	return err
}

func (r *Reader) Uint8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) Uint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *Reader) Int16() (int16, error) {
	v, err := r.Uint16()
	return int16(v), err
}

func (r *Reader) Uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *Reader) Int32() (int32, error) {
	v, err := r.Uint32()
	return int32(v), err
}

// HexString reads n bytes and returns them as lowercase hex digits.
func (r *Reader) HexString(n int) (string, error) {
	b, err := r.take(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
