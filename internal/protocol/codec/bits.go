package codec

// Unsigned is any status word width a device family uses.
type Unsigned interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uint
}

// Check reports whether the given bit of word is set.
func Check[T Unsigned](word T, bit int) bool {
	return word&(1<<bit) != 0
}

// From returns word shifted right by offset, for sub-fields packed into the
// upper bits of a larger word.
func From[T Unsigned](word T, offset int) T {
	return word >> offset
}
