// Package varint implements the unsigned variable-length integer used as the
// frame length prefix.
//
// Each byte carries 7 bits of the value, least-significant group first. Bit 7
// is a continuation flag: set on every byte except the last. Only minimal
// encodings are accepted, so every value has exactly one representation.
package varint

import "errors"

// MaxLen64 is the maximum number of bytes a uint64 occupies when encoded.
const MaxLen64 = 10

var (
	// ErrInsufficient is returned when the buffer ends before the terminating
	// byte. It is not a format error: more input may complete the value.
	ErrInsufficient = errors.New("varint: insufficient bytes")
	// ErrOverflow is returned when the encoded value does not fit in 64 bits.
	ErrOverflow = errors.New("varint: overflows 64 bits")
	// ErrNotMinimal is returned for padded encodings such as 0x80 0x00.
	ErrNotMinimal = errors.New("varint: not minimally encoded")
)

// IsMalformed reports whether err means the input can never decode,
// no matter how many bytes follow.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrOverflow) || errors.Is(err, ErrNotMinimal)
}

// Len returns the number of bytes needed to encode v.
func Len(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// Put encodes v into buf and returns the number of bytes written.
// buf must hold at least Len(v) bytes.
func Put(buf []byte, v uint64) int {
	i := 0
	for v >= 0x80 {
		buf[i] = byte(v) | 0x80
		v >>= 7
		i++
	}
	buf[i] = byte(v)
	return i + 1
}

// Append appends the encoding of v to dst and returns the extended slice.
func Append(dst []byte, v uint64) []byte {
	var buf [MaxLen64]byte
	n := Put(buf[:], v)
	return append(dst, buf[:n]...)
}

// Uvarint decodes a value from the front of buf and returns it together with
// the number of bytes it occupied. It never reads past len(buf).
//
// ErrInsufficient means buf is a proper prefix of a valid encoding.
// ErrOverflow and ErrNotMinimal mean buf can never decode.
func Uvarint(buf []byte) (uint64, int, error) {
	var v uint64
	var shift uint

	for i, b := range buf {
		if i == MaxLen64-1 && b > 1 {
			return 0, 0, ErrOverflow
		}
		v |= uint64(b&0x7f) << shift
		if b < 0x80 {
			if b == 0 && i > 0 {
				return 0, 0, ErrNotMinimal
			}
			return v, i + 1, nil
		}
		shift += 7
	}

	return 0, 0, ErrInsufficient
}
