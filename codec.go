// Package uvi frames opaque messages on a byte stream by prefixing each one
// with its length encoded as an unsigned varint.
//
// A frame on the wire is varint(len(payload)) followed by the payload bytes,
// with no separator, checksum or version byte. VarintCodec encodes and
// decodes frames against caller-owned buffers; Reader, Writer and Conn build
// stream and connection handling on top of it.
package uvi

import (
	"bytes"
	"errors"
	"math"

	"github.com/Zereker/uvi/varint"
)

// Codec is the interface for frame encoding and decoding used by Conn,
// Reader and Writer.
//
// Decode is called repeatedly against a buffer that grows as bytes arrive
// from the transport. It must return ok=false and leave src untouched until
// a complete frame is present, then consume exactly that frame. An error
// means the stream is corrupt and must not be read further.
type Codec interface {
	// Encode appends one frame carrying payload to dst.
	Encode(dst *bytes.Buffer, payload []byte) error
	// Decode removes one frame from the front of src and returns its payload.
	Decode(src *bytes.Buffer) (payload []byte, ok bool, err error)
}

// VarintCodec implements the uvarint length-prefixed framing.
//
// It keeps no state between calls: all progress lives in the buffer passed
// to Decode, so one VarintCodec may serve any number of streams. The zero
// value imposes no frame size limit.
type VarintCodec struct {
	// MaxFrameSize caps the payload length accepted by Encode and announced
	// to Decode. Zero or negative means unbounded.
	MaxFrameSize int
}

var _ Codec = (*VarintCodec)(nil)

// Encode appends varint(len(payload)) and payload to dst.
// On error dst is left untouched.
func (c *VarintCodec) Encode(dst *bytes.Buffer, payload []byte) error {
	if err := c.checkSize(uint64(len(payload))); err != nil {
		return err
	}

	var prefix [varint.MaxLen64]byte
	n := varint.Put(prefix[:], uint64(len(payload)))

	dst.Grow(n + len(payload))
	dst.Write(prefix[:n])
	dst.Write(payload)
	return nil
}

// Append appends one frame carrying payload to dst and returns the extended
// slice. On error dst is returned unchanged.
func (c *VarintCodec) Append(dst, payload []byte) ([]byte, error) {
	if err := c.checkSize(uint64(len(payload))); err != nil {
		return dst, err
	}

	dst = varint.Append(dst, uint64(len(payload)))
	return append(dst, payload...), nil
}

// Decode extracts one frame from the front of src.
//
// While the prefix or the payload is incomplete it returns ok=false and does
// not touch src, so the caller can append more bytes and call again. Once
// the frame is complete it consumes exactly the prefix and payload and
// returns a copy of the payload. Bytes after the frame stay in src.
func (c *VarintCodec) Decode(src *bytes.Buffer) ([]byte, bool, error) {
	payload, n, err := c.DecodeBytes(src.Bytes())
	if err != nil || n == 0 {
		return nil, false, err
	}

	frame := make([]byte, len(payload))
	copy(frame, payload)
	src.Next(n)
	return frame, true, nil
}

// DecodeBytes decodes one frame from the front of src without copying.
//
// It returns the payload, which aliases src, and the number of bytes the
// frame occupies. n == 0 with a nil error means src does not yet hold a
// complete frame.
func (c *VarintCodec) DecodeBytes(src []byte) (payload []byte, n int, err error) {
	length, width, err := varint.Uvarint(src)
	switch {
	case errors.Is(err, varint.ErrInsufficient):
		return nil, 0, nil
	case err != nil:
		return nil, 0, &FormatError{Prefix: prefixOf(src), Err: err}
	}

	if length > math.MaxInt {
		return nil, 0, &FormatError{Prefix: prefixOf(src), Err: varint.ErrOverflow}
	}

	if err := c.checkSize(length); err != nil {
		return nil, 0, err
	}

	size := int(length)
	if size > len(src)-width {
		return nil, 0, nil
	}

	end := width + size
	return src[width:end:end], end, nil
}

func (c *VarintCodec) checkSize(size uint64) error {
	if c.MaxFrameSize > 0 && size > uint64(c.MaxFrameSize) {
		return &SizeError{Size: size, Limit: c.MaxFrameSize}
	}
	return nil
}

func prefixOf(src []byte) []byte {
	n := min(len(src), varint.MaxLen64)
	prefix := make([]byte, n)
	copy(prefix, src)
	return prefix
}
