package uvi

import (
	"bytes"
	"errors"
	"io"
)

// Reader reads frames from an io.Reader.
//
// Bytes are pulled from the underlying reader in chunks and kept in an
// internal buffer, so a single chunk may carry several frames or a fraction
// of one. Only the codec options (CustomCodecOption, MessageMaxSize) and
// ReadBufferSizeOption apply.
type Reader struct {
	r     io.Reader
	codec Codec
	buf   bytes.Buffer
	chunk []byte
	err   error // sticky error from r
}

// NewReader creates a frame reader on r.
//
// Example:
//
//	rd := uvi.NewReader(conn, uvi.MessageMaxSize(64<<10))
//	for {
//		payload, err := rd.ReadFrame()
//		...
//	}
func NewReader(r io.Reader, opts ...Option) *Reader {
	o := applyOptions(opts)
	return &Reader{
		r:     r,
		codec: o.codec,
		chunk: make([]byte, o.readBufferSize),
	}
}

// ReadFrame returns the payload of the next frame.
//
// Returns io.EOF when the stream ends on a frame boundary and
// io.ErrUnexpectedEOF when it ends inside a frame. Framing errors
// (ErrMalformed, ErrFrameTooLarge) are returned as is and the Reader must
// not be used afterwards.
func (r *Reader) ReadFrame() ([]byte, error) {
	for {
		payload, ok, err := r.codec.Decode(&r.buf)
		if err != nil {
			return nil, err
		}
		if ok {
			return payload, nil
		}

		if r.err != nil {
			if errors.Is(r.err, io.EOF) && r.buf.Len() > 0 {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, r.err
		}

		n, err := r.r.Read(r.chunk)
		r.buf.Write(r.chunk[:n])
		if err != nil {
			r.err = err
		}
	}
}

// Buffered returns the number of bytes read from the underlying reader
// that do not yet form a complete frame.
func (r *Reader) Buffered() int {
	return r.buf.Len()
}

// Writer writes frames to an io.Writer.
//
// Every frame is written with a single Write call. Writes are unbuffered;
// wrap the writer in a bufio.Writer to batch small frames.
type Writer struct {
	w     io.Writer
	codec Codec
	buf   bytes.Buffer
}

// NewWriter creates a frame writer on w.
func NewWriter(w io.Writer, opts ...Option) *Writer {
	o := applyOptions(opts)
	return &Writer{w: w, codec: o.codec}
}

// WriteFrame frames payload and writes it.
func (w *Writer) WriteFrame(payload []byte) error {
	w.buf.Reset()
	if err := w.codec.Encode(&w.buf, payload); err != nil {
		return err
	}
	_, err := w.w.Write(w.buf.Bytes())
	return err
}
