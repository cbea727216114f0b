package uvi

import (
	"bytes"
	"context"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Errors returned by connection operations.
var (
	// ErrInvalidOnMessage is returned when no message handler is provided.
	ErrInvalidOnMessage = errors.New("invalid on message callback")
	// ErrConnectionClosed is returned when operating on a closed connection.
	ErrConnectionClosed = errors.New("connection closed")
)

// ErrBufferFull is returned when the send buffer is full and cannot accept more frames.
// This error indicates backpressure - the receiver is not consuming frames fast enough.
// Recommended handling strategies:
//   - Drop the frame (for non-critical data like metrics)
//   - Use WriteBlocking or WriteTimeout to wait for buffer space
//   - Implement application-level flow control
var ErrBufferFull = errors.New("send buffer full")

// Conn carries length-prefixed frames over a stream connection.
//
// Bytes read from the connection accumulate in an inbound buffer that is
// handed to the codec after every read; each complete frame is passed to
// the OnMessage callback. Outgoing payloads are framed on the caller's
// goroutine and queued for the write loop.
type Conn struct {
	rawConn net.Conn
	logger  Logger

	opts options

	inbound bytes.Buffer // owned by readLoop
	readBuf []byte

	sendMsg chan []byte
	closed  atomic.Bool
	cancel  context.CancelFunc
}

// NewConn creates a new framed connection around conn.
// It applies the provided options and validates them before returning.
// Returns ErrInvalidOnMessage if no OnMessageOption is given.
func NewConn(conn net.Conn, opt ...Option) (*Conn, error) {
	var opts options
	for _, o := range opt {
		o(&opts)
	}

	err := checkOptions(&opts)
	if err != nil {
		return nil, err
	}

	return newConnWithOptions(conn, opts), nil
}

// checkOptions validates and sets default values for connection options.
func checkOptions(opts *options) error {
	if opts.onMessage == nil {
		return ErrInvalidOnMessage
	}

	setDefaults(opts)
	return nil
}

// newConnWithOptions creates a new Conn with the given options.
func newConnWithOptions(c net.Conn, opts options) *Conn {
	return &Conn{
		rawConn: c,
		logger:  withAddr(opts.logger, c.RemoteAddr()),
		opts:    opts,
		readBuf: make([]byte, opts.readBufferSize),
		sendMsg: make(chan []byte, opts.bufferSize),
	}
}

// Run starts the connection's read and write loops.
// It creates two goroutines for concurrent reading and writing,
// and blocks until an error occurs or the context is canceled.
// The connection is automatically closed when Run returns.
func (c *Conn) Run(ctx context.Context) error {
	c.logger.Info("connection established")
	c.logger.Debug("connection options",
		"buffer_size", c.opts.bufferSize,
		"max_frame_size", c.opts.maxFrameSize,
		"read_buffer_size", c.opts.readBufferSize,
		"heartbeat", c.opts.heartbeat)

	ctx, c.cancel = context.WithCancel(ctx)
	group, child := errgroup.WithContext(ctx)

	group.Go(func() error {
		return c.readLoop(child)
	})

	group.Go(func() error {
		return c.writeLoop(child)
	})

	// The read loop blocks in Read; closing the connection releases it.
	go func() {
		<-child.Done()
		_ = c.rawConn.Close()
	}()

	err := group.Wait()
	c.closeConn()

	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Info("connection closed with error", "error", err)
	} else {
		c.logger.Info("connection closed")
	}

	return err
}

// Close gracefully closes the connection.
// It cancels the context and closes the underlying connection.
// Safe to call multiple times.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil // already closed
	}
	if c.cancel != nil {
		c.cancel()
	}
	return c.rawConn.Close()
}

// IsClosed returns true if the connection has been closed.
func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}

// Write frames payload and queues it without blocking (fire-and-forget).
//
// Returns:
//   - nil: frame was successfully queued (not yet sent)
//   - ErrBufferFull: send buffer is full, frame was NOT queued
//   - ErrConnectionClosed: connection is closed
//   - encoding error: if the codec rejects the payload (e.g. ErrFrameTooLarge)
//
// For guaranteed delivery, use WriteBlocking or WriteTimeout instead.
func (c *Conn) Write(payload []byte) error {
	frame, err := c.frame(payload)
	if err != nil {
		return err
	}

	select {
	case c.sendMsg <- frame:
		return nil
	default:
		return ErrBufferFull
	}
}

// WriteBlocking frames payload and queues it, blocking until the frame is
// queued or the context is canceled.
//
// Returns:
//   - nil: frame was successfully queued
//   - context.Canceled or context.DeadlineExceeded: context was canceled
//   - ErrConnectionClosed: connection is closed
//   - encoding error: if the codec rejects the payload
func (c *Conn) WriteBlocking(ctx context.Context, payload []byte) error {
	frame, err := c.frame(payload)
	if err != nil {
		return err
	}

	select {
	case c.sendMsg <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WriteTimeout frames payload and queues it, waiting at most timeout for
// buffer space.
//
// Returns:
//   - nil: frame was successfully queued
//   - ErrBufferFull: timeout expired before the frame could be queued
//   - ErrConnectionClosed: connection is closed
//   - encoding error: if the codec rejects the payload
func (c *Conn) WriteTimeout(payload []byte, timeout time.Duration) error {
	frame, err := c.frame(payload)
	if err != nil {
		return err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case c.sendMsg <- frame:
		return nil
	case <-timer.C:
		return ErrBufferFull
	}
}

// Addr returns the remote address of the connection.
func (c *Conn) Addr() net.Addr {
	return c.rawConn.RemoteAddr()
}

// frame encodes payload into a standalone frame ready for the write loop.
func (c *Conn) frame(payload []byte) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrConnectionClosed
	}

	var buf bytes.Buffer
	if err := c.opts.codec.Encode(&buf, payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// readLoop reads from the connection, appends to the inbound buffer and
// dispatches every complete frame.
// Returns when the context is canceled, the peer closes the stream, or an
// unrecoverable error occurs. Framing errors are always unrecoverable.
func (c *Conn) readLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_ = c.rawConn.SetReadDeadline(time.Now().Add(c.opts.heartbeat * 2))

		n, err := c.rawConn.Read(c.readBuf)
		if n > 0 {
			c.inbound.Write(c.readBuf[:n])
			if derr := c.dispatch(); derr != nil {
				return derr
			}
		}

		if err == nil {
			continue
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if errors.Is(err, io.EOF) {
			if c.inbound.Len() > 0 {
				c.logger.Debug("stream ended mid-frame", "buffered", c.inbound.Len())
				return errors.Wrap(io.ErrUnexpectedEOF, "read")
			}
			return errors.Wrap(err, "read")
		}

		c.logger.Debug("read error", "error", err)
		if errors.Is(err, net.ErrClosed) || errors.Is(err, errWebsocketFailed) ||
			c.opts.onError(err) == Disconnect {
			return errors.Wrap(err, "read")
		}
	}
}

// dispatch drains every complete frame from the inbound buffer.
func (c *Conn) dispatch() error {
	for {
		payload, ok, err := c.opts.codec.Decode(&c.inbound)
		if err != nil {
			c.logger.Warn("dropping corrupt stream", "error", err)
			return errors.Wrap(err, "decode frame")
		}
		if !ok {
			return nil
		}

		if err = c.opts.onMessage(payload); err != nil {
			return err
		}
	}
}

// writeLoop continuously sends frames from the send channel to the connection.
// Returns when the context is canceled or an unrecoverable error occurs.
func (c *Conn) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data := <-c.sendMsg:
			if err := c.write(data); err != nil {
				return err
			}
		}
	}
}

// write sends data to the connection with a deadline.
// If an error occurs and onError returns Disconnect, the error is propagated.
// Otherwise, the error is suppressed and writing continues.
func (c *Conn) write(data []byte) error {
	_ = c.rawConn.SetWriteDeadline(time.Now().Add(c.opts.heartbeat * 2))

	_, err := c.rawConn.Write(data)

	if err != nil {
		c.logger.Debug("write error", "error", err)
		if c.opts.onError(err) == Disconnect {
			return errors.Wrap(err, "write")
		}
	}

	return nil
}

// closeConn marks the connection as closed and closes the underlying connection.
func (c *Conn) closeConn() {
	c.closed.Store(true)
	c.rawConn.Close()
}
