package uvi

import (
	"time"
)

// ErrorAction defines the action to take when an error occurs.
type ErrorAction int

const (
	// Disconnect closes the connection when an error occurs.
	Disconnect ErrorAction = iota
	// Continue suppresses the error and continues processing.
	Continue
)

// options holds the configuration for a connection or stream.
type options struct {
	codec  Codec
	logger Logger

	onMessage func(payload []byte) error
	// onError is called when a transport error occurs.
	// Returns Disconnect to close the connection, Continue to suppress the error.
	// Framing errors always disconnect.
	onError func(error) ErrorAction

	bufferSize     int           // size of buffered send channel
	maxFrameSize   int           // maximum payload size of a single frame
	readBufferSize int           // size of a single transport read
	heartbeat      time.Duration // heartbeat interval for read/write deadlines
}

// Option is a function that configures connection options.
type Option func(*options)

// CustomCodecOption returns an Option that sets the frame codec.
// When unset, a VarintCodec limited by MessageMaxSize is used.
func CustomCodecOption(codec Codec) Option {
	return func(o *options) {
		o.codec = codec
	}
}

// BufferSizeOption returns an Option that sets the size of the send channel buffer.
// A larger buffer allows more frames to be queued before blocking.
func BufferSizeOption(size int) Option {
	return func(o *options) {
		o.bufferSize = size
	}
}

// HeartbeatOption returns an Option that sets the heartbeat interval.
// This determines the read/write deadline timeout (heartbeat * 2).
func HeartbeatOption(heartbeat time.Duration) Option {
	return func(o *options) {
		o.heartbeat = heartbeat
	}
}

// MessageMaxSize returns an Option that sets the maximum payload size.
// A peer announcing a larger frame is disconnected before the payload is
// buffered, and larger outgoing payloads are rejected.
func MessageMaxSize(size int) Option {
	return func(o *options) {
		o.maxFrameSize = size
	}
}

// ReadBufferSizeOption returns an Option that sets how many bytes are read
// from the transport at once.
func ReadBufferSizeOption(size int) Option {
	return func(o *options) {
		o.readBufferSize = size
	}
}

// OnErrorOption returns an Option that sets the error callback.
// The callback is invoked when a transport read/write error occurs.
// Return Disconnect to close the connection, or Continue to suppress the error.
func OnErrorOption(cb func(error) ErrorAction) Option {
	return func(o *options) {
		o.onError = cb
	}
}

// OnMessageOption returns an Option that sets the payload handler callback.
// This callback is required and is invoked for each received frame.
func OnMessageOption(cb func(payload []byte) error) Option {
	return func(o *options) {
		o.onMessage = cb
	}
}

// LoggerOption returns an Option that sets the logger.
// If not set, the default slog logger will be used.
func LoggerOption(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Default configuration values.
const (
	// defaultBufferSize is the default size of the send channel buffer.
	defaultBufferSize = 1
	// defaultMaxFrameSize is the default maximum payload size (1MB).
	defaultMaxFrameSize = 1024 * 1024
	// defaultReadBufferSize is the default transport read size (4KB).
	defaultReadBufferSize = 4 * 1024
	// defaultHeartbeat is the default heartbeat interval.
	defaultHeartbeat = 30 * time.Second
)

// applyOptions builds options from opt and fills in defaults.
func applyOptions(opt []Option) options {
	var opts options
	for _, o := range opt {
		o(&opts)
	}
	setDefaults(&opts)
	return opts
}

// setDefaults sets default values for unset options.
func setDefaults(opts *options) {
	if opts.bufferSize <= 0 {
		opts.bufferSize = defaultBufferSize
	}

	if opts.maxFrameSize <= 0 {
		opts.maxFrameSize = defaultMaxFrameSize
	}

	if opts.readBufferSize <= 0 {
		opts.readBufferSize = defaultReadBufferSize
	}

	if opts.heartbeat <= 0 {
		opts.heartbeat = defaultHeartbeat
	}

	if opts.codec == nil {
		opts.codec = &VarintCodec{MaxFrameSize: opts.maxFrameSize}
	}

	if opts.onError == nil {
		opts.onError = func(err error) ErrorAction { return Disconnect }
	}

	if opts.logger == nil {
		opts.logger = defaultLogger()
	}
}
