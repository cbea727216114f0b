package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/Zereker/uvi"
)

// ServeCmd runs an echo server: every frame received is sent back unchanged.
type ServeCmd struct {
	Listen          string        `help:"Address to listen on." default:"127.0.0.1:12345" env:"UVI_ADDR"`
	Heartbeat       time.Duration `help:"Idle heartbeat; a connection silent for twice this long is dropped." default:"30s"`
	ShutdownTimeout time.Duration `help:"How long to wait for connections on shutdown." default:"5s"`
}

func (c *ServeCmd) Run(cli *CLI, logger *slog.Logger) error {
	addr, err := net.ResolveTCPAddr("tcp", c.Listen)
	if err != nil {
		return errors.Wrap(err, "resolve listen address")
	}

	server, err := uvi.New(addr,
		uvi.ServerLoggerOption(logger),
		uvi.ServerShutdownTimeoutOption(c.ShutdownTimeout),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	echo := newEchoHandler(logger,
		uvi.MessageMaxSize(cli.MaxFrame),
		uvi.HeartbeatOption(c.Heartbeat),
		uvi.BufferSizeOption(16),
		uvi.LoggerOption(logger),
	)

	err = server.Serve(ctx, echo)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// echoHandler runs each accepted socket as a framed connection and keeps a
// registry of the live ones.
type echoHandler struct {
	logger *slog.Logger
	opts   []uvi.Option
	connID atomic.Int64

	sync.RWMutex
	connections map[int64]*uvi.Conn
}

func newEchoHandler(logger *slog.Logger, opts ...uvi.Option) *echoHandler {
	return &echoHandler{
		logger:      logger,
		opts:        opts,
		connections: make(map[int64]*uvi.Conn),
	}
}

func (h *echoHandler) Handle(ctx context.Context, raw net.Conn) {
	connID := h.connID.Add(1)

	onMessage := uvi.OnMessageOption(func(payload []byte) error {
		conn := h.getConn(connID)
		if conn == nil {
			return uvi.ErrConnectionClosed
		}
		return conn.WriteBlocking(ctx, payload)
	})

	conn, err := uvi.NewConn(raw, append(append([]uvi.Option{}, h.opts...), onMessage)...)
	if err != nil {
		h.logger.Error("create connection", "error", err)
		raw.Close()
		return
	}

	h.addConn(connID, conn)
	defer h.deleteConn(connID)

	if err := conn.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		h.logger.Debug("connection ended", "conn_id", connID, "error", err)
	}
}

func (h *echoHandler) addConn(connID int64, conn *uvi.Conn) {
	h.Lock()
	defer h.Unlock()

	h.connections[connID] = conn
	h.logger.Info("add conn", "conn_id", connID, "addr", conn.Addr(), "active", len(h.connections))
}

func (h *echoHandler) deleteConn(connID int64) {
	h.Lock()
	defer h.Unlock()

	delete(h.connections, connID)
}

func (h *echoHandler) getConn(connID int64) *uvi.Conn {
	h.RLock()
	defer h.RUnlock()

	return h.connections[connID]
}
