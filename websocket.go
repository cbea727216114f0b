package uvi

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

var (
	errWebsocketMessageType = errors.New("websocket: need binary message")
	// errWebsocketFailed marks reads after the websocket has failed. The
	// websocket cannot recover from a read error, deadlines included.
	errWebsocketFailed = errors.New("websocket: connection failed")
)

// NewWebsocketConn presents ws as a byte stream so frames can travel over a
// websocket. Each Write becomes one binary websocket message; reads
// concatenate incoming binary messages. Websocket message boundaries carry
// no meaning, so a frame may be split across messages or share one.
//
// A normal closure by the peer reads as io.EOF. Any other read error is
// permanent: later reads return it wrapped with errWebsocketFailed, and Conn
// disconnects on it even when OnError returns Continue. The returned
// net.Conn supports one concurrent reader and one concurrent writer, which
// is how Conn uses it.
func NewWebsocketConn(ws *websocket.Conn) net.Conn {
	return &websocketConn{ws: ws}
}

type websocketConn struct {
	ws      *websocket.Conn
	r       io.Reader // current message, nil between messages
	readErr error     // sticky
}

func (c *websocketConn) Read(p []byte) (int, error) {
	if c.readErr != nil {
		return 0, c.readErr
	}

	n, err := c.read(p)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		c.readErr = io.EOF
	default:
		c.readErr = fmt.Errorf("%w: %w", errWebsocketFailed, err)
	}
	return n, err
}

func (c *websocketConn) read(p []byte) (int, error) {
	for {
		if c.r == nil {
			mt, r, err := c.ws.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, err
			}
			if mt != websocket.BinaryMessage {
				return 0, errWebsocketMessageType
			}
			c.r = r
		}

		n, err := c.r.Read(p)
		if errors.Is(err, io.EOF) {
			c.r = nil
			if n == 0 {
				continue
			}
			err = nil
		}
		return n, err
	}
}

func (c *websocketConn) Write(p []byte) (int, error) {
	if err := c.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close sends a normal closure to the peer before closing the socket.
func (c *websocketConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.ws.Close()
}

func (c *websocketConn) LocalAddr() net.Addr  { return c.ws.LocalAddr() }
func (c *websocketConn) RemoteAddr() net.Addr { return c.ws.RemoteAddr() }

func (c *websocketConn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}
	return c.ws.SetWriteDeadline(t)
}

func (c *websocketConn) SetReadDeadline(t time.Time) error  { return c.ws.SetReadDeadline(t) }
func (c *websocketConn) SetWriteDeadline(t time.Time) error { return c.ws.SetWriteDeadline(t) }
