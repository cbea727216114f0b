package main

import (
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/Zereker/uvi"
)

// SendCmd sends each message as one frame and prints the reply frame.
type SendCmd struct {
	Addr     string        `help:"Server address." default:"127.0.0.1:12345" env:"UVI_ADDR"`
	Timeout  time.Duration `help:"Dial and per-reply timeout." default:"5s"`
	Messages []string      `arg:"" help:"Messages to send."`
}

func (c *SendCmd) Run(cli *CLI, logger *slog.Logger) error {
	conn, err := net.DialTimeout("tcp", c.Addr, c.Timeout)
	if err != nil {
		return errors.Wrapf(err, "dial %s", c.Addr)
	}
	defer conn.Close()

	logger.Debug("connected", "addr", conn.RemoteAddr())

	w := uvi.NewWriter(conn, uvi.MessageMaxSize(cli.MaxFrame))
	r := uvi.NewReader(conn, uvi.MessageMaxSize(cli.MaxFrame))

	for _, msg := range c.Messages {
		if err := w.WriteFrame([]byte(msg)); err != nil {
			return errors.Wrap(err, "send")
		}

		_ = conn.SetReadDeadline(time.Now().Add(c.Timeout))
		reply, err := r.ReadFrame()
		if err != nil {
			return errors.Wrap(err, "read reply")
		}
		fmt.Println(string(reply))
	}

	return nil
}
