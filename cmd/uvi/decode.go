package main

import (
	"bufio"
	"encoding/hex"
	"io"
	"log/slog"
	"os"

	"github.com/pkg/errors"

	"github.com/Zereker/uvi"
)

// DecodeCmd prints the payloads of a framed stream, one per line.
type DecodeCmd struct {
	Hex  bool   `help:"Print payloads as hex."`
	File string `arg:"" optional:"" default:"-" help:"Framed input (default stdin)."`
}

func (c *DecodeCmd) Run(cli *CLI, logger *slog.Logger) error {
	in, err := openInput(c.File)
	if err != nil {
		return err
	}
	defer in.Close()

	frames, err := c.decodeStream(os.Stdout, in, cli.MaxFrame)
	if err != nil {
		return err
	}

	logger.Debug("decoded", "frames", frames)
	return nil
}

// decodeStream prints every payload of in to w and returns the frame count.
func (c *DecodeCmd) decodeStream(w io.Writer, in io.Reader, maxFrame int) (int, error) {
	out := bufio.NewWriter(w)
	r := uvi.NewReader(in, uvi.MessageMaxSize(maxFrame))

	for frames := 0; ; frames++ {
		payload, err := r.ReadFrame()
		if errors.Is(err, io.EOF) {
			return frames, errors.Wrap(out.Flush(), "write output")
		}
		if err != nil {
			_ = out.Flush()
			return frames, errors.Wrapf(err, "frame %d", frames)
		}

		if c.Hex {
			_, err = out.WriteString(hex.EncodeToString(payload))
		} else {
			_, err = out.Write(payload)
		}
		if err == nil {
			err = out.WriteByte('\n')
		}
		if err != nil {
			return frames, errors.Wrap(err, "write output")
		}
	}
}
