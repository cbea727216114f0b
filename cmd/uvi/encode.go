package main

import (
	"bufio"
	"io"
	"log/slog"
	"os"

	"github.com/pkg/errors"

	"github.com/Zereker/uvi"
)

// EncodeCmd turns text input into a framed stream.
type EncodeCmd struct {
	Whole bool     `help:"Frame each input file as a single payload instead of one frame per line."`
	Files []string `arg:"" optional:"" help:"Input files (default stdin)."`
}

func (c *EncodeCmd) Run(cli *CLI, logger *slog.Logger) error {
	out := bufio.NewWriter(os.Stdout)
	w := uvi.NewWriter(out, uvi.MessageMaxSize(cli.MaxFrame))

	inputs := c.Files
	if len(inputs) == 0 {
		inputs = []string{"-"}
	}

	frames := 0
	for _, name := range inputs {
		n, err := c.encodeInput(w, name, cli.MaxFrame)
		frames += n
		if err != nil {
			return err
		}
	}

	logger.Debug("encoded", "frames", frames)
	return out.Flush()
}

func (c *EncodeCmd) encodeInput(w *uvi.Writer, name string, maxFrame int) (int, error) {
	in, err := openInput(name)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	if c.Whole {
		data, err := io.ReadAll(in)
		if err != nil {
			return 0, errors.Wrapf(err, "read %s", name)
		}
		return 1, errors.Wrapf(w.WriteFrame(data), "encode %s", name)
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrame+1)

	frames := 0
	for scanner.Scan() {
		if err := w.WriteFrame(scanner.Bytes()); err != nil {
			return frames, errors.Wrapf(err, "encode %s line %d", name, frames+1)
		}
		frames++
	}
	return frames, errors.Wrapf(scanner.Err(), "read %s", name)
}

func openInput(name string) (io.ReadCloser, error) {
	if name == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrap(err, "open input")
	}
	return f, nil
}
