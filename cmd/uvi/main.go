// Command uvi encodes, decodes and exchanges uvarint length-prefixed frames.
package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/lmittmann/tint"
)

type CLI struct {
	LogLevel string `help:"Log level (debug, info, warn, error)." default:"info" enum:"debug,info,warn,error" env:"UVI_LOG_LEVEL"`
	NoColor  bool   `help:"Disable colored log output."`
	MaxFrame int    `help:"Maximum payload size in bytes." default:"1048576" env:"UVI_MAX_FRAME"`

	Encode EncodeCmd `cmd:"" help:"Frame input lines (or whole files) onto stdout."`
	Decode DecodeCmd `cmd:"" help:"Print the payloads of a framed stream."`
	Serve  ServeCmd  `cmd:"" help:"Run a framed echo server."`
	Send   SendCmd   `cmd:"" help:"Send frames to a server and print the replies."`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("uvi"),
		kong.Description("Length-prefixed (uvarint) framing tool."),
		kong.UsageOnError(),
	)

	logger := newLogger(cli.LogLevel, cli.NoColor)
	slog.SetDefault(logger)

	err := ctx.Run(&cli, logger)
	ctx.FatalIfErrorf(err)
}

// newLogger writes to stderr so stdout stays free for frame data.
func newLogger(level string, noColor bool) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:   lvl,
		NoColor: noColor,
	}))
}
