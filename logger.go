package uvi

import (
	"log/slog"
	"net"
)

// Logger is the interface for structured logging.
// It is designed to be compatible with *slog.Logger from the standard library.
// Applications can provide their own implementation or use the default slog logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// defaultLogger returns the default slog logger from the standard library.
func defaultLogger() Logger {
	return slog.Default()
}

// withAddr tags every record from l with the peer address.
// Loggers other than *slog.Logger are returned as is.
func withAddr(l Logger, addr net.Addr) Logger {
	sl, ok := l.(*slog.Logger)
	if !ok || addr == nil {
		return l
	}
	return sl.With("addr", addr.String())
}
