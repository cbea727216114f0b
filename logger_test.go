package uvi

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
)

func TestLogger_Interface(t *testing.T) {
	// Verify that *slog.Logger implements our Logger interface
	var _ Logger = slog.Default()
}

func TestDefaultLogger(t *testing.T) {
	logger := defaultLogger()

	if logger == nil {
		t.Fatal("defaultLogger returned nil")
	}

	// Verify it's the slog default
	if logger != slog.Default() {
		t.Error("defaultLogger did not return slog.Default()")
	}
}

func TestWithAddr_SlogLogger(t *testing.T) {
	var out bytes.Buffer
	base := slog.New(slog.NewTextHandler(&out, nil))
	addr := &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9000}

	withAddr(base, addr).Info("hello")

	if !strings.Contains(out.String(), "addr=127.0.0.1:9000") {
		t.Errorf("record missing addr: %s", out.String())
	}
}

func TestWithAddr_CustomLogger(t *testing.T) {
	mock := &mockLogger{}
	addr := &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9000}

	if got := withAddr(mock, addr); got != Logger(mock) {
		t.Error("custom logger should be returned unchanged")
	}
}

func TestWithAddr_NilAddr(t *testing.T) {
	base := slog.Default()

	if got := withAddr(base, nil); got != Logger(base) {
		t.Error("nil addr should return the logger unchanged")
	}
}

// mockLogger records messages for tests.
type mockLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *mockLogger) record(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, msg)
}

func (l *mockLogger) Debug(msg string, args ...any) { l.record(msg) }
func (l *mockLogger) Info(msg string, args ...any)  { l.record(msg) }
func (l *mockLogger) Warn(msg string, args ...any)  { l.record(msg) }
func (l *mockLogger) Error(msg string, args ...any) { l.record(msg) }

func (l *mockLogger) messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string{}, l.msgs...)
}

func TestLogger_UsedByConn(t *testing.T) {
	serverConn, clientConn := createTestTCPPair(t)

	logger := &mockLogger{}
	conn, err := NewConn(serverConn,
		OnMessageOption(noopOnMessage),
		LoggerOption(logger),
	)
	if err != nil {
		t.Fatalf("NewConn failed: %v", err)
	}

	done := runConn(context.Background(), conn)
	clientConn.Close()
	waitRun(t, done)

	msgs := logger.messages()
	if len(msgs) == 0 || msgs[0] != "connection established" {
		t.Errorf("messages = %v, want first %q", msgs, "connection established")
	}
	if last := msgs[len(msgs)-1]; last != "connection closed with error" {
		t.Errorf("last message = %q", last)
	}
}
