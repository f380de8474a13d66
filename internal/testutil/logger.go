// Package testutil holds helpers shared by floe's package tests.
package testutil

import (
	"log/slog"
	"testing"
)

// NewTestLogger builds a debug-level slog.Logger routed through t.Log,
// so engine log lines land in the test report instead of stderr and
// only surface on failure or under -v.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(logWriter{t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// logWriter adapts testing.TB to the io.Writer the slog handler wants.
type logWriter struct {
	t testing.TB
}

func (w logWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}
