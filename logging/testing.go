package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

type testWriter struct {
	tb testing.TB
}

// Write forwards one encoded log line to tb.Log. Logging through tb.Log associates the line with
// the running Test* function, which matters when tests run in parallel and write to stdout.
func (w testWriter) Write(p []byte) (int, error) {
	w.tb.Helper()
	w.tb.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

// Sync is a no-op.
func (w testWriter) Sync() error {
	return nil
}

// NewTestCore returns a zap core that writes Debug+ console encoded lines to the given
// testing.TB. Colors are disabled since test output is usually read in CI logs.
func NewTestCore(tb testing.TB) zapcore.Core {
	cfg := NewEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), testWriter{tb}, zapcore.DebugLevel)
}
