package logging

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"go.viam.com/test"
)

func newObserved(level zapcore.Level) (Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return newImpl("", zap.NewAtomicLevelAt(level), core), logs
}

func TestLevels(t *testing.T) {
	logger, logs := newObserved(zapcore.InfoLevel)

	logger.Debug("hidden")
	logger.Infof("shown %d", 1)
	logger.Warnw("warned", "key", "value")
	test.That(t, logs.Len(), test.ShouldEqual, 2)

	entries := logs.TakeAll()
	test.That(t, entries[0].Message, test.ShouldEqual, "shown 1")
	test.That(t, entries[1].Message, test.ShouldEqual, "warned")
	test.That(t, entries[1].ContextMap()["key"], test.ShouldEqual, "value")

	logger.SetLevel(zapcore.DebugLevel)
	logger.Debug("now shown")
	test.That(t, logs.Len(), test.ShouldEqual, 1)
	test.That(t, logger.Level(), test.ShouldEqual, zapcore.DebugLevel)
}

func TestContextDebugMode(t *testing.T) {
	logger, logs := newObserved(zapcore.InfoLevel)

	logger.CDebugf(context.Background(), "not in debug mode")
	test.That(t, logs.Len(), test.ShouldEqual, 0)

	ctx := EnableDebugMode(context.Background(), "")
	test.That(t, IsDebugMode(ctx), test.ShouldBeTrue)
	test.That(t, GetName(ctx), test.ShouldHaveLength, 6)

	logger.CDebugw(ctx, "in debug mode", "request", 7)
	test.That(t, logs.Len(), test.ShouldEqual, 1)
	test.That(t, logs.All()[0].Level, test.ShouldEqual, zapcore.DebugLevel)
}

func TestSublogger(t *testing.T) {
	logger, logs := newObserved(zapcore.DebugLevel)

	sub := logger.Sublogger("wrapper").Sublogger("timer")
	sub.Info("fired")
	test.That(t, logs.Len(), test.ShouldEqual, 1)
	test.That(t, logs.All()[0].LoggerName, test.ShouldEqual, "wrapper.timer")

	// Subloggers copy the level at creation but change independently afterwards.
	sub.SetLevel(zapcore.ErrorLevel)
	sub.Warn("dropped")
	logger.Warn("kept")
	test.That(t, logs.Len(), test.ShouldEqual, 2)
}

func TestObservedTestLogger(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	logger.Errorf("something %s", "broke")
	test.That(t, logs.FilterMessage("something broke").Len(), test.ShouldEqual, 1)
	test.That(t, logger.Sync(), test.ShouldBeNil)
}
