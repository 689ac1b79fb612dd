package modbus

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// zapLevel maps this package's LogLevel (SimpleLogger's leveling enum)
// onto zapcore.Level so Server and TransactionManager
// can be configured with the same level callers already use for
// SimpleLogger, instead of introducing a second leveling scheme.
func zapLevel(level LogLevel) zapcore.Level {
	switch level {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelInfo:
		return zapcore.InfoLevel
	case LevelWarning:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.ErrorLevel
	}
}

// NewStructuredLogger builds the *zap.SugaredLogger used by Server and
// TransactionManager for connection lifecycle, retry, and dispatch events.
// LevelNone returns a no-op logger, matching SimpleLogger's own
// "NONE disables logging" semantics. Output goes to sink when non-nil —
// typically a SimpleLoggerSink wrapping the same SimpleLogger a
// client-only caller already configured, so a mixed client+server process
// can emit both SimpleLogger's plain log lines and the structured
// fields to one stream — or to the console by default.
func NewStructuredLogger(level LogLevel, sink zapcore.WriteSyncer) *zap.SugaredLogger {
	if level == LevelNone {
		return zap.NewNop().Sugar()
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewConsoleEncoder(encoderCfg)

	if sink == nil {
		sink = zapcore.AddSync(os.Stdout)
	}

	core := zapcore.NewCore(encoder, sink, zapLevel(level))
	return zap.New(core).Sugar()
}

// SimpleLoggerSink adapts a *SimpleLogger to zapcore.WriteSyncer, letting
// zap write through the same io.Writer-based sink SimpleLogger already
// uses (file, ring buffer, whatever the caller configured) rather than
// requiring a second independent output.
type SimpleLoggerSink struct {
	logger *SimpleLogger
}

// NewSimpleLoggerSink wraps logger for use as a zapcore.WriteSyncer.
func NewSimpleLoggerSink(logger *SimpleLogger) *SimpleLoggerSink {
	return &SimpleLoggerSink{logger: logger}
}

func (s *SimpleLoggerSink) Write(p []byte) (int, error) {
	return s.logger.Write(p)
}

// Sync is a no-op: SimpleLogger writes are unbuffered.
func (s *SimpleLoggerSink) Sync() error {
	return nil
}
