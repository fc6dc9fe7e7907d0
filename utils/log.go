// Package utils provides utilities that are used in all sub-packages: leveled
// logging, error wrapping and pooled buffers.
package utils

import (
	"flag"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	Log_debug = iota
	Log_info
	Log_warning
	Log_error
	Log_fatal

	DefaultLL = Log_info
)

// LogLevel: the smaller, the chattier. Our level is zap's level + 1.
var (
	LogLevel  int
	ZapLogger *zap.Logger
)

func init() {
	flag.IntVar(&LogLevel, "ll", DefaultLL, "log level, 0=debug, 1=info, 2=warning, 3=error, 4=fatal")

	// a usable logger must exist even if InitLog is never called, e.g. in tests
	InitLog()
}

func InitLog() {
	atomicLevel := zap.NewAtomicLevel()
	atomicLevel.SetLevel(zapcore.Level(LogLevel - 1))

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		MessageKey:  "msg",
		LevelKey:    "level",
		TimeKey:     "time",
		EncodeLevel: zapcore.CapitalLevelEncoder,
		EncodeTime:  zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000"),
		EncodeName:  zapcore.FullNameEncoder,
		LineEnding:  zapcore.DefaultLineEnding,
	}), zapcore.AddSync(os.Stdout), atomicLevel)

	ZapLogger = zap.New(core)
}

// CanLogLevel returns a non-nil CheckedEntry if the given level is enabled.
// Call its Write method with zap fields to actually emit the entry.
func CanLogLevel(l int, msg string) *zapcore.CheckedEntry {
	return ZapLogger.Check(zapcore.Level(l-1), msg)
}

func canLogLevel(l zapcore.Level, msg string) *zapcore.CheckedEntry {
	return ZapLogger.Check(l, msg)
}

func CanLogErr(msg string) *zapcore.CheckedEntry {
	return canLogLevel(zap.ErrorLevel, msg)
}

func CanLogInfo(msg string) *zapcore.CheckedEntry {
	return canLogLevel(zap.InfoLevel, msg)
}

func CanLogWarn(msg string) *zapcore.CheckedEntry {
	return canLogLevel(zap.WarnLevel, msg)
}

func CanLogDebug(msg string) *zapcore.CheckedEntry {
	return canLogLevel(zap.DebugLevel, msg)
}

func Info(msg string) {
	ZapLogger.Info(msg)
}
