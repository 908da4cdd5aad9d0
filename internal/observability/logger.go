// File: internal/observability/logger.go

// Package observability owns the process-wide zap logger. Commands initialise
// it once from the logger section of the config; every component receives it
// (or a Named child) explicitly rather than reaching for the global.
package observability

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/xkilldash9x/signup-cli/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// globalLogger is the scoped logger handle shared by the commands.
	globalLogger atomic.Pointer[zap.Logger]
	once         sync.Once
)

const colorReset = "\x1b[0m"

var levelColors = map[zapcore.Level]string{
	zapcore.DebugLevel:  "\x1b[36m", // cyan
	zapcore.InfoLevel:   "\x1b[32m", // green
	zapcore.WarnLevel:   "\x1b[33m", // yellow
	zapcore.ErrorLevel:  "\x1b[31m", // red
	zapcore.DPanicLevel: "\x1b[35m",
	zapcore.PanicLevel:  "\x1b[35m",
	zapcore.FatalLevel:  "\x1b[35m",
}

// Initialize builds the process logger from cfg, writing the console stream to
// consoleWriter and, when cfg.LogFile is set, a rotated JSON file. Only the
// first call has any effect until ResetForTest is called.
func Initialize(cfg config.LoggerConfig, consoleWriter zapcore.WriteSyncer) {
	once.Do(func() {
		level := zap.NewAtomicLevel()
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			level.SetLevel(zap.InfoLevel)
		}

		cores := []zapcore.Core{
			zapcore.NewCore(newEncoder(cfg.Format, cfg.Color), consoleWriter, level),
		}

		if cfg.LogFile != "" {
			cores = append(cores, fileCore(cfg, cfg.LogFile, level))
		}

		options := []zap.Option{zap.AddStacktrace(zap.ErrorLevel)}
		if cfg.AddSource {
			options = append(options, zap.AddCaller())
		}

		logger := zap.New(zapcore.NewTee(cores...), options...).Named(cfg.ServiceName)
		globalLogger.Store(logger)
		zap.ReplaceGlobals(logger)
	})
}

// fileCore writes JSON lines to a lumberjack-rotated file, using the
// rotation settings of cfg.
func fileCore(cfg config.LoggerConfig, path string, level zapcore.LevelEnabler) zapcore.Core {
	writer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	})
	return zapcore.NewCore(newEncoder("json", false), writer, level)
}

// WithFile returns logger with its entries also written to path. The batch
// command uses it for its own log file.
func WithFile(logger *zap.Logger, cfg config.LoggerConfig, path string) *zap.Logger {
	if path == "" {
		return logger
	}
	return logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, fileCore(cfg, path, zapcore.LevelOf(c)))
	}))
}

// InitializeLogger is Initialize with a locked stdout console.
func InitializeLogger(cfg config.LoggerConfig) {
	Initialize(cfg, zapcore.Lock(os.Stdout))
}

// ResetForTest clears the global logger. Tests only.
func ResetForTest() {
	globalLogger.Store(nil)
	once = sync.Once{}
}

// colorLevelEncoder wraps the upper-case level in its ANSI colour.
func colorLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	label := strings.ToUpper(level.String())
	if color, ok := levelColors[level]; ok {
		enc.AppendString(color + label + colorReset)
		return
	}
	enc.AppendString(label)
}

// newEncoder returns a JSON encoder for "json" and a single line console
// encoder for anything else.
func newEncoder(format string, color bool) zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")

	if format == "json" {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewJSONEncoder(encoderConfig)
	}

	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	if color {
		encoderConfig.EncodeLevel = colorLevelEncoder
	}
	// "signup-cli.workflow." reads better than the bare name in a terminal.
	encoderConfig.EncodeName = func(name string, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(name + ".")
	}
	return zapcore.NewConsoleEncoder(encoderConfig)
}

// GetLogger returns the global logger, or a development logger named
// "fallback" when Initialize has not run yet.
func GetLogger() *zap.Logger {
	if logger := globalLogger.Load(); logger != nil {
		return logger
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	l.Warn("Global logger requested before initialization; using fallback.")
	return l.Named("fallback")
}

// Sync flushes buffered entries. Call it before exiting.
func Sync() {
	logger := globalLogger.Load()
	if logger == nil {
		return
	}
	if err := logger.Sync(); err != nil {
		msg := err.Error()
		// Syncing a terminal or pipe fails on several platforms; that is noise.
		if !strings.Contains(msg, "sync /dev/stdout") &&
			!strings.Contains(msg, "invalid argument") &&
			!strings.Contains(msg, "inappropriate ioctl") &&
			!strings.Contains(msg, "operation not supported") {
			fmt.Fprintln(os.Stderr, "Error: failed to sync logger:", err)
		}
	}
}
