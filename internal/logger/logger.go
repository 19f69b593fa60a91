package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the global logger instance
var Log *zap.Logger

// Initialize sets up the structured logger with file rotation.
// logLevel: "debug", "info", "warn", "error" (default: "info")
// logFile: path to log file (default: "server.log")
func Initialize(logLevel string, logFile string) error {
	if logFile == "" {
		logFile = "server.log"
	}
	if logLevel == "" {
		logLevel = "info"
	}

	level := parseLogLevel(logLevel)

	fileWriter := zapcore.AddSync(&lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    100, // megabytes
		MaxBackups: 5,
		MaxAge:     7, // days
		Compress:   true,
	})

	// Human-readable console output, JSON to the rotated file
	consoleEncoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())

	jsonEncoderConfig := zap.NewProductionEncoderConfig()
	jsonEncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	jsonEncoder := zapcore.NewJSONEncoder(jsonEncoderConfig)

	core := zapcore.NewTee(
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), level),
		zapcore.NewCore(jsonEncoder, fileWriter, level),
	)

	Log = zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	Log.Info("Logger initialized",
		zap.String("level", logLevel),
		zap.String("file", logFile),
	)

	return nil
}

// InitializeForTesting sets up a no-op logger so packages that log can be
// exercised from tests without touching the filesystem.
func InitializeForTesting() {
	Log = zap.NewNop()
}

// Close flushes the logger before shutdown
func Close() error {
	if Log != nil {
		return Log.Sync()
	}
	return nil
}

func parseLogLevel(levelStr string) zapcore.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Field helpers for common logging patterns

func WithViewerID(viewerID string) zap.Field {
	return zap.String("viewer_id", viewerID)
}

func WithPostID(postID string) zap.Field {
	return zap.String("post_id", postID)
}

func WithCacheKey(key string) zap.Field {
	return zap.String("cache_key", key)
}
