package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the package-global structured logger. It defaults to a no-op
// logger so library consumers that never call Init stay silent.
var Log = zap.NewNop()

// Init initializes the global logger at Info level, honoring the
// MESSAGEBOX_LOG_LEVEL env var when set.
func Init() {
	InitWithLevel(os.Getenv("MESSAGEBOX_LOG_LEVEL"))
}

// InitWithLevel initializes the global logger with the provided level
// string ("debug", "info", "warn", "error"). An empty or unknown level
// falls back to Info.
func InitWithLevel(level string) {
	var lv zapcore.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lv = zapcore.DebugLevel
	case "warn", "warning":
		lv = zapcore.WarnLevel
	case "error":
		lv = zapcore.ErrorLevel
	default:
		lv = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lv)
	cfg.OutputPaths = []string{"stdout"}
	l, err := cfg.Build()
	if err != nil {
		// zap only fails on bad sink paths; keep the no-op logger.
		return
	}
	Log = l
}

// Sync flushes any buffered log entries.
func Sync() {
	_ = Log.Sync()
}
