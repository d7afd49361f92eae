package utils

import (
	"log"
	"os"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitializeLogger installs the global zap logger: JSON in production,
// console otherwise. The returned func flushes it.
func InitializeLogger(production bool, level string) (*zap.Logger, func()) {
	cfg := zap.NewDevelopmentConfig()
	if production {
		cfg = zap.NewProductionConfig()
	}
	if lvl, err := zapcore.ParseLevel(strings.TrimSpace(level)); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	logger, err := cfg.Build()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil && !isIgnorableSyncError(err) {
			log.Printf("Failed to sync logger: %v\n", err)
		}
	}
	return logger, cleanup
}

// stdout/stderr are not syncable on most terminals and containers.
func isIgnorableSyncError(err error) bool {
	if pe, ok := err.(*os.PathError); ok {
		return pe.Err == syscall.EINVAL || pe.Err == syscall.ENOTTY
	}
	return strings.Contains(err.Error(), "invalid argument") ||
		strings.Contains(err.Error(), "inappropriate ioctl")
}
