package logging

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	global *zap.SugaredLogger
)

// Init configures the process-wide logger. env "production" selects JSON output at info level,
// anything else a development console logger.
func Init(env string) error {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	mu.Lock()
	global = logger.Sugar()
	mu.Unlock()
	return nil
}

// GetLogger returns the process-wide logger, falling back to a no-op logger before Init.
func GetLogger() *zap.SugaredLogger {
	mu.RLock()
	logger := global
	mu.RUnlock()
	if logger != nil {
		return logger
	}
	return zap.NewNop().Sugar()
}

// Named returns a child of the global logger scoped to a component.
func Named(component string) *zap.SugaredLogger {
	return GetLogger().Named(component)
}

// OrDefault returns logger, or the named global logger when logger is nil.
func OrDefault(logger *zap.SugaredLogger, component string) *zap.SugaredLogger {
	if logger != nil {
		return logger
	}
	return Named(component)
}

// Close flushes buffered entries.
func Close() error {
	mu.RLock()
	logger := global
	mu.RUnlock()
	if logger == nil {
		return nil
	}
	return logger.Sync()
}
