// Package qlog provides process-wide structured logging for the matching
// core, using an Init/Get pattern around zap.
package qlog

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.Mutex
	logger *zap.Logger
)

// Init configures the process-wide logger. service is attached to every
// entry as a "service" field. Level and encoding are taken from
// QMATCH_LOG_LEVEL ("debug","info","warn","error"; default "info") and
// QMATCH_LOG_FORMAT ("json","console"; default "console").
func Init(service string) {
	mu.Lock()
	defer mu.Unlock()

	level := zapcore.InfoLevel
	switch os.Getenv("QMATCH_LOG_LEVEL") {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if os.Getenv("QMATCH_LOG_FORMAT") == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level)
	logger = zap.New(core).With(zap.String("service", service))
}

// Get returns the process-wide logger, lazily initializing a bare-bones
// one if Init was never called.
func Get() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = zap.NewExample()
	}
	return logger
}

// Scope returns a child logger tagged with a "component" field.
func Scope(component string) *zap.Logger {
	return Get().With(zap.String("component", component))
}
