// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging holds the process-wide structured logger.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	lock   sync.RWMutex
	logger = zap.NewNop()
)

// Get returns the current logger. It is a no-op logger until Set or
// Init is called.
func Get() *zap.Logger {
	lock.RLock()
	defer lock.RUnlock()
	return logger
}

// Set replaces the process-wide logger.
func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	lock.Lock()
	defer lock.Unlock()
	logger = l
}

// Init builds a console logger at the given level ("debug", "info",
// "warn", "error") writing to stderr and installs it.
func Init(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	Set(l.Named("research"))
	return Get(), nil
}
