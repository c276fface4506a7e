// Package logging builds the zap loggers used by orlo-deployer.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the log level and an optional debug log file.
type Config struct {
	// Level is a zap level name: debug, info, warn, error.
	Level string
	// File, when set, receives a JSON copy of every entry at debug level.
	File string
}

// New returns a sugared logger writing coloured console output to stderr,
// plus a JSON file sink when cfg.File is set. The returned cleanup func
// flushes and closes the file.
func New(cfg Config) (*zap.SugaredLogger, func(), error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
		}
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), level),
	}

	cleanup := func() {}
	if cfg.File != "" {
		f, err := openLogFile(cfg.File)
		if err != nil {
			return nil, nil, err
		}
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(f),
			zapcore.DebugLevel,
		)
		cores = append(cores, fileCore)
		cleanup = func() {
			_ = f.Sync()
			_ = f.Close()
		}
	}

	logger := zap.New(zapcore.NewTee(cores...)).Named("orlo-deployer")
	sugar := logger.Sugar()
	return sugar, func() {
		_ = sugar.Sync()
		cleanup()
	}, nil
}

// openLogFile opens path for appending, creating parent directories.
func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// Nop returns a logger that discards everything.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
