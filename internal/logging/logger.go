package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelEnv overrides the default level when no level is given explicitly.
const LevelEnv = "LOG_LEVEL"

type Service struct {
	logger *zap.Logger
}

// Options selects where logs go. With File set, JSON lines are written to a
// rotated file; otherwise a console encoder writes to Console (stderr by default).
type Options struct {
	Level   string
	File    string
	Console io.Writer
}

// ParseLevel maps debug, info, warn and error (any case) to a zap level.
// Empty or unknown values give INFO.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New creates a logging service. The returned function flushes and closes the sinks.
func New(opts Options) (*Service, func(), error) {
	levelName := opts.Level
	if levelName == "" {
		levelName = os.Getenv(LevelEnv)
	}
	level := ParseLevel(levelName)

	cfg := zap.NewProductionConfig()
	var core zapcore.Core
	closeFn := func() {}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %v", err)
		}
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    2, // megabytes
			MaxBackups: 5,
			MaxAge:     15, // days
			Compress:   true,
		}
		core = zapcore.NewCore(zapcore.NewJSONEncoder(cfg.EncoderConfig), zapcore.AddSync(rotator), level)
		closeFn = func() { _ = rotator.Close() }
	} else {
		out := opts.Console
		if out == nil {
			out = os.Stderr
		}
		encCfg := zap.NewDevelopmentEncoderConfig()
		core = zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(out), level)
	}

	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	s := &Service{logger: logger}
	return s, func() {
		_ = logger.Sync()
		closeFn()
	}, nil
}

// GetLogger returns the zap logger instance
func (s *Service) GetLogger() *zap.Logger {
	return s.logger
}

// Close flushes any buffered log entries
func (s *Service) Close() error {
	if s.logger != nil {
		return s.logger.Sync()
	}
	return nil
}
