// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package commons

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the logging contract shared by every engine component.
type Logger interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	// Benchmark logs how long a named operation took.
	Benchmark(functionName string, duration time.Duration)
	// With returns a child logger carrying the given fields.
	With(keysAndValues ...interface{}) Logger
	Sync() error
}

type applicationLogger struct {
	*zap.SugaredLogger
	name  string
	path  string
	level string
}

type loggerOption func(*applicationLogger)

// Name sets the service name; it is used as the log file name.
func Name(name string) loggerOption {
	return func(l *applicationLogger) { l.name = name }
}

// Path sets the directory log files are rotated in.
func Path(path string) loggerOption {
	return func(l *applicationLogger) { l.path = path }
}

// Level sets the minimum level (debug, info, warn, error).
func Level(level string) loggerOption {
	return func(l *applicationLogger) { l.level = level }
}

// NewApplicationLogger builds a zap logger writing JSON to a rotated file and
// console output to stdout. Without options it logs debug to stdout only.
func NewApplicationLogger(opts ...loggerOption) (Logger, error) {
	l := &applicationLogger{
		name:  "engine",
		level: "debug",
	}
	for _, opt := range opts {
		opt(l)
	}

	level, err := zapcore.ParseLevel(l.level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", l.level, err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.TimeKey = "time"

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(os.Stdout), level),
	}
	if l.path != "" {
		if err := os.MkdirAll(l.path, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", l.path, err)
		}
		rotator := &lumberjack.Logger{
			Filename:   filepath.Join(l.path, l.name+".log"),
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(rotator), level))
	}

	l.SugaredLogger = newSugared(zapcore.NewTee(cores...), l.name)
	return l, nil
}

// newSugared reports the caller of the logging method. The level methods are
// promoted from the embedded SugaredLogger, so no frame is skipped.
func newSugared(core zapcore.Core, name string) *zap.SugaredLogger {
	return zap.New(core, zap.AddCaller()).Named(name).Sugar()
}

func (l *applicationLogger) Benchmark(functionName string, duration time.Duration) {
	l.SugaredLogger.WithOptions(zap.AddCallerSkip(1)).
		Debugw("benchmark", "function", functionName, "took", duration.String())
}

func (l *applicationLogger) With(keysAndValues ...interface{}) Logger {
	return &applicationLogger{
		SugaredLogger: l.SugaredLogger.With(keysAndValues...),
		name:          l.name,
		path:          l.path,
		level:         l.level,
	}
}
