// Package log provides the process-wide zap logger used by every meteodb
// component.
package log

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.SugaredLogger
var baseLogger *zap.Logger

// Init initializes the package-level logger
func Init(debug bool) error {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapLogger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %v", err)
	}

	baseLogger = zapLogger
	log = zapLogger.Sugar()
	return nil
}

// UseLogger replaces the package logger. Tests use it with zap.NewNop().
func UseLogger(l *zap.Logger) {
	baseLogger = l.WithOptions(zap.AddCallerSkip(1))
	log = baseLogger.Sugar()
}

// GetZapLogger returns the base zap logger for cases where it's needed (like GORM)
func GetZapLogger() *zap.Logger {
	ensure()
	return baseLogger
}

// GetSugaredLogger returns the sugared logger instance
func GetSugaredLogger() *zap.SugaredLogger {
	ensure()
	return log
}

// With returns a child logger carrying the given key/value pairs, e.g. the
// station being processed by a worker.
func With(keysAndValues ...interface{}) *zap.SugaredLogger {
	ensure()
	return log.Desugar().WithOptions(zap.AddCallerSkip(-1)).Sugar().With(keysAndValues...)
}

func ensure() {
	if log == nil {
		// Fallback logger if not initialized
		baseLogger, _ = zap.NewProduction(zap.AddCallerSkip(1))
		log = baseLogger.Sugar()
	}
}

// Sync flushes any buffered log entries
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}

// Package-level convenience functions
func Debug(args ...interface{}) {
	ensure()
	log.Debug(args...)
}

func Debugf(template string, args ...interface{}) {
	ensure()
	log.Debugf(template, args...)
}

func Debugw(msg string, keysAndValues ...interface{}) {
	ensure()
	log.Debugw(msg, keysAndValues...)
}

func Info(args ...interface{}) {
	ensure()
	log.Info(args...)
}

func Infof(template string, args ...interface{}) {
	ensure()
	log.Infof(template, args...)
}

func Infow(msg string, keysAndValues ...interface{}) {
	ensure()
	log.Infow(msg, keysAndValues...)
}

func Warn(args ...interface{}) {
	ensure()
	log.Warn(args...)
}

func Warnf(template string, args ...interface{}) {
	ensure()
	log.Warnf(template, args...)
}

func Warnw(msg string, keysAndValues ...interface{}) {
	ensure()
	log.Warnw(msg, keysAndValues...)
}

func Error(args ...interface{}) {
	ensure()
	log.Error(args...)
}

func Errorf(template string, args ...interface{}) {
	ensure()
	log.Errorf(template, args...)
}

func Errorw(msg string, keysAndValues ...interface{}) {
	ensure()
	log.Errorw(msg, keysAndValues...)
}

func Fatal(args ...interface{}) {
	ensure()
	log.Fatal(args...)
	os.Exit(1)
}

func Fatalf(template string, args ...interface{}) {
	ensure()
	log.Fatalf(template, args...)
	os.Exit(1)
}
