// Package logging builds the zap loggers used across Creel components.
// Output is JSON to stderr; every component logger carries an instance and
// component field so co-hosted instances can be told apart in aggregated logs.
package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates the root logger for an instance, writing JSON to stderr.
func New(instanceName string, level zapcore.Level) *zap.Logger {
	return NewWithWriter(instanceName, level, os.Stderr)
}

// NewWithWriter creates the root logger writing to w. Used by tests to
// capture output.
func NewWithWriter(instanceName string, level zapcore.Level, w io.Writer) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		NameKey:     "component",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
		EncodeName:  zapcore.FullNameEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(w),
		level,
	)

	return zap.New(core).With(zap.String("instance", instanceName))
}

// ParseLevel maps a config level string to a zap level, defaulting to info.
func ParseLevel(s string) zapcore.Level {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return zapcore.InfoLevel
	}
	return level
}
