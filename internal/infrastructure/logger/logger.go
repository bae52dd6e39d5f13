// Package logger builds the process zap logger and carries request-scoped
// correlation fields through context.
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects level (debug, info, warn, error), format (json, console)
// and output (stdout, stderr or a file path).
type Config struct {
	Level  string
	Format string
	Output string
}

// ConfigForEnvironment uses the console encoder only for development.
func ConfigForEnvironment(env, level string) *Config {
	format := "json"
	if env == "" || env == "development" {
		format = "console"
	}
	return &Config{Level: level, Format: format, Output: "stdout"}
}

// New builds the logger. extra cores, such as the OTLP bridge, receive every
// entry alongside the primary output.
func New(cfg *Config, extra ...zapcore.Core) (*zap.Logger, error) {
	sink, err := openSink(cfg.Output)
	if err != nil {
		return nil, err
	}
	primary := zapcore.NewCore(encoderFor(cfg.Format), sink, ParseLevel(cfg.Level))
	return zap.New(zapcore.NewTee(append([]zapcore.Core{primary}, extra...)...),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	), nil
}

var levels = map[string]zapcore.Level{
	"debug":   zapcore.DebugLevel,
	"warn":    zapcore.WarnLevel,
	"warning": zapcore.WarnLevel,
	"error":   zapcore.ErrorLevel,
}

// ParseLevel is case-insensitive. Unknown names mean info.
func ParseLevel(level string) zapcore.Level {
	if l, ok := levels[strings.ToLower(level)]; ok {
		return l
	}
	return zapcore.InfoLevel
}

func encoderFor(format string) zapcore.Encoder {
	if format == "console" {
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		ec.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		return zapcore.NewConsoleEncoder(ec)
	}
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "time"
	ec.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	ec.EncodeDuration = zapcore.MillisDurationEncoder
	return zapcore.NewJSONEncoder(ec)
}

func openSink(output string) (zapcore.WriteSyncer, error) {
	switch strings.ToLower(output) {
	case "", "stdout":
		return zapcore.Lock(os.Stdout), nil
	case "stderr":
		return zapcore.Lock(os.Stderr), nil
	}
	f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return zapcore.AddSync(f), nil
}
