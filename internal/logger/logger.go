// Package logger builds the structured logrus loggers used across DittoDAV.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls log output behavior.
type Config struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`

	// MaxSizeMB is the size at which a log file is rotated.
	// Only used when Output is a file path.
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb" validate:"gte=0"`

	// MaxBackups is the number of rotated files to keep.
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups" validate:"gte=0"`

	// Compress gzips rotated files.
	Compress bool `mapstructure:"compress" yaml:"compress"`
}

// New creates a logger from cfg.
//
// File outputs are rotated with lumberjack. An unknown level or format is an
// error; an output directory that cannot be created falls back to stderr and
// the failure is logged once through the returned logger.
func New(cfg Config) (*logrus.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	formatter, err := newFormatter(cfg.Format)
	if err != nil {
		return nil, err
	}

	out, outErr := newOutput(cfg)

	log := logrus.New()
	log.SetLevel(level)
	log.SetFormatter(formatter)
	log.SetOutput(out)

	if outErr != nil {
		log.WithFields(logrus.Fields{
			"action": "logger_fallback",
			"output": cfg.Output,
		}).Warn(outErr.Error())
	}

	return log, nil
}

// ParseLevel maps the DEBUG/INFO/WARN/ERROR vocabulary onto logrus levels.
func ParseLevel(level string) (logrus.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "", "INFO":
		return logrus.InfoLevel, nil
	case "DEBUG":
		return logrus.DebugLevel, nil
	case "WARN", "WARNING":
		return logrus.WarnLevel, nil
	case "ERROR":
		return logrus.ErrorLevel, nil
	default:
		return logrus.InfoLevel, fmt.Errorf("invalid log level %q", level)
	}
}

// Discard returns a logger that drops every message.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newFormatter(format string) (logrus.Formatter, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return &logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		}, nil
	case "json":
		return &logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano}, nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}

func newOutput(cfg Config) (io.Writer, error) {
	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Output), 0o755); err != nil {
		return os.Stderr, fmt.Errorf("failed to create log directory: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   cfg.Output,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
		LocalTime:  true,
	}, nil
}
