package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is a structured logger shared by all components
type Logger struct {
	logger *logrus.Logger
	fields logrus.Fields
	mu     sync.RWMutex
}

// Config controls log level, format and destination
type Config struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	MaxSize    int    `yaml:"max_size"` // MB
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"` // days
	Compress   bool   `yaml:"compress"`
	LogDir     string `yaml:"log_dir"`
}

// NewLogger creates a new structured logger
func NewLogger(config *Config) (*Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(level)

	switch strings.ToLower(config.Format) {
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
		})
	default:
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}

	if err := setLogOutput(logger, config); err != nil {
		return nil, err
	}

	return &Logger{
		logger: logger,
		fields: make(logrus.Fields),
	}, nil
}

// setLogOutput sets the log output based on configuration
func setLogOutput(logger *logrus.Logger, config *Config) error {
	switch strings.ToLower(config.Output) {
	case "stderr":
		logger.SetOutput(os.Stderr)
	case "file":
		if config.LogDir == "" {
			config.LogDir = "logs"
		}
		if err := os.MkdirAll(config.LogDir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		writer := &lumberjack.Logger{
			Filename:   filepath.Join(config.LogDir, "qeval.log"),
			MaxSize:    config.MaxSize, // MB
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge, // days
			Compress:   config.Compress,
		}

		// Mirror to stdout in development so batch runs stay observable
		if config.Level == "debug" {
			logger.SetOutput(io.MultiWriter(writer, os.Stdout))
		} else {
			logger.SetOutput(writer)
		}
	default:
		logger.SetOutput(os.Stdout)
	}

	return nil
}

// WithField returns a logger with an extra field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(logrus.Fields{key: value})
}

// WithFields returns a logger with extra fields
func (l *Logger) WithFields(fields logrus.Fields) *Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()

	newFields := make(logrus.Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}

	return &Logger{
		logger: l.logger,
		fields: newFields,
	}
}

// WithError returns a logger annotated with an error
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

func (l *Logger) Debug(args ...interface{}) { l.logger.WithFields(l.fields).Debug(args...) }
func (l *Logger) Info(args ...interface{})  { l.logger.WithFields(l.fields).Info(args...) }
func (l *Logger) Warn(args ...interface{})  { l.logger.WithFields(l.fields).Warn(args...) }
func (l *Logger) Error(args ...interface{}) { l.logger.WithFields(l.fields).Error(args...) }
func (l *Logger) Fatal(args ...interface{}) { l.logger.WithFields(l.fields).Fatal(args...) }

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logger.WithFields(l.fields).Debugf(format, args...)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.logger.WithFields(l.fields).Infof(format, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logger.WithFields(l.fields).Warnf(format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logger.WithFields(l.fields).Errorf(format, args...)
}

func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.logger.WithFields(l.fields).Fatalf(format, args...)
}

// SetOutput sets the log output. Used by tests to silence or capture logs.
func (l *Logger) SetOutput(output io.Writer) {
	l.logger.SetOutput(output)
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &Logger{logger: logger, fields: make(logrus.Fields)}
}
