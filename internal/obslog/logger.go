// Package obslog provides the structured, component-scoped logging used by
// every pipeline package. It wraps log/slog with file rotation and a global
// singleton, mirroring how CLI-facing code uses logrus separately for
// human-readable command output.
package obslog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Level mirrors slog's severity levels with an added Fatal.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	FATAL
)

// Config holds logger configuration.
type Config struct {
	Level      Level
	OutputFile string // path to log file; empty means stdout only
	MaxSize    int64  // bytes before rotation
	MaxBackups int
	JSONFormat bool
	AddSource  bool
}

// Logger wraps slog.Logger with rotation and a component tag.
type Logger struct {
	slog      *slog.Logger
	config    Config
	file      *os.File
	mu        *sync.Mutex
	debugMode bool
}

var (
	globalLogger *Logger
	once         sync.Once
)

// Initialize configures the global logger. Must be called once before any
// package-level logging call; safe to call more than once (no-op after the
// first).
func Initialize(config Config) error {
	var initErr error
	once.Do(func() {
		logger, err := New(config)
		if err != nil {
			initErr = fmt.Errorf("initialize logger: %w", err)
			return
		}
		globalLogger = logger
	})
	return initErr
}

// New creates a standalone logger instance with the given configuration.
func New(config Config) (*Logger, error) {
	if config.MaxSize == 0 {
		config.MaxSize = 10 * 1024 * 1024
	}
	if config.MaxBackups == 0 {
		config.MaxBackups = 3
	}

	logger := &Logger{config: config, debugMode: config.Level == DEBUG, mu: &sync.Mutex{}}

	var writers []io.Writer
	writers = append(writers, os.Stdout)

	if config.OutputFile != "" {
		dir := filepath.Dir(config.OutputFile)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create log directory %s: %w", dir, err)
		}
		if err := logger.rotateIfNeeded(); err != nil {
			return nil, fmt.Errorf("rotate logs: %w", err)
		}
		file, err := os.OpenFile(config.OutputFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", config.OutputFile, err)
		}
		logger.file = file
		writers = append(writers, file)
	}

	multiWriter := io.MultiWriter(writers...)
	opts := &slog.HandlerOptions{Level: logger.toSlogLevel(config.Level), AddSource: config.AddSource}

	var handler slog.Handler
	if config.JSONFormat {
		handler = slog.NewJSONHandler(multiWriter, opts)
	} else {
		handler = slog.NewTextHandler(multiWriter, opts)
	}

	logger.slog = slog.New(handler)
	return logger, nil
}

func (l *Logger) rotateIfNeeded() error {
	if l.config.OutputFile == "" {
		return nil
	}
	info, err := os.Stat(l.config.OutputFile)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat log file: %w", err)
	}
	if info.Size() < l.config.MaxSize {
		return nil
	}
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	for i := l.config.MaxBackups - 1; i >= 1; i-- {
		oldPath := fmt.Sprintf("%s.%d", l.config.OutputFile, i)
		newPath := fmt.Sprintf("%s.%d", l.config.OutputFile, i+1)
		if _, err := os.Stat(oldPath); err == nil {
			os.Rename(oldPath, newPath)
		}
	}
	backupPath := fmt.Sprintf("%s.1", l.config.OutputFile)
	if err := os.Rename(l.config.OutputFile, backupPath); err != nil {
		return fmt.Errorf("rotate log file: %w", err)
	}
	return nil
}

func (l *Logger) toSlogLevel(level Level) slog.Level {
	switch level {
	case DEBUG:
		return slog.LevelDebug
	case WARN:
		return slog.LevelWarn
	case ERROR, FATAL:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.slog.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.slog.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

func (l *Logger) Fatal(msg string, args ...any) {
	l.slog.Error(msg, args...)
	l.Close()
	os.Exit(1)
}

// Slog exposes the underlying slog.Logger so callers can install this
// logger as the process default (slog.SetDefault) and route every
// slog-based pipeline logger through the rotating handler.
func (l *Logger) Slog() *slog.Logger { return l.slog }

// With returns a derived logger scoped to a component, e.g.
// obslog.With("component", "ckg-builder").
func (l *Logger) With(args ...any) *Logger {
	derived := *l
	derived.slog = l.slog.With(args...)
	return &derived
}

func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

func Debug(msg string, args ...any) { dispatch(globalLogger, (*Logger).Debug, msg, args...) }
func Info(msg string, args ...any)  { dispatch(globalLogger, (*Logger).Info, msg, args...) }
func Warn(msg string, args ...any)  { dispatch(globalLogger, (*Logger).Warn, msg, args...) }
func Error(msg string, args ...any) { dispatch(globalLogger, (*Logger).Error, msg, args...) }

func dispatch(l *Logger, fn func(*Logger, string, ...any), msg string, args ...any) {
	if l != nil {
		fn(l, msg, args...)
		return
	}
	slog.Info(msg, args...)
}

func Fatal(msg string, args ...any) {
	if globalLogger != nil {
		globalLogger.Fatal(msg, args...)
		return
	}
	slog.Error(msg, args...)
	os.Exit(1)
}

// Slog returns the global logger's slog.Logger, or slog.Default() when
// Initialize was never called.
func Slog() *slog.Logger {
	if globalLogger != nil {
		return globalLogger.slog
	}
	return slog.Default()
}

// With returns a component-scoped logger derived from the global logger, or
// nil if the global logger was never initialized.
func With(args ...any) *Logger {
	if globalLogger != nil {
		return globalLogger.With(args...)
	}
	return nil
}

func Close() error {
	if globalLogger != nil {
		return globalLogger.Close()
	}
	return nil
}

// DefaultConfig returns sensible defaults for local/debug runs.
func DefaultConfig(debugMode bool) Config {
	level := INFO
	if debugMode {
		level = DEBUG
	}
	logDir := "logs"
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	logFile := filepath.Join(logDir, fmt.Sprintf("ckg_%s.log", timestamp))
	return Config{
		Level:      level,
		OutputFile: logFile,
		MaxSize:    10 * 1024 * 1024,
		MaxBackups: 3,
		JSONFormat: !debugMode,
		AddSource:  debugMode,
	}
}

// ProductionConfig returns defaults for the worker process: JSON output,
// larger rotation window, no source locations.
func ProductionConfig(logFile string) Config {
	return Config{
		Level:      INFO,
		OutputFile: logFile,
		MaxSize:    50 * 1024 * 1024,
		MaxBackups: 10,
		JSONFormat: true,
		AddSource:  false,
	}
}
