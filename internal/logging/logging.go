// Package logging configures the application's structured loggers.
// It wires log/slog with JSON output for machine consumption and text
// output for the console, and hands out service-scoped child loggers.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

const (
	// LevelTrace is a custom level below slog.LevelDebug.
	LevelTrace = slog.Level(-8)
	// LevelFatal is a custom level above slog.LevelError.
	LevelFatal = slog.Level(12)
)

var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

var (
	mu            sync.Mutex
	defaultLogger *slog.Logger
	fileCloser    io.Closer
)

// Config controls logger construction.
type Config struct {
	Debug    bool   // lowers the minimum level to debug
	FilePath string // optional JSON log file, empty disables file output
}

// replaceLevelNames renders the custom TRACE/FATAL levels with their names.
func replaceLevelNames(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level := a.Value.Any().(slog.Level)
		if label, ok := levelNames[level]; ok {
			a.Value = slog.StringValue(label)
		}
	}
	return a
}

// Init initializes the logging system. Console output goes to stderr as
// text; when cfg.FilePath is set a JSON handler writes to that file as
// well. Safe to call more than once; the last call wins.
func Init(cfg *Config) error {
	mu.Lock()
	defer mu.Unlock()

	level := slog.LevelInfo
	if cfg != nil && cfg.Debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: replaceLevelNames}

	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)

	if cfg != nil && cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		if fileCloser != nil {
			_ = fileCloser.Close()
		}
		fileCloser = f
		handler = newTeeHandler(handler, slog.NewJSONHandler(f, opts))
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
	return nil
}

// Close releases the log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if fileCloser == nil {
		return nil
	}
	err := fileCloser.Close()
	fileCloser = nil
	return err
}

// ForService returns a child logger scoped to a named service, e.g.
// "session" or "apiclient". Falls back to slog.Default when Init has not
// been called.
func ForService(service string) *slog.Logger {
	mu.Lock()
	l := defaultLogger
	mu.Unlock()
	if l == nil {
		l = slog.Default()
	}
	return l.With("service", service)
}
