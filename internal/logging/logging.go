package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// DevMode indicates if development logging is enabled
	DevMode = os.Getenv("DEV_MODE") == "1"
	// Logger is the shared logger instance
	Logger *log.Logger
)

func init() {
	Logger = log.Default()
}

// Options controls where the shared logger writes.
type Options struct {
	// Path of the log file. Empty keeps the current destination.
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Setup points the shared logger at a size-rotated file so interactive
// output and MCP stdio stay free of log lines. The returned closer flushes
// and releases the file.
func Setup(opts Options) (io.Closer, error) {
	if opts.Path == "" {
		return nopCloser{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, err
	}
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 10
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = 3
	}
	if opts.MaxAgeDays <= 0 {
		opts.MaxAgeDays = 28
	}
	sink := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
	}
	Logger = log.New(sink, "", log.LstdFlags)
	return sink, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// DevLog logs only when DEV_MODE=1
func DevLog(format string, args ...interface{}) {
	if DevMode {
		Logger.Printf("[DEV] "+format, args...)
	}
}

// UserLog logs important user-facing information (always visible)
func UserLog(format string, args ...interface{}) {
	Logger.Printf("[USER] "+format, args...)
}

// ErrorLog logs errors (always visible)
func ErrorLog(format string, args ...interface{}) {
	Logger.Printf("[ERROR] "+format, args...)
}
