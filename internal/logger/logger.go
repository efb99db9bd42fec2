package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// LogRetentionDays bounds how many rotated log files are kept.
	LogRetentionDays = 7
	// LogMaxSizeMB is the size cap lumberjack applies on top of daily rotation.
	LogMaxSizeMB = 100
)

// Logger provides leveled logging (info/warning/error) with lines formatted as
// "<timestamp> | <LEVEL> | <message>".
type Logger struct {
	infoLog    *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	closer     io.Closer
	mu         sync.Mutex
}

// NewLogger creates a Logger writing to the console and a daily-rotated file
// at logFile. The log directory is created when missing.
func NewLogger(logFile string, loc *time.Location, clk clock.Clock) (*Logger, error) {
	if dir := filepath.Dir(logFile); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	file := NewDailyRotator(&lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    LogMaxSizeMB,
		MaxBackups: LogRetentionDays,
		MaxAge:     LogRetentionDays,
	}, loc, clk)

	l := New(io.MultiWriter(os.Stdout, file))
	l.closer = file
	return l, nil
}

// New creates a Logger writing every level to w.
func New(w io.Writer) *Logger {
	flags := log.Ldate | log.Ltime | log.Lmicroseconds | log.Lmsgprefix
	return &Logger{
		infoLog:    log.New(w, "| INFO | ", flags),
		warningLog: log.New(w, "| WARNING | ", flags),
		errorLog:   log.New(w, "| ERROR | ", flags),
	}
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return New(io.Discard)
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoLog.Printf(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warningLog.Printf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorLog.Printf(format, v...)
}

// Close releases the file sink, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.closer = nil
	return err
}
