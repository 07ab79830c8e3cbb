package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level is the minimum severity a Logger writes.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseVerbosity maps a configured verbosity name to a Level.
// An empty string means "normal".
func ParseVerbosity(verbosity string) (Level, error) {
	switch verbosity {
	case "", "normal":
		return LevelInfo, nil
	case "quiet":
		return LevelWarn, nil
	case "verbose", "debug":
		return LevelDebug, nil
	default:
		return LevelInfo, fmt.Errorf("invalid verbosity %q (must be 'quiet', 'normal', 'verbose', or 'debug')", verbosity)
	}
}

// output is the destination shared by every component logger derived from
// the same root.
type output struct {
	mu        sync.Mutex
	logger    *log.Logger
	file      *os.File
	logPath   string
	runID     string
	closeOnce sync.Once
}

// Logger provides component-tagged, levelled logging for the server.
//
// Loggers never write to stdout: when the MCP server runs over stdio, stdout
// carries protocol frames. All methods are safe on a nil *Logger.
type Logger struct {
	component string
	level     Level
	out       *output
}

// New creates a logger for component writing to <dir>/<run-id>-browserbase-mcp.log.
//
// If the directory cannot be created or the file cannot be opened, it returns
// a logger writing to stderr along with the error, so callers can warn and
// carry on.
func New(dir, component string, level Level) (*Logger, error) {
	runID := uuid.New().String()

	if err := os.MkdirAll(dir, 0750); err != nil {
		err = fmt.Errorf("failed to create log directory: %w", err)
		return newFallbackLogger(component, level, runID, err), err
	}

	logPath := filepath.Join(dir, fmt.Sprintf("%s-browserbase-mcp.log", runID))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		err = fmt.Errorf("failed to open log file: %w", err)
		return newFallbackLogger(component, level, runID, err), err
	}

	return &Logger{
		component: component,
		level:     level,
		out: &output{
			logger:  log.New(file, "", 0), // timestamps are formatted per entry
			file:    file,
			logPath: logPath,
			runID:   runID,
		},
	}, nil
}

// NewWriterLogger creates a logger writing every level to w.
func NewWriterLogger(component string, w io.Writer) *Logger {
	return &Logger{
		component: component,
		level:     LevelDebug,
		out: &output{
			logger: log.New(w, "", 0),
			runID:  uuid.New().String(),
		},
	}
}

// Discard returns a logger that drops everything.
func Discard(component string) *Logger {
	return NewWriterLogger(component, io.Discard)
}

func newFallbackLogger(component string, level Level, runID string, cause error) *Logger {
	l := &Logger{
		component: component,
		level:     level,
		out: &output{
			logger: log.New(os.Stderr, "", 0),
			runID:  runID,
		},
	}
	l.Warnf("failed to initialize file logging: %v; falling back to stderr", cause)
	return l
}

// Named returns a logger for another component sharing this logger's output
// and level.
func (l *Logger) Named(component string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{component: component, level: l.level, out: l.out}
}

// formatLogEntry creates a log entry with timestamp, component, and level.
func (l *Logger) formatLogEntry(level, message string) string {
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	return fmt.Sprintf("[%s] [%s] [%s] %s", timestamp, l.component, level, message)
}

func (l *Logger) write(lvl Level, name, format string, v ...interface{}) {
	if l == nil || l.out == nil || lvl < l.level {
		return
	}
	message := fmt.Sprintf(format, v...)
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	l.out.logger.Println(l.formatLogEntry(name, message))
}

// Debugf logs a debug-level message
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.write(LevelDebug, "DEBUG", format, v...)
}

// Infof logs an info-level message
func (l *Logger) Infof(format string, v ...interface{}) {
	l.write(LevelInfo, "INFO", format, v...)
}

// Warnf logs a warning-level message
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.write(LevelWarn, "WARN", format, v...)
}

// Errorf logs an error-level message
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.write(LevelError, "ERROR", format, v...)
}

// RunID returns the identifier of the process run this logger belongs to.
func (l *Logger) RunID() string {
	if l == nil || l.out == nil {
		return ""
	}
	return l.out.runID
}

// LogPath returns the path to the log file, or "" when not logging to a file.
func (l *Logger) LogPath() string {
	if l == nil || l.out == nil {
		return ""
	}
	return l.out.logPath
}

// Close closes the log file. Safe to call multiple times and from any
// component logger sharing the output.
func (l *Logger) Close() error {
	if l == nil || l.out == nil {
		return nil
	}
	var err error
	l.out.closeOnce.Do(func() {
		if l.out.file != nil {
			err = l.out.file.Close()
		}
	})
	return err
}
