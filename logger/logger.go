package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// MaxLines is the default cap on the number of lines kept in the log file
const MaxLines = 5000

// Level represents the logging level
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a level name; unknown names fall back to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// File is the storage a Logger writes to. *os.File satisfies it.
type File interface {
	io.ReadWriteSeeker
	Truncate(size int64) error
	Close() error
}

// Logger is a levelled logger that keeps its file under a line budget by
// dropping the oldest lines. It implements io.Writer so the standard log
// package can be pointed at it.
type Logger struct {
	mu       sync.Mutex
	out      io.Writer
	file     File // nil when out is not truncatable (stderr)
	level    Level
	lines    int
	maxLines int
	now      func() time.Time
}

var (
	defaultMu sync.RWMutex
	// stderr until main installs the file logger
	std = &Logger{out: os.Stderr, level: LevelInfo, now: time.Now}
)

// New creates a Logger appending to f and caps it at maxLines (0 means MaxLines).
func New(f File, level Level, maxLines int) *Logger {
	if maxLines <= 0 {
		maxLines = MaxLines
	}
	l := &Logger{out: f, file: f, level: level, maxLines: maxLines, now: time.Now}
	l.lines = countLines(f)
	return l
}

// SetDefault installs l as the target of the package-level functions
func SetDefault(l *Logger) {
	defaultMu.Lock()
	std = l
	defaultMu.Unlock()
}

// Default returns the logger used by the package-level functions
func Default() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return std
}

// SetLevel changes the minimum level written
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

// Enabled reports whether messages at level are written
func (l *Logger) Enabled(level Level) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return level >= l.level
}

func (l *Logger) logf(level Level, format string, v ...any) {
	if !l.Enabled(level) {
		return
	}
	msg := fmt.Sprintf("%s [%s] %s\n", l.now().Format("2006/01/02 15:04:05"), level, fmt.Sprintf(format, v...))
	_, _ = l.Write([]byte(msg))
}

func (l *Logger) Trace(format string, v ...any) { l.logf(LevelTrace, format, v...) }
func (l *Logger) Debug(format string, v ...any) { l.logf(LevelDebug, format, v...) }
func (l *Logger) Info(format string, v ...any) { l.logf(LevelInfo, format, v...) }
func (l *Logger) Warn(format string, v ...any) { l.logf(LevelWarn, format, v...) }
func (l *Logger) Error(format string, v ...any) { l.logf(LevelError, format, v...) }

// Fatal logs at ERROR and exits with status 1
func (l *Logger) Fatal(format string, v ...any) {
	l.logf(LevelError, format, v...)
	os.Exit(1)
}

// Write implements io.Writer
func (l *Logger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n, err := l.out.Write(p)
	if err != nil {
		return n, err
	}
	l.lines += bytes.Count(p, []byte{'\n'})
	if l.file != nil && l.lines > l.maxLines {
		l.trim()
	}
	return n, nil
}

// trim keeps the newest four fifths of the budget so the rewrite is not
// repeated on every subsequent line. Caller holds mu.
func (l *Logger) trim() {
	if _, err := l.file.Seek(0, io.SeekStart); err != nil {
		return
	}
	data, err := io.ReadAll(l.file)
	if err != nil {
		return
	}

	lines := bytes.SplitAfter(data, []byte{'\n'})
	if len(lines) > 0 && len(lines[len(lines)-1]) == 0 {
		lines = lines[:len(lines)-1]
	}
	keep := l.maxLines - l.maxLines/5
	if len(lines) > keep {
		lines = lines[len(lines)-keep:]
	}

	if err := l.file.Truncate(0); err != nil {
		return
	}
	if _, err := l.file.Seek(0, io.SeekStart); err != nil {
		return
	}
	for _, line := range lines {
		_, _ = l.file.Write(line)
	}
	l.lines = len(lines)
}

// Close closes the underlying file, if any
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func countLines(f File) int {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return 0
	}
	_, _ = f.Seek(0, io.SeekEnd)
	return bytes.Count(data, []byte{'\n'})
}

var noop = func() {}

// Trace logs how long the surrounding function took at TRACE level.
// Usage: defer logger.Trace("name")()
func Trace(name string) func() {
	l := Default()
	if !l.Enabled(LevelTrace) {
		return noop
	}
	start := time.Now()
	return func() {
		l.Trace("%s: %v", name, time.Since(start))
	}
}

func Debug(format string, v ...any) { Default().Debug(format, v...) }
func Info(format string, v ...any) { Default().Info(format, v...) }
func Warn(format string, v ...any) { Default().Warn(format, v...) }
func Error(format string, v ...any) { Default().Error(format, v...) }
func Fatal(format string, v ...any) { Default().Fatal(format, v...) }
