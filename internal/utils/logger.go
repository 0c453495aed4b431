package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger provides leveled logging with verbose mode support.
type Logger struct {
	verbose bool
	out     io.Writer
	mu      sync.RWMutex
}

var (
	loggerInstance *Logger
	once           sync.Once
)

// GetLogger returns the singleton logger instance.
func GetLogger() *Logger {
	once.Do(func() {
		loggerInstance = &Logger{out: os.Stderr}
	})
	return loggerInstance
}

// SetVerboseMode sets the verbose mode globally.
func SetVerboseMode(verbose bool) {
	GetLogger().SetVerbose(verbose)
}

// SetVerbose sets the verbose mode for this logger instance.
func (l *Logger) SetVerbose(verbose bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.verbose = verbose
}

// IsVerbose returns whether verbose mode is enabled.
func (l *Logger) IsVerbose() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.verbose
}

// SetOutput redirects log output and returns the previous writer.
func (l *Logger) SetOutput(w io.Writer) io.Writer {
	l.mu.Lock()
	defer l.mu.Unlock()
	prev := l.out
	l.out = w
	return prev
}

func (l *Logger) write(line string) {
	l.mu.RLock()
	out := l.out
	l.mu.RUnlock()
	_, _ = io.WriteString(out, line)
}

// formatMessage formats a message with optional printf-style arguments.
func formatMessage(msgOrFormat string, args ...interface{}) string {
	if len(args) > 0 {
		return fmt.Sprintf(msgOrFormat, args...)
	}
	return msgOrFormat
}

// Debug logs a debug message (only shown when verbose=true).
func (l *Logger) Debug(msgOrFormat string, args ...interface{}) {
	if !l.IsVerbose() {
		return
	}
	l.write(fmt.Sprintf("%s [DEBUG] %s\n", time.Now().Format("15:04:05"), formatMessage(msgOrFormat, args...)))
}

// Info logs an info message (always shown).
func (l *Logger) Info(msgOrFormat string, args ...interface{}) {
	l.write(fmt.Sprintf("[INFO] %s\n", formatMessage(msgOrFormat, args...)))
}

// Warn logs a warning message (always shown).
func (l *Logger) Warn(msgOrFormat string, args ...interface{}) {
	l.write(fmt.Sprintf("[WARN] %s\n", formatMessage(msgOrFormat, args...)))
}

// Error logs an error message (always shown).
func (l *Logger) Error(msgOrFormat string, args ...interface{}) {
	l.write(fmt.Sprintf("[ERROR] %s\n", formatMessage(msgOrFormat, args...)))
}

// Debugf logs a debug message using the global logger.
func Debugf(format string, args ...interface{}) {
	GetLogger().Debug(format, args...)
}

// Infof logs an info message using the global logger.
func Infof(format string, args ...interface{}) {
	GetLogger().Info(format, args...)
}

// Warnf logs a warning message using the global logger.
func Warnf(format string, args ...interface{}) {
	GetLogger().Warn(format, args...)
}

// Errorf logs an error message using the global logger.
func Errorf(format string, args ...interface{}) {
	GetLogger().Error(format, args...)
}

// BackgroundLogger writes the log of a long-running command (serve, watch)
// to a PID-specific file so the terminal stays clean.
type BackgroundLogger struct {
	mu       sync.Mutex
	logger   *log.Logger
	logFile  *os.File
	enabled  bool
	filePath string
}

// NewBackgroundLogger creates a logger for the named command. When enabled is
// false every call is discarded. Pass config.IsBackgroundLoggingEnabled().
func NewBackgroundLogger(command string, enabled bool) (*BackgroundLogger, error) {
	if !enabled {
		return &BackgroundLogger{logger: log.New(io.Discard, "", log.LstdFlags)}, nil
	}
	name := fmt.Sprintf("gameshelf-%s-%d.log", command, os.Getpid())
	return NewBackgroundLoggerWithPath(filepath.Join(os.TempDir(), name))
}

// NewBackgroundLoggerWithPath creates a background logger with a custom path.
// On failure the returned logger discards output and the error is returned.
func NewBackgroundLoggerWithPath(path string) (*BackgroundLogger, error) {
	bl := &BackgroundLogger{filePath: path}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		bl.logger = log.New(io.Discard, "", log.LstdFlags)
		return bl, err
	}

	bl.logFile = file
	bl.logger = log.New(file, "", log.LstdFlags)
	bl.enabled = true
	return bl, nil
}

// Printf logs a formatted message.
func (bl *BackgroundLogger) Printf(format string, args ...interface{}) {
	bl.mu.Lock()
	defer bl.mu.Unlock()
	bl.logger.Printf(format, args...)
}

// Println logs a message with a newline.
func (bl *BackgroundLogger) Println(args ...interface{}) {
	bl.mu.Lock()
	defer bl.mu.Unlock()
	bl.logger.Println(args...)
}

// Close closes the log file. Later calls are discarded.
func (bl *BackgroundLogger) Close() {
	bl.mu.Lock()
	defer bl.mu.Unlock()
	if bl.logFile != nil {
		_ = bl.logFile.Close()
		bl.logFile = nil
	}
	bl.logger = log.New(io.Discard, "", log.LstdFlags)
	bl.enabled = false
}

// GetLogPath returns the log file path.
func (bl *BackgroundLogger) GetLogPath() string {
	return bl.filePath
}

// IsEnabled returns whether background logging is enabled.
func (bl *BackgroundLogger) IsEnabled() bool {
	bl.mu.Lock()
	defer bl.mu.Unlock()
	return bl.enabled
}
