package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// -----------------------------------------------------------------------------

// Level orders log severities; messages below the logger's level are dropped.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

// ParseLevel maps a config string to a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARNING", "WARN":
		return LevelWarning
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// -----------------------------------------------------------------------------

// Logger provides structured logging functionality
type Logger struct {
	name   string
	level  Level
	logger *log.Logger
	exit   func(int)
}

// -----------------------------------------------------------------------------

// NewLogger creates a new Logger instance writing to stdout
func NewLogger(level string, name string) *Logger {
	return NewLoggerWithWriter(os.Stdout, level, name)
}

// NewLoggerWithWriter creates a Logger writing to w.
func NewLoggerWithWriter(w io.Writer, level string, name string) *Logger {
	return &Logger{
		name:   name,
		level:  ParseLevel(level),
		logger: log.New(w, "", log.LstdFlags),
		exit:   os.Exit,
	}
}

// -----------------------------------------------------------------------------

// Named returns a logger sharing the output and level under another component name.
func (l *Logger) Named(name string) *Logger {
	return &Logger{
		name:   name,
		level:  l.level,
		logger: l.logger,
		exit:   l.exit,
	}
}

// -----------------------------------------------------------------------------

func (l *Logger) output(level Level, tag string, format string, args ...interface{}) {
	if level < l.level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] %s: %s", l.name, tag, msg)
}

// -----------------------------------------------------------------------------

// Debug logs diagnostic messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.output(LevelDebug, "DEBUG", format, args...)
}

// -----------------------------------------------------------------------------

// Warning logs recoverable problems
func (l *Logger) Warning(format string, args ...interface{}) {
	l.output(LevelWarning, "WARNING", format, args...)
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.output(LevelInfo, "INFO", format, args...)
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.output(LevelError, "ERROR", format, args...)
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application
func (l *Logger) Critical(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] CRITICAL: %s", l.name, msg)
	l.exit(1)
}
