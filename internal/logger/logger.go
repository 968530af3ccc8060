// Package logger provides leveled logging on top of the standard log package.
// Diagnostics go to stderr; command progress stays on stdout.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Level represents a logging level
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// Logger provides leveled logging
type Logger struct {
	level  Level
	logger *log.Logger
}

var defaultLogger = &Logger{level: WarnLevel, logger: log.New(os.Stderr, "", log.LstdFlags)}

// ParseLevel maps a level name to a Level, falling back to InfoLevel
func ParseLevel(level string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return DebugLevel, true
	case "info":
		return InfoLevel, true
	case "warn", "warning":
		return WarnLevel, true
	case "error":
		return ErrorLevel, true
	default:
		return InfoLevel, false
	}
}

// Init sets the level of the default logger
func Init(level string) {
	l, _ := ParseLevel(level)
	flags := log.LstdFlags
	if l == DebugLevel {
		flags |= log.Lshortfile
	}
	defaultLogger = &Logger{
		level:  l,
		logger: log.New(os.Stderr, "", flags),
	}
}

// SetOutput redirects the default logger
func SetOutput(w io.Writer) {
	defaultLogger.logger.SetOutput(w)
}

func output(l Level, tag, format string, args ...interface{}) {
	if defaultLogger.level > l {
		return
	}
	_ = defaultLogger.logger.Output(3, fmt.Sprintf(tag+format, args...))
}

// Debug logs a message at DebugLevel
func Debug(format string, args ...interface{}) {
	output(DebugLevel, "[DEBUG] ", format, args...)
}

// Info logs a message at InfoLevel
func Info(format string, args ...interface{}) {
	output(InfoLevel, "[INFO] ", format, args...)
}

// Warn logs a message at WarnLevel
func Warn(format string, args ...interface{}) {
	output(WarnLevel, "[WARN] ", format, args...)
}

// Error logs a message at ErrorLevel
func Error(format string, args ...interface{}) {
	output(ErrorLevel, "[ERROR] ", format, args...)
}

// Enabled reports whether messages at l would be written
func Enabled(l Level) bool {
	return defaultLogger.level <= l
}
