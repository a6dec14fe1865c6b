// Package logger provides the leveled logger used across blobtosql.
// Messages are written through the standard `log` package with a `[LEVEL]` prefix and
// are filtered against a process-wide level set from configuration.
package logger

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync/atomic"
)

// LogLevel is the severity of a log message. Smaller values are more verbose.
type LogLevel int32

const (
	// LevelDebug is used for state transitions and per-chunk details.
	LevelDebug LogLevel = iota
	// LevelInfo is used for per-batch progress and lifecycle messages.
	LevelInfo
	// LevelWarn is used for recoverable anomalies.
	LevelWarn
	// LevelError is used for failures that terminate an operation.
	LevelError
	// LevelFatal is used right before the process exits.
	LevelFatal
)

var currentLevel atomic.Int32

func init() {
	currentLevel.Store(int32(LevelInfo))
}

// ParseLevel converts a level name ("DEBUG", "INFO", "WARN", "ERROR", "FATAL", case-insensitive)
// into a LogLevel. The second return value is false for unknown names.
func ParseLevel(level string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG", "TRACE":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	}
	return LevelInfo, false
}

// SetLogLevel sets the global log level.
// An unknown level name falls back to INFO and prints a notice.
func SetLogLevel(level string) {
	lvl, ok := ParseLevel(level)
	if !ok {
		fmt.Printf("Unknown log level '%s' specified. Defaulting to INFO level.\n", level)
	}
	currentLevel.Store(int32(lvl))
}

// GetLogLevel returns the current global log level.
func GetLogLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

// SetOutput redirects log output. Mainly useful in tests.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

func enabled(level LogLevel) bool {
	return GetLogLevel() <= level
}

// Debugf formats and outputs a DEBUG level message.
func Debugf(format string, v ...interface{}) {
	if enabled(LevelDebug) {
		log.Printf("[DEBUG] "+format, v...)
	}
}

// Infof formats and outputs an INFO level message.
func Infof(format string, v ...interface{}) {
	if enabled(LevelInfo) {
		log.Printf("[INFO] "+format, v...)
	}
}

// Warnf formats and outputs a WARN level message.
func Warnf(format string, v ...interface{}) {
	if enabled(LevelWarn) {
		log.Printf("[WARN] "+format, v...)
	}
}

// Errorf formats and outputs an ERROR level message.
func Errorf(format string, v ...interface{}) {
	if enabled(LevelError) {
		log.Printf("[ERROR] "+format, v...)
	}
}

// Fatalf outputs a FATAL level message and terminates the process with exit code 1.
func Fatalf(format string, v ...interface{}) {
	log.Fatalf("[FATAL] "+format, v...)
}
