package gorm

import (
	"fmt"
	"strings"
	"time"

	gorm_logger "gorm.io/gorm/logger"

	config "github.com/tigerroll/blobtosql/pkg/batch/core/config"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/logger"
)

// NewGormLogger creates a gorm logger writing through the package logger.
// Unknown or empty levels are silent.
func NewGormLogger(level string) gorm_logger.Interface {
	var gormLevel gorm_logger.LogLevel
	switch config.LogLevel(strings.ToUpper(level)) {
	case config.LogLevelError:
		gormLevel = gorm_logger.Error
	case config.LogLevelWarn:
		gormLevel = gorm_logger.Warn
	case config.LogLevelInfo, config.LogLevelDebug, config.LogLevelTrace:
		gormLevel = gorm_logger.Info
	default:
		gormLevel = gorm_logger.Silent
	}

	return gorm_logger.New(
		NewGormWriter(),
		gorm_logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// GormWriter redirects gorm log output to the package logger.
// Statement traces go to DEBUG; bulk INSERT traces are truncated.
type GormWriter struct{}

// NewGormWriter creates a new instance of GormWriter.
func NewGormWriter() *GormWriter {
	return &GormWriter{}
}

const maxStatementLogLen = 512

// Printf implements gorm_logger.Writer.
func (w *GormWriter) Printf(format string, v ...interface{}) {
	msg := strings.TrimSpace(fmt.Sprintf(format, v...))
	if isStatementTrace(msg) {
		if len(msg) > maxStatementLogLen {
			msg = msg[:maxStatementLogLen] + "..."
		}
		logger.Debugf("[GORM] %s", msg)
		return
	}
	logger.Infof("[GORM] %s", msg)
}

func isStatementTrace(msg string) bool {
	if !strings.Contains(msg, "[") || !strings.Contains(msg, "]") {
		return false
	}
	for _, verb := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.Contains(msg, verb) {
			return true
		}
	}
	return false
}
