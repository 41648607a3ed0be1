// Package logging wraps logrus with the category helpers used across the
// service. All log output goes through this package.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Category constants for consistent logging categories.
const (
	CategoryApp      = "App"
	CategoryHTTP     = "HTTP"
	CategoryPipeline = "Pipeline"
	CategoryIngest   = "Ingest"
	CategoryModel    = "Model"
	CategoryWorker   = "Worker"
	CategoryStore    = "Store"
	CategoryArtifact = "Artifact"
)

var std = logrus.New()

// Init configures the shared logger. Level is any logrus level name; format is
// "json" or "text".
func Init(level, format string, out io.Writer) error {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if out == nil {
		out = os.Stderr
	}

	std.SetOutput(out)
	std.SetLevel(lvl)
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		std.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		std.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("logging: unknown format %q", format)
	}
	return nil
}

// Logger returns the underlying logrus logger.
func Logger() *logrus.Logger {
	return std
}

// With returns an entry tagged with category and the given fields.
func With(category string, fields logrus.Fields) *logrus.Entry {
	return std.WithField("category", category).WithFields(fields)
}

// Debug logs a debug message.
func Debug(category, msg string, params ...interface{}) {
	std.WithField("category", category).Debugf(msg, params...)
}

// Info logs an info message.
func Info(category, msg string, params ...interface{}) {
	std.WithField("category", category).Infof(msg, params...)
}

// Warning logs a warning message.
func Warning(category, msg string, params ...interface{}) {
	std.WithField("category", category).Warnf(msg, params...)
}

// Error logs an error message.
func Error(category, msg string, params ...interface{}) {
	std.WithField("category", category).Errorf(msg, params...)
}

// Fatal logs and exits the process.
func Fatal(category, msg string, params ...interface{}) {
	std.WithField("category", category).Fatalf(msg, params...)
}
