// Package applog provides the structured logging infrastructure shared by the
// sync orchestrator, HTTP client, history reconstructor, and CLI commands.
//
// Logging is built on logrus with a custom output router: error-level records
// go to stderr, everything else to stdout, so container log collectors can
// split the two streams without extra plumbing. Components log through the
// package-level Logger (or a ContextLogger built from it) using logrus.Fields
// rather than formatted strings, so a run id, task key, or worker id can be
// correlated across log lines.
package applog

import (
	"bytes"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// OutputSplitter routes logrus output: error records to stderr, everything
// else to stdout.
type OutputSplitter struct{}

func (OutputSplitter) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte("level=error")) || bytes.Contains(p, []byte(`"level":"error"`)) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// Logger is the shared logrus instance used across the repository.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(&OutputSplitter{})
}

// Config controls how Configure formats and filters output.
type Config struct {
	Level     string // debug|info|warn|error
	Format    string // json|text
	AddCaller bool
}

// Configure applies Config to the shared Logger. Called once at CLI startup
// after flags/env have been parsed.
func Configure(cfg Config) {
	switch cfg.Level {
	case "debug":
		Logger.SetLevel(logrus.DebugLevel)
	case "warn":
		Logger.SetLevel(logrus.WarnLevel)
	case "error":
		Logger.SetLevel(logrus.ErrorLevel)
	default:
		Logger.SetLevel(logrus.InfoLevel)
	}

	if cfg.Format == "json" {
		Logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	}
	Logger.SetReportCaller(cfg.AddCaller)
}

// ContextLogger carries a fixed set of fields (run id, task key, worker id)
// across a chain of log calls without repeating them at every call site.
type ContextLogger struct {
	fields logrus.Fields
}

// With returns a ContextLogger seeded with the given fields.
func With(fields logrus.Fields) *ContextLogger {
	merged := make(logrus.Fields, len(fields))
	for k, v := range fields {
		merged[k] = v
	}
	return &ContextLogger{fields: merged}
}

// WithField returns a copy of cl with an additional field set.
func (cl *ContextLogger) WithField(key string, value interface{}) *ContextLogger {
	merged := make(logrus.Fields, len(cl.fields)+1)
	for k, v := range cl.fields {
		merged[k] = v
	}
	merged[key] = value
	return &ContextLogger{fields: merged}
}

// WithError returns a copy of cl with the error's message attached.
func (cl *ContextLogger) WithError(err error) *ContextLogger {
	return cl.WithField("error", err.Error())
}

func (cl *ContextLogger) Debug(args ...interface{}) { Logger.WithFields(cl.fields).Debug(args...) }
func (cl *ContextLogger) Info(args ...interface{})  { Logger.WithFields(cl.fields).Info(args...) }
func (cl *ContextLogger) Warn(args ...interface{})  { Logger.WithFields(cl.fields).Warn(args...) }
func (cl *ContextLogger) Error(args ...interface{}) { Logger.WithFields(cl.fields).Error(args...) }

func (cl *ContextLogger) Infof(format string, args ...interface{}) {
	Logger.WithFields(cl.fields).Infof(format, args...)
}
func (cl *ContextLogger) Warnf(format string, args ...interface{}) {
	Logger.WithFields(cl.fields).Warnf(format, args...)
}
func (cl *ContextLogger) Errorf(format string, args ...interface{}) {
	Logger.WithFields(cl.fields).Errorf(format, args...)
}
