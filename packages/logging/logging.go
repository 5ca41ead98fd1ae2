// Package logging builds the logrus loggers used for diagnostics.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Options controls logger construction
type Options struct {
	Level   string
	Verbose bool
	JSON    bool
	Writer  io.Writer
	Service string
}

// New returns a logger writing to stderr unless Options.Writer is set.
// Verbose forces at least debug level.
func New(opts Options) (*logrus.Logger, error) {
	logger := logrus.New()

	if opts.Writer != nil {
		logger.SetOutput(opts.Writer)
	} else {
		logger.SetOutput(os.Stderr)
	}

	if opts.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			DisableTimestamp: true,
		})
	}

	level := logrus.WarnLevel
	if opts.Level != "" {
		parsed, err := logrus.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}
	if opts.Verbose && level < logrus.DebugLevel {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)

	return logger, nil
}

// Entry returns a logger entry tagged with the service name, if any
func Entry(logger *logrus.Logger, service string) *logrus.Entry {
	if service == "" {
		return logrus.NewEntry(logger)
	}
	return logger.WithField("service", service)
}

// Discard returns a logger that drops everything, for tests and library defaults
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
