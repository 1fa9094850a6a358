// Package logging is a thin bridge between logrus and the rest of the
// scheduling engine, so components depend on an interface rather than a
// concrete logger.
package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Logger is the logging contract used throughout the engine. Components take
// one via constructor injection rather than reaching for a package-level
// global.
type Logger interface {
	logrus.FieldLogger
}

// NewDefault returns a text-formatted logrus logger writing to the given
// writer at the given level, suitable for cmd/schedulerctl.
func NewDefault(out io.Writer, level logrus.Level) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log
}

// Discard returns a logger that drops everything, for use in tests.
func Discard() Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// WithComponent returns a logger annotated with a "component" field, mirroring
// the teacher's log.WithField("component", ...) convention.
func WithComponent(log Logger, component string) Logger {
	return log.WithField("component", component)
}
