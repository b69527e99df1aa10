// Package logging builds the logrus logger used for diagnostics.
//
// Command output goes to stdout; everything logged here goes to stderr so it
// never mixes with --json output.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a text logger writing to w. Debug enables request tracing.
func New(w io.Writer, debug bool) *logrus.Logger {
	if w == nil {
		w = os.Stderr
	}

	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp:       !debug,
		FullTimestamp:          true,
		DisableLevelTruncation: true,
	})
	log.SetLevel(logrus.WarnLevel)
	if debug {
		log.SetLevel(logrus.DebugLevel)
	}

	return log
}

// Discard returns a logger that drops everything. Used as a default and in tests.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
