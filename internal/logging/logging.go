// Package logging configures the process wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

// Setup sets level and formatter of the standard logrus logger.
// Production logs are JSON, everything else is human readable text.
func Setup(level string, production bool) error {
	return SetupWriter(os.Stderr, level, production)
}

// SetupWriter is Setup with an explicit output, used by tests.
func SetupWriter(out io.Writer, level string, production bool) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.SetOutput(out)
	log.SetLevel(lvl)
	if production {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}
