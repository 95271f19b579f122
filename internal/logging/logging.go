// Package logging builds the process-wide zerolog logger used by
// every cmd/* binary.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// New returns a JSON logger tagged with the component name (gateway,
// dispatcher, store) and, where relevant, an instance id distinguishing
// multiple A instances.
func New(component string, instance string) zerolog.Logger {
	level := zerolog.InfoLevel
	if lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		level = lvl
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Str("component", component)
	if instance != "" {
		logger = logger.Str("instance", instance)
	}
	return logger.Logger()
}
