// Package logging provides per-component loggers sharing one
// process-wide configuration.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// LevelEnvVar overrides the log level (debug, info, warn, error).
const LevelEnvVar = "RIVALTRAY_LOG_LEVEL"

var (
	base     *logrus.Logger
	baseOnce sync.Once
)

func root() *logrus.Logger {
	baseOnce.Do(func() {
		base = logrus.New()
		base.SetOutput(os.Stderr)
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05",
		})
		base.SetLevel(levelFromEnv())
	})
	return base
}

func levelFromEnv() logrus.Level {
	raw := strings.TrimSpace(os.Getenv(LevelEnvVar))
	if raw == "" {
		return logrus.InfoLevel
	}
	level, err := logrus.ParseLevel(raw)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// NewLogger returns a logger tagged with the given component name.
// Components share level and output configuration.
func NewLogger(component string) *logrus.Entry {
	return root().WithField("component", component)
}

// SetOutput redirects all component loggers, primarily for tests.
func SetOutput(w io.Writer) {
	root().SetOutput(w)
}

// SetLevel overrides the shared log level.
func SetLevel(level logrus.Level) {
	root().SetLevel(level)
}
