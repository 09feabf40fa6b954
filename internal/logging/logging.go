// Package logging builds the process-wide logrus logger from config.
package logging

import (
	"github.com/sirupsen/logrus"

	"github.com/genetic-risk-server/internal/config"
)

// New creates a logger with the configured level and format. Unknown
// values fall back to info/JSON.
func New(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	switch cfg.Format {
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	return logger
}
