// Package observability wires the shared logger and Prometheus metrics.
package observability

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the shared structured logger. Production environments
// get JSON output for log shipping; everything else gets human-readable
// text.
func NewLogger(env, level string) *logrus.Logger {
	log := logrus.New()
	if strings.EqualFold(env, "production") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}
