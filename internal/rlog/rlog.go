// Package rlog is the runtime's single logrus entry point. Every package
// asks it for a component-scoped *logrus.Entry rather than constructing
// its own logger, so level and formatting stay consistent across the CLI.
package rlog

import (
	"os"

	"github.com/sirupsen/logrus"
)

var base = newBase()

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	l.SetLevel(logrus.InfoLevel)
	if level := os.Getenv("RUSTAINER_LOG_LEVEL"); level != "" {
		if parsed, err := logrus.ParseLevel(level); err == nil {
			l.SetLevel(parsed)
		}
	}
	return l
}

// For returns a logger scoped to the given component, e.g. "registry",
// "netplumb", "launcher".
func For(component string) *logrus.Entry {
	return base.WithField("component", component)
}
