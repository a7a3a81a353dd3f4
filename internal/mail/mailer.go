// Package mail delivers auth tokens out-of-band. The real transport is an
// external service; this package ships the development implementation.
package mail

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogMailer records that a message would have been sent. It never logs the
// token itself. Used in development and tests; production deployments plug
// in a real delivery implementation.
type LogMailer struct {
	log *logrus.Logger
}

// NewLogMailer returns a mailer that only logs deliveries.
func NewLogMailer(log *logrus.Logger) *LogMailer {
	return &LogMailer{log: log}
}

// SendMagicLink logs the delivery of a magic login link.
func (m *LogMailer) SendMagicLink(_ context.Context, email, _ string) error {
	m.log.WithField("email", email).Info("magic link email queued")
	return nil
}

// SendPasswordReset logs the delivery of a password reset link.
func (m *LogMailer) SendPasswordReset(_ context.Context, email, _ string) error {
	m.log.WithField("email", email).Info("password reset email queued")
	return nil
}
