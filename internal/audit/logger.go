// Package audit records security-relevant events: authentications, token
// rotations, credential changes. Recording is best-effort and never fails
// the operation being audited.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"membergate/api/internal/audit/domain"
	auditrepo "membergate/api/internal/audit/repository"
)

// Actions recorded by the auth flows.
const (
	ActionLoginSuccess    = "login_success"
	ActionLoginFailure    = "login_failure"
	ActionRegister        = "register"
	ActionTokenRefresh    = "token_refresh"
	ActionTokenReplay     = "token_replay"
	ActionLogout          = "logout"
	ActionLogoutAll       = "logout_all"
	ActionMagicLinkSent   = "magic_link_sent"
	ActionMagicLinkLogin  = "magic_link_login"
	ActionResetRequested  = "password_reset_requested"
	ActionResetCompleted  = "password_reset_completed"
	ActionPasswordChanged = "password_changed"
)

// ResourceAuth is the resource name for authentication events.
const ResourceAuth = "auth"

// AuditLogger writes a single audit event with explicit action/resource.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, userID, action, resource, ip, metadata string)
}

// Logger implements AuditLogger on top of the audit repository.
type Logger struct {
	repo auditrepo.Repository
	log  *logrus.Logger
}

// NewLogger returns an AuditLogger that persists to repo.
func NewLogger(repo auditrepo.Repository, log *logrus.Logger) *Logger {
	return &Logger{repo: repo, log: log}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and
// not returned.
func (l *Logger) LogEvent(ctx context.Context, userID, action, resource, ip, metadata string) {
	if l.repo == nil {
		return
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		l.log.WithError(err).WithFields(logrus.Fields{
			"action":   action,
			"resource": resource,
		}).Error("failed to write audit log")
	}
}

// Nop returns an AuditLogger that records nothing. Used in tests.
func Nop() AuditLogger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) LogEvent(context.Context, string, string, string, string, string) {}
