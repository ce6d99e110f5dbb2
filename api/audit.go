package api

import (
	"log/slog"
	"net/http"
	"time"
)

// AuditEvent identifies the type of security-relevant action being logged.
type AuditEvent string

const (
	AuditFactorEnabled  AuditEvent = "factor_enabled"
	AuditFactorDisabled AuditEvent = "factor_disabled"
	AuditLoginSuccess   AuditEvent = "login_success"
	AuditLoginFailure   AuditEvent = "login_failure"
	AuditLoginLockout   AuditEvent = "login_lockout"
	AuditLogout         AuditEvent = "logout"
	AuditPinChanged     AuditEvent = "pin_changed"
	AuditPreferenceSet  AuditEvent = "preference_set"
	AuditSessionLogin   AuditEvent = "session_login"
	AuditSessionLogout  AuditEvent = "session_logout"
)

// auditLogger wraps slog.Logger for structured security audit logging.
type auditLogger struct {
	logger *slog.Logger
}

func newAuditLogger(logger *slog.Logger) *auditLogger {
	return &auditLogger{
		logger: logger.With("component", "audit"),
	}
}

// log writes a structured audit log entry. Secrets never appear here;
// attrs carry only stable identifiers such as factor names and pref keys.
func (al *auditLogger) log(event AuditEvent, r *http.Request, attrs ...slog.Attr) {
	baseAttrs := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	baseAttrs = append(baseAttrs, attrs...)
	al.logger.LogAttrs(r.Context(), slog.LevelInfo, "audit", baseAttrs...)
}
