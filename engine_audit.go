package portfolioAuth

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventAuthenticateSuccess     = "authenticate_success"
	auditEventAuthenticateFailure     = "authenticate_failure"
	auditEventAuthenticateRateLimited = "authenticate_rate_limited"
	auditEventRenewSuccess            = "renew_success"
	auditEventRenewInvalid            = "renew_invalid"
	auditEventSessionEvicted          = "session_evicted"
	auditEventFingerprintMismatch     = "fingerprint_mismatch"
	auditEventSessionBanned           = "session_banned"
	auditEventLogoutSession           = "logout_session"
	auditEventLogoutAll               = "logout_all"
	auditEventAccessDenied            = "access_denied"
)

// AuditErrorCode is the stable, client-safe error label written to
// AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrSubjectNotFound    AuditErrorCode = "subject_not_found"
	auditErrAccessDenied       AuditErrorCode = "access_denied"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

type auditRecord struct {
	subject  string
	tokenID  string
	deviceID string
	err      error
	metadata func() map[string]string
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, rec auditRecord) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Subject:   rec.subject,
		TokenID:   rec.tokenID,
		DeviceID:  rec.deviceID,
		Success:   success,
	}
	if fp, ok := FingerprintFromContext(ctx); ok {
		event.IP = fp.IP
	}
	if rec.metadata != nil {
		event.Metadata = rec.metadata()
	}
	if code := auditErrorCode(rec.err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrAuthFailed):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrLoginRateLimited), errors.Is(err, ErrRenewRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrInvalidToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrSubjectNotFound), errors.Is(err, ErrUserNotFound):
		return auditErrSubjectNotFound
	case errors.Is(err, ErrAccessDenied):
		return auditErrAccessDenied
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
