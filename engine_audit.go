package sessionguard

import (
	"context"
	"errors"
)

const (
	auditEventLoginSuccess     = "login_success"
	auditEventLoginFailure     = "login_failure"
	auditEventRefreshSuccess   = "refresh_success"
	auditEventRefreshInvalid   = "refresh_invalid"
	auditEventRefreshReused    = "refresh_reused"
	auditEventLogoutSuccess    = "logout_success"
	auditEventLogoutFailure    = "logout_failure"
	auditEventRevokedTokenUsed = "revoked_token_used"
	auditEventRateLimited      = "rate_limit_triggered"
	auditEventStoreUnavailable = "store_unavailable"
)

// AuditErrorCode is the stable, non-sensitive error classification written
// into AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountDisabled    AuditErrorCode = "account_disabled"
	auditErrTokenExpired       AuditErrorCode = "token_expired"
	auditErrTokenMalformed     AuditErrorCode = "token_malformed"
	auditErrTokenRevoked       AuditErrorCode = "token_revoked"
	auditErrRefreshRevoked     AuditErrorCode = "refresh_revoked"
	auditErrRefreshMismatch    AuditErrorCode = "refresh_mismatch"
	auditErrAlreadyRevoked     AuditErrorCode = "already_revoked"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrUnauthorized       AuditErrorCode = "unauthorized"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		RequestID: RequestIDFromContext(ctx),
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func reason(r string) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"reason": r}
	}
}

// auditErrorCode checks the most specific sentinels first; every auth
// failure also matches ErrUnauthorized.
func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrAccountDisabled):
		return auditErrAccountDisabled
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrTokenMalformed):
		return auditErrTokenMalformed
	case errors.Is(err, ErrTokenRevoked):
		return auditErrTokenRevoked
	case errors.Is(err, ErrRefreshRevoked):
		return auditErrRefreshRevoked
	case errors.Is(err, ErrRefreshMismatch):
		return auditErrRefreshMismatch
	case errors.Is(err, ErrAlreadyRevoked):
		return auditErrAlreadyRevoked
	case errors.Is(err, ErrTooManyRequests):
		return auditErrRateLimited
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrRateLimiterUnavailable),
		errors.Is(err, ErrUserProviderUnavailable):
		return auditErrUnavailable
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	default:
		return auditErrInternal
	}
}
