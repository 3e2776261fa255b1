package goPortal

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goPortal/internal/flows"
)

// AuditErrorCode is the stable error label written into [AuditEvent.Error].
// Raw error strings never reach audit sinks.
type AuditErrorCode string

const (
	auditErrMissingCode          AuditErrorCode = "missing_code"
	auditErrTokenExchange        AuditErrorCode = "token_exchange_failed"
	auditErrProfileFetch         AuditErrorCode = "profile_fetch_failed"
	auditErrMembershipFetch      AuditErrorCode = "membership_fetch_failed"
	auditErrSessionCreation      AuditErrorCode = "session_creation_failed"
	auditErrSessionInvalidation  AuditErrorCode = "session_invalidation_failed"
	auditErrRateLimited          AuditErrorCode = "rate_limited"
	auditErrInvalidPrice         AuditErrorCode = "invalid_price"
	auditErrUpstream             AuditErrorCode = "upstream_error"
	auditErrInternal             AuditErrorCode = "internal_error"
	auditErrSessionStoreDegraded AuditErrorCode = "backend_unavailable"
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
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		RequestID: RequestIDFromContext(ctx),
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

// auditErrorCode checks flow reasons before ErrUpstream so a failed exchange
// is labelled by step rather than by transport.
func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}
	var failure *flows.AuthorizeFailure
	if errors.As(err, &failure) {
		err = &FlowError{Reason: FailureReason(failure.Reason), Err: failure.Err}
	}

	switch {
	case errors.Is(err, ErrMissingCode):
		return auditErrMissingCode
	case errors.Is(err, ErrTokenExchangeFailed):
		return auditErrTokenExchange
	case errors.Is(err, ErrProfileFetchFailed):
		return auditErrProfileFetch
	case errors.Is(err, ErrMembershipFetchFailed):
		return auditErrMembershipFetch
	case errors.Is(err, ErrSessionCreationFailed):
		return auditErrSessionCreation
	case errors.Is(err, ErrSessionInvalidationFailed):
		return auditErrSessionInvalidation
	case errors.Is(err, ErrCallbackRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrInvalidPrice):
		return auditErrInvalidPrice
	case errors.Is(err, ErrSessionStoreUnavailable):
		return auditErrSessionStoreDegraded
	case errors.Is(err, ErrUpstream):
		return auditErrUpstream
	default:
		return auditErrInternal
	}
}
