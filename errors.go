package goPortal

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/goPortal/catalog"
	"github.com/MrEthical07/goPortal/upstream"
)

var (
	// ErrMissingCode is returned when the callback carries no authorization code.
	ErrMissingCode = errors.New("missing authorization code")
	// ErrTokenExchangeFailed is returned when the provider rejects the code exchange.
	ErrTokenExchangeFailed = errors.New("token exchange failed")
	// ErrProfileFetchFailed is returned when the profile request fails.
	ErrProfileFetchFailed = errors.New("profile fetch failed")
	// ErrMembershipFetchFailed is returned when the membership request fails.
	ErrMembershipFetchFailed = errors.New("membership fetch failed")
	// ErrSessionCreationFailed is returned when the session store rejects a new record.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrSessionNotFound is returned for unknown, expired or tampered sessions.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionInvalidationFailed is returned when logout cannot reach the store.
	ErrSessionInvalidationFailed = errors.New("session invalidation failed")
	// ErrCallbackRateLimited is returned when a client exceeded its failed-callback budget.
	ErrCallbackRateLimited = errors.New("callback rate limited")
	// ErrCatalogDisabled is returned by catalog operations when no payment provider is configured.
	ErrCatalogDisabled = errors.New("catalog disabled")
	// ErrInvalidPrice is returned when a checkout request carries no price id.
	ErrInvalidPrice = catalog.ErrInvalidPrice
	// ErrSessionStoreUnavailable is returned when the session store cannot be reached.
	ErrSessionStoreUnavailable = errors.New("session store unavailable")
	// ErrUpstream marks failures reported by an external API.
	ErrUpstream = upstream.ErrUpstream
	// ErrEngineNotReady is returned when a nil or partially built Engine is used.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// FailureReason names the terminal state of a failed authorization run.
type FailureReason string

const (
	ReasonMissingCode           FailureReason = "missing_code"
	ReasonTokenExchangeFailed   FailureReason = "token_exchange_failed"
	ReasonProfileFetchFailed    FailureReason = "profile_fetch_failed"
	ReasonMembershipFetchFailed FailureReason = "membership_fetch_failed"
	ReasonSessionStoreFailed    FailureReason = "session_store_failed"
)

// FlowError describes why an authorization run ended in the failed state.
//
// Payload holds the raw upstream response body when one was available. It is
// diagnostic material for server-side logs and must not be echoed to clients
// in production.
type FlowError struct {
	Reason  FailureReason
	Payload string
	Err     error
}

func (e *FlowError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err == nil {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

// Unwrap exposes both the reason sentinel and the underlying cause.
func (e *FlowError) Unwrap() []error {
	if e == nil {
		return nil
	}
	out := make([]error, 0, 2)
	if s := reasonSentinel(e.Reason); s != nil {
		out = append(out, s)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

func reasonSentinel(reason FailureReason) error {
	switch reason {
	case ReasonMissingCode:
		return ErrMissingCode
	case ReasonTokenExchangeFailed:
		return ErrTokenExchangeFailed
	case ReasonProfileFetchFailed:
		return ErrProfileFetchFailed
	case ReasonMembershipFetchFailed:
		return ErrMembershipFetchFailed
	case ReasonSessionStoreFailed:
		return ErrSessionCreationFailed
	default:
		return nil
	}
}
