package flows

import (
	"context"
	"strconv"
	"time"

	"github.com/MrEthical07/goPortal/provider"
	"github.com/MrEthical07/goPortal/session"
	"github.com/MrEthical07/goPortal/upstream"
)

// AuthorizeState is a step of the callback state machine.
type AuthorizeState uint8

const (
	StateAwaitingCode AuthorizeState = iota
	StateExchangingToken
	StateFetchingProfile
	StateFetchingMemberships
	StateSessionEstablished
	StateFailed
)

func (s AuthorizeState) String() string {
	switch s {
	case StateAwaitingCode:
		return "awaiting_code"
	case StateExchangingToken:
		return "exchanging_token"
	case StateFetchingProfile:
		return "fetching_profile"
	case StateFetchingMemberships:
		return "fetching_memberships"
	case StateSessionEstablished:
		return "session_established"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Failure reasons reported by RunAuthorize. The host maps them onto its own
// reason type.
const (
	ReasonMissingCode           = "missing_code"
	ReasonTokenExchangeFailed   = "token_exchange_failed"
	ReasonProfileFetchFailed    = "profile_fetch_failed"
	ReasonMembershipFetchFailed = "membership_fetch_failed"
	ReasonSessionStoreFailed    = "session_store_failed"
)

// AuthorizeFailure is returned when a run ends in StateFailed.
type AuthorizeFailure struct {
	Reason string
	// State is the step that was running when the run failed.
	State   AuthorizeState
	Payload string
	Err     error
}

func (f *AuthorizeFailure) Error() string {
	if f.Err == nil {
		return f.Reason
	}
	return f.Reason + ": " + f.Err.Error()
}

func (f *AuthorizeFailure) Unwrap() error {
	return f.Err
}

// AuthorizeResult is the flow-local success shape.
type AuthorizeResult struct {
	SessionID string
	Record    *session.Record
	// Trace lists every state the run entered, in order.
	Trace []AuthorizeState
}

// AuthorizeMetrics carries metric IDs needed by the authorize flow.
type AuthorizeMetrics struct {
	Success               int
	MissingCode           int
	TokenExchangeFailed   int
	ProfileFetchFailed    int
	MembershipFetchFailed int
	SessionStoreFailed    int
	RateLimited           int
	SessionCreated        int
}

// AuthorizeEvents carries audit event names used by the authorize flow.
type AuthorizeEvents struct {
	Success     string
	Failure     string
	RateLimited string
}

// AuthorizeErrors carries host-level sentinel errors used by the authorize flow.
type AuthorizeErrors struct {
	EngineNotReady error
	RateLimited    error
}

// AuthorizeDeps captures authorize flow dependencies.
type AuthorizeDeps struct {
	// MaxMemberships truncates the stored membership list. Zero keeps all.
	MaxMemberships int

	ClientIPFromContext func(context.Context) string
	Now                 func() time.Time

	CheckCallbackRate     func(context.Context, string) error
	IncrementCallbackRate func(context.Context, string) error
	ResetCallbackRate     func(context.Context, string) error

	ExchangeCode     func(context.Context, string) (*provider.Token, error)
	FetchProfile     func(context.Context, string) (*provider.User, error)
	FetchMemberships func(context.Context, string) ([]provider.Guild, error)
	CreateSession    func(context.Context, *session.Record) (string, error)

	MetricInc      func(int)
	ObserveLatency func(time.Duration)
	EmitAudit      func(ctx context.Context, event string, success bool, userID, sessionID string, err error, meta func() map[string]string)
	Warn           func(string, ...any)

	Metrics AuthorizeMetrics
	Events  AuthorizeEvents
	Errors  AuthorizeErrors
}

// RunAuthorize drives one callback from AwaitingCode to either
// SessionEstablished or Failed. Upstream calls run strictly in sequence and
// the session is written only after every fetch succeeded, so a failed run
// leaves the store untouched.
func RunAuthorize(ctx context.Context, code string, deps AuthorizeDeps) (*AuthorizeResult, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.ObserveLatency == nil {
		deps.ObserveLatency = func(time.Duration) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.ExchangeCode == nil ||
		deps.FetchProfile == nil ||
		deps.FetchMemberships == nil ||
		deps.CreateSession == nil {
		return nil, deps.Errors.EngineNotReady
	}

	start := deps.Now()
	defer func() { deps.ObserveLatency(deps.Now().Sub(start)) }()

	ip := deps.ClientIPFromContext(ctx)
	trace := []AuthorizeState{StateAwaitingCode}

	if ip != "" && deps.CheckCallbackRate != nil {
		if err := deps.CheckCallbackRate(ctx, ip); err != nil {
			deps.MetricInc(deps.Metrics.RateLimited)
			deps.EmitAudit(ctx, deps.Events.RateLimited, false, "", "", deps.Errors.RateLimited, nil)
			return nil, deps.Errors.RateLimited
		}
	}

	fail := func(reason string, metric int, userID string, err error) (*AuthorizeResult, error) {
		state := trace[len(trace)-1]
		failure := &AuthorizeFailure{Reason: reason, State: state, Payload: upstream.PayloadOf(err), Err: err}
		deps.MetricInc(metric)
		deps.EmitAudit(ctx, deps.Events.Failure, false, userID, "", failure, func() map[string]string {
			return map[string]string{
				"reason": reason,
				"state":  state.String(),
			}
		})
		if ip != "" && deps.IncrementCallbackRate != nil {
			if rerr := deps.IncrementCallbackRate(ctx, ip); rerr != nil {
				deps.Warn("goPortal: callback failure counter unavailable", "error", rerr)
			}
		}
		return nil, failure
	}

	if code == "" {
		return fail(ReasonMissingCode, deps.Metrics.MissingCode, "", nil)
	}

	trace = append(trace, StateExchangingToken)
	tok, err := deps.ExchangeCode(ctx, code)
	if err != nil || tok == nil || tok.AccessToken == "" {
		return fail(ReasonTokenExchangeFailed, deps.Metrics.TokenExchangeFailed, "", err)
	}

	trace = append(trace, StateFetchingProfile)
	user, err := deps.FetchProfile(ctx, tok.AccessToken)
	if err != nil || user == nil {
		return fail(ReasonProfileFetchFailed, deps.Metrics.ProfileFetchFailed, "", err)
	}

	trace = append(trace, StateFetchingMemberships)
	guilds, err := deps.FetchMemberships(ctx, tok.AccessToken)
	if err != nil {
		return fail(ReasonMembershipFetchFailed, deps.Metrics.MembershipFetchFailed, user.ID, err)
	}

	rec := newRecord(user, guilds, deps.MaxMemberships)
	sid, err := deps.CreateSession(ctx, rec)
	if err != nil {
		return fail(ReasonSessionStoreFailed, deps.Metrics.SessionStoreFailed, user.ID, err)
	}
	trace = append(trace, StateSessionEstablished)

	if ip != "" && deps.ResetCallbackRate != nil {
		if err := deps.ResetCallbackRate(ctx, ip); err != nil {
			deps.Warn("goPortal: callback failure counter reset failed", "error", err)
		}
	}

	deps.MetricInc(deps.Metrics.SessionCreated)
	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, deps.Events.Success, true, user.ID, sid, nil, func() map[string]string {
		return map[string]string{
			"memberships": strconv.Itoa(len(rec.Memberships)),
		}
	})

	return &AuthorizeResult{SessionID: sid, Record: rec, Trace: trace}, nil
}

func newRecord(user *provider.User, guilds []provider.Guild, max int) *session.Record {
	if max > 0 && len(guilds) > max {
		guilds = guilds[:max]
	}
	memberships := make([]session.Membership, 0, len(guilds))
	for _, g := range guilds {
		memberships = append(memberships, session.Membership{ID: g.ID, Name: g.Name})
	}
	return &session.Record{
		Profile: session.Profile{
			ID:            user.ID,
			Username:      user.Username,
			GlobalName:    user.GlobalName,
			Discriminator: user.Discriminator,
			Avatar:        user.Avatar,
		},
		Memberships: memberships,
	}
}
