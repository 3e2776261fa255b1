package goPortal

import (
	"context"
	"time"

	"github.com/MrEthical07/goPortal/provider"
	"github.com/MrEthical07/goPortal/session"
)

// ProviderClient is the login provider as seen by the [Engine].
// [*provider.Client] is the production implementation.
type ProviderClient interface {
	AuthCodeURL() string
	ExchangeCode(ctx context.Context, code string) (*provider.Token, error)
	FetchProfile(ctx context.Context, accessToken string) (*provider.User, error)
	FetchMemberships(ctx context.Context, accessToken string) ([]provider.Guild, error)
}

// AuthorizeResult is returned by [Engine.Authorize] when a session was
// established.
type AuthorizeResult struct {
	SessionID string
	Session   *session.Record
}

// HealthStatus is returned by [Engine.Health].
type HealthStatus struct {
	RedisAvailable bool
	RedisLatency   time.Duration
}
