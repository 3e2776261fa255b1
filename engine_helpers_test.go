package goPortal

import (
	"context"
	"sync"
	"testing"

	"github.com/MrEthical07/goPortal/catalog"
	"github.com/MrEthical07/goPortal/provider"
	"github.com/MrEthical07/goPortal/upstream"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.Provider.ClientID = "client-1"
	cfg.Provider.ClientSecret = "client-secret"
	cfg.Provider.RedirectURL = "http://localhost:3000/callback"
	cfg.Cookie.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Security.MaxCallbackFailures = 3
	return cfg
}

// fakeProvider records every call so tests can assert ordering and absence
// of upstream traffic.
type fakeProvider struct {
	mu    sync.Mutex
	calls []string

	exchangeErr    error
	profileErr     error
	membershipsErr error
	user           provider.User
	guilds         []provider.Guild
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		user: provider.User{ID: "80351110224678912", Username: "nelly", Discriminator: "1337", Avatar: "8342729096ea3675442027381ff50dfe"},
		guilds: []provider.Guild{
			{ID: "g-2", Name: "Zeta"},
			{ID: "g-1", Name: "Alpha"},
		},
	}
}

func (p *fakeProvider) record(call string) {
	p.mu.Lock()
	p.calls = append(p.calls, call)
	p.mu.Unlock()
}

func (p *fakeProvider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *fakeProvider) AuthCodeURL() string {
	return "https://provider.test/oauth2/authorize?client_id=client-1&response_type=code"
}

func (p *fakeProvider) ExchangeCode(_ context.Context, code string) (*provider.Token, error) {
	p.record("exchange")
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	return &provider.Token{AccessToken: "access-" + code, TokenType: "Bearer"}, nil
}

func (p *fakeProvider) FetchProfile(context.Context, string) (*provider.User, error) {
	p.record("profile")
	if p.profileErr != nil {
		return nil, p.profileErr
	}
	u := p.user
	return &u, nil
}

func (p *fakeProvider) FetchMemberships(context.Context, string) ([]provider.Guild, error) {
	p.record("memberships")
	if p.membershipsErr != nil {
		return nil, p.membershipsErr
	}
	return append([]provider.Guild{}, p.guilds...), nil
}

type fakeGateway struct {
	products    []catalog.Product
	prices      []catalog.Price
	listErr     error
	checkoutErr error
	checkouts   []catalog.CheckoutRequest
	mu          sync.Mutex
}

func (g *fakeGateway) ListProducts(context.Context, int64) ([]catalog.Product, error) {
	if g.listErr != nil {
		return nil, g.listErr
	}
	return g.products, nil
}

func (g *fakeGateway) ListPrices(context.Context, int64) ([]catalog.Price, error) {
	return g.prices, nil
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, req catalog.CheckoutRequest) (string, error) {
	g.mu.Lock()
	g.checkouts = append(g.checkouts, req)
	g.mu.Unlock()
	if g.checkoutErr != nil {
		return "", g.checkoutErr
	}
	return "https://checkout.test/c/" + req.PriceID, nil
}

func errInvalidGrant() error {
	return upstream.New("exchange_code", 400, []byte(`{"error":"invalid_grant"}`), nil)
}

type testEngineOptions struct {
	cfg      *Config
	provider *fakeProvider
	gateway  *fakeGateway
	sink     AuditSink
}

func buildTestEngine(t *testing.T, opts testEngineOptions) (*Engine, *miniredis.Miniredis) {
	t.Helper()

	cfg := testConfig()
	if opts.cfg != nil {
		cfg = *opts.cfg
	}
	if opts.provider == nil {
		opts.provider = newFakeProvider()
	}

	mr, rdb := newTestRedis(t)
	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithProviderClient(opts.provider)
	if opts.gateway != nil {
		b = b.WithCatalogGateway(opts.gateway)
	}
	if opts.sink != nil {
		b = b.WithAuditSink(opts.sink)
	}

	engine, err := b.Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return engine, mr
}
