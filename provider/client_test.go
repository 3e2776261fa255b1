package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/MrEthical07/goPortal/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	server *httptest.Server
	calls  atomic.Int32

	tokenStatus   int
	tokenBody     string
	profileStatus int
	profileBody   string
	guildsStatus  int
	guildsBody    string

	mu        sync.Mutex
	lastForm  url.Values
	lastAuthz string
}

func (f *fakeProvider) form() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastForm
}

func (f *fakeProvider) authz() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAuthz
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	f := &fakeProvider{
		tokenStatus:   http.StatusOK,
		tokenBody:     `{"access_token":"at-1","token_type":"Bearer","scope":"identify guilds","expires_in":604800}`,
		profileStatus: http.StatusOK,
		profileBody:   `{"id":"42","username":"nelly","discriminator":"1337","avatar":"abc"}`,
		guildsStatus:  http.StatusOK,
		guildsBody:    `[{"id":"g2","name":"Beta"},{"id":"g1","name":"Alpha"}]`,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		_ = r.ParseForm()
		f.mu.Lock()
		f.lastForm = r.PostForm
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.tokenStatus)
		_, _ = w.Write([]byte(f.tokenBody))
	})
	mux.HandleFunc("GET /api/users/@me", func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		f.mu.Lock()
		f.lastAuthz = r.Header.Get("Authorization")
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.profileStatus)
		_, _ = w.Write([]byte(f.profileBody))
	})
	mux.HandleFunc("GET /api/users/@me/guilds", func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		f.mu.Lock()
		f.lastAuthz = r.Header.Get("Authorization")
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.guildsStatus)
		_, _ = w.Write([]byte(f.guildsBody))
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeProvider) client(t *testing.T) *Client {
	t.Helper()
	c, err := New(Config{
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		RedirectURL:  "http://localhost:3000/callback",
		Scope:        "identify guilds",
		AuthURL:      f.server.URL + "/oauth2/authorize",
		TokenURL:     f.server.URL + "/oauth2/token",
		APIBaseURL:   f.server.URL + "/api/",
		HTTPClient:   f.server.Client(),
	})
	require.NoError(t, err)
	return c
}

func TestNewRequiresCredentialsAndEndpoints(t *testing.T) {
	_, err := New(Config{AuthURL: "x", TokenURL: "y", APIBaseURL: "z"})
	require.Error(t, err)

	_, err = New(Config{ClientID: "a", ClientSecret: "b"})
	require.Error(t, err)
}

func TestAuthCodeURLCarriesFixedScopeAndRedirect(t *testing.T) {
	f := newFakeProvider(t)
	raw := f.client(t).AuthCodeURL()

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "/oauth2/authorize", u.Path)
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "client-1", q.Get("client_id"))
	assert.Equal(t, "identify guilds", q.Get("scope"))
	assert.Equal(t, "http://localhost:3000/callback", q.Get("redirect_uri"))
	assert.Equal(t, 0, int(f.calls.Load()))
}

func TestExchangeCodeSendsCredentialsInBody(t *testing.T) {
	f := newFakeProvider(t)
	tok, err := f.client(t).ExchangeCode(context.Background(), "code-1")
	require.NoError(t, err)

	assert.Equal(t, "at-1", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.Equal(t, "identify guilds", tok.Scope)
	assert.Equal(t, "authorization_code", f.form().Get("grant_type"))
	assert.Equal(t, "code-1", f.form().Get("code"))
	assert.Equal(t, "client-1", f.form().Get("client_id"))
	assert.Equal(t, "secret-1", f.form().Get("client_secret"))
	assert.Equal(t, "http://localhost:3000/callback", f.form().Get("redirect_uri"))
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestExchangeCodeFailureCarriesPayload(t *testing.T) {
	f := newFakeProvider(t)
	f.tokenStatus = http.StatusBadRequest
	f.tokenBody = `{"error":"invalid_grant","error_description":"Invalid \"code\" in request."}`

	_, err := f.client(t).ExchangeCode(context.Background(), "bad")
	require.Error(t, err)
	assert.True(t, errors.Is(err, upstream.ErrUpstream))

	var ue *upstream.Error
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, http.StatusBadRequest, ue.Status)
	assert.Contains(t, ue.Payload, "invalid_grant")
	assert.Equal(t, int32(1), f.calls.Load(), "no retries")
}

func TestExchangeCodeMissingAccessToken(t *testing.T) {
	f := newFakeProvider(t)
	f.tokenBody = `{"token_type":"Bearer","message":"rate limited upstream"}`

	_, err := f.client(t).ExchangeCode(context.Background(), "code-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, upstream.ErrUpstream))
	assert.Contains(t, upstream.PayloadOf(err), "rate limited upstream")

	var ue *upstream.Error
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, http.StatusOK, ue.Status)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestFetchProfileUsesBearerToken(t *testing.T) {
	f := newFakeProvider(t)
	user, err := f.client(t).FetchProfile(context.Background(), "at-1")
	require.NoError(t, err)

	assert.Equal(t, "Bearer at-1", f.authz())
	assert.Equal(t, User{ID: "42", Username: "nelly", Discriminator: "1337", Avatar: "abc"}, *user)
}

func TestFetchProfileRejectsMissingID(t *testing.T) {
	f := newFakeProvider(t)
	f.profileBody = `{"username":"ghost"}`

	_, err := f.client(t).FetchProfile(context.Background(), "at-1")
	require.Error(t, err)
	assert.Contains(t, upstream.PayloadOf(err), "ghost")
}

func TestFetchProfileNonSuccessStatus(t *testing.T) {
	f := newFakeProvider(t)
	f.profileStatus = http.StatusUnauthorized
	f.profileBody = `{"message":"401: Unauthorized","code":0}`

	_, err := f.client(t).FetchProfile(context.Background(), "at-1")
	require.Error(t, err)

	var ue *upstream.Error
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, http.StatusUnauthorized, ue.Status)
	assert.Equal(t, opProfile, ue.Op)
}

func TestFetchMembershipsPreservesOrder(t *testing.T) {
	f := newFakeProvider(t)
	guilds, err := f.client(t).FetchMemberships(context.Background(), "at-1")
	require.NoError(t, err)

	require.Len(t, guilds, 2)
	assert.Equal(t, "g2", guilds[0].ID)
	assert.Equal(t, "Alpha", guilds[1].Name)
}

func TestFetchMembershipsEmptyListIsNotNil(t *testing.T) {
	f := newFakeProvider(t)
	f.guildsBody = `[]`

	guilds, err := f.client(t).FetchMemberships(context.Background(), "at-1")
	require.NoError(t, err)
	assert.NotNil(t, guilds)
	assert.Empty(t, guilds)
}

func TestFetchMembershipsMalformedBody(t *testing.T) {
	f := newFakeProvider(t)
	f.guildsBody = `{"not":"a list"}`

	_, err := f.client(t).FetchMemberships(context.Background(), "at-1")
	require.Error(t, err)

	var syntaxOrType *json.UnmarshalTypeError
	assert.True(t, errors.As(err, &syntaxOrType))
}

func TestEmptyAccessTokenNeverHitsNetwork(t *testing.T) {
	f := newFakeProvider(t)
	_, err := f.client(t).FetchMemberships(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, int32(0), f.calls.Load())
}
