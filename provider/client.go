package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/MrEthical07/goPortal/upstream"
	"golang.org/x/oauth2"
)

const maxResponseBytes = 1 << 20

const (
	opExchange    = "exchange_code"
	opProfile     = "fetch_profile"
	opMemberships = "fetch_memberships"
)

// Config holds the fixed parameters of the provider's API contract.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scope        string
	AuthURL      string
	TokenURL     string
	APIBaseURL   string
	// HTTPClient is used for every outbound call. nil means http.DefaultClient.
	HTTPClient *http.Client
}

// Token is the result of a successful code exchange. It is never persisted.
type Token struct {
	AccessToken string
	TokenType   string
	Scope       string
}

// User is the subset of the provider's user object the portal keeps.
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	GlobalName    string `json:"global_name"`
	Discriminator string `json:"discriminator"`
	Avatar        string `json:"avatar"`
}

// Guild is one entry of the user's membership list.
type Guild struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Owner bool   `json:"owner"`
}

// Client performs the three outbound calls of the login flow. Each method
// issues exactly one HTTP request and never retries.
type Client struct {
	oauth      *oauth2.Config
	apiBaseURL string
	httpClient *http.Client
}

// New validates cfg and builds a Client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, errors.New("provider: client credentials are required")
	}
	if cfg.TokenURL == "" || cfg.AuthURL == "" || cfg.APIBaseURL == "" {
		return nil, errors.New("provider: endpoints are required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       strings.Fields(cfg.Scope),
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		apiBaseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		httpClient: httpClient,
	}, nil
}

// AuthCodeURL returns the provider authorization URL the browser is sent to.
func (c *Client) AuthCodeURL() string {
	return c.oauth.AuthCodeURL("")
}

// ExchangeCode trades an authorization code for an access token. Any failure,
// including a 2xx response the token endpoint left incomplete, carries the raw
// token response body.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	rec := &responseRecorder{base: c.httpClient.Transport}
	hc := &http.Client{
		Transport:     rec,
		CheckRedirect: c.httpClient.CheckRedirect,
		Jar:           c.httpClient.Jar,
		Timeout:       c.httpClient.Timeout,
	}

	tok, err := c.oauth.Exchange(context.WithValue(ctx, oauth2.HTTPClient, hc), code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			status := rec.status
			if re.Response != nil {
				status = re.Response.StatusCode
			}
			return nil, upstream.New(opExchange, status, re.Body, err)
		}
		return nil, upstream.New(opExchange, rec.status, rec.body, err)
	}
	if tok == nil || tok.AccessToken == "" {
		return nil, upstream.New(opExchange, rec.status, rec.body, errors.New("response missing access_token"))
	}

	scope, _ := tok.Extra("scope").(string)
	return &Token{
		AccessToken: tok.AccessToken,
		TokenType:   tok.Type(),
		Scope:       scope,
	}, nil
}

// FetchProfile returns the authenticated user.
func (c *Client) FetchProfile(ctx context.Context, accessToken string) (*User, error) {
	var user User
	body, err := c.getJSON(ctx, opProfile, accessToken, "/users/@me", &user)
	if err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, upstream.New(opProfile, http.StatusOK, body, errors.New("response missing id"))
	}
	return &user, nil
}

// FetchMemberships returns the user's guilds in the order the provider sent them.
func (c *Client) FetchMemberships(ctx context.Context, accessToken string) ([]Guild, error) {
	var guilds []Guild
	body, err := c.getJSON(ctx, opMemberships, accessToken, "/users/@me/guilds", &guilds)
	if err != nil {
		return nil, err
	}
	for i, g := range guilds {
		if g.ID == "" {
			return nil, upstream.New(opMemberships, http.StatusOK, body, fmt.Errorf("entry %d missing id", i))
		}
	}
	if guilds == nil {
		guilds = []Guild{}
	}
	return guilds, nil
}

func (c *Client) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func (c *Client) getJSON(ctx context.Context, op, accessToken, path string, out any) ([]byte, error) {
	if accessToken == "" {
		return nil, upstream.New(op, 0, nil, errors.New("empty access token"))
	}

	ctx = c.withHTTPClient(ctx)
	authed := c.oauth.Client(ctx, &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBaseURL+path, nil)
	if err != nil {
		return nil, upstream.New(op, 0, nil, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := authed.Do(req)
	if err != nil {
		return nil, upstream.New(op, 0, nil, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, upstream.New(op, resp.StatusCode, body, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, upstream.New(op, resp.StatusCode, body, nil)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return nil, upstream.New(op, resp.StatusCode, body, err)
	}
	return body, nil
}

// responseRecorder keeps a copy of the last response body it forwarded.
// x/oauth2 reports some malformed token responses without the body.
type responseRecorder struct {
	base   http.RoundTripper
	status int
	body   []byte
}

func (r *responseRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	base := r.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}
	r.status = resp.StatusCode
	r.body = body
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}
