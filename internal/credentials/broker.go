// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

// Package credentials mints and refreshes GitHub App installation tokens.
package credentials

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/go-github/v39/github"
	"github.com/mattermost/mattermost-server/v6/shared/mlog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultSecretName      = "GitHubPrivateKey"
	DefaultRefreshWindow   = 10 * time.Minute
	DefaultExpiryLeeway    = time.Minute
	DefaultExchangeTimeout = 30 * time.Second

	assertionLifetime = 10 * time.Minute
	refreshKey        = "installation-token"
)

// Credential is an installation access token and its local validity.
type Credential struct {
	InstallationID int64
	Token          string
	IssuedAt       time.Time
	ExpiresAt      time.Time
}

// Valid reports whether the credential can still be used at now.
func (c *Credential) Valid(now time.Time) bool {
	return c != nil && c.Token != "" && now.Before(c.ExpiresAt)
}

type Config struct {
	AppID          int64
	InstallationID int64
	SecretName     string
	// BaseURL is the API root of a GitHub Enterprise server. Empty means github.com.
	BaseURL string

	// RefreshWindow caps how long a token is used, whatever the platform says.
	RefreshWindow time.Duration
	// ExpiryLeeway is subtracted from the expiry reported by the platform.
	// A negative value disables it.
	ExpiryLeeway    time.Duration
	ExchangeTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.SecretName == "" {
		c.SecretName = DefaultSecretName
	}
	if c.RefreshWindow <= 0 {
		c.RefreshWindow = DefaultRefreshWindow
	}
	if c.ExpiryLeeway == 0 {
		c.ExpiryLeeway = DefaultExpiryLeeway
	}
	if c.ExpiryLeeway < 0 {
		c.ExpiryLeeway = 0
	}
	if c.ExchangeTimeout <= 0 {
		c.ExchangeTimeout = DefaultExchangeTimeout
	}
}

type Metrics interface {
	IncreaseTokenRefreshes(result string)
}

type noopMetrics struct{}

func (noopMetrics) IncreaseTokenRefreshes(string) {}

// Broker hands out valid installation tokens. A refresh is single-flight:
// callers that find the credential expired share one exchange and all
// observe its result.
type Broker struct {
	config    Config
	secrets   SecretStore
	transport http.RoundTripper
	metrics   Metrics
	now       func() time.Time

	mu      sync.RWMutex
	current *Credential
	group   singleflight.Group
}

// NewBroker creates a broker. transport is the base round tripper used for
// the token exchange; nil means http.DefaultTransport.
func NewBroker(config Config, secrets SecretStore, transport http.RoundTripper, metrics Metrics) *Broker {
	config.setDefaults()
	if transport == nil {
		transport = http.DefaultTransport
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Broker{
		config:    config,
		secrets:   secrets,
		transport: transport,
		metrics:   metrics,
		now:       time.Now,
	}
}

// GetValidToken returns a token that is not expired at the time of the call.
func (b *Broker) GetValidToken(ctx context.Context) (string, error) {
	cred, err := b.Credential(ctx)
	if err != nil {
		return "", err
	}
	return cred.Token, nil
}

// Credential returns the live credential, refreshing it first when needed.
func (b *Broker) Credential(ctx context.Context) (*Credential, error) {
	if cred := b.load(); cred.Valid(b.now()) {
		return cred, nil
	}

	ch := b.group.DoChan(refreshKey, func() (interface{}, error) {
		// A flight that finished just before this one started may already
		// have stored a fresh credential.
		if cred := b.load(); cred.Valid(b.now()) {
			return cred, nil
		}

		exchangeCtx, cancel := context.WithTimeout(context.Background(), b.config.ExchangeTimeout)
		defer cancel()

		cred, err := b.exchange(exchangeCtx)
		if err != nil {
			b.metrics.IncreaseTokenRefreshes("error")
			mlog.Warn("Failed to refresh installation token", mlog.Int64("installation_id", b.config.InstallationID), mlog.Err(err))
			return nil, err
		}

		b.mu.Lock()
		b.current = cred
		b.mu.Unlock()

		b.metrics.IncreaseTokenRefreshes("success")
		mlog.Debug("Refreshed installation token",
			mlog.Int64("installation_id", cred.InstallationID),
			mlog.String("expires_at", cred.ExpiresAt.Format(time.RFC3339)),
		)
		return cred, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		cred := res.Val.(*Credential)
		if !cred.Valid(b.now()) {
			return nil, unavailable("refreshed credential is already expired", nil)
		}
		return cred, nil
	}
}

// Token implements oauth2.TokenSource.
func (b *Broker) Token() (*oauth2.Token, error) {
	cred, err := b.Credential(context.Background())
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: cred.Token,
		TokenType:   "Bearer",
		Expiry:      cred.ExpiresAt,
	}, nil
}

// Invalidate drops the live credential if it still holds token, so the
// next caller refreshes it.
func (b *Broker) Invalidate(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current != nil && b.current.Token == token {
		b.current = nil
	}
}

// Transport returns a round tripper that authenticates every request with
// a valid token and drops the credential when the platform answers 401.
func (b *Broker) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &oauth2.Transport{
		Source: b,
		Base:   &unauthorizedTransport{broker: b, base: base},
	}
}

func (b *Broker) load() *Credential {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current
}

func (b *Broker) exchange(ctx context.Context) (*Credential, error) {
	pem, err := b.secrets.GetSecret(ctx, b.config.SecretName)
	if err != nil {
		return nil, unavailable("reading signing key", err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pem)
	if err != nil {
		return nil, unavailable("parsing signing key", err)
	}

	issuedAt := b.now()
	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		Issuer:    strconv.FormatInt(b.config.AppID, 10),
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		NotBefore: jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(assertionLifetime)),
	}).SignedString(key)
	if err != nil {
		return nil, unavailable("signing assertion", err)
	}

	client, err := b.appsClient(assertion)
	if err != nil {
		return nil, unavailable("creating apps client", err)
	}

	token, _, err := client.Apps.CreateInstallationToken(ctx, b.config.InstallationID, nil)
	if err != nil {
		return nil, exchangeError(err)
	}
	if token.GetToken() == "" {
		return nil, unavailable("exchanging assertion", errors.New("platform returned an empty token"))
	}

	expiresAt := issuedAt.Add(b.config.RefreshWindow)
	if platform := token.GetExpiresAt(); !platform.IsZero() {
		if capped := platform.Add(-b.config.ExpiryLeeway); capped.Before(expiresAt) {
			expiresAt = capped
		}
	}

	return &Credential{
		InstallationID: b.config.InstallationID,
		Token:          token.GetToken(),
		IssuedAt:       issuedAt,
		ExpiresAt:      expiresAt,
	}, nil
}

func (b *Broker) appsClient(assertion string) (*github.Client, error) {
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: assertion}),
			Base:   b.transport,
		},
	}
	if b.config.BaseURL == "" {
		return github.NewClient(httpClient), nil
	}
	return github.NewEnterpriseClient(b.config.BaseURL, b.config.BaseURL, httpClient)
}

func exchangeError(err error) error {
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return unavailable("exchanging assertion", err)
	}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		if ghErr.Response.StatusCode >= http.StatusInternalServerError {
			return unavailable("exchanging assertion", err)
		}
		return rejected("exchanging assertion", err)
	}
	return unavailable("exchanging assertion", err)
}

type unauthorizedTransport struct {
	broker *Broker
	base   http.RoundTripper
}

func (t *unauthorizedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err == nil && resp.StatusCode == http.StatusUnauthorized {
		token := strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
		t.broker.Invalidate(token)
	}
	return resp, err
}
