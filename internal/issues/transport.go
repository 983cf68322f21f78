// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package issues

import (
	"net/http"

	"github.com/die-net/lrucache"
	"github.com/m4ns0ur/httpcache"
	"golang.org/x/time/rate"

	"github.com/mattermost/mattermost-issuesync/metrics"
)

const defaultCacheSizeBytes = 32 << 20

// RateLimitTransport will provide a layer based on http.RounTripper interface
// that provided rate limiting capability
type RateLimitTransport struct {
	limiter *rate.Limiter
	base    http.RoundTripper
}

func (t *RateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}

// NewRateLimitTransport will return a new transport that provides rate limiting capability
// based on the provided limit and burst tokens.
// It also needs the base RountTripper that will be called in case the rate limit is not needed
func NewRateLimitTransport(limit rate.Limit, tokens int, base http.RoundTripper) *RateLimitTransport {
	limiter := rate.NewLimiter(limit, tokens)
	return &RateLimitTransport{limiter, base}
}

type TransportConfig struct {
	// RequestsPerSecond limits the outgoing calls. Zero disables the limit.
	RequestsPerSecond float64
	Burst             int
	// CacheSizeBytes bounds the in-memory HTTP cache. Negative disables it.
	CacheSizeBytes int64
}

// NewTransport chains the round trippers used for GitHub API calls: rate
// limiting first, then metrics, then a conditional-request cache on top of
// base. Authentication is layered on top by the caller.
func NewTransport(config TransportConfig, provider metrics.Provider, base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}

	rt := base
	if config.CacheSizeBytes >= 0 {
		size := config.CacheSizeBytes
		if size == 0 {
			size = defaultCacheSizeBytes
		}
		cached := httpcache.NewTransport(lrucache.New(size, 0))
		cached.Transport = base
		cached.MarkCachedResponses = true
		rt = cached
	}

	if provider != nil {
		rt = metrics.NewTransport(rt, provider)
	}

	if config.RequestsPerSecond > 0 {
		burst := config.Burst
		if burst <= 0 {
			burst = 1
		}
		rt = NewRateLimitTransport(rate.Limit(config.RequestsPerSecond), burst, rt)
	}
	return rt
}
