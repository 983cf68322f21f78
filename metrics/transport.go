// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Transport records the duration and the cache outcome of every GitHub
// request going through it.
type Transport struct {
	Base    http.RoundTripper
	metrics Provider
}

func NewTransport(base http.RoundTripper, metrics Provider) *Transport {
	return &Transport{base, metrics}
}

func (t *Transport) RoundTrip(req *http.Request) (resp *http.Response, err error) {
	start := time.Now()
	resp, err = t.Base.RoundTrip(req)
	elapsed := float64(time.Since(start)) / float64(time.Second)
	// rate limit error
	if resp == nil && err != nil {
		return resp, err
	}
	handler := routeOf(req.URL.Path)
	statusCode := strconv.Itoa(resp.StatusCode)
	t.metrics.ObserveGithubRequestDuration(handler, req.Method, statusCode, elapsed)

	if resp.Header.Get("X-From-Cache") == "1" {
		t.metrics.IncreaseGithubCacheHits(req.Method, handler)
	} else {
		t.metrics.IncreaseGithubCacheMisses(req.Method, handler)
	}

	return resp, err
}

func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}

// routeOf replaces the variable segments of a GitHub API path so that the
// handler label stays bounded: /repos/o/r/issues/12 becomes
// /repos/{owner}/{repo}/issues/{number}.
func routeOf(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		switch {
		case i == 1 && segments[0] == "repos":
			segments[i] = "{owner}"
		case i == 2 && segments[0] == "repos":
			segments[i] = "{repo}"
		case isNumber(s):
			segments[i] = "{number}"
		}
	}
	return "/" + strings.Join(segments, "/")
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
