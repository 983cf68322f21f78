// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package issues

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v39/github"

	"github.com/mattermost/mattermost-issuesync/internal/credentials"
	"github.com/mattermost/mattermost-issuesync/internal/retry"
)

var (
	ErrFetchFailed = errors.New("fetch failed")
	ErrNotFound    = errors.New("not found")
)

type ResourceKind string

const (
	ResourceIssues   ResourceKind = "issues"
	ResourceComments ResourceKind = "comments"
	ResourceLabels   ResourceKind = "labels"
)

// FetchError reports a collection that could not be retrieved completely.
// No partial result is ever returned alongside it.
type FetchError struct {
	Resource ResourceKind
	Page     int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("fetch failed: %s page %d: %v", e.Resource, e.Page, e.Err)
	}
	return fmt.Sprintf("fetch failed: %s: %v", e.Resource, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetchFailed }

// ValidationError is returned for malformed input before any remote call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// classify decides which GitHub failures are retried. Credential errors
// never are: the broker already single-flighted its own refresh.
func classify(err error) retry.Decision {
	if credentials.IsCredentialError(err) {
		return retry.Decision{}
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return retry.Decision{Retry: true, After: time.Until(rateErr.Rate.Reset.Time)}
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return retry.Decision{Retry: true, After: abuseErr.GetRetryAfter()}
	}
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return retry.Decision{Retry: retry.TransientStatus(ghErr.Response.StatusCode)}
	}
	return retry.Transient(err)
}

func isNotFound(err error) bool {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		code := ghErr.Response.StatusCode
		return code == http.StatusNotFound || code == http.StatusGone
	}
	return false
}

// describe turns a creation failure into the reason reported to callers,
// keeping the field level detail GitHub sends along validation errors.
func describe(err error) string {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return "rate limit exceeded: " + rateErr.Message
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return "secondary rate limit exceeded: " + abuseErr.Message
	}

	var ghErr *github.ErrorResponse
	if !errors.As(err, &ghErr) {
		return err.Error()
	}

	details := make([]string, 0, len(ghErr.Errors))
	for _, e := range ghErr.Errors {
		switch {
		case e.Message != "":
			details = append(details, e.Message)
		case e.Field != "":
			details = append(details, e.Field+": "+e.Code)
		case e.Code != "":
			details = append(details, e.Code)
		}
	}

	msg := ghErr.Message
	if msg == "" && ghErr.Response != nil {
		msg = http.StatusText(ghErr.Response.StatusCode)
	}
	if len(details) == 0 {
		return msg
	}
	return msg + " (" + strings.Join(details, "; ") + ")"
}
