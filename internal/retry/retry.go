// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

// Package retry runs remote calls with a per-attempt timeout and bounded,
// jittered exponential backoff between transient failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"time"
)

const (
	DefaultMaxAttempts    = 4
	DefaultInitialBackoff = 500 * time.Millisecond
	DefaultMaxBackoff     = 10 * time.Second
)

type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// AttemptTimeout bounds every single attempt. Zero means the attempt
	// only inherits the caller's deadline.
	AttemptTimeout time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    DefaultMaxAttempts,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
	}
}

// Decision tells Do whether an error is worth another attempt. After, when
// set, is the minimum wait requested by the remote side.
type Decision struct {
	Retry bool
	After time.Duration
}

type Classifier func(err error) Decision

// ExhaustedError is returned when every attempt failed with a transient error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Do calls fn until it succeeds, fails with an error the classifier does not
// retry, runs out of attempts, or ctx is done. Errors seen after ctx is done
// are returned as is.
func Do(ctx context.Context, p Policy, classify Classifier, fn func(ctx context.Context) error) error {
	if classify == nil {
		classify = Transient
	}
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var wait time.Duration
	for attempt := 1; ; attempt++ {
		err := attemptOnce(ctx, p.AttemptTimeout, fn)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}

		d := classify(err)
		if !d.Retry {
			return err
		}
		if attempt >= attempts {
			return &ExhaustedError{Attempts: attempt, Err: err}
		}

		wait = nextBackoff(p, wait)
		if d.After > wait {
			wait = d.After
			if p.MaxBackoff > 0 && wait > p.MaxBackoff {
				wait = p.MaxBackoff
			}
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
	}
}

func attemptOnce(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}

// nextBackoff doubles the previous wait up to the policy maximum and adds
// up to a quarter of jitter in either direction.
func nextBackoff(p Policy, last time.Duration) time.Duration {
	next := last * 2
	if last <= 0 {
		next = p.InitialBackoff
		if next <= 0 {
			next = DefaultInitialBackoff
		}
	}
	if p.MaxBackoff > 0 && next > p.MaxBackoff {
		next = p.MaxBackoff
	}

	jitter := int64(next) / 4
	if jitter > 0 {
		next += time.Duration(rand.Int63n(2*jitter) - jitter) //nolint: gosec
	}
	return next
}

// Transient classifies timeouts, connection errors and truncated responses
// as retryable.
func Transient(err error) Decision {
	if err == nil {
		return Decision{}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return Decision{Retry: true}
	}
	// url.Error satisfies net.Error for any cause, including failures that
	// happen before the request is sent.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return Decision{Retry: true}
		}
		return Transient(urlErr.Err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Decision{Retry: true}
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return Decision{Retry: TransientStatus(statusErr.Code), After: statusErr.RetryAfter}
	}
	return Decision{}
}

// TransientStatus reports whether an HTTP status code is worth retrying.
func TransientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// StatusError is an unexpected HTTP status returned by a remote service.
type StatusError struct {
	Code       int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}
