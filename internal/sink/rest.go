// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mattermost/mattermost-issuesync/internal/retry"
)

const (
	DefaultTimeout = 30 * time.Second

	maxErrorBody = 512
	maxBody      = 32 << 20
)

// restClient sends JSON requests with retries. Failures that outlive the
// retry policy, and authentication failures, are reported as UnavailableError.
type restClient struct {
	name   string
	client *http.Client
	policy retry.Policy
}

func newRESTClient(name string, client *http.Client, timeout time.Duration, policy retry.Policy) *restClient {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if policy.MaxAttempts <= 0 {
		policy = retry.DefaultPolicy()
	}
	policy.AttemptTimeout = timeout
	return &restClient{name: name, client: client, policy: policy}
}

// do sends in as the JSON body and decodes a 2xx answer into out. Statuses
// listed in accept are returned without an error and without decoding.
func (c *restClient) do(ctx context.Context, method, url string, header http.Header, in, out interface{}, accept ...int) (int, error) {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("encoding %s request: %w", c.name, err)
		}
	}

	var status int
	err := retry.Do(ctx, c.policy, retry.Transient, func(ctx context.Context) error {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return err
		}
		for k, v := range header {
			req.Header[k] = v
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
		if err != nil {
			return err
		}

		status = resp.StatusCode
		for _, code := range accept {
			if status == code {
				return nil
			}
		}
		if status < 200 || status >= 300 {
			return &retry.StatusError{
				Code:       status,
				Body:       truncate(strings.TrimSpace(string(data)), maxErrorBody),
				RetryAfter: retryAfter(resp.Header),
			}
		}
		if out != nil && len(data) > 0 {
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("decoding %s response: %w", c.name, err)
			}
		}
		return nil
	})
	return status, c.wrap(ctx, err)
}

func (c *restClient) wrap(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var (
		exhausted *retry.ExhaustedError
		statusErr *retry.StatusError
	)
	switch {
	case errors.As(err, &exhausted):
		return &UnavailableError{Sink: c.name, Err: err}
	case errors.As(err, &statusErr):
		if statusErr.Code == http.StatusUnauthorized || statusErr.Code == http.StatusForbidden {
			return &UnavailableError{Sink: c.name, Err: err}
		}
		return fmt.Errorf("%s: %w", c.name, err)
	case retry.Transient(err).Retry:
		return &UnavailableError{Sink: c.name, Err: err}
	}
	return err
}

func retryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		return time.Until(at)
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
