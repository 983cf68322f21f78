// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package issues

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-github/v39/github"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattermost/mattermost-issuesync/internal/credentials"
	"github.com/mattermost/mattermost-issuesync/internal/retry"
)

const (
	issuesURL = "https://api.github.com/repos/acme/widgets/issues"
	labelsURL = "https://api.github.com/repos/acme/widgets/labels"
)

func newMockedFetcher(t *testing.T) (*Fetcher, *httpmock.MockTransport) {
	t.Helper()
	mock := httpmock.NewMockTransport()
	client, err := NewGithubClient(&http.Client{Transport: mock}, "")
	require.NoError(t, err)

	f := NewFetcher(client, FetcherConfig{
		Workers: 3,
		Retry:   retry.Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond},
	})
	return f, mock
}

func issueJSON(number int, pr bool) map[string]interface{} {
	issue := map[string]interface{}{
		"number":     number,
		"title":      fmt.Sprintf("Issue %d", number),
		"body":       "body",
		"state":      "open",
		"html_url":   fmt.Sprintf("https://github.com/acme/widgets/issues/%d", number),
		"user":       map[string]interface{}{"login": "alice"},
		"labels":     []map[string]interface{}{{"name": "bug"}},
		"created_at": "2024-01-02T15:04:05Z",
		"updated_at": "2024-01-03T15:04:05Z",
	}
	if pr {
		issue["pull_request"] = map[string]interface{}{"url": "https://api.github.com/repos/acme/widgets/pulls/1"}
	}
	return issue
}

// pagedIssues serves total issues in pages, flagging as pull requests the
// numbers for which isPR returns true.
func pagedIssues(total int, isPR func(int) bool, calls *int32) httpmock.Responder {
	return func(req *http.Request) (*http.Response, error) {
		atomic.AddInt32(calls, 1)
		page, _ := strconv.Atoi(req.URL.Query().Get("page"))
		perPage, _ := strconv.Atoi(req.URL.Query().Get("per_page"))

		items := []map[string]interface{}{}
		for n := (page-1)*perPage + 1; n <= page*perPage && n <= total; n++ {
			items = append(items, issueJSON(n, isPR != nil && isPR(n)))
		}
		return httpmock.NewJsonResponse(http.StatusOK, items)
	}
}

func TestFetcherPagination(t *testing.T) {
	tests := []struct {
		name   string
		total  int
		calls  int32
		issues int
	}{
		{"Should stop at the first short page", 150, 2, 150},
		{"Should request an empty page after an exact multiple of the page size", 100, 2, 100},
		{"Should handle an empty repository with one call", 0, 1, 0},
		{"Should walk many full pages", 250, 3, 250},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f, mock := newMockedFetcher(t)
			var calls int32
			mock.RegisterResponder(http.MethodGet, issuesURL, pagedIssues(tc.total, nil, &calls))

			set, err := f.Issues(context.Background(), "acme", "widgets", Filter{})
			require.NoError(t, err)
			require.Equal(t, tc.calls, atomic.LoadInt32(&calls))
			require.Len(t, set.Issues, tc.issues)

			seen := map[int]bool{}
			for _, issue := range set.Issues {
				require.False(t, seen[issue.Number], "duplicate issue %d", issue.Number)
				seen[issue.Number] = true
			}
		})
	}

	t.Run("Should decide on the page size before dropping pull requests", func(t *testing.T) {
		f, mock := newMockedFetcher(t)
		var calls int32
		mock.RegisterResponder(http.MethodGet, issuesURL, pagedIssues(105, func(n int) bool { return n%10 == 0 }, &calls))

		set, err := f.Issues(context.Background(), "acme", "widgets", Filter{})
		require.NoError(t, err)
		require.Equal(t, int32(2), atomic.LoadInt32(&calls))
		require.Len(t, set.Issues, 95)
	})

	t.Run("Should send the label and state filters", func(t *testing.T) {
		f, mock := newMockedFetcher(t)
		mock.RegisterResponder(http.MethodGet, issuesURL, func(req *http.Request) (*http.Response, error) {
			q := req.URL.Query()
			assert.Equal(t, "bug,ui", q.Get("labels"))
			assert.Equal(t, "open", q.Get("state"))
			assert.Equal(t, "100", q.Get("per_page"))
			return httpmock.NewJsonResponse(http.StatusOK, []interface{}{issueJSON(1, false)})
		})

		set, err := f.Issues(context.Background(), "acme", "widgets", Filter{Labels: []string{"bug", "ui"}, State: "open"})
		require.NoError(t, err)
		require.Len(t, set.Issues, 1)

		issue := set.Issues[0]
		assert.Equal(t, "alice", issue.Author)
		assert.Equal(t, []string{"bug"}, issue.Labels)
		assert.Equal(t, "https://github.com/acme/widgets/issues/1", issue.URL)
		assert.Equal(t, time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC), issue.CreatedAt.UTC())
	})

	t.Run("Should default to all states", func(t *testing.T) {
		f, mock := newMockedFetcher(t)
		mock.RegisterResponder(http.MethodGet, issuesURL, func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "all", req.URL.Query().Get("state"))
			return httpmock.NewJsonResponse(http.StatusOK, []interface{}{})
		})

		_, err := f.Issues(context.Background(), "acme", "widgets", Filter{})
		require.NoError(t, err)
	})
}

func TestFetcherRetries(t *testing.T) {
	t.Run("Should retry a page after a transient failure", func(t *testing.T) {
		f, mock := newMockedFetcher(t)
		var calls, failures int32
		ok := pagedIssues(150, nil, &calls)
		mock.RegisterResponder(http.MethodGet, issuesURL, func(req *http.Request) (*http.Response, error) {
			if req.URL.Query().Get("page") == "2" && atomic.AddInt32(&failures, 1) == 1 {
				return httpmock.NewStringResponse(http.StatusBadGateway, "bad gateway"), nil
			}
			return ok(req)
		})

		set, err := f.Issues(context.Background(), "acme", "widgets", Filter{})
		require.NoError(t, err)
		require.Len(t, set.Issues, 150)
		require.Equal(t, int32(2), atomic.LoadInt32(&failures))
	})

	t.Run("Should fail the whole call once attempts are exhausted", func(t *testing.T) {
		f, mock := newMockedFetcher(t)
		var calls, page2 int32
		ok := pagedIssues(150, nil, &calls)
		mock.RegisterResponder(http.MethodGet, issuesURL, func(req *http.Request) (*http.Response, error) {
			if req.URL.Query().Get("page") == "2" {
				atomic.AddInt32(&page2, 1)
				return httpmock.NewStringResponse(http.StatusServiceUnavailable, "unavailable"), nil
			}
			return ok(req)
		})

		set, err := f.Issues(context.Background(), "acme", "widgets", Filter{})
		require.Nil(t, set)
		require.ErrorIs(t, err, ErrFetchFailed)
		require.Equal(t, int32(3), atomic.LoadInt32(&page2))

		var fetchErr *FetchError
		require.True(t, errors.As(err, &fetchErr))
		require.Equal(t, 2, fetchErr.Page)
		require.Equal(t, ResourceIssues, fetchErr.Resource)

		var exhausted *retry.ExhaustedError
		require.True(t, errors.As(err, &exhausted))
	})

	t.Run("Should not retry permanent failures", func(t *testing.T) {
		f, mock := newMockedFetcher(t)
		mock.RegisterResponder(http.MethodGet, issuesURL, httpmock.NewStringResponder(http.StatusNotFound, `{"message":"Not Found"}`))

		_, err := f.Issues(context.Background(), "acme", "widgets", Filter{})
		require.ErrorIs(t, err, ErrFetchFailed)
		require.Equal(t, 1, mock.GetTotalCallCount())
	})

	t.Run("Should not retry credential failures", func(t *testing.T) {
		f, mock := newMockedFetcher(t)
		mock.RegisterResponder(http.MethodGet, issuesURL,
			httpmock.NewErrorResponder(&credentials.CredentialError{Kind: credentials.Rejected, Op: "exchanging assertion"}))

		_, err := f.Issues(context.Background(), "acme", "widgets", Filter{})
		require.ErrorIs(t, err, credentials.ErrRejected)
		require.Equal(t, 1, mock.GetTotalCallCount())
	})

	t.Run("Should stop when the caller gives up", func(t *testing.T) {
		f, mock := newMockedFetcher(t)
		ctx, cancel := context.WithCancel(context.Background())
		mock.RegisterResponder(http.MethodGet, issuesURL, func(req *http.Request) (*http.Response, error) {
			cancel()
			return httpmock.NewStringResponse(http.StatusBadGateway, ""), nil
		})

		_, err := f.Issues(ctx, "acme", "widgets", Filter{})
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, 1, mock.GetTotalCallCount())
	})
}

func commentsURL(number int) string {
	return fmt.Sprintf("%s/%d/comments", issuesURL, number)
}

func TestFetcherComments(t *testing.T) {
	register := func(mock *httpmock.MockTransport) {
		var calls int32
		mock.RegisterResponder(http.MethodGet, issuesURL, pagedIssues(3, nil, &calls))
		mock.RegisterResponder(http.MethodGet, commentsURL(1), httpmock.NewJsonResponderOrPanic(http.StatusOK, []map[string]interface{}{
			{"id": 11, "body": "second", "user": map[string]interface{}{"login": "bob"}, "created_at": "2024-01-05T00:00:00Z"},
			{"id": 10, "body": "first", "user": map[string]interface{}{"login": "carol"}, "created_at": "2024-01-04T00:00:00Z"},
		}))
		mock.RegisterResponder(http.MethodGet, commentsURL(2), httpmock.NewStringResponder(http.StatusInternalServerError, "boom"))
		mock.RegisterResponder(http.MethodGet, commentsURL(3), httpmock.NewJsonResponderOrPanic(http.StatusOK, []interface{}{}))
	}

	t.Run("Should isolate the failure of one issue", func(t *testing.T) {
		f, mock := newMockedFetcher(t)
		register(mock)

		set, err := f.Issues(context.Background(), "acme", "widgets", Filter{IncludeComments: true})
		require.NoError(t, err)
		require.Len(t, set.Issues, 3)
		require.Len(t, set.Failures, 1)
		require.Equal(t, 2, set.Failures[0].Number)

		first := set.Issues[0]
		require.Len(t, first.Comments, 2)
		require.Equal(t, "first", first.Comments[0].Body)
		require.Equal(t, "carol", first.Comments[0].Author)
		require.Empty(t, first.CommentsError)

		require.NotEmpty(t, set.Issues[1].CommentsError)
		require.Empty(t, set.Issues[2].Comments)

		header, ok := set.PartialHeader()
		require.True(t, ok)
		require.Equal(t, "2/3", header)
	})

	t.Run("Should fail the call in strict mode", func(t *testing.T) {
		f, mock := newMockedFetcher(t)
		register(mock)

		set, err := f.Issues(context.Background(), "acme", "widgets", Filter{IncludeComments: true, Strict: true})
		require.Nil(t, set)
		require.ErrorIs(t, err, ErrFetchFailed)
	})
}

func TestFetcherFanOut(t *testing.T) {
	t.Run("Should let the lookup in flight finish when the caller gives up", func(t *testing.T) {
		mock := httpmock.NewMockTransport()
		client, err := NewGithubClient(&http.Client{Transport: mock}, "")
		require.NoError(t, err)
		f := NewFetcher(client, FetcherConfig{
			Workers: 1,
			Retry:   retry.Policy{MaxAttempts: 1},
		})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		var aborted atomic.Value
		for _, n := range []int{1, 2, 3} {
			n := n
			mock.RegisterResponder(http.MethodGet, fmt.Sprintf("%s/%d", issuesURL, n), func(req *http.Request) (*http.Response, error) {
				cancel()
				time.Sleep(50 * time.Millisecond)
				aborted.Store(req.Context().Err() != nil)
				return httpmock.NewJsonResponse(http.StatusOK, issueJSON(n, false))
			})
		}

		set, err := f.IssuesByNumber(ctx, "acme", "widgets", []int{1, 2, 3}, Filter{})
		require.ErrorIs(t, err, context.Canceled)
		require.Nil(t, set)
		require.Equal(t, 1, mock.GetTotalCallCount())
		require.False(t, aborted.Load().(bool))
	})

	t.Run("Should bound a lookup with the call timeout", func(t *testing.T) {
		mock := httpmock.NewMockTransport()
		client, err := NewGithubClient(&http.Client{Transport: mock}, "")
		require.NoError(t, err)
		f := NewFetcher(client, FetcherConfig{
			Workers:     1,
			Retry:       retry.Policy{MaxAttempts: 1},
			CallTimeout: 50 * time.Millisecond,
		})

		mock.RegisterResponder(http.MethodGet, issuesURL+"/1", func(req *http.Request) (*http.Response, error) {
			<-req.Context().Done()
			return nil, req.Context().Err()
		})

		set, err := f.IssuesByNumber(context.Background(), "acme", "widgets", []int{1}, Filter{})
		require.NoError(t, err)
		require.Empty(t, set.Issues)
		require.Len(t, set.Failures, 1)
		require.Equal(t, 1, set.Failures[0].Number)
	})
}

func TestFetcherLookups(t *testing.T) {
	t.Run("Should return a single issue with its comments", func(t *testing.T) {
		f, mock := newMockedFetcher(t)
		mock.RegisterResponder(http.MethodGet, issuesURL+"/7", httpmock.NewJsonResponderOrPanic(http.StatusOK, issueJSON(7, false)))
		mock.RegisterResponder(http.MethodGet, commentsURL(7), httpmock.NewJsonResponderOrPanic(http.StatusOK, []map[string]interface{}{
			{"id": 1, "body": "hello", "user": map[string]interface{}{"login": "bob"}},
		}))

		issue, err := f.Issue(context.Background(), "acme", "widgets", 7, true)
		require.NoError(t, err)
		require.Equal(t, 7, issue.Number)
		require.Len(t, issue.Comments, 1)
	})

	t.Run("Should report missing issues and pull requests as not found", func(t *testing.T) {
		f, mock := newMockedFetcher(t)
		mock.RegisterResponder(http.MethodGet, issuesURL+"/8", httpmock.NewStringResponder(http.StatusNotFound, `{"message":"Not Found"}`))
		mock.RegisterResponder(http.MethodGet, issuesURL+"/9", httpmock.NewJsonResponderOrPanic(http.StatusOK, issueJSON(9, true)))

		_, err := f.Issue(context.Background(), "acme", "widgets", 8, false)
		require.ErrorIs(t, err, ErrNotFound)
		_, err = f.Issue(context.Background(), "acme", "widgets", 9, false)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Should look up numbers in input order and skip unknown ones", func(t *testing.T) {
		f, mock := newMockedFetcher(t)
		for _, n := range []int{3, 1} {
			mock.RegisterResponder(http.MethodGet, fmt.Sprintf("%s/%d", issuesURL, n), httpmock.NewJsonResponderOrPanic(http.StatusOK, issueJSON(n, false)))
		}
		mock.RegisterResponder(http.MethodGet, issuesURL+"/2", httpmock.NewStringResponder(http.StatusNotFound, `{"message":"Not Found"}`))

		set, err := f.IssuesByNumber(context.Background(), "acme", "widgets", []int{3, 2, 1}, Filter{})
		require.NoError(t, err)
		require.Len(t, set.Issues, 2)
		require.Equal(t, 3, set.Issues[0].Number)
		require.Equal(t, 1, set.Issues[1].Number)
		require.Empty(t, set.Failures)
	})

	t.Run("Should fetch issues and labels of a repository", func(t *testing.T) {
		f, mock := newMockedFetcher(t)
		var calls int32
		mock.RegisterResponder(http.MethodGet, issuesURL, pagedIssues(2, nil, &calls))
		mock.RegisterResponder(http.MethodGet, labelsURL, httpmock.NewJsonResponderOrPanic(http.StatusOK, []map[string]interface{}{
			{"name": "bug", "description": "Something is broken"},
			{"name": "ui"},
		}))

		set, labels, err := f.Repository(context.Background(), "acme", "widgets", Filter{})
		require.NoError(t, err)
		require.Len(t, set.Issues, 2)
		require.Len(t, labels, 2)
		require.Equal(t, "Something is broken", labels[0].Description)
	})
}

func TestFetchAllDeduplicates(t *testing.T) {
	pages := [][]int{{1, 2}, {2, 3}, {}}
	calls := 0
	items, err := FetchAll(context.Background(), Pager[int]{
		Resource: ResourceIssues,
		PageSize: 2,
		Key:      strconv.Itoa,
		Fetch: func(ctx context.Context, opts github.ListOptions) ([]int, *github.Response, error) {
			calls++
			return pages[opts.Page-1], nil, nil
		},
	})
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, items)
	require.Equal(t, 3, calls)
}
