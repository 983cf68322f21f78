// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package issues

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/go-github/v39/github"
	"github.com/mattermost/mattermost-server/v6/shared/mlog"
	"golang.org/x/sync/errgroup"

	"github.com/mattermost/mattermost-issuesync/internal/retry"
	"github.com/mattermost/mattermost-issuesync/model"
)

const (
	DefaultPageSize    = 100
	DefaultWorkers     = 4
	DefaultCallTimeout = 2 * time.Minute
)

// PageFunc retrieves a single page of a collection.
type PageFunc[T any] func(ctx context.Context, opts github.ListOptions) ([]T, *github.Response, error)

// Pager describes how to walk one paginated collection.
type Pager[T any] struct {
	Resource ResourceKind
	PageSize int
	Policy   retry.Policy
	Fetch    PageFunc[T]
	// Key identifies an item. When set, an item seen on an earlier page is
	// not returned twice if the collection shifted between two calls.
	Key func(T) string
}

// FetchAll requests pages 1..N in order and stops at the first page holding
// fewer items than the page size, an empty one included. Every page is
// retried on transient failures; when a page cannot be retrieved the whole
// call fails.
func FetchAll[T any](ctx context.Context, p Pager[T]) ([]T, error) {
	pageSize := p.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var (
		all  []T
		seen map[string]struct{}
	)
	if p.Key != nil {
		seen = make(map[string]struct{})
	}

	for page := 1; ; page++ {
		var items []T
		err := retry.Do(ctx, p.Policy, classify, func(ctx context.Context) error {
			var err error
			items, _, err = p.Fetch(ctx, github.ListOptions{Page: page, PerPage: pageSize})
			return err
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, &FetchError{Resource: p.Resource, Page: page, Err: err}
		}

		for _, item := range items {
			if seen != nil {
				key := p.Key(item)
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
			}
			all = append(all, item)
		}

		if len(items) < pageSize {
			return all, nil
		}
	}
}

type Filter struct {
	Labels []string
	// State is open, closed or all. Empty means all.
	State           string
	IncludeComments bool
	// Strict fails the whole call on the first comment fan-out failure
	// instead of recording it against the issue.
	Strict bool
}

type ItemFailure struct {
	Number int
	Err    error
}

// IssueSet is a fetched list of issues and the per-issue failures that
// were isolated while retrieving it.
type IssueSet struct {
	Issues   []*model.Issue
	Failures []ItemFailure
	// Total is the number of issues the request resolved to, failed ones included.
	Total int
}

// PartialHeader returns "m/n" when some but not all issues were retrieved
// completely.
func (s *IssueSet) PartialHeader() (string, bool) {
	failed := len(s.Failures)
	if failed == 0 || failed >= s.Total {
		return "", false
	}
	return fmt.Sprintf("%d/%d", s.Total-failed, s.Total), true
}

type FetcherConfig struct {
	PageSize int
	// Workers bounds the concurrent sub-resource calls of a fan-out.
	Workers int
	Retry   retry.Policy
	// CallTimeout bounds one fan-out call, its retries included.
	CallTimeout time.Duration
}

type Fetcher struct {
	client      *GithubClient
	pageSize    int
	workers     int
	policy      retry.Policy
	callTimeout time.Duration
}

func NewFetcher(client *GithubClient, config FetcherConfig) *Fetcher {
	f := &Fetcher{
		client:      client,
		pageSize:    config.PageSize,
		workers:     config.Workers,
		policy:      config.Retry,
		callTimeout: config.CallTimeout,
	}
	if f.callTimeout <= 0 {
		f.callTimeout = DefaultCallTimeout
	}
	if f.pageSize <= 0 {
		f.pageSize = DefaultPageSize
	}
	if f.workers <= 0 {
		f.workers = DefaultWorkers
	}
	if f.policy.MaxAttempts <= 0 {
		timeout := f.policy.AttemptTimeout
		f.policy = retry.DefaultPolicy()
		f.policy.AttemptTimeout = timeout
	}
	return f
}

func issueKey(gi *github.Issue) string { return strconv.Itoa(gi.GetNumber()) }

// Issues lists the issues of a repository. Pull requests returned by the
// same endpoint are dropped.
func (f *Fetcher) Issues(ctx context.Context, owner, repo string, filter Filter) (*IssueSet, error) {
	state := filter.State
	if state == "" {
		state = "all"
	}

	raw, err := FetchAll(ctx, Pager[*github.Issue]{
		Resource: ResourceIssues,
		PageSize: f.pageSize,
		Policy:   f.policy,
		Key:      issueKey,
		Fetch: func(ctx context.Context, opts github.ListOptions) ([]*github.Issue, *github.Response, error) {
			return f.client.Issues.ListByRepo(ctx, owner, repo, &github.IssueListByRepoOptions{
				State:       state,
				Labels:      filter.Labels,
				ListOptions: opts,
			})
		},
	})
	if err != nil {
		return nil, err
	}

	set := &IssueSet{Issues: make([]*model.Issue, 0, len(raw))}
	for _, gi := range raw {
		if gi.IsPullRequest() {
			continue
		}
		set.Issues = append(set.Issues, issueFromGithub(gi))
	}
	set.Total = len(set.Issues)

	if filter.IncludeComments {
		if err := f.attachComments(ctx, owner, repo, set, filter.Strict); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// Comments lists the comments of one issue in creation order.
func (f *Fetcher) Comments(ctx context.Context, owner, repo string, number int) ([]*model.Comment, error) {
	raw, err := FetchAll(ctx, Pager[*github.IssueComment]{
		Resource: ResourceComments,
		PageSize: f.pageSize,
		Policy:   f.policy,
		Key:      func(c *github.IssueComment) string { return strconv.FormatInt(c.GetID(), 10) },
		Fetch: func(ctx context.Context, opts github.ListOptions) ([]*github.IssueComment, *github.Response, error) {
			return f.client.Issues.ListComments(ctx, owner, repo, number, &github.IssueListCommentsOptions{ListOptions: opts})
		},
	})
	if err != nil {
		return nil, err
	}

	comments := make([]*model.Comment, 0, len(raw))
	for _, c := range raw {
		comments = append(comments, commentFromGithub(c))
	}
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
	return comments, nil
}

func (f *Fetcher) Labels(ctx context.Context, owner, repo string) ([]*model.Label, error) {
	raw, err := FetchAll(ctx, Pager[*github.Label]{
		Resource: ResourceLabels,
		PageSize: f.pageSize,
		Policy:   f.policy,
		Key:      func(l *github.Label) string { return l.GetName() },
		Fetch: func(ctx context.Context, opts github.ListOptions) ([]*github.Label, *github.Response, error) {
			return f.client.Issues.ListLabels(ctx, owner, repo, &opts)
		},
	})
	if err != nil {
		return nil, err
	}

	labels := make([]*model.Label, 0, len(raw))
	for _, l := range raw {
		labels = append(labels, labelFromGithub(l))
	}
	return labels, nil
}

// Issue returns a single issue. ErrNotFound is returned when the number
// does not exist or belongs to a pull request.
func (f *Fetcher) Issue(ctx context.Context, owner, repo string, number int, withComments bool) (*model.Issue, error) {
	var gi *github.Issue
	err := retry.Do(ctx, f.policy, classify, func(ctx context.Context) error {
		var err error
		gi, _, err = f.client.Issues.Get(ctx, owner, repo, number)
		return err
	})
	if isNotFound(err) {
		return nil, fmt.Errorf("issue %d: %w", number, ErrNotFound)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &FetchError{Resource: ResourceIssues, Err: err}
	}
	if gi.IsPullRequest() {
		return nil, fmt.Errorf("issue %d is a pull request: %w", number, ErrNotFound)
	}

	issue := issueFromGithub(gi)
	if withComments {
		comments, err := f.Comments(ctx, owner, repo, number)
		if err != nil {
			return nil, err
		}
		issue.Comments = comments
	}
	return issue, nil
}

// IssuesByNumber looks up the given issues with bounded concurrency and
// returns them in input order. Numbers that do not resolve to an issue are
// skipped.
func (f *Fetcher) IssuesByNumber(ctx context.Context, owner, repo string, numbers []int, filter Filter) (*IssueSet, error) {
	found := make([]*model.Issue, len(numbers))
	failures := make([]error, len(numbers))

	err := f.fanOut(ctx, len(numbers), filter.Strict, func(ctx context.Context, i int) error {
		issue, err := f.Issue(ctx, owner, repo, numbers[i], filter.IncludeComments)
		switch {
		case err == nil:
			found[i] = issue
		case errors.Is(err, ErrNotFound):
		default:
			failures[i] = err
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	set := &IssueSet{}
	for i, issue := range found {
		switch {
		case issue != nil:
			set.Issues = append(set.Issues, issue)
		case failures[i] != nil:
			set.Failures = append(set.Failures, ItemFailure{Number: numbers[i], Err: failures[i]})
		}
	}
	set.Total = len(set.Issues) + len(set.Failures)
	logFailures(owner, repo, set.Failures)
	return set, nil
}

// Repository fetches the issues and the labels of a repository
// concurrently.
func (f *Fetcher) Repository(ctx context.Context, owner, repo string, filter Filter) (*IssueSet, []*model.Label, error) {
	var (
		set    *IssueSet
		labels []*model.Label
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		set, err = f.Issues(gctx, owner, repo, filter)
		return err
	})
	g.Go(func() error {
		var err error
		labels, err = f.Labels(gctx, owner, repo)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return set, labels, nil
}

func (f *Fetcher) attachComments(ctx context.Context, owner, repo string, set *IssueSet, strict bool) error {
	failures := make([]error, len(set.Issues))
	err := f.fanOut(ctx, len(set.Issues), strict, func(ctx context.Context, i int) error {
		issue := set.Issues[i]
		comments, err := f.Comments(ctx, owner, repo, issue.Number)
		if err != nil {
			failures[i] = err
			return err
		}
		issue.Comments = comments
		return nil
	})
	if err != nil {
		return err
	}

	for i, err := range failures {
		if err == nil {
			continue
		}
		set.Issues[i].CommentsError = err.Error()
		set.Failures = append(set.Failures, ItemFailure{Number: set.Issues[i].Number, Err: err})
	}
	logFailures(owner, repo, set.Failures)
	return nil
}

// fanOut runs fn for every index with at most f.workers calls in flight.
// Without strict, an error only concerns its own index. Once ctx is done, or
// a strict call failed, no new call is started. The running ones are not
// cancelled: they run until they finish or reach f.callTimeout, and ctx's
// error is returned.
func (f *Fetcher) fanOut(ctx context.Context, n int, strict bool, fn func(ctx context.Context, i int) error) error {
	g := &errgroup.Group{}
	loopCtx := ctx
	if strict {
		g, loopCtx = errgroup.WithContext(ctx)
	}
	g.SetLimit(f.workers)

	for i := 0; i < n; i++ {
		if loopCtx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			// Scheduling may have raced with a cancellation.
			if loopCtx.Err() != nil {
				return nil
			}
			callCtx, cancel := context.WithTimeout(context.Background(), f.callTimeout)
			defer cancel()
			err := fn(callCtx, i)
			if strict {
				return err
			}
			return nil
		})
	}

	err := g.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func logFailures(owner, repo string, failures []ItemFailure) {
	for _, failure := range failures {
		mlog.Warn("Isolated fetch failure",
			mlog.String("repo_owner", owner),
			mlog.String("repo_name", repo),
			mlog.Int("issue", failure.Number),
			mlog.Err(failure.Err),
		)
	}
}
