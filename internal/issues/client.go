// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package issues

import (
	"context"
	"net/http"

	"github.com/google/go-github/v39/github"
)

//go:generate mockgen -destination=mocks/mock_issues.go -package mocks github.com/mattermost/mattermost-issuesync/internal/issues IssuesService

type IssuesService interface {
	Create(ctx context.Context, owner string, repo string, issue *github.IssueRequest) (*github.Issue, *github.Response, error)
	Get(ctx context.Context, owner string, repo string, number int) (*github.Issue, *github.Response, error)
	ListByRepo(ctx context.Context, owner string, repo string, opts *github.IssueListByRepoOptions) ([]*github.Issue, *github.Response, error)
	ListComments(ctx context.Context, owner string, repo string, number int, opts *github.IssueListCommentsOptions) ([]*github.IssueComment, *github.Response, error)
	ListLabels(ctx context.Context, owner string, repo string, opts *github.ListOptions) ([]*github.Label, *github.Response, error)
}

// GithubClient wraps the github.Client with relevant interfaces.
type GithubClient struct {
	client *github.Client

	Issues IssuesService
}

// NewGithubClient creates a client on top of httpClient, which is expected
// to authenticate the requests. baseURL selects a GitHub Enterprise server;
// empty means github.com.
func NewGithubClient(httpClient *http.Client, baseURL string) (*GithubClient, error) {
	client := github.NewClient(httpClient)
	if baseURL != "" {
		var err error
		client, err = github.NewEnterpriseClient(baseURL, baseURL, httpClient)
		if err != nil {
			return nil, err
		}
	}

	return &GithubClient{
		client: client,
		Issues: client.Issues,
	}, nil
}

func (c *GithubClient) RateLimits(ctx context.Context) (*github.RateLimits, *github.Response, error) {
	return c.client.RateLimits(ctx)
}
