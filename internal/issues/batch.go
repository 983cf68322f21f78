// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package issues

import (
	"context"
	"strings"
	"time"

	"github.com/google/go-github/v39/github"
	"github.com/mattermost/mattermost-server/v6/shared/mlog"

	"github.com/mattermost/mattermost-issuesync/model"
)

const (
	DefaultRequestTimeout = 30 * time.Second

	reasonTitleRequired = "title required"
	reasonItemRequired  = "item required"
)

type Metrics interface {
	IncreaseIssueCreations(result string)
}

type noopMetrics struct{}

func (noopMetrics) IncreaseIssueCreations(string) {}

// BatchCreator creates issues one by one, turning every failure into the
// outcome of its own item.
type BatchCreator struct {
	client  *GithubClient
	timeout time.Duration
	metrics Metrics
}

func NewBatchCreator(client *GithubClient, requestTimeout time.Duration, metrics Metrics) *BatchCreator {
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &BatchCreator{client: client, timeout: requestTimeout, metrics: metrics}
}

// CreateMany submits every item and returns one outcome per item, in input
// order. Only a request without items or without a target repository is an
// error; everything else is reported per item.
func (c *BatchCreator) CreateMany(ctx context.Context, owner, repo string, items []*model.CreateIssueRequest) (*model.BatchResult, error) {
	if strings.TrimSpace(owner) == "" || strings.TrimSpace(repo) == "" {
		return nil, &ValidationError{Field: "repository", Message: "owner and repo are required"}
	}
	if len(items) == 0 {
		return nil, &ValidationError{Field: "items", Message: "at least one issue is required"}
	}

	result := &model.BatchResult{Outcomes: make([]model.CreateIssueOutcome, 0, len(items))}
	for _, item := range items {
		outcome := c.createOne(ctx, owner, repo, item)
		if outcome.Success() {
			c.metrics.IncreaseIssueCreations("success")
		} else {
			c.metrics.IncreaseIssueCreations("failure")
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	if result.State() != model.AllSucceeded {
		mlog.Info("Batch issue creation finished with failures",
			mlog.String("repo_owner", owner),
			mlog.String("repo_name", repo),
			mlog.Int("succeeded", result.Succeeded()),
			mlog.Int("total", len(result.Outcomes)),
		)
	}
	return result, nil
}

func (c *BatchCreator) createOne(ctx context.Context, owner, repo string, item *model.CreateIssueRequest) model.CreateIssueOutcome {
	if item == nil {
		return model.Failed("", reasonItemRequired)
	}
	title := strings.TrimSpace(item.Title)
	if title == "" {
		return model.Failed(item.Title, reasonTitleRequired)
	}
	if err := ctx.Err(); err != nil {
		return model.Failed(item.Title, err.Error())
	}

	req := &github.IssueRequest{
		Title:     github.String(title),
		Body:      github.String(item.Body),
		Milestone: item.Milestone,
	}
	if len(item.Labels) > 0 {
		labels := append([]string(nil), item.Labels...)
		req.Labels = &labels
	}
	if len(item.Assignees) > 0 {
		assignees := append([]string(nil), item.Assignees...)
		req.Assignees = &assignees
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	gi, _, err := c.client.Issues.Create(callCtx, owner, repo, req)
	if err != nil {
		mlog.Debug("Failed to create issue",
			mlog.String("repo_owner", owner),
			mlog.String("repo_name", repo),
			mlog.String("title", title),
			mlog.Err(err),
		)
		return model.Failed(item.Title, describe(err))
	}
	return model.Created(item.Title, issueFromGithub(gi))
}
