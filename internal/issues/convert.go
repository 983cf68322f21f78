// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package issues

import (
	"github.com/google/go-github/v39/github"

	"github.com/mattermost/mattermost-issuesync/model"
)

func issueFromGithub(gi *github.Issue) *model.Issue {
	labels := make([]string, 0, len(gi.Labels))
	for _, l := range gi.Labels {
		labels = append(labels, l.GetName())
	}

	return &model.Issue{
		Number:    gi.GetNumber(),
		Author:    gi.GetUser().GetLogin(),
		Title:     gi.GetTitle(),
		Body:      gi.GetBody(),
		State:     gi.GetState(),
		Labels:    labels,
		CreatedAt: gi.GetCreatedAt(),
		UpdatedAt: gi.GetUpdatedAt(),
		URL:       gi.GetHTMLURL(),
	}
}

func commentFromGithub(c *github.IssueComment) *model.Comment {
	return &model.Comment{
		Author:    c.GetUser().GetLogin(),
		Body:      c.GetBody(),
		CreatedAt: c.GetCreatedAt(),
	}
}

func labelFromGithub(l *github.Label) *model.Label {
	return &model.Label{
		Name:        l.GetName(),
		Description: l.GetDescription(),
	}
}
