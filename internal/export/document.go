// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package export

import (
	"fmt"
	"strings"

	"github.com/mattermost/mattermost-issuesync/internal/sink"
	"github.com/mattermost/mattermost-issuesync/model"
)

// EmbeddingText is the text an issue is embedded from.
func EmbeddingText(issue *model.Issue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Issue Title: %s\n\n", issue.Title)
	fmt.Fprintf(&b, "Issue Body: %s\n\n", issue.Body)
	fmt.Fprintf(&b, "Labels: %s\n", strings.Join(issue.LabelSet(), ", "))
	return b.String()
}

// DocumentID is the stable key of an issue in the search index. Characters
// the index does not accept in keys are replaced by underscores.
func DocumentID(owner, repo string, number int) string {
	raw := fmt.Sprintf("%s-%s-%d", owner, repo, number)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '=':
			return r
		}
		return '_'
	}, raw)
}

func NewSearchDocument(owner, repo string, issue *model.Issue, vector []float32) *sink.Document {
	return &sink.Document{
		ID:          DocumentID(owner, repo, issue.Number),
		Title:       issue.Title,
		Body:        issue.Body,
		Labels:      issue.LabelSet(),
		Embedding:   vector,
		Source:      owner + "/" + repo,
		CreatedDate: issue.CreatedAt,
		UpdatedDate: issue.UpdatedAt,
		State:       issue.State,
		URL:         issue.URL,
	}
}
