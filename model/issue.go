// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package model

import (
	"encoding/json"
	"io"
	"sort"
	"time"
)

// Issue is the read model of a repository issue together with its comments.
// It is never persisted as a row of its own; export jobs keep it inside
// their source snapshot.
type Issue struct {
	Number    int        `json:"number"`
	Author    string     `json:"author"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	State     string     `json:"state"`
	Labels    []string   `json:"labels"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	URL       string     `json:"url"`
	Comments  []*Comment `json:"comments,omitempty"`

	// CommentsError is set when the comments of this issue could not be
	// retrieved while its siblings were.
	CommentsError string `json:"commentsError,omitempty"`
}

type Comment struct {
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

type Label struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LabelSet returns the labels of the issue de-duplicated and sorted.
func (o *Issue) LabelSet() []string {
	seen := make(map[string]struct{}, len(o.Labels))
	set := make([]string, 0, len(o.Labels))
	for _, l := range o.Labels {
		if _, ok := seen[l]; ok || l == "" {
			continue
		}
		seen[l] = struct{}{}
		set = append(set, l)
	}
	sort.Strings(set)
	return set
}

func (o *Issue) ToJSON() (string, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

func IssueFromJSON(data io.Reader) (*Issue, error) {
	var issue Issue
	err := json.NewDecoder(data).Decode(&issue)
	if err != nil {
		return nil, err
	}

	return &issue, nil
}
