// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package export

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mattermost/mattermost-issuesync/model"
)

// Columns is the header of the issues sheet.
var Columns = []string{"Number", "Title", "Body", "CreatedAt", "State", "Labels", "Author", "URL", "Comment"}

const (
	colNumber = iota
	colTitle
	colBody
	colCreatedAt
	colState
	colLabels
	colAuthor
	colURL
	colComment
)

const labelSeparator = ", "

// labelEscaper escapes the separator inside label names so splitLabels
// gets back the names that were joined.
var labelEscaper = strings.NewReplacer(`\`, `\\`, ",", `\,`)

// Row is one line of the issues sheet. An issue is written as its own row
// followed by one row per comment.
type Row struct {
	Number    int
	Title     string
	Body      string
	CreatedAt time.Time
	State     string
	Labels    []string
	Author    string
	URL       string
	Comment   string
}

func (r Row) Values() []string {
	values := make([]string, len(Columns))
	values[colNumber] = strconv.Itoa(r.Number)
	values[colTitle] = r.Title
	values[colBody] = r.Body
	if !r.CreatedAt.IsZero() {
		values[colCreatedAt] = r.CreatedAt.UTC().Format(time.RFC3339)
	}
	values[colState] = r.State
	values[colLabels] = joinLabels(r.Labels)
	values[colAuthor] = r.Author
	values[colURL] = r.URL
	values[colComment] = r.Comment
	return values
}

// IssueRows flattens an issue and its comments into rows.
func IssueRows(issue *model.Issue) []Row {
	rows := make([]Row, 0, 1+len(issue.Comments))
	rows = append(rows, Row{
		Number:    issue.Number,
		Title:     issue.Title,
		Body:      issue.Body,
		CreatedAt: issue.CreatedAt,
		State:     issue.State,
		Labels:    issue.LabelSet(),
		Author:    issue.Author,
		URL:       issue.URL,
	})
	for _, c := range issue.Comments {
		rows = append(rows, Row{
			Number:    issue.Number,
			CreatedAt: c.CreatedAt,
			Author:    c.Author,
			Comment:   c.Body,
		})
	}
	return rows
}

// ParseIssueRows rebuilds issues from sheet rows, header excluded. The
// first row of a number is the issue itself, the following ones its
// comments. Issues are returned in order of first appearance.
func ParseIssueRows(values [][]string) ([]*model.Issue, error) {
	var (
		issues []*model.Issue
		byKey  = map[int]*model.Issue{}
	)
	for i, v := range values {
		cell := func(col int) string {
			if col < len(v) {
				return v[col]
			}
			return ""
		}

		number, err := strconv.Atoi(strings.TrimSpace(cell(colNumber)))
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid number %q", i+1, cell(colNumber))
		}
		var createdAt time.Time
		if raw := cell(colCreatedAt); raw != "" {
			if createdAt, err = time.Parse(time.RFC3339, raw); err != nil {
				return nil, fmt.Errorf("row %d: invalid creation time %q", i+1, raw)
			}
		}

		issue, ok := byKey[number]
		if !ok {
			issue = &model.Issue{
				Number:    number,
				Title:     cell(colTitle),
				Body:      cell(colBody),
				CreatedAt: createdAt,
				State:     cell(colState),
				Labels:    splitLabels(cell(colLabels)),
				Author:    cell(colAuthor),
				URL:       cell(colURL),
			}
			byKey[number] = issue
			issues = append(issues, issue)
			continue
		}
		issue.Comments = append(issue.Comments, &model.Comment{
			Author:    cell(colAuthor),
			Body:      cell(colComment),
			CreatedAt: createdAt,
		})
	}
	return issues, nil
}

func joinLabels(labels []string) string {
	escaped := make([]string, len(labels))
	for i, l := range labels {
		escaped[i] = labelEscaper.Replace(l)
	}
	return strings.Join(escaped, labelSeparator)
}

// splitLabels reverses joinLabels. A backslash keeps the next character.
func splitLabels(raw string) []string {
	labels := []string{}
	var label strings.Builder
	add := func() {
		if l := strings.TrimSpace(label.String()); l != "" {
			labels = append(labels, l)
		}
		label.Reset()
	}

	escaped := false
	for _, c := range raw {
		switch {
		case escaped:
			label.WriteRune(c)
			escaped = false
		case c == '\\':
			escaped = true
		case c == ',':
			add()
		default:
			label.WriteRune(c)
		}
	}
	add()
	return labels
}

func rowValues(rows []Row) [][]string {
	values := make([][]string, 0, len(rows))
	for _, r := range rows {
		values = append(values, r.Values())
	}
	return values
}

func labelValues(labels []*model.Label) [][]string {
	values := make([][]string, 0, len(labels))
	for _, l := range labels {
		values = append(values, []string{l.Name, l.Description})
	}
	return values
}
