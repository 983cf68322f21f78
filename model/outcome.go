// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package model

import (
	"encoding/json"
	"fmt"
)

// CreateIssueRequest is a single item of a batch creation.
type CreateIssueRequest struct {
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	Labels    []string `json:"labels,omitempty"`
	Assignees []string `json:"assignees,omitempty"`
	Milestone *int     `json:"milestone,omitempty"`
}

// CreateIssueOutcome is the result of creating one item. Build it with
// Created or Failed: exactly one of Issue and Error is ever set.
type CreateIssueOutcome struct {
	title string
	issue *Issue
	err   string
}

func Created(title string, issue *Issue) CreateIssueOutcome {
	return CreateIssueOutcome{title: title, issue: issue}
}

func Failed(title string, reason string) CreateIssueOutcome {
	if reason == "" {
		reason = "unknown error"
	}
	return CreateIssueOutcome{title: title, err: reason}
}

func (o CreateIssueOutcome) Title() string { return o.title }

func (o CreateIssueOutcome) Success() bool { return o.issue != nil }

// Issue returns the created issue, or nil for a failed outcome.
func (o CreateIssueOutcome) Issue() *Issue { return o.issue }

// Error returns the failure reason, or "" for a successful outcome.
func (o CreateIssueOutcome) Error() string { return o.err }

type outcomeJSON struct {
	Title   string `json:"title"`
	Success bool   `json:"success"`
	Issue   *Issue `json:"issue,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (o CreateIssueOutcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(outcomeJSON{
		Title:   o.title,
		Success: o.Success(),
		Issue:   o.issue,
		Error:   o.err,
	})
}

func (o *CreateIssueOutcome) UnmarshalJSON(data []byte) error {
	var aux outcomeJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Success {
		if aux.Issue == nil {
			return fmt.Errorf("successful outcome for %q has no issue", aux.Title)
		}
		*o = Created(aux.Title, aux.Issue)
		return nil
	}
	*o = Failed(aux.Title, aux.Error)
	return nil
}

type AggregateState int

const (
	AllSucceeded AggregateState = iota
	AllFailed
	Partial
)

func (s AggregateState) String() string {
	switch s {
	case AllSucceeded:
		return "all_succeeded"
	case AllFailed:
		return "all_failed"
	default:
		return "partial"
	}
}

// BatchResult holds the outcomes of a batch in input order.
type BatchResult struct {
	Outcomes []CreateIssueOutcome
}

func (r *BatchResult) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Success() {
			n++
		}
	}
	return n
}

func (r *BatchResult) State() AggregateState {
	switch ok := r.Succeeded(); {
	case ok == len(r.Outcomes):
		return AllSucceeded
	case ok == 0:
		return AllFailed
	default:
		return Partial
	}
}

// PartialHeader returns the "m/n" value reported to callers when the batch
// partially succeeded, and false otherwise.
func (r *BatchResult) PartialHeader() (string, bool) {
	if r.State() != Partial {
		return "", false
	}
	return fmt.Sprintf("%d/%d", r.Succeeded(), len(r.Outcomes)), true
}
