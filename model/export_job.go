// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package model

import (
	"encoding/json"
	"io"
	"strings"
	"time"
)

type Stage string

const (
	StagePending         Stage = "pending"
	StageFetchingSource  Stage = "fetching_source"
	StageEnsuringSink    Stage = "ensuring_sink"
	StageProcessingItems Stage = "processing_items"
	StageCompleted       Stage = "completed"
	StageFailed          Stage = "failed"
)

var stageOrder = map[Stage]int{
	StagePending:         0,
	StageFetchingSource:  1,
	StageEnsuringSink:    2,
	StageProcessingItems: 3,
	StageCompleted:       4,
}

// Terminal reports whether no further work is scheduled for a job in this stage.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// CanAdvanceTo reports whether moving from s to next keeps the stage
// sequence monotonic. Failed is reachable from every non-terminal stage.
func (s Stage) CanAdvanceTo(next Stage) bool {
	if s.Terminal() {
		return false
	}
	if next == StageFailed {
		return true
	}
	return stageOrder[next] == stageOrder[s]+1
}

type SinkKind string

const (
	SinkSearch      SinkKind = "search"
	SinkSpreadsheet SinkKind = "spreadsheet"
)

type ExportRequest struct {
	Owner           string      `json:"owner"`
	Repo            string      `json:"repo"`
	Labels          StringArray `json:"labels,omitempty"`
	IncludeComments bool        `json:"comments"`
	Filename        string      `json:"filename,omitempty"`
	Sink            SinkKind    `json:"sink,omitempty"`
}

// Normalize trims the request fields and fills the default sink.
func (r *ExportRequest) Normalize() {
	r.Owner = strings.TrimSpace(r.Owner)
	r.Repo = strings.TrimSpace(r.Repo)
	r.Filename = strings.TrimSpace(r.Filename)
	if r.Sink == "" {
		r.Sink = SinkSearch
	}
	labels := make(StringArray, 0, len(r.Labels))
	for _, l := range r.Labels {
		if l = strings.TrimSpace(l); l != "" {
			labels = append(labels, l)
		}
	}
	r.Labels = labels
}

func ExportRequestFromJSON(data io.Reader) (*ExportRequest, error) {
	var req ExportRequest
	if err := json.NewDecoder(data).Decode(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

type ExportJob struct {
	ID             string        `json:"id"`
	Request        ExportRequest `json:"request"`
	Stage          Stage         `json:"stage"`
	FailedStage    Stage         `json:"failedStage,omitempty"`
	Error          string        `json:"error,omitempty"`
	TotalItems     int           `json:"totalItems"`
	ProcessedItems int           `json:"processedItems"`
	FailedItems    int           `json:"failedItems"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

func (j *ExportJob) ToJSON() (string, error) {
	b, err := json.Marshal(j)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// SourceSnapshot is the checkpointed output of the fetching stage.
type SourceSnapshot struct {
	Issues    []*Issue  `json:"issues"`
	Labels    []*Label  `json:"labels"`
	FetchedAt time.Time `json:"fetchedAt"`
}

type ItemState string

const (
	ItemSucceeded ItemState = "succeeded"
	ItemFailed    ItemState = "failed"
)

// ItemStatus is the terminal processing status of one item of a job.
type ItemStatus struct {
	JobID     string    `json:"jobId"`
	ItemKey   int       `json:"itemKey"`
	State     ItemState `json:"state"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}
