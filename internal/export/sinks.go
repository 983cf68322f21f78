// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package export

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mattermost/mattermost-issuesync/internal/sink"
	"github.com/mattermost/mattermost-issuesync/model"
)

// Sink is the destination of one export job. Upsert is keyed by the issue
// number, so writing an issue twice leaves a single entry.
type Sink interface {
	EnsureReady(ctx context.Context) error
	Upsert(ctx context.Context, issue *model.Issue) error
}

// Flusher is implemented by sinks that buffer writes. Items written to such
// a sink are durable only once Flush returned.
type Flusher interface {
	Flush(ctx context.Context) error
}

type SinkFactory interface {
	Open(job *model.ExportJob, snapshot *model.SourceSnapshot) (Sink, error)
}

const workbookExtension = ".xlsx"

// Sinks opens the sink a job asks for. A nil Index or Embedder disables the
// search sink.
type Sinks struct {
	Index           *sink.SearchIndex
	Embedder        *sink.Embedder
	OutputDirectory string
}

func (s *Sinks) Open(job *model.ExportJob, snapshot *model.SourceSnapshot) (Sink, error) {
	req := job.Request
	switch req.Sink {
	case model.SinkSearch, "":
		if s.Index == nil || s.Embedder == nil {
			return nil, &sink.UnavailableError{Sink: "search index", Err: errors.New("search sink is not configured")}
		}
		return &searchSink{index: s.Index, embedder: s.Embedder, owner: req.Owner, repo: req.Repo}, nil
	case model.SinkSpreadsheet:
		var labels []*model.Label
		if snapshot != nil {
			labels = snapshot.Labels
		}
		path := filepath.Join(s.OutputDirectory, WorkbookName(&req))
		return &workbookSink{book: sink.NewWorkbook(path, Columns), labels: labels}, nil
	}
	return nil, fmt.Errorf("unknown sink %q", req.Sink)
}

// WorkbookName is the file name of the workbook of req, reduced to a base
// name so it always lands in the output directory.
func WorkbookName(req *model.ExportRequest) string {
	name := filepath.Base(strings.TrimSpace(req.Filename))
	if name == "." || name == "/" || name == "" {
		name = req.Owner + "-" + req.Repo
	}
	if !strings.EqualFold(filepath.Ext(name), workbookExtension) {
		name += workbookExtension
	}
	return name
}

type searchSink struct {
	index    *sink.SearchIndex
	embedder *sink.Embedder
	owner    string
	repo     string
}

func (s *searchSink) EnsureReady(ctx context.Context) error {
	_, err := s.index.EnsureIndex(ctx)
	return err
}

func (s *searchSink) Upsert(ctx context.Context, issue *model.Issue) error {
	vector, err := s.embedder.Embed(ctx, EmbeddingText(issue))
	if err != nil {
		return err
	}
	return s.index.Upload(ctx, NewSearchDocument(s.owner, s.repo, issue, vector))
}

type workbookSink struct {
	book   *sink.Workbook
	labels []*model.Label
}

func (s *workbookSink) EnsureReady(ctx context.Context) error {
	if err := s.book.Open(); err != nil {
		return err
	}
	return s.book.SetLabels(labelValues(s.labels))
}

func (s *workbookSink) Upsert(ctx context.Context, issue *model.Issue) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.book.Replace(strconv.Itoa(issue.Number), rowValues(IssueRows(issue)))
}

func (s *workbookSink) Flush(ctx context.Context) error {
	return s.book.Flush()
}
