// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package export_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattermost/mattermost-issuesync/internal/export"
	"github.com/mattermost/mattermost-issuesync/internal/export/mocks"
	"github.com/mattermost/mattermost-issuesync/internal/issues"
	"github.com/mattermost/mattermost-issuesync/internal/sink"
	"github.com/mattermost/mattermost-issuesync/model"
	"github.com/mattermost/mattermost-issuesync/store"
	storemocks "github.com/mattermost/mattermost-issuesync/store/mocks"
)

var ctxInterface = reflect.TypeOf((*context.Context)(nil)).Elem()

type noopMetrics struct{}

func (noopMetrics) IncreaseExportJobs(string, string)  {}
func (noopMetrics) IncreaseExportItems(string, string) {}

// recordingSink remembers the issues written to it. Its behaviour can be
// changed between runs through the exported hooks.
type recordingSink struct {
	mu       sync.Mutex
	upserted []int
	ensured  int

	ensure func(ctx context.Context) error
	upsert func(ctx context.Context, number int) error
}

func (s *recordingSink) EnsureReady(ctx context.Context) error {
	s.mu.Lock()
	s.ensured++
	hook := s.ensure
	s.mu.Unlock()
	if hook != nil {
		return hook(ctx)
	}
	return nil
}

func (s *recordingSink) Upsert(ctx context.Context, issue *model.Issue) error {
	s.mu.Lock()
	hook := s.upsert
	s.mu.Unlock()
	if hook != nil {
		if err := hook(ctx, issue.Number); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.upserted = append(s.upserted, issue.Number)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) set(ensure func(context.Context) error, upsert func(context.Context, int) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure = ensure
	s.upsert = upsert
	s.upserted = nil
}

func (s *recordingSink) written() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.upserted...)
}

// bufferingSink holds the written issues until they are flushed.
type bufferingSink struct {
	recordingSink

	flushes int
	flushed []int
	flush   func() error
}

func (s *bufferingSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flush != nil {
		if err := s.flush(); err != nil {
			return err
		}
	}
	s.flushes++
	s.flushed = append([]int(nil), s.upserted...)
	return nil
}

func (s *bufferingSink) durable() ([]int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.flushed...), s.flushes
}

type staticSinks struct {
	sink export.Sink
}

func (f *staticSinks) Open(*model.ExportJob, *model.SourceSnapshot) (export.Sink, error) {
	return f.sink, nil
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLStore(store.DriverSQLite, filepath.Join(t.TempDir(), "export_test.db"))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func testIssues(n int) []*model.Issue {
	list := make([]*model.Issue, 0, n)
	for i := 1; i <= n; i++ {
		list = append(list, &model.Issue{Number: i, Title: "issue", State: "open"})
	}
	return list
}

func savePendingJob(t *testing.T, s store.Store, id string) *model.ExportJob {
	t.Helper()
	job, err := s.ExportJob().Save(&model.ExportJob{
		ID: id,
		Request: model.ExportRequest{
			Owner:  "acme",
			Repo:   "widgets",
			Labels: model.StringArray{"bug"},
			Sink:   model.SinkSearch,
		},
		Stage: model.StagePending,
	})
	require.NoError(t, err)
	return job
}

func expectRepository(fetcher *mocks.MockFetcher, n int) *gomock.Call {
	return fetcher.EXPECT().
		Repository(gomock.AssignableToTypeOf(ctxInterface), "acme", "widgets", issues.Filter{Labels: []string{"bug"}}).
		Return(&issues.IssueSet{Issues: testIssues(n), Total: n}, []*model.Label{{Name: "bug"}}, nil)
}

func TestRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	t.Run("Should run a job to completion", func(t *testing.T) {
		s := newTestStore(t)
		fetcher := mocks.NewMockFetcher(ctrl)
		expectRepository(fetcher, 3).Times(1)
		snk := &recordingSink{}
		o := export.NewOrchestrator(s, fetcher, &staticSinks{snk}, noopMetrics{}, export.Config{Workers: 2})

		savePendingJob(t, s, "job-1")
		require.NoError(t, o.Run(context.Background(), "job-1"))

		job, err := o.Get("job-1")
		require.NoError(t, err)
		assert.Equal(t, model.StageCompleted, job.Stage)
		assert.Equal(t, 3, job.TotalItems)
		assert.Equal(t, 3, job.ProcessedItems)
		assert.Equal(t, 0, job.FailedItems)
		assert.ElementsMatch(t, []int{1, 2, 3}, snk.written())

		// A completed job is left alone.
		require.NoError(t, o.Run(context.Background(), "job-1"))
		assert.Len(t, snk.written(), 3)
	})

	t.Run("Should complete a job without issues", func(t *testing.T) {
		s := newTestStore(t)
		fetcher := mocks.NewMockFetcher(ctrl)
		expectRepository(fetcher, 0).Times(1)
		o := export.NewOrchestrator(s, fetcher, &staticSinks{&recordingSink{}}, noopMetrics{}, export.Config{})

		savePendingJob(t, s, "job-1")
		require.NoError(t, o.Run(context.Background(), "job-1"))

		job, err := o.Get("job-1")
		require.NoError(t, err)
		assert.Equal(t, model.StageCompleted, job.Stage)
		assert.Equal(t, 0, job.TotalItems)
	})

	t.Run("Should not fetch again when resuming after the fetching stage", func(t *testing.T) {
		s := newTestStore(t)
		fetcher := mocks.NewMockFetcher(ctrl)
		expectRepository(fetcher, 3).Times(1)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		crashing := &recordingSink{}
		crashing.set(func(ctx context.Context) error {
			cancel()
			return ctx.Err()
		}, nil)
		o := export.NewOrchestrator(s, fetcher, &staticSinks{crashing}, noopMetrics{}, export.Config{})

		savePendingJob(t, s, "job-1")
		require.ErrorIs(t, o.Run(ctx, "job-1"), context.Canceled)

		job, err := o.Get("job-1")
		require.NoError(t, err)
		assert.Equal(t, model.StageEnsuringSink, job.Stage)
		assert.Equal(t, 3, job.TotalItems)

		healthy := &recordingSink{}
		restarted := export.NewOrchestrator(s, fetcher, &staticSinks{healthy}, noopMetrics{}, export.Config{})
		require.NoError(t, restarted.Run(context.Background(), "job-1"))

		job, err = restarted.Get("job-1")
		require.NoError(t, err)
		assert.Equal(t, model.StageCompleted, job.Stage)
		assert.ElementsMatch(t, []int{1, 2, 3}, healthy.written())
	})

	t.Run("Should not write completed items again after an interruption", func(t *testing.T) {
		s := newTestStore(t)
		fetcher := mocks.NewMockFetcher(ctrl)
		expectRepository(fetcher, 5).Times(1)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		snk := &recordingSink{}
		snk.set(nil, func(ctx context.Context, number int) error {
			if number == 3 {
				cancel()
			}
			return nil
		})
		o := export.NewOrchestrator(s, fetcher, &staticSinks{snk}, noopMetrics{}, export.Config{Workers: 1})

		savePendingJob(t, s, "job-1")
		require.ErrorIs(t, o.Run(ctx, "job-1"), context.Canceled)

		job, err := o.Get("job-1")
		require.NoError(t, err)
		assert.Equal(t, model.StageProcessingItems, job.Stage)
		assert.Equal(t, 3, job.ProcessedItems)
		assert.Equal(t, []int{1, 2, 3}, snk.written())

		snk.set(nil, nil)
		require.NoError(t, o.Run(context.Background(), "job-1"))

		job, err = o.Get("job-1")
		require.NoError(t, err)
		assert.Equal(t, model.StageCompleted, job.Stage)
		assert.Equal(t, 5, job.ProcessedItems)
		assert.Equal(t, []int{4, 5}, snk.written())
	})

	t.Run("Should let the item in flight finish when interrupted", func(t *testing.T) {
		s := newTestStore(t)
		fetcher := mocks.NewMockFetcher(ctrl)
		expectRepository(fetcher, 3).Times(1)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		snk := &recordingSink{}
		snk.set(nil, func(itemCtx context.Context, number int) error {
			if number != 1 {
				return nil
			}
			cancel()
			select {
			case <-itemCtx.Done():
				return itemCtx.Err()
			case <-time.After(200 * time.Millisecond):
				return nil
			}
		})
		o := export.NewOrchestrator(s, fetcher, &staticSinks{snk}, noopMetrics{}, export.Config{Workers: 1})

		savePendingJob(t, s, "job-1")
		require.ErrorIs(t, o.Run(ctx, "job-1"), context.Canceled)

		job, err := o.Get("job-1")
		require.NoError(t, err)
		assert.Equal(t, model.StageProcessingItems, job.Stage)
		assert.Equal(t, 1, job.ProcessedItems)
		assert.Equal(t, 0, job.FailedItems)
		assert.Equal(t, []int{1}, snk.written())

		statuses, err := s.ExportJob().GetItemStatuses("job-1")
		require.NoError(t, err)
		require.Len(t, statuses, 1)
		assert.Equal(t, model.ItemSucceeded, statuses[0].State)
	})

	t.Run("Should bound an item write with the item timeout", func(t *testing.T) {
		s := newTestStore(t)
		fetcher := mocks.NewMockFetcher(ctrl)
		expectRepository(fetcher, 2).Times(1)

		snk := &recordingSink{}
		snk.set(nil, func(itemCtx context.Context, number int) error {
			if number != 1 {
				return nil
			}
			<-itemCtx.Done()
			return itemCtx.Err()
		})
		o := export.NewOrchestrator(s, fetcher, &staticSinks{snk}, noopMetrics{}, export.Config{Workers: 1, ItemTimeout: 50 * time.Millisecond})

		savePendingJob(t, s, "job-1")
		require.NoError(t, o.Run(context.Background(), "job-1"))

		job, err := o.Get("job-1")
		require.NoError(t, err)
		assert.Equal(t, model.StageCompleted, job.Stage)
		assert.Equal(t, 2, job.ProcessedItems)
		assert.Equal(t, 1, job.FailedItems)

		statuses, err := s.ExportJob().GetItemStatuses("job-1")
		require.NoError(t, err)
		require.Len(t, statuses, 2)
		assert.Equal(t, model.ItemFailed, statuses[0].State)
		assert.Contains(t, statuses[0].Error, context.DeadlineExceeded.Error())
	})

	t.Run("Should record a dimension mismatch as an item failure", func(t *testing.T) {
		s := newTestStore(t)
		fetcher := mocks.NewMockFetcher(ctrl)
		expectRepository(fetcher, 3).Times(1)
		snk := &recordingSink{}
		snk.set(nil, func(ctx context.Context, number int) error {
			if number == 1 {
				return fmt.Errorf("document acme/widgets#1: %w: got 3, want 4", sink.ErrDimensionMismatch)
			}
			return nil
		})
		o := export.NewOrchestrator(s, fetcher, &staticSinks{snk}, noopMetrics{}, export.Config{Workers: 1})

		savePendingJob(t, s, "job-1")
		require.NoError(t, o.Run(context.Background(), "job-1"))

		job, err := o.Get("job-1")
		require.NoError(t, err)
		assert.Equal(t, model.StageCompleted, job.Stage)
		assert.Empty(t, job.FailedStage)
		assert.Equal(t, 3, job.ProcessedItems)
		assert.Equal(t, 1, job.FailedItems)
		assert.Equal(t, []int{2, 3}, snk.written())

		statuses, err := s.ExportJob().GetItemStatuses("job-1")
		require.NoError(t, err)
		require.Len(t, statuses, 3)
		assert.Equal(t, model.ItemFailed, statuses[0].State)
		assert.Contains(t, statuses[0].Error, sink.ErrDimensionMismatch.Error())
	})

	t.Run("Should record buffered items once they are flushed", func(t *testing.T) {
		s := newTestStore(t)
		fetcher := mocks.NewMockFetcher(ctrl)
		expectRepository(fetcher, 5).Times(1)
		snk := &bufferingSink{}
		o := export.NewOrchestrator(s, fetcher, &staticSinks{snk}, noopMetrics{}, export.Config{Workers: 1, FlushEvery: 2})

		savePendingJob(t, s, "job-1")
		require.NoError(t, o.Run(context.Background(), "job-1"))

		job, err := o.Get("job-1")
		require.NoError(t, err)
		assert.Equal(t, model.StageCompleted, job.Stage)
		assert.Equal(t, 5, job.ProcessedItems)

		flushed, flushes := snk.durable()
		assert.Equal(t, 3, flushes)
		assert.Equal(t, []int{1, 2, 3, 4, 5}, flushed)
	})

	t.Run("Should flush the buffered items when interrupted", func(t *testing.T) {
		s := newTestStore(t)
		fetcher := mocks.NewMockFetcher(ctrl)
		expectRepository(fetcher, 5).Times(1)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		snk := &bufferingSink{}
		snk.set(nil, func(ctx context.Context, number int) error {
			if number == 3 {
				cancel()
			}
			return nil
		})
		o := export.NewOrchestrator(s, fetcher, &staticSinks{snk}, noopMetrics{}, export.Config{Workers: 1, FlushEvery: 10})

		savePendingJob(t, s, "job-1")
		require.ErrorIs(t, o.Run(ctx, "job-1"), context.Canceled)

		job, err := o.Get("job-1")
		require.NoError(t, err)
		assert.Equal(t, model.StageProcessingItems, job.Stage)
		assert.Equal(t, 3, job.ProcessedItems)

		flushed, flushes := snk.durable()
		assert.Equal(t, 1, flushes)
		assert.Equal(t, []int{1, 2, 3}, flushed)
	})

	t.Run("Should not record items a failed flush did not persist", func(t *testing.T) {
		s := newTestStore(t)
		fetcher := mocks.NewMockFetcher(ctrl)
		expectRepository(fetcher, 3).Times(1)
		snk := &bufferingSink{flush: func() error {
			return &sink.UnavailableError{Sink: "workbook", Err: errors.New("no space left on device")}
		}}
		o := export.NewOrchestrator(s, fetcher, &staticSinks{snk}, noopMetrics{}, export.Config{Workers: 1, FlushEvery: 2})

		savePendingJob(t, s, "job-1")
		require.NoError(t, o.Run(context.Background(), "job-1"))

		job, err := o.Get("job-1")
		require.NoError(t, err)
		assert.Equal(t, model.StageFailed, job.Stage)
		assert.Equal(t, model.StageProcessingItems, job.FailedStage)
		assert.Contains(t, job.Error, "no space left on device")
		assert.Equal(t, 0, job.ProcessedItems)

		statuses, err := s.ExportJob().GetItemStatuses("job-1")
		require.NoError(t, err)
		assert.Empty(t, statuses)
	})

	t.Run("Should record item failures and still complete", func(t *testing.T) {
		s := newTestStore(t)
		fetcher := mocks.NewMockFetcher(ctrl)
		expectRepository(fetcher, 3).Times(1)
		snk := &recordingSink{}
		snk.set(nil, func(ctx context.Context, number int) error {
			if number == 2 {
				return errors.New("bad document")
			}
			return nil
		})
		o := export.NewOrchestrator(s, fetcher, &staticSinks{snk}, noopMetrics{}, export.Config{Workers: 3})

		savePendingJob(t, s, "job-1")
		require.NoError(t, o.Run(context.Background(), "job-1"))

		job, err := o.Get("job-1")
		require.NoError(t, err)
		assert.Equal(t, model.StageCompleted, job.Stage)
		assert.Equal(t, 3, job.ProcessedItems)
		assert.Equal(t, 1, job.FailedItems)

		statuses, err := s.ExportJob().GetItemStatuses("job-1")
		require.NoError(t, err)
		require.Len(t, statuses, 3)
		assert.Equal(t, model.ItemFailed, statuses[1].State)
		assert.Equal(t, "bad document", statuses[1].Error)
	})

	t.Run("Should fail the job when the source can't be fetched", func(t *testing.T) {
		s := newTestStore(t)
		fetcher := mocks.NewMockFetcher(ctrl)
		fetcher.EXPECT().
			Repository(gomock.AssignableToTypeOf(ctxInterface), "acme", "widgets", gomock.Any()).
			Return(nil, nil, &issues.FetchError{Resource: issues.ResourceIssues, Page: 2, Err: errors.New("boom")}).
			Times(1)
		snk := &recordingSink{}
		o := export.NewOrchestrator(s, fetcher, &staticSinks{snk}, noopMetrics{}, export.Config{})

		savePendingJob(t, s, "job-1")
		require.NoError(t, o.Run(context.Background(), "job-1"))

		job, err := o.Get("job-1")
		require.NoError(t, err)
		assert.Equal(t, model.StageFailed, job.Stage)
		assert.Equal(t, model.StageFetchingSource, job.FailedStage)
		assert.Contains(t, job.Error, "fetch failed")
		assert.Equal(t, 0, snk.ensured)

		snapshot, err := s.ExportJob().GetSnapshot("job-1")
		require.NoError(t, err)
		assert.Nil(t, snapshot)
	})

	t.Run("Should fail the job when the sink is unavailable and resume it on retry", func(t *testing.T) {
		s := newTestStore(t)
		fetcher := mocks.NewMockFetcher(ctrl)
		expectRepository(fetcher, 3).Times(1)
		snk := &recordingSink{}
		snk.set(nil, func(ctx context.Context, number int) error {
			if number == 2 {
				return &sink.UnavailableError{Sink: "search index", Err: errors.New("503 Service Unavailable")}
			}
			return nil
		})
		o := export.NewOrchestrator(s, fetcher, &staticSinks{snk}, noopMetrics{}, export.Config{Workers: 1})
		defer o.Stop()

		savePendingJob(t, s, "job-1")
		require.NoError(t, o.Run(context.Background(), "job-1"))

		job, err := o.Get("job-1")
		require.NoError(t, err)
		assert.Equal(t, model.StageFailed, job.Stage)
		assert.Equal(t, model.StageProcessingItems, job.FailedStage)
		assert.Contains(t, job.Error, "unavailable")
		assert.Equal(t, 1, job.ProcessedItems)
		assert.Equal(t, []int{1}, snk.written())

		statuses, err := s.ExportJob().GetItemStatuses("job-1")
		require.NoError(t, err)
		require.Len(t, statuses, 1)
		assert.Equal(t, 1, statuses[0].ItemKey)

		snk.set(nil, nil)
		job, err = o.Retry("job-1")
		require.NoError(t, err)
		assert.Equal(t, model.StageProcessingItems, job.Stage)
		assert.Empty(t, job.Error)

		require.Eventually(t, func() bool {
			job, err := o.Get("job-1")
			return err == nil && job.Stage == model.StageCompleted
		}, 5*time.Second, 10*time.Millisecond)
		assert.Equal(t, []int{2, 3}, snk.written())
	})

	t.Run("Should fail the job when the sink can't be prepared", func(t *testing.T) {
		s := newTestStore(t)
		fetcher := mocks.NewMockFetcher(ctrl)
		expectRepository(fetcher, 2).Times(1)
		snk := &recordingSink{}
		snk.set(func(ctx context.Context) error {
			return &sink.UnavailableError{Sink: "workbook", Err: errors.New("permission denied")}
		}, nil)
		o := export.NewOrchestrator(s, fetcher, &staticSinks{snk}, noopMetrics{}, export.Config{})
		defer o.Stop()

		savePendingJob(t, s, "job-1")
		require.NoError(t, o.Run(context.Background(), "job-1"))

		job, err := o.Get("job-1")
		require.NoError(t, err)
		assert.Equal(t, model.StageFailed, job.Stage)
		assert.Equal(t, model.StageEnsuringSink, job.FailedStage)
		assert.Empty(t, snk.written())

		snk.set(nil, nil)
		_, err = o.Retry("job-1")
		require.NoError(t, err)
		require.Eventually(t, func() bool {
			job, err := o.Get("job-1")
			return err == nil && job.Stage == model.StageCompleted
		}, 5*time.Second, 10*time.Millisecond)
		assert.ElementsMatch(t, []int{1, 2}, snk.written())
	})
}

func TestRetry(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s := newTestStore(t)
	o := export.NewOrchestrator(s, mocks.NewMockFetcher(ctrl), &staticSinks{&recordingSink{}}, noopMetrics{}, export.Config{})
	defer o.Stop()

	t.Run("Should refuse a job that did not fail", func(t *testing.T) {
		job := savePendingJob(t, s, "job-1")
		job.Stage = model.StageCompleted
		require.NoError(t, s.ExportJob().UpdateProgress(job))

		_, err := o.Retry("job-1")
		require.ErrorIs(t, err, export.ErrJobNotFailed)
	})

	t.Run("Should report an unknown job", func(t *testing.T) {
		_, err := o.Retry("missing")
		require.ErrorIs(t, err, export.ErrJobNotFound)

		_, err = o.Get("missing")
		require.ErrorIs(t, err, export.ErrJobNotFound)
	})
}

func TestSubmit(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	t.Run("Should validate the request", func(t *testing.T) {
		o := export.NewOrchestrator(storemocks.NewMockStore(ctrl), mocks.NewMockFetcher(ctrl), &staticSinks{}, noopMetrics{}, export.Config{})

		var validation *issues.ValidationError
		_, err := o.Submit(&model.ExportRequest{Owner: " ", Repo: "widgets"})
		require.ErrorAs(t, err, &validation)
		assert.Equal(t, "repository", validation.Field)

		_, err = o.Submit(&model.ExportRequest{Owner: "acme", Repo: "widgets", Sink: "pdf"})
		require.ErrorAs(t, err, &validation)
		assert.Equal(t, "sink", validation.Field)
	})

	t.Run("Should not start a job that could not be saved", func(t *testing.T) {
		mockStore := storemocks.NewMockStore(ctrl)
		jobs := storemocks.NewMockExportJobStore(ctrl)
		mockStore.EXPECT().ExportJob().Return(jobs).Times(1)
		jobs.EXPECT().Save(gomock.Any()).Return(nil, errors.New("database is locked")).Times(1)

		o := export.NewOrchestrator(mockStore, mocks.NewMockFetcher(ctrl), &staticSinks{}, noopMetrics{}, export.Config{})
		_, err := o.Submit(&model.ExportRequest{Owner: "acme", Repo: "widgets"})
		require.EqualError(t, err, "database is locked")
	})

	t.Run("Should run a submitted job in the background", func(t *testing.T) {
		s := newTestStore(t)
		fetcher := mocks.NewMockFetcher(ctrl)
		expectRepository(fetcher, 2).Times(1)
		snk := &recordingSink{}
		o := export.NewOrchestrator(s, fetcher, &staticSinks{snk}, noopMetrics{}, export.Config{})
		defer o.Stop()

		job, err := o.Submit(&model.ExportRequest{Owner: " acme ", Repo: "widgets", Labels: model.StringArray{"bug", " "}})
		require.NoError(t, err)
		assert.NotEmpty(t, job.ID)
		assert.Equal(t, model.StagePending, job.Stage)
		assert.Equal(t, model.SinkSearch, job.Request.Sink)

		require.Eventually(t, func() bool {
			job, err := o.Get(job.ID)
			return err == nil && job.Stage == model.StageCompleted
		}, 5*time.Second, 10*time.Millisecond)
		assert.ElementsMatch(t, []int{1, 2}, snk.written())
	})
}

func TestResumeUnfinished(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s := newTestStore(t)
	fetcher := mocks.NewMockFetcher(ctrl)
	expectRepository(fetcher, 1).Times(2)
	o := export.NewOrchestrator(s, fetcher, &staticSinks{&recordingSink{}}, noopMetrics{}, export.Config{})
	defer o.Stop()

	savePendingJob(t, s, "job-1")
	savePendingJob(t, s, "job-2")
	done := savePendingJob(t, s, "job-3")
	done.Stage = model.StageCompleted
	require.NoError(t, s.ExportJob().UpdateProgress(done))

	started, err := o.ResumeUnfinished()
	require.NoError(t, err)
	assert.Equal(t, 2, started)

	require.Eventually(t, func() bool {
		unfinished, err := s.ExportJob().ListUnfinished()
		return err == nil && len(unfinished) == 0
	}, 5*time.Second, 10*time.Millisecond)
}
