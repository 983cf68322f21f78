// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mattermost/mattermost-issuesync/model"
)

func getTestSQLStore(t *testing.T) *SQLStore {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "issuesync_test.db")
	store, err := NewSQLStore(DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	return store
}

func newTestJob(id string) *model.ExportJob {
	return &model.ExportJob{
		ID: id,
		Request: model.ExportRequest{
			Owner:           "acme",
			Repo:            "widgets",
			Labels:          model.StringArray{"bug", "ui"},
			IncludeComments: true,
			Sink:            model.SinkSpreadsheet,
		},
		Stage: model.StagePending,
	}
}

func TestExportJobStore(t *testing.T) {
	store := getTestSQLStore(t)
	jobs := store.ExportJob()

	t.Run("Should save and get a job", func(t *testing.T) {
		defer store.DropAllTables()
		job, err := jobs.Save(newTestJob("job-1"))
		require.NoError(t, err)
		require.False(t, job.CreatedAt.IsZero())

		got, err := jobs.Get("job-1")
		require.NoError(t, err)
		require.Equal(t, "job-1", got.ID)
		require.Equal(t, job.Request, got.Request)
		require.Equal(t, model.StagePending, got.Stage)
		require.WithinDuration(t, job.CreatedAt, got.CreatedAt, time.Millisecond)
	})

	t.Run("Should return empty if can't find the job", func(t *testing.T) {
		got, err := jobs.Get("missing")
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("Should refuse a duplicate id", func(t *testing.T) {
		defer store.DropAllTables()
		_, err := jobs.Save(newTestJob("job-1"))
		require.NoError(t, err)
		_, err = jobs.Save(newTestJob("job-1"))
		require.Error(t, err)
	})

	t.Run("Should list unfinished jobs only", func(t *testing.T) {
		defer store.DropAllTables()
		for id, stage := range map[string]model.Stage{
			"pending":   model.StagePending,
			"items":     model.StageProcessingItems,
			"completed": model.StageCompleted,
			"failed":    model.StageFailed,
		} {
			job := newTestJob(id)
			job.Stage = stage
			_, err := jobs.Save(job)
			require.NoError(t, err)
		}

		unfinished, err := jobs.ListUnfinished()
		require.NoError(t, err)
		require.Len(t, unfinished, 2)
		for _, job := range unfinished {
			require.False(t, job.Stage.Terminal())
		}
	})

	t.Run("Should update the progress of a job", func(t *testing.T) {
		defer store.DropAllTables()
		job, err := jobs.Save(newTestJob("job-1"))
		require.NoError(t, err)

		job.Stage = model.StageFailed
		job.FailedStage = model.StageEnsuringSink
		job.Error = "sink unavailable"
		require.NoError(t, jobs.UpdateProgress(job))

		got, err := jobs.Get("job-1")
		require.NoError(t, err)
		require.Equal(t, model.StageFailed, got.Stage)
		require.Equal(t, model.StageEnsuringSink, got.FailedStage)
		require.Equal(t, "sink unavailable", got.Error)
	})

	t.Run("Should store the snapshot with the stage advance", func(t *testing.T) {
		defer store.DropAllTables()
		job, err := jobs.Save(newTestJob("job-1"))
		require.NoError(t, err)

		snapshot, err := jobs.GetSnapshot("job-1")
		require.NoError(t, err)
		require.Nil(t, snapshot)

		job.Stage = model.StageEnsuringSink
		job.TotalItems = 2
		fetchedAt := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		require.NoError(t, jobs.SaveSnapshot(job, &model.SourceSnapshot{
			Issues:    []*model.Issue{{Number: 1, Title: "one"}, {Number: 2, Title: "two"}},
			Labels:    []*model.Label{{Name: "bug"}},
			FetchedAt: fetchedAt,
		}))

		snapshot, err = jobs.GetSnapshot("job-1")
		require.NoError(t, err)
		require.Len(t, snapshot.Issues, 2)
		require.Equal(t, "two", snapshot.Issues[1].Title)
		require.Equal(t, "bug", snapshot.Labels[0].Name)
		require.True(t, fetchedAt.Equal(snapshot.FetchedAt))

		got, err := jobs.Get("job-1")
		require.NoError(t, err)
		require.Equal(t, model.StageEnsuringSink, got.Stage)
		require.Equal(t, 2, got.TotalItems)
	})

	t.Run("Should count item statuses", func(t *testing.T) {
		defer store.DropAllTables()
		job, err := jobs.Save(newTestJob("job-1"))
		require.NoError(t, err)

		require.NoError(t, jobs.SaveItemStatus(job, &model.ItemStatus{ItemKey: 1, State: model.ItemSucceeded}))
		require.NoError(t, jobs.SaveItemStatus(job, &model.ItemStatus{ItemKey: 2, State: model.ItemFailed, Error: "bad"}))
		require.Equal(t, 2, job.ProcessedItems)
		require.Equal(t, 1, job.FailedItems)

		// Writing the same item again replaces its status.
		require.NoError(t, jobs.SaveItemStatus(job, &model.ItemStatus{ItemKey: 2, State: model.ItemSucceeded}))
		require.Equal(t, 2, job.ProcessedItems)
		require.Equal(t, 0, job.FailedItems)

		statuses, err := jobs.GetItemStatuses("job-1")
		require.NoError(t, err)
		require.Len(t, statuses, 2)
		require.Equal(t, 1, statuses[0].ItemKey)
		require.Equal(t, model.ItemSucceeded, statuses[1].State)

		got, err := jobs.Get("job-1")
		require.NoError(t, err)
		require.Equal(t, 2, got.ProcessedItems)
		require.Equal(t, 0, got.FailedItems)
	})
}

func TestMutex(t *testing.T) {
	store := getTestSQLStore(t)

	t.Run("Should lock and unlock", func(t *testing.T) {
		m, err := store.NewMutex("export-job-1")
		require.NoError(t, err)

		require.NoError(t, m.Lock(context.Background()))
		require.NoError(t, m.Unlock())
		require.NoError(t, m.Lock(context.Background()))
		require.NoError(t, m.Unlock())
	})

	t.Run("Should wait for a held lock until the context ends", func(t *testing.T) {
		first, err := store.NewMutex("export-job-2")
		require.NoError(t, err)
		second, err := store.NewMutex("export-job-2")
		require.NoError(t, err)

		require.NoError(t, first.Lock(context.Background()))
		defer func() { require.NoError(t, first.Unlock()) }()

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		require.ErrorIs(t, second.Lock(ctx), context.DeadlineExceeded)
	})

	t.Run("Should refuse an empty key", func(t *testing.T) {
		_, err := store.NewMutex("")
		require.Error(t, err)
	})
}

func TestNextWaitInterval(t *testing.T) {
	t.Run("Should poll after a clean miss", func(t *testing.T) {
		next := nextWaitInterval(0, nil)
		require.InDelta(t, float64(pollWaitInterval), float64(next), float64(jitterWaitInterval))
	})

	t.Run("Should back off after an error", func(t *testing.T) {
		next := nextWaitInterval(4*time.Second, context.DeadlineExceeded)
		require.InDelta(t, float64(8*time.Second), float64(next), float64(jitterWaitInterval))
	})

	t.Run("Should cap the backoff", func(t *testing.T) {
		next := nextWaitInterval(maxWaitInterval, context.DeadlineExceeded)
		require.LessOrEqual(t, next, maxWaitInterval+jitterWaitInterval)
	})
}
