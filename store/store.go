// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package store

import (
	"context"

	"github.com/mattermost/mattermost-issuesync/model"
)

//go:generate mockgen -destination=mocks/mock_store.go -package mocks github.com/mattermost/mattermost-issuesync/store Store,ExportJobStore,Locker

type Store interface {
	ExportJob() ExportJobStore
	// NewMutex returns a lock shared by every instance using the same
	// database.
	NewMutex(key string) (Locker, error)
	Close()
	DropAllTables()
}

type Locker interface {
	Lock(ctx context.Context) error
	Unlock() error
}

// ExportJobStore persists export jobs and their checkpoints. Get methods
// return nil without an error when nothing is stored.
type ExportJobStore interface {
	Save(job *model.ExportJob) (*model.ExportJob, error)
	Get(id string) (*model.ExportJob, error)
	ListUnfinished() ([]*model.ExportJob, error)
	// UpdateProgress stores the stage, failure and counters of job.
	UpdateProgress(job *model.ExportJob) error
	// SaveSnapshot stores the fetched source of a job together with the
	// stage it advances to.
	SaveSnapshot(job *model.ExportJob, snapshot *model.SourceSnapshot) error
	GetSnapshot(jobID string) (*model.SourceSnapshot, error)
	// SaveItemStatus stores the terminal status of one item and refreshes
	// the counters of job from the stored statuses.
	SaveItemStatus(job *model.ExportJob, status *model.ItemStatus) error
	GetItemStatuses(jobID string) ([]*model.ItemStatus, error)
}
