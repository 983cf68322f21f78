// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/mattermost/mattermost-issuesync/model"
)

type SQLExportJobStore struct {
	*SQLStore
}

func NewSQLExportJobStore(sqlStore *SQLStore) ExportJobStore {
	return &SQLExportJobStore{sqlStore}
}

type exportJobRow struct {
	ID              string            `db:"Id"`
	Owner           string            `db:"Owner"`
	Repo            string            `db:"Repo"`
	Labels          model.StringArray `db:"Labels"`
	IncludeComments bool              `db:"IncludeComments"`
	Filename        string            `db:"Filename"`
	Sink            string            `db:"Sink"`
	Stage           string            `db:"Stage"`
	FailedStage     string            `db:"FailedStage"`
	Error           string            `db:"Error"`
	TotalItems      int               `db:"TotalItems"`
	ProcessedItems  int               `db:"ProcessedItems"`
	FailedItems     int               `db:"FailedItems"`
	CreateAt        int64             `db:"CreateAt"`
	UpdateAt        int64             `db:"UpdateAt"`
}

const exportJobColumns = `Id, Owner, Repo, Labels, IncludeComments, Filename, Sink, Stage, FailedStage, Error,
	TotalItems, ProcessedItems, FailedItems, CreateAt, UpdateAt`

func newExportJobRow(job *model.ExportJob) *exportJobRow {
	return &exportJobRow{
		ID:              job.ID,
		Owner:           job.Request.Owner,
		Repo:            job.Request.Repo,
		Labels:          job.Request.Labels,
		IncludeComments: job.Request.IncludeComments,
		Filename:        job.Request.Filename,
		Sink:            string(job.Request.Sink),
		Stage:           string(job.Stage),
		FailedStage:     string(job.FailedStage),
		Error:           job.Error,
		TotalItems:      job.TotalItems,
		ProcessedItems:  job.ProcessedItems,
		FailedItems:     job.FailedItems,
		CreateAt:        millis(job.CreatedAt),
		UpdateAt:        millis(job.UpdatedAt),
	}
}

func (r *exportJobRow) toModel() *model.ExportJob {
	return &model.ExportJob{
		ID: r.ID,
		Request: model.ExportRequest{
			Owner:           r.Owner,
			Repo:            r.Repo,
			Labels:          r.Labels,
			IncludeComments: r.IncludeComments,
			Filename:        r.Filename,
			Sink:            model.SinkKind(r.Sink),
		},
		Stage:          model.Stage(r.Stage),
		FailedStage:    model.Stage(r.FailedStage),
		Error:          r.Error,
		TotalItems:     r.TotalItems,
		ProcessedItems: r.ProcessedItems,
		FailedItems:    r.FailedItems,
		CreatedAt:      fromMillis(r.CreateAt),
		UpdatedAt:      fromMillis(r.UpdateAt),
	}
}

type itemStatusRow struct {
	JobID    string `db:"JobId"`
	ItemKey  int    `db:"ItemKey"`
	State    string `db:"State"`
	Error    string `db:"Error"`
	UpdateAt int64  `db:"UpdateAt"`
}

func (s SQLExportJobStore) Save(job *model.ExportJob) (*model.ExportJob, error) {
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	row := newExportJobRow(job)
	if _, err := s.dbx.NamedExec(
		`INSERT INTO ExportJobs
			(`+exportJobColumns+`)
		VALUES
			(:Id, :Owner, :Repo, :Labels, :IncludeComments, :Filename, :Sink, :Stage, :FailedStage, :Error,
				:TotalItems, :ProcessedItems, :FailedItems, :CreateAt, :UpdateAt)`, row); err != nil {
		return nil, errors.Wrapf(err, "could not insert export job: id=%v", job.ID)
	}
	return job, nil
}

func (s SQLExportJobStore) Get(id string) (*model.ExportJob, error) {
	var row exportJobRow
	if err := s.dbx.Get(&row,
		`SELECT
				`+exportJobColumns+`
			FROM
				ExportJobs
			WHERE
				Id = ?`, id); err != nil {
		if err != sql.ErrNoRows {
			return nil, errors.Wrapf(err, "could not get export job: id=%v", id)
		}
		return nil, nil // row not found.
	}
	return row.toModel(), nil
}

func (s SQLExportJobStore) ListUnfinished() ([]*model.ExportJob, error) {
	var rows []*exportJobRow
	if err := s.dbx.Select(&rows,
		`SELECT
				`+exportJobColumns+`
			FROM
				ExportJobs
			WHERE
				Stage NOT IN (?, ?)
			ORDER BY CreateAt`, string(model.StageCompleted), string(model.StageFailed)); err != nil {
		return nil, errors.Wrap(err, "could not list unfinished export jobs")
	}

	jobs := make([]*model.ExportJob, 0, len(rows))
	for _, row := range rows {
		jobs = append(jobs, row.toModel())
	}
	return jobs, nil
}

func (s SQLExportJobStore) UpdateProgress(job *model.ExportJob) error {
	job.UpdatedAt = time.Now().UTC()
	if _, err := s.dbx.NamedExec(
		`UPDATE ExportJobs
		 SET Stage = :Stage, FailedStage = :FailedStage, Error = :Error, TotalItems = :TotalItems,
			 ProcessedItems = :ProcessedItems, FailedItems = :FailedItems, UpdateAt = :UpdateAt
		 WHERE Id = :Id`, newExportJobRow(job)); err != nil {
		return errors.Wrapf(err, "could not update export job: id=%v", job.ID)
	}
	return nil
}

func (s SQLExportJobStore) SaveSnapshot(job *model.ExportJob, snapshot *model.SourceSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "could not encode source snapshot")
	}

	tx, err := s.dbx.Beginx()
	if err != nil {
		return errors.Wrap(err, "could not begin transaction")
	}
	defer s.finalizeTx(tx)

	params := map[string]interface{}{
		"JobId":     job.ID,
		"Payload":   string(payload),
		"FetchedAt": millis(snapshot.FetchedAt),
	}
	if _, err = tx.NamedExec(
		`INSERT INTO ExportJobSources (JobId, Payload, FetchedAt) VALUES (:JobId, :Payload, :FetchedAt)`, params); err != nil {
		if _, err = tx.NamedExec(
			`UPDATE ExportJobSources SET Payload = :Payload, FetchedAt = :FetchedAt WHERE JobId = :JobId`, params); err != nil {
			return errors.Wrapf(err, "could not insert or update source snapshot: job=%v", job.ID)
		}
	}

	job.UpdatedAt = time.Now().UTC()
	if _, err = tx.NamedExec(
		`UPDATE ExportJobs
		 SET Stage = :Stage, TotalItems = :TotalItems, UpdateAt = :UpdateAt
		 WHERE Id = :Id`, newExportJobRow(job)); err != nil {
		return errors.Wrapf(err, "could not advance export job: id=%v", job.ID)
	}

	return errors.Wrap(tx.Commit(), "could not commit source snapshot")
}

func (s SQLExportJobStore) GetSnapshot(jobID string) (*model.SourceSnapshot, error) {
	var payload string
	if err := s.dbx.Get(&payload, `SELECT Payload FROM ExportJobSources WHERE JobId = ?`, jobID); err != nil {
		if err != sql.ErrNoRows {
			return nil, errors.Wrapf(err, "could not get source snapshot: job=%v", jobID)
		}
		return nil, nil // row not found.
	}

	var snapshot model.SourceSnapshot
	if err := json.Unmarshal([]byte(payload), &snapshot); err != nil {
		return nil, errors.Wrapf(err, "could not decode source snapshot: job=%v", jobID)
	}
	return &snapshot, nil
}

func (s SQLExportJobStore) SaveItemStatus(job *model.ExportJob, status *model.ItemStatus) error {
	tx, err := s.dbx.Beginx()
	if err != nil {
		return errors.Wrap(err, "could not begin transaction")
	}
	defer s.finalizeTx(tx)

	status.UpdatedAt = time.Now().UTC()
	row := &itemStatusRow{
		JobID:    job.ID,
		ItemKey:  status.ItemKey,
		State:    string(status.State),
		Error:    status.Error,
		UpdateAt: millis(status.UpdatedAt),
	}
	if _, err = tx.NamedExec(
		`INSERT INTO ExportJobItems (JobId, ItemKey, State, Error, UpdateAt)
		VALUES (:JobId, :ItemKey, :State, :Error, :UpdateAt)`, row); err != nil {
		if _, err = tx.NamedExec(
			`UPDATE ExportJobItems SET State = :State, Error = :Error, UpdateAt = :UpdateAt
			 WHERE JobId = :JobId AND ItemKey = :ItemKey`, row); err != nil {
			return errors.Wrapf(err, "could not insert or update item status: job=%v, item=%v", job.ID, status.ItemKey)
		}
	}

	var counters struct {
		Processed int `db:"Processed"`
		Failed    int `db:"Failed"`
	}
	if err = tx.Get(&counters,
		`SELECT
				COUNT(*) AS Processed,
				COALESCE(SUM(CASE WHEN State = ? THEN 1 ELSE 0 END), 0) AS Failed
			FROM
				ExportJobItems
			WHERE
				JobId = ?`, string(model.ItemFailed), job.ID); err != nil {
		return errors.Wrapf(err, "could not count item statuses: job=%v", job.ID)
	}

	now := time.Now().UTC()
	if _, err = tx.Exec(
		`UPDATE ExportJobs SET ProcessedItems = ?, FailedItems = ?, UpdateAt = ? WHERE Id = ?`,
		counters.Processed, counters.Failed, millis(now), job.ID); err != nil {
		return errors.Wrapf(err, "could not update export job counters: id=%v", job.ID)
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "could not commit item status")
	}
	job.ProcessedItems = counters.Processed
	job.FailedItems = counters.Failed
	job.UpdatedAt = now
	return nil
}

func (s SQLExportJobStore) GetItemStatuses(jobID string) ([]*model.ItemStatus, error) {
	var rows []*itemStatusRow
	if err := s.dbx.Select(&rows,
		`SELECT
				JobId, ItemKey, State, Error, UpdateAt
			FROM
				ExportJobItems
			WHERE
				JobId = ?
			ORDER BY ItemKey`, jobID); err != nil {
		return nil, errors.Wrapf(err, "could not list item statuses: job=%v", jobID)
	}

	statuses := make([]*model.ItemStatus, 0, len(rows))
	for _, row := range rows {
		statuses = append(statuses, &model.ItemStatus{
			JobID:     row.JobID,
			ItemKey:   row.ItemKey,
			State:     model.ItemState(row.State),
			Error:     row.Error,
			UpdatedAt: fromMillis(row.UpdateAt),
		})
	}
	return statuses, nil
}
