// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package export

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattermost/mattermost-server/v6/shared/mlog"
	"golang.org/x/sync/errgroup"

	"github.com/mattermost/mattermost-issuesync/internal/issues"
	"github.com/mattermost/mattermost-issuesync/internal/sink"
	"github.com/mattermost/mattermost-issuesync/model"
	"github.com/mattermost/mattermost-issuesync/store"
)

//go:generate mockgen -destination=mocks/mock_export.go -package mocks github.com/mattermost/mattermost-issuesync/internal/export Fetcher,Sink,SinkFactory

const (
	DefaultWorkers     = 4
	DefaultItemTimeout = 2 * time.Minute
	DefaultFlushEvery  = 100

	lockKeyPrefix = "export-job-"
)

var (
	ErrJobNotFound  = errors.New("export job not found")
	ErrJobNotFailed = errors.New("export job is not failed")
	ErrJobRunning   = errors.New("export job is already running")
)

type Fetcher interface {
	Repository(ctx context.Context, owner, repo string, filter issues.Filter) (*issues.IssueSet, []*model.Label, error)
}

type Metrics interface {
	IncreaseExportJobs(sink, stage string)
	IncreaseExportItems(sink, state string)
}

type noopMetrics struct{}

func (noopMetrics) IncreaseExportJobs(string, string)  {}
func (noopMetrics) IncreaseExportItems(string, string) {}

type Config struct {
	// Workers bounds the items written to the sink concurrently.
	Workers int
	// ItemTimeout bounds one sink write. An interrupted job still lets the
	// writes in flight run until they finish or time out.
	ItemTimeout time.Duration
	// FlushEvery is how many written items a buffering sink holds before
	// they are flushed and recorded.
	FlushEvery int
}

// Orchestrator drives export jobs through their stages. Every stage
// transition is checkpointed in the store before the next stage starts, so
// a job picked up again after a restart continues where it stopped.
type Orchestrator struct {
	store   store.Store
	fetcher Fetcher
	sinks   SinkFactory
	metrics Metrics
	workers int

	itemTimeout time.Duration
	flushEvery  int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running map[string]struct{}
}

func NewOrchestrator(s store.Store, fetcher Fetcher, sinks SinkFactory, metrics Metrics, config Config) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		store:   s,
		fetcher: fetcher,
		sinks:   sinks,
		metrics: metrics,
		workers: config.Workers,
		ctx:     ctx,
		cancel:  cancel,
		running: map[string]struct{}{},

		itemTimeout: config.ItemTimeout,
		flushEvery:  config.FlushEvery,
	}
	if o.workers <= 0 {
		o.workers = DefaultWorkers
	}
	if o.itemTimeout <= 0 {
		o.itemTimeout = DefaultItemTimeout
	}
	if o.flushEvery <= 0 {
		o.flushEvery = DefaultFlushEvery
	}
	if o.metrics == nil {
		o.metrics = noopMetrics{}
	}
	return o
}

// Submit validates req, records a pending job and starts it in the
// background.
func (o *Orchestrator) Submit(req *model.ExportRequest) (*model.ExportJob, error) {
	req.Normalize()
	if req.Owner == "" || req.Repo == "" {
		return nil, &issues.ValidationError{Field: "repository", Message: "owner and repo are required"}
	}
	if req.Sink != model.SinkSearch && req.Sink != model.SinkSpreadsheet {
		return nil, &issues.ValidationError{Field: "sink", Message: "must be search or spreadsheet"}
	}

	job, err := o.store.ExportJob().Save(&model.ExportJob{
		ID:      uuid.NewString(),
		Request: *req,
		Stage:   model.StagePending,
	})
	if err != nil {
		return nil, err
	}
	o.metrics.IncreaseExportJobs(string(req.Sink), string(job.Stage))
	mlog.Info("Export job submitted",
		mlog.String("job_id", job.ID),
		mlog.String("repo_owner", req.Owner),
		mlog.String("repo_name", req.Repo),
		mlog.String("sink", string(req.Sink)),
	)

	o.start(job.ID)
	return job, nil
}

func (o *Orchestrator) Get(id string) (*model.ExportJob, error) {
	job, err := o.store.ExportJob().Get(id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// Retry resumes a failed job from the stage it failed in. Items already
// written are not written again.
func (o *Orchestrator) Retry(id string) (*model.ExportJob, error) {
	job, err := o.Get(id)
	if err != nil {
		return nil, err
	}
	if job.Stage != model.StageFailed {
		return nil, ErrJobNotFailed
	}

	job.Stage = job.FailedStage
	if job.Stage == "" {
		job.Stage = model.StagePending
	}
	job.FailedStage = ""
	job.Error = ""
	if err := o.store.ExportJob().UpdateProgress(job); err != nil {
		return nil, err
	}
	mlog.Info("Retrying export job", mlog.String("job_id", job.ID), mlog.String("stage", string(job.Stage)))

	o.start(job.ID)
	return job, nil
}

// ResumeUnfinished starts every non-terminal job that is not already
// running in this process and returns how many were started.
func (o *Orchestrator) ResumeUnfinished() (int, error) {
	jobs, err := o.store.ExportJob().ListUnfinished()
	if err != nil {
		return 0, err
	}
	started := 0
	for _, job := range jobs {
		if o.isRunning(job.ID) {
			continue
		}
		o.start(job.ID)
		started++
	}
	return started, nil
}

// Stop cancels the running jobs and waits for them. Their stage is left
// as it was so they can be resumed later.
func (o *Orchestrator) Stop() {
	o.cancel()
	o.wg.Wait()
}

func (o *Orchestrator) start(id string) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		err := o.Run(o.ctx, id)
		switch {
		case err == nil, errors.Is(err, ErrJobRunning):
		case errors.Is(err, context.Canceled):
			mlog.Info("Export job interrupted", mlog.String("job_id", id))
		default:
			mlog.Error("Export job stopped", mlog.String("job_id", id), mlog.Err(err))
		}
	}()
}

func (o *Orchestrator) claim(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.running[id]; ok {
		return false
	}
	o.running[id] = struct{}{}
	return true
}

func (o *Orchestrator) release(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.running, id)
}

func (o *Orchestrator) isRunning(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.running[id]
	return ok
}

// run is the state of one job run.
type run struct {
	job      *model.ExportJob
	snapshot *model.SourceSnapshot
	sink     Sink

	// mu serializes the item status writes, which update the job counters.
	mu sync.Mutex
	// pending holds the items written to a buffering sink but not flushed.
	pending []*model.Issue
}

// stageFailure marks an error that ends the job in the failed stage.
// Other errors leave the job where it is.
type stageFailure struct {
	err error
}

func (f *stageFailure) Error() string { return f.err.Error() }

func (f *stageFailure) Unwrap() error { return f.err }

func fail(err error) error {
	return &stageFailure{err: err}
}

// Run drives a job until it reaches a terminal stage. It returns nil when
// the job completed or failed; any other error means the job was
// interrupted and can be resumed.
func (o *Orchestrator) Run(ctx context.Context, id string) error {
	if !o.claim(id) {
		return ErrJobRunning
	}
	defer o.release(id)

	mutex, err := o.store.NewMutex(lockKeyPrefix + id)
	if err != nil {
		return err
	}
	if err = mutex.Lock(ctx); err != nil {
		return err
	}
	defer func() {
		if err := mutex.Unlock(); err != nil {
			mlog.Warn("Failed to release export job lock", mlog.String("job_id", id), mlog.Err(err))
		}
	}()

	// Read after locking, another instance may have advanced the job.
	job, err := o.Get(id)
	if err != nil {
		return err
	}

	r := &run{job: job}
	for !job.Stage.Terminal() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.step(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) step(ctx context.Context, r *run) error {
	var err error
	switch r.job.Stage {
	case model.StagePending:
		err = o.advance(r.job, model.StageFetchingSource)
	case model.StageFetchingSource:
		err = o.fetchSource(ctx, r)
	case model.StageEnsuringSink:
		err = o.ensureSink(ctx, r)
	case model.StageProcessingItems:
		err = o.processItems(ctx, r)
	}
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var failure *stageFailure
	if errors.As(err, &failure) {
		return o.markFailed(r.job, failure.err)
	}
	return err
}

func (o *Orchestrator) advance(job *model.ExportJob, next model.Stage) error {
	prev := job.Stage
	job.Stage = next
	if err := o.store.ExportJob().UpdateProgress(job); err != nil {
		job.Stage = prev
		return err
	}
	o.logStage(job)
	return nil
}

func (o *Orchestrator) markFailed(job *model.ExportJob, cause error) error {
	prev := job.Stage
	job.FailedStage = prev
	job.Stage = model.StageFailed
	job.Error = cause.Error()
	if err := o.store.ExportJob().UpdateProgress(job); err != nil {
		job.Stage = prev
		job.FailedStage = ""
		job.Error = ""
		return err
	}
	mlog.Warn("Export job failed",
		mlog.String("job_id", job.ID),
		mlog.String("stage", string(prev)),
		mlog.Err(cause),
	)
	o.metrics.IncreaseExportJobs(string(job.Request.Sink), string(job.Stage))
	return nil
}

func (o *Orchestrator) logStage(job *model.ExportJob) {
	mlog.Debug("Export job advanced",
		mlog.String("job_id", job.ID),
		mlog.String("stage", string(job.Stage)),
		mlog.Int("processed", job.ProcessedItems),
		mlog.Int("total", job.TotalItems),
	)
}

func (o *Orchestrator) fetchSource(ctx context.Context, r *run) error {
	jobs := o.store.ExportJob()
	snapshot, err := jobs.GetSnapshot(r.job.ID)
	if err != nil {
		return err
	}
	if snapshot != nil {
		r.snapshot = snapshot
		r.job.TotalItems = len(snapshot.Issues)
		return o.advance(r.job, model.StageEnsuringSink)
	}

	req := r.job.Request
	set, labels, err := o.fetcher.Repository(ctx, req.Owner, req.Repo, issues.Filter{
		Labels:          req.Labels,
		IncludeComments: req.IncludeComments,
	})
	if err != nil {
		return fail(err)
	}
	snapshot = &model.SourceSnapshot{
		Issues:    set.Issues,
		Labels:    labels,
		FetchedAt: time.Now().UTC(),
	}

	r.job.Stage = model.StageEnsuringSink
	r.job.TotalItems = len(snapshot.Issues)
	if err := jobs.SaveSnapshot(r.job, snapshot); err != nil {
		r.job.Stage = model.StageFetchingSource
		return err
	}
	r.snapshot = snapshot
	o.logStage(r.job)
	return nil
}

func (o *Orchestrator) loadSnapshot(r *run) error {
	if r.snapshot != nil {
		return nil
	}
	snapshot, err := o.store.ExportJob().GetSnapshot(r.job.ID)
	if err != nil {
		return err
	}
	if snapshot == nil {
		return fail(errors.New("source snapshot is missing"))
	}
	r.snapshot = snapshot
	return nil
}

// prepareSink opens the sink of the job and makes it ready, once per run.
func (o *Orchestrator) prepareSink(ctx context.Context, r *run) error {
	if r.sink != nil {
		return nil
	}
	if err := o.loadSnapshot(r); err != nil {
		return err
	}
	s, err := o.sinks.Open(r.job, r.snapshot)
	if err != nil {
		return fail(err)
	}
	if err := s.EnsureReady(ctx); err != nil {
		return fail(err)
	}
	r.sink = s
	return nil
}

func (o *Orchestrator) ensureSink(ctx context.Context, r *run) error {
	if err := o.prepareSink(ctx, r); err != nil {
		return err
	}
	return o.advance(r.job, model.StageProcessingItems)
}

func (o *Orchestrator) processItems(ctx context.Context, r *run) error {
	if err := o.prepareSink(ctx, r); err != nil {
		return err
	}

	statuses, err := o.store.ExportJob().GetItemStatuses(r.job.ID)
	if err != nil {
		return err
	}
	done := make(map[int]bool, len(statuses))
	for _, s := range statuses {
		done[s.ItemKey] = true
	}

	var (
		fatalOnce sync.Once
		fatal     error
		stopped   = make(chan struct{})
	)
	halt := func(err error) {
		fatalOnce.Do(func() {
			fatal = err
			close(stopped)
		})
	}
	// settle turns a stage failure into a halt and passes store errors on.
	settle := func(err error) error {
		var failure *stageFailure
		if errors.As(err, &failure) {
			halt(failure.err)
			return nil
		}
		return err
	}

	flusher, buffered := r.sink.(Flusher)
	r.pending = nil

	g := new(errgroup.Group)
	g.SetLimit(o.workers)
schedule:
	for _, issue := range r.snapshot.Issues {
		if done[issue.Number] {
			continue
		}
		select {
		case <-ctx.Done():
			break schedule
		case <-stopped:
			break schedule
		default:
		}

		issue := issue
		g.Go(func() error {
			// Scheduling may have raced with a cancellation or a halt.
			select {
			case <-ctx.Done():
				return nil
			case <-stopped:
				return nil
			default:
			}

			// The write runs to completion even if ctx is cancelled meanwhile.
			itemCtx, cancel := context.WithTimeout(context.Background(), o.itemTimeout)
			defer cancel()
			err := r.sink.Upsert(itemCtx, issue)
			if sinkFatal(err) {
				halt(err)
				return nil
			}
			if err == nil && buffered {
				return settle(o.stageItem(r, flusher, issue))
			}
			return o.recordItem(r, issue, err)
		})
	}
	storeErr := g.Wait()

	if buffered && storeErr == nil && fatal == nil {
		r.mu.Lock()
		storeErr = settle(o.flushItems(r, flusher))
		r.mu.Unlock()
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if fatal != nil {
		return fail(fatal)
	}
	if storeErr != nil {
		return storeErr
	}
	return o.complete(r.job)
}

// sinkFatal reports errors that would fail every remaining item the same way.
// A dimension mismatch belongs to the item that produced the embedding.
func sinkFatal(err error) bool {
	return errors.Is(err, sink.ErrUnavailable)
}

// stageItem holds an item written to a buffering sink until enough of them
// are pending to flush.
func (o *Orchestrator) stageItem(r *run, flusher Flusher, issue *model.Issue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, issue)
	if len(r.pending) < o.flushEvery {
		return nil
	}
	return o.flushItems(r, flusher)
}

// flushItems flushes the sink and records the pending items as succeeded.
// Items are only recorded once the sink made them durable. The caller holds
// r.mu.
func (o *Orchestrator) flushItems(r *run, flusher Flusher) error {
	if len(r.pending) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), o.itemTimeout)
	defer cancel()
	if err := flusher.Flush(ctx); err != nil {
		return fail(err)
	}

	pending := r.pending
	r.pending = nil
	for _, issue := range pending {
		if err := o.saveStatus(r, issue, nil); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) recordItem(r *run, issue *model.Issue, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return o.saveStatus(r, issue, cause)
}

// saveStatus records the outcome of one item. The caller holds r.mu.
func (o *Orchestrator) saveStatus(r *run, issue *model.Issue, cause error) error {
	status := &model.ItemStatus{ItemKey: issue.Number, State: model.ItemSucceeded}
	if cause != nil {
		status.State = model.ItemFailed
		status.Error = cause.Error()
		mlog.Warn("Failed to export issue",
			mlog.String("job_id", r.job.ID),
			mlog.Int("number", issue.Number),
			mlog.Err(cause),
		)
	}

	if err := o.store.ExportJob().SaveItemStatus(r.job, status); err != nil {
		return err
	}
	o.metrics.IncreaseExportItems(string(r.job.Request.Sink), string(status.State))
	return nil
}

func (o *Orchestrator) complete(job *model.ExportJob) error {
	if err := o.advance(job, model.StageCompleted); err != nil {
		return err
	}
	mlog.Info("Export job completed",
		mlog.String("job_id", job.ID),
		mlog.Int("processed", job.ProcessedItems),
		mlog.Int("failed", job.FailedItems),
	)
	o.metrics.IncreaseExportJobs(string(job.Request.Sink), string(job.Stage))
	return nil
}
