// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package server

import (
	"fmt"
	"time"

	"github.com/mattermost/mattermost-server/v6/shared/mlog"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/mattermost/mattermost-issuesync/model"
)

const resumeTaskName = "resume_exports"

// cronLogger sends the scheduler logs to mlog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	mlog.Debug("cron: "+msg, mlog.Any("details", keysAndValues))
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	mlog.Error("cron: "+msg, mlog.Err(err), mlog.Any("details", keysAndValues))
}

func (s *Server) startCron() error {
	logger := cronLogger{}
	s.cron = cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	if _, err := s.cron.AddFunc(s.Config.ResumeSchedule, s.task(resumeTaskName, s.resumeExports)); err != nil {
		return errors.Wrapf(err, "invalid resume schedule %q", s.Config.ResumeSchedule)
	}

	for _, scheduled := range s.Config.ScheduledExports {
		req := scheduled.Request
		name := fmt.Sprintf("export_%s_%s", req.Owner, req.Repo)
		if _, err := s.cron.AddFunc(scheduled.Schedule, s.task(name, func() error {
			return s.submitScheduledExport(req)
		})); err != nil {
			return errors.Wrapf(err, "invalid schedule %q for %s/%s", scheduled.Schedule, req.Owner, req.Repo)
		}
	}

	s.cron.Start()
	return nil
}

// task wraps fn with the cron metrics.
func (s *Server) task(name string, fn func() error) func() {
	return func() {
		start := time.Now()
		err := fn()
		elapsed := float64(time.Since(start)) / float64(time.Second)

		if s.Metrics != nil {
			s.Metrics.ObserveCronTaskDuration(name, elapsed)
			if err != nil {
				s.Metrics.IncreaseCronTaskErrors(name)
			}
		}
		if err != nil {
			mlog.Error("Scheduled task failed", mlog.String("task", name), mlog.Err(err))
		}
	}
}

func (s *Server) resumeExports() error {
	started, err := s.Exports.ResumeUnfinished()
	if err != nil {
		return err
	}
	if started > 0 {
		mlog.Info("Resumed unfinished export jobs", mlog.Int("count", started))
	}
	return nil
}

func (s *Server) submitScheduledExport(req model.ExportRequest) error {
	if s.shouldAbortForRateLimit() {
		return nil
	}
	job, err := s.Exports.Submit(&req)
	if err != nil {
		return err
	}
	mlog.Info("Scheduled export submitted", mlog.String("job_id", job.ID))
	return nil
}
