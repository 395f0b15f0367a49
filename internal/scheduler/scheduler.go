// Package scheduler implements the per-workflow admission and
// promotion policy of spec §4.6 (C4). There is no teacher equivalent
// for a FIFO admission queue; this is grounded directly on the design
// note §9 decision to keep admission counters in the repository
// rather than as process-local state, generalizing the teacher's
// "launch N, await all" concurrency style (engine.go's executeWave)
// from per-batch fan-out to per-workflow job concurrency.
package scheduler

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/textforge/dagflow/internal/domain"
	domainerr "github.com/textforge/dagflow/internal/domain/errors"
	"github.com/textforge/dagflow/internal/domain/repository"
)

const (
	MaxRunningPerWorkflow = 2  // spec §4.6
	MaxPendingPerWorkflow = 20 // spec §4.6
)

// Runner executes one admitted Job to completion. The coordinator
// package supplies this; scheduler only knows it is launched on a
// background worker and must terminate the Job one way or another.
type Runner interface {
	Run(ctx context.Context, job *domain.Job)
}

// Scheduler is C4: it owns submit/promote/terminate transitions.
// Admission counts are never cached in the Scheduler itself — every
// check reads through Repo, so multiple Scheduler instances (e.g. one
// per API replica) stay consistent without coordinating directly.
type Scheduler struct {
	Repo   repository.JobRepository
	Runner Runner
	Logger *slog.Logger
}

// Submit inserts a new Pending Job for workflowID and attempts
// immediate promotion. Returns QueueFull if the workflow's Pending
// queue is already at MaxPendingPerWorkflow.
func (s *Scheduler) Submit(ctx context.Context, workflowID uuid.UUID) (*domain.Job, error) {
	job := &domain.Job{WorkflowID: workflowID, Status: domain.JobPending}

	admitted, err := s.Repo.SubmitJob(ctx, job, MaxPendingPerWorkflow)
	if err != nil {
		return nil, err
	}
	if !admitted {
		return nil, domainerr.New(domainerr.QueueFull, "workflow has reached its pending job limit")
	}

	s.promote(ctx, workflowID)
	return job, nil
}

// Terminate is called by the goroutine promote launches, once
// Runner.Run has returned for a Job; it triggers a promotion pass so
// the next Pending job (if any) starts.
func (s *Scheduler) Terminate(ctx context.Context, workflowID uuid.UUID) {
	s.promote(ctx, workflowID)
}

// promote launches the oldest Pending job if the workflow is under
// MaxRunningPerWorkflow. It is safe to call opportunistically (e.g.
// after every submit and every terminate); a promotion attempt that
// finds no room or no Pending job is a no-op. The cap check happens
// inside Repo.Promote's own transaction/lock, not here, so concurrent
// promote calls for the same workflow can never both succeed past the
// cap (see repository.JobRepository.Promote).
func (s *Scheduler) promote(ctx context.Context, workflowID uuid.UUID) {
	job, err := s.Repo.Promote(ctx, workflowID, MaxRunningPerWorkflow)
	if err != nil {
		s.logError("promote: promote job", err)
		return
	}
	if job == nil {
		return
	}

	go func() {
		s.Runner.Run(context.Background(), job)
		s.Terminate(context.Background(), workflowID)
	}()
}

func (s *Scheduler) logError(msg string, err error) {
	if s.Logger != nil {
		s.Logger.Error(msg, "error", err)
	}
}

// SweepStale recovers from a prior coordinator crash (spec §4.6): at
// boot, every Job left Pending or Running past the staleness threshold
// is failed with error_message "interrupted".
func SweepStale(ctx context.Context, repo repository.JobRepository, olderThan int64) (int, error) {
	return repo.SweepStale(ctx, olderThan)
}
