// Package repository declares the persistence contract the engine
// consumes (spec §4.7). Concrete implementations live under
// internal/infrastructure/storage (Postgres via bun) and
// internal/infrastructure/storage/memtest (in-memory, used by tests).
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/textforge/dagflow/internal/domain"
)

// WorkflowRepository persists Workflow aggregates.
type WorkflowRepository interface {
	CreateWorkflow(ctx context.Context, w *domain.Workflow) error
	GetWorkflow(ctx context.Context, id uuid.UUID) (*domain.Workflow, error)
}

// NodeRepository persists Nodes and reads consistent per-workflow snapshots.
type NodeRepository interface {
	CreateNode(ctx context.Context, n *domain.Node) error
	GetNode(ctx context.Context, id uuid.UUID) (*domain.Node, error)
	ListNodes(ctx context.Context, workflowID uuid.UUID) ([]*domain.Node, error)
}

// EdgeRepository persists Edges and reads consistent per-workflow snapshots.
type EdgeRepository interface {
	// CreateEdge inserts e. Implementations must make the insert and
	// the cycle check that precedes it appear atomic: a cycle-creating
	// edge must never be observable by a concurrent ListEdges.
	CreateEdge(ctx context.Context, e *domain.Edge) error
	GetEdge(ctx context.Context, id uuid.UUID) (*domain.Edge, error)
	ListEdges(ctx context.Context, workflowID uuid.UUID) ([]*domain.Edge, error)
}

// JobRepository persists Jobs and backs the scheduler's admission counts.
type JobRepository interface {
	CreateJob(ctx context.Context, j *domain.Job) error
	UpdateJob(ctx context.Context, j *domain.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	ListJobs(ctx context.Context, workflowID uuid.UUID) ([]*domain.Job, error)

	// RunningCount and PendingCount must be transactionally consistent
	// with job status changes: the admission check reads these and
	// then inserts a new Pending job under the same lock/transaction.
	RunningCount(ctx context.Context, workflowID uuid.UUID) (int, error)
	PendingCount(ctx context.Context, workflowID uuid.UUID) (int, error)

	// OldestPending returns the oldest Pending job for a workflow, or
	// nil if none is queued.
	OldestPending(ctx context.Context, workflowID uuid.UUID) (*domain.Job, error)

	// SubmitJob inserts j as Pending iff the workflow's current Pending
	// count is under maxPending, evaluating the count and the insert
	// as a single atomic operation so the scheduler never needs a
	// process-local admission counter (design note §9). Every job
	// lands in Pending first regardless of the Running count; promotion
	// is a separate step. admitted is false (with a nil error) when the
	// cap is already met; the job is not inserted in that case.
	SubmitJob(ctx context.Context, j *domain.Job, maxPending int) (admitted bool, err error)

	// Promote transitions the oldest Pending job for workflowID to
	// Running, but only if the workflow's current Running count is
	// under maxRunning. The running-count check and the status flip
	// happen inside the same transaction/lock as the read that found
	// the oldest Pending job, so concurrent Promote calls (e.g. two
	// jobs finishing around the same time, each triggering its own
	// Terminate) can never together push a workflow's running count
	// past maxRunning. Returns nil, nil if no Pending job exists or the
	// cap is already met.
	Promote(ctx context.Context, workflowID uuid.UUID, maxRunning int) (*domain.Job, error)

	// SweepStale transitions every Job in Pending or Running status
	// older than olderThan to Failed with error_message "interrupted".
	// Used at boot to recover from a prior coordinator crash.
	SweepStale(ctx context.Context, olderThan int64) (int, error)
}

// JobStepRepository persists per-node execution records within a Job.
type JobStepRepository interface {
	CreateStep(ctx context.Context, s *domain.JobStep) error
	UpdateStep(ctx context.Context, s *domain.JobStep) error
	ListSteps(ctx context.Context, jobID uuid.UUID) ([]*domain.JobStep, error)
}

// FileRepository persists UploadedFile metadata.
type FileRepository interface {
	CreateFile(ctx context.Context, f *domain.UploadedFile) error
	GetFile(ctx context.Context, id uuid.UUID) (*domain.UploadedFile, error)
}

// Repository is the unified persistence surface the engine depends on.
type Repository interface {
	WorkflowRepository
	NodeRepository
	EdgeRepository
	JobRepository
	JobStepRepository
	FileRepository

	// GetJobWithSteps returns a job together with its step records in
	// one consistent read.
	GetJobWithSteps(ctx context.Context, jobID uuid.UUID) (*domain.Job, []*domain.JobStep, error)
}
