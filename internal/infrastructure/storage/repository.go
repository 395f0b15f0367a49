// Package storage implements the repository contract (spec §4.7 /
// C6) against Postgres via uptrace/bun, grounded on the teacher's
// internal/infrastructure/storage package: one *bun.DB-backed struct
// with a method per repository operation and RunInTx for
// multi-statement atomicity. Schema setup (Migrate) creates tables
// directly from the bun models rather than through migrate.Migrator.
package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/textforge/dagflow/internal/domain"
	domainerr "github.com/textforge/dagflow/internal/domain/errors"
	"github.com/textforge/dagflow/internal/domain/repository"
	"github.com/textforge/dagflow/internal/graph"
	"github.com/textforge/dagflow/internal/infrastructure/storage/models"
)

var _ repository.Repository = (*Repository)(nil)

// Repository is the bun-backed implementation of the engine's
// persistence contract.
type Repository struct {
	db *bun.DB
}

func New(db *bun.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateWorkflow(ctx context.Context, w *domain.Workflow) error {
	m := workflowToModel(w)
	if _, err := r.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return domainerr.Wrap(domainerr.Internal, "create workflow", err)
	}
	*w = *workflowFromModel(m)
	return nil
}

func (r *Repository) GetWorkflow(ctx context.Context, id uuid.UUID) (*domain.Workflow, error) {
	m := new(models.WorkflowModel)
	err := r.db.NewSelect().Model(m).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainerr.NotFoundf("workflow %s not found", id)
		}
		return nil, domainerr.Wrap(domainerr.Internal, "get workflow", err)
	}
	return workflowFromModel(m), nil
}

func (r *Repository) CreateNode(ctx context.Context, n *domain.Node) error {
	m := nodeToModel(n)
	if _, err := r.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return domainerr.Wrap(domainerr.Internal, "create node", err)
	}
	*n = *nodeFromModel(m)
	return nil
}

func (r *Repository) GetNode(ctx context.Context, id uuid.UUID) (*domain.Node, error) {
	m := new(models.NodeModel)
	err := r.db.NewSelect().Model(m).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainerr.NotFoundf("node %s not found", id)
		}
		return nil, domainerr.Wrap(domainerr.Internal, "get node", err)
	}
	return nodeFromModel(m), nil
}

func (r *Repository) ListNodes(ctx context.Context, workflowID uuid.UUID) ([]*domain.Node, error) {
	var ms []*models.NodeModel
	if err := r.db.NewSelect().Model(&ms).Where("workflow_id = ?", workflowID).Order("order_index ASC").Scan(ctx); err != nil {
		return nil, domainerr.Wrap(domainerr.Internal, "list nodes", err)
	}
	out := make([]*domain.Node, len(ms))
	for i, m := range ms {
		out[i] = nodeFromModel(m)
	}
	return out, nil
}

// CreateEdge makes the cycle check and the insert appear atomic
// (spec §3 invariant 1 / repository.EdgeRepository doc): within one
// transaction it re-validates the candidate edge set against the
// workflow's current nodes and edges before inserting, so a
// concurrent ListEdges never observes a cycle-creating edge.
func (r *Repository) CreateEdge(ctx context.Context, e *domain.Edge) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var nodeModels []*models.NodeModel
		if err := tx.NewSelect().Model(&nodeModels).Where("workflow_id = ?", e.WorkflowID).Scan(ctx); err != nil {
			return domainerr.Wrap(domainerr.Internal, "list nodes for edge validation", err)
		}
		var edgeModels []*models.EdgeModel
		if err := tx.NewSelect().Model(&edgeModels).Where("workflow_id = ?", e.WorkflowID).Scan(ctx); err != nil {
			return domainerr.Wrap(domainerr.Internal, "list edges for edge validation", err)
		}

		nodes := make([]*domain.Node, len(nodeModels))
		for i, m := range nodeModels {
			nodes[i] = nodeFromModel(m)
		}
		edges := make([]*domain.Edge, len(edgeModels), len(edgeModels)+1)
		for i, m := range edgeModels {
			edges[i] = edgeFromModel(m)
		}
		candidate := append(edges, e)

		if err := graph.Validate(nodes, candidate); err != nil {
			return err
		}

		m := edgeToModel(e)
		if _, err := tx.NewInsert().Model(m).Exec(ctx); err != nil {
			return domainerr.Wrap(domainerr.Internal, "insert edge", err)
		}
		*e = *edgeFromModel(m)
		return nil
	})
}

func (r *Repository) GetEdge(ctx context.Context, id uuid.UUID) (*domain.Edge, error) {
	m := new(models.EdgeModel)
	err := r.db.NewSelect().Model(m).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainerr.NotFoundf("edge %s not found", id)
		}
		return nil, domainerr.Wrap(domainerr.Internal, "get edge", err)
	}
	return edgeFromModel(m), nil
}

func (r *Repository) ListEdges(ctx context.Context, workflowID uuid.UUID) ([]*domain.Edge, error) {
	var ms []*models.EdgeModel
	if err := r.db.NewSelect().Model(&ms).Where("workflow_id = ?", workflowID).Scan(ctx); err != nil {
		return nil, domainerr.Wrap(domainerr.Internal, "list edges", err)
	}
	out := make([]*domain.Edge, len(ms))
	for i, m := range ms {
		out[i] = edgeFromModel(m)
	}
	return out, nil
}

func (r *Repository) CreateJob(ctx context.Context, j *domain.Job) error {
	m := jobToModel(j)
	if _, err := r.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return domainerr.Wrap(domainerr.Internal, "create job", err)
	}
	*j = *jobFromModel(m)
	return nil
}

func (r *Repository) UpdateJob(ctx context.Context, j *domain.Job) error {
	m := jobToModel(j)
	_, err := r.db.NewUpdate().Model(m).
		Column("status", "finished_at", "final_output", "error_message").
		Where("id = ?", m.ID).Exec(ctx)
	if err != nil {
		return domainerr.Wrap(domainerr.Internal, "update job", err)
	}
	return nil
}

func (r *Repository) GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	m := new(models.JobModel)
	err := r.db.NewSelect().Model(m).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainerr.NotFoundf("job %s not found", id)
		}
		return nil, domainerr.Wrap(domainerr.Internal, "get job", err)
	}
	return jobFromModel(m), nil
}

func (r *Repository) ListJobs(ctx context.Context, workflowID uuid.UUID) ([]*domain.Job, error) {
	var ms []*models.JobModel
	if err := r.db.NewSelect().Model(&ms).Where("workflow_id = ?", workflowID).Order("started_at ASC").Scan(ctx); err != nil {
		return nil, domainerr.Wrap(domainerr.Internal, "list jobs", err)
	}
	out := make([]*domain.Job, len(ms))
	for i, m := range ms {
		out[i] = jobFromModel(m)
	}
	return out, nil
}

func (r *Repository) RunningCount(ctx context.Context, workflowID uuid.UUID) (int, error) {
	return r.countByStatus(ctx, workflowID, string(domain.JobRunning))
}

func (r *Repository) PendingCount(ctx context.Context, workflowID uuid.UUID) (int, error) {
	return r.countByStatus(ctx, workflowID, string(domain.JobPending))
}

func (r *Repository) countByStatus(ctx context.Context, workflowID uuid.UUID, status string) (int, error) {
	n, err := r.db.NewSelect().Model((*models.JobModel)(nil)).
		Where("workflow_id = ? AND status = ?", workflowID, status).Count(ctx)
	if err != nil {
		return 0, domainerr.Wrap(domainerr.Internal, "count jobs", err)
	}
	return n, nil
}

func (r *Repository) OldestPending(ctx context.Context, workflowID uuid.UUID) (*domain.Job, error) {
	m := new(models.JobModel)
	err := r.db.NewSelect().Model(m).
		Where("workflow_id = ? AND status = ?", workflowID, string(domain.JobPending)).
		Order("started_at ASC").Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, domainerr.Wrap(domainerr.Internal, "oldest pending job", err)
	}
	return jobFromModel(m), nil
}

// SubmitJob implements the admission check as a single transaction so
// the scheduler carries no process-local counters (design note §9):
// the Pending count and the Pending insert are read and written under
// the same transaction, holding a workflow-scoped advisory lock.
func (r *Repository) SubmitJob(ctx context.Context, j *domain.Job, maxPending int) (bool, error) {
	admitted := false
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext(?))", j.WorkflowID.String()); err != nil {
			return domainerr.Wrap(domainerr.Internal, "lock workflow jobs", err)
		}
		pending, err := tx.NewSelect().Model((*models.JobModel)(nil)).
			Where("workflow_id = ? AND status = ?", j.WorkflowID, string(domain.JobPending)).Count(ctx)
		if err != nil {
			return domainerr.Wrap(domainerr.Internal, "count pending jobs", err)
		}
		if pending >= maxPending {
			return nil
		}

		m := jobToModel(j)
		if _, err := tx.NewInsert().Model(m).Exec(ctx); err != nil {
			return domainerr.Wrap(domainerr.Internal, "insert pending job", err)
		}
		*j = *jobFromModel(m)
		admitted = true
		return nil
	})
	return admitted, err
}

// Promote transitions the oldest Pending job to Running within one
// transaction, re-checking the Running count against maxRunning inside
// that same transaction, under the workflow-scoped advisory lock
// SubmitJob also takes, so concurrent Promote calls for the same
// workflow (e.g. two jobs completing around the same time) can never
// together push the running count past maxRunning.
func (r *Repository) Promote(ctx context.Context, workflowID uuid.UUID, maxRunning int) (*domain.Job, error) {
	var job *domain.Job
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext(?))", workflowID.String()); err != nil {
			return domainerr.Wrap(domainerr.Internal, "lock workflow jobs", err)
		}
		running, err := tx.NewSelect().Model((*models.JobModel)(nil)).
			Where("workflow_id = ? AND status = ?", workflowID, string(domain.JobRunning)).Count(ctx)
		if err != nil {
			return domainerr.Wrap(domainerr.Internal, "count running jobs", err)
		}
		if running >= maxRunning {
			return nil
		}

		m := new(models.JobModel)
		err = tx.NewSelect().Model(m).
			Where("workflow_id = ? AND status = ?", workflowID, string(domain.JobPending)).
			Order("started_at ASC").Limit(1).For("UPDATE").Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return domainerr.Wrap(domainerr.Internal, "select oldest pending job", err)
		}
		m.Status = string(domain.JobRunning)
		if _, err := tx.NewUpdate().Model(m).Column("status").Where("id = ?", m.ID).Exec(ctx); err != nil {
			return domainerr.Wrap(domainerr.Internal, "promote job", err)
		}
		job = jobFromModel(m)
		return nil
	})
	return job, err
}

func (r *Repository) SweepStale(ctx context.Context, olderThan int64) (int, error) {
	interrupted := "interrupted"
	res, err := r.db.NewUpdate().Model((*models.JobModel)(nil)).
		Set("status = ?", string(domain.JobFailed)).
		Set("error_message = ?", interrupted).
		Where("status IN (?, ?)", string(domain.JobPending), string(domain.JobRunning)).
		Where("extract(epoch from started_at) < ?", olderThan).
		Exec(ctx)
	if err != nil {
		return 0, domainerr.Wrap(domainerr.Internal, "sweep stale jobs", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, domainerr.Wrap(domainerr.Internal, "sweep stale jobs: rows affected", err)
	}
	return int(n), nil
}

func (r *Repository) CreateStep(ctx context.Context, s *domain.JobStep) error {
	m := stepToModel(s)
	if _, err := r.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return domainerr.Wrap(domainerr.Internal, "create step", err)
	}
	*s = *stepFromModel(m)
	return nil
}

func (r *Repository) UpdateStep(ctx context.Context, s *domain.JobStep) error {
	m := stepToModel(s)
	_, err := r.db.NewUpdate().Model(m).
		Column("status", "finished_at", "input_text", "output_text", "error_message").
		Where("id = ?", m.ID).Exec(ctx)
	if err != nil {
		return domainerr.Wrap(domainerr.Internal, "update step", err)
	}
	return nil
}

func (r *Repository) ListSteps(ctx context.Context, jobID uuid.UUID) ([]*domain.JobStep, error) {
	var ms []*models.JobStepModel
	if err := r.db.NewSelect().Model(&ms).Where("job_id = ?", jobID).Order("started_at ASC").Scan(ctx); err != nil {
		return nil, domainerr.Wrap(domainerr.Internal, "list steps", err)
	}
	out := make([]*domain.JobStep, len(ms))
	for i, m := range ms {
		out[i] = stepFromModel(m)
	}
	return out, nil
}

func (r *Repository) CreateFile(ctx context.Context, f *domain.UploadedFile) error {
	m := fileToModel(f)
	if _, err := r.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return domainerr.Wrap(domainerr.Internal, "create file", err)
	}
	*f = *fileFromModel(m)
	return nil
}

func (r *Repository) GetFile(ctx context.Context, id uuid.UUID) (*domain.UploadedFile, error) {
	m := new(models.FileModel)
	err := r.db.NewSelect().Model(m).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainerr.NotFoundf("file %s not found", id)
		}
		return nil, domainerr.Wrap(domainerr.Internal, "get file", err)
	}
	return fileFromModel(m), nil
}

func (r *Repository) GetJobWithSteps(ctx context.Context, jobID uuid.UUID) (*domain.Job, []*domain.JobStep, error) {
	job, err := r.GetJob(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	steps, err := r.ListSteps(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	return job, steps, nil
}
