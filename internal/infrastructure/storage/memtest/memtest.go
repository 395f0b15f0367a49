// Package memtest is an in-memory Repository implementation used by
// unit tests, grounded on the teacher's MemoryStore
// (internal/infrastructure/storage/memory.go): sync.RWMutex-guarded
// maps, no persistence beyond process lifetime.
package memtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/textforge/dagflow/internal/domain"
	domainerr "github.com/textforge/dagflow/internal/domain/errors"
	"github.com/textforge/dagflow/internal/domain/repository"
	"github.com/textforge/dagflow/internal/graph"
)

var _ repository.Repository = (*Store)(nil)

// Store is the in-memory Repository. The whole store shares one
// mutex: cross-entity operations (CreateEdge's cycle check, SubmitJob's
// admission check) need the same atomicity a single-lock bun
// transaction would give them, and contention is not a concern in
// tests.
type Store struct {
	mu sync.RWMutex

	workflows map[uuid.UUID]*domain.Workflow
	nodes     map[uuid.UUID]*domain.Node
	edges     map[uuid.UUID]*domain.Edge
	jobs      map[uuid.UUID]*domain.Job
	steps     map[uuid.UUID]*domain.JobStep
	files     map[uuid.UUID]*domain.UploadedFile
}

func New() *Store {
	return &Store{
		workflows: make(map[uuid.UUID]*domain.Workflow),
		nodes:     make(map[uuid.UUID]*domain.Node),
		edges:     make(map[uuid.UUID]*domain.Edge),
		jobs:      make(map[uuid.UUID]*domain.Job),
		steps:     make(map[uuid.UUID]*domain.JobStep),
		files:     make(map[uuid.UUID]*domain.UploadedFile),
	}
}

func (s *Store) CreateWorkflow(_ context.Context, w *domain.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now()
	}
	cp := *w
	s.workflows[w.ID] = &cp
	return nil
}

func (s *Store) GetWorkflow(_ context.Context, id uuid.UUID) (*domain.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workflows[id]
	if !ok {
		return nil, domainerr.NotFoundf("workflow %s not found", id)
	}
	cp := *w
	return &cp, nil
}

func (s *Store) CreateNode(_ context.Context, n *domain.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	cp := *n
	s.nodes[n.ID] = &cp
	return nil
}

func (s *Store) GetNode(_ context.Context, id uuid.UUID) (*domain.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, domainerr.NotFoundf("node %s not found", id)
	}
	cp := *n
	return &cp, nil
}

func (s *Store) ListNodes(_ context.Context, workflowID uuid.UUID) ([]*domain.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Node
	for _, n := range s.nodes {
		if n.WorkflowID == workflowID {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

// CreateEdge holds the store's single lock across the cycle check and
// the insert, so a concurrent ListEdges can never observe a
// cycle-creating edge (spec §3 invariant 1).
func (s *Store) CreateEdge(_ context.Context, e *domain.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var nodes []*domain.Node
	for _, n := range s.nodes {
		if n.WorkflowID == e.WorkflowID {
			nodes = append(nodes, n)
		}
	}
	var edges []*domain.Edge
	for _, ex := range s.edges {
		if ex.WorkflowID == e.WorkflowID {
			edges = append(edges, ex)
		}
	}
	candidate := append(append([]*domain.Edge{}, edges...), e)
	if err := graph.Validate(nodes, candidate); err != nil {
		return err
	}

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	cp := *e
	s.edges[e.ID] = &cp
	return nil
}

func (s *Store) GetEdge(_ context.Context, id uuid.UUID) (*domain.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.edges[id]
	if !ok {
		return nil, domainerr.NotFoundf("edge %s not found", id)
	}
	cp := *e
	return &cp, nil
}

func (s *Store) ListEdges(_ context.Context, workflowID uuid.UUID) ([]*domain.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Edge
	for _, e := range s.edges {
		if e.WorkflowID == workflowID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) CreateJob(_ context.Context, j *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertJobLocked(j)
	return nil
}

func (s *Store) insertJobLocked(j *domain.Job) {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.StartedAt.IsZero() {
		j.StartedAt = time.Now()
	}
	cp := *j
	s.jobs[j.ID] = &cp
}

func (s *Store) UpdateJob(_ context.Context, j *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; !ok {
		return domainerr.NotFoundf("job %s not found", j.ID)
	}
	cp := *j
	s.jobs[j.ID] = &cp
	return nil
}

func (s *Store) GetJob(_ context.Context, id uuid.UUID) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, domainerr.NotFoundf("job %s not found", id)
	}
	cp := *j
	return &cp, nil
}

func (s *Store) ListJobs(_ context.Context, workflowID uuid.UUID) ([]*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Job
	for _, j := range s.jobs {
		if j.WorkflowID == workflowID {
			cp := *j
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (s *Store) RunningCount(_ context.Context, workflowID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countByStatusLocked(workflowID, domain.JobRunning), nil
}

func (s *Store) PendingCount(_ context.Context, workflowID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countByStatusLocked(workflowID, domain.JobPending), nil
}

func (s *Store) countByStatusLocked(workflowID uuid.UUID, status domain.JobStatus) int {
	n := 0
	for _, j := range s.jobs {
		if j.WorkflowID == workflowID && j.Status == status {
			n++
		}
	}
	return n
}

func (s *Store) OldestPending(_ context.Context, workflowID uuid.UUID) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.oldestPendingLocked(workflowID), nil
}

func (s *Store) oldestPendingLocked(workflowID uuid.UUID) *domain.Job {
	var oldest *domain.Job
	for _, j := range s.jobs {
		if j.WorkflowID != workflowID || j.Status != domain.JobPending {
			continue
		}
		if oldest == nil || j.StartedAt.Before(oldest.StartedAt) {
			oldest = j
		}
	}
	if oldest == nil {
		return nil
	}
	cp := *oldest
	return &cp
}

// SubmitJob holds the store lock across the admission-count read and
// the Pending insert (design note §9: repository-backed counters, no
// process-local admission state).
func (s *Store) SubmitJob(_ context.Context, j *domain.Job, maxPending int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := s.countByStatusLocked(j.WorkflowID, domain.JobPending)
	if pending >= maxPending {
		return false, nil
	}
	s.insertJobLocked(j)
	return true, nil
}

// Promote holds the store lock across the running-count read and the
// Pending-to-Running flip (same pattern as SubmitJob above), so two
// concurrent Promote calls can never together push a workflow's
// running count past maxRunning.
func (s *Store) Promote(_ context.Context, workflowID uuid.UUID, maxRunning int) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countByStatusLocked(workflowID, domain.JobRunning) >= maxRunning {
		return nil, nil
	}
	oldest := s.oldestPendingLocked(workflowID)
	if oldest == nil {
		return nil, nil
	}
	job := s.jobs[oldest.ID]
	job.Status = domain.JobRunning
	cp := *job
	return &cp, nil
}

func (s *Store) SweepStale(_ context.Context, olderThan int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	msg := "interrupted"
	for _, j := range s.jobs {
		if j.Status.IsTerminal() {
			continue
		}
		if j.StartedAt.Unix() >= olderThan {
			continue
		}
		j.Status = domain.JobFailed
		j.ErrorMessage = &msg
		now := time.Now()
		j.FinishedAt = &now
		n++
	}
	return n, nil
}

func (s *Store) CreateStep(_ context.Context, step *domain.JobStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if step.ID == uuid.Nil {
		step.ID = uuid.New()
	}
	if step.StartedAt.IsZero() {
		step.StartedAt = time.Now()
	}
	cp := *step
	s.steps[step.ID] = &cp
	return nil
}

func (s *Store) UpdateStep(_ context.Context, step *domain.JobStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.steps[step.ID]; !ok {
		return domainerr.NotFoundf("step %s not found", step.ID)
	}
	cp := *step
	s.steps[step.ID] = &cp
	return nil
}

func (s *Store) ListSteps(_ context.Context, jobID uuid.UUID) ([]*domain.JobStep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.JobStep
	for _, step := range s.steps {
		if step.JobID == jobID {
			cp := *step
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (s *Store) CreateFile(_ context.Context, f *domain.UploadedFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	cp := *f
	s.files[f.ID] = &cp
	return nil
}

func (s *Store) GetFile(_ context.Context, id uuid.UUID) (*domain.UploadedFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[id]
	if !ok {
		return nil, domainerr.NotFoundf("file %s not found", id)
	}
	cp := *f
	return &cp, nil
}

func (s *Store) GetJobWithSteps(ctx context.Context, jobID uuid.UUID) (*domain.Job, []*domain.JobStep, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	steps, err := s.ListSteps(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	return job, steps, nil
}
