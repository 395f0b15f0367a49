package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/textforge/dagflow/internal/domain"
	domainerr "github.com/textforge/dagflow/internal/domain/errors"
	"github.com/textforge/dagflow/internal/domain/repository"
	"github.com/textforge/dagflow/internal/infrastructure/storage/memtest"
)

// blockingRunner holds every Run call open until told to release it,
// so tests can pin a job in Running state to exercise the admission
// caps deterministically. Like the real coordinator, it is responsible
// for persisting the job's terminal state itself.
type blockingRunner struct {
	repo    repository.JobRepository
	release chan struct{}
	started chan uuid.UUID
}

func newBlockingRunner(repo repository.JobRepository) *blockingRunner {
	return &blockingRunner{repo: repo, release: make(chan struct{}), started: make(chan uuid.UUID, 64)}
}

func (r *blockingRunner) Run(ctx context.Context, job *domain.Job) {
	r.started <- job.ID
	<-r.release
	job.Status = domain.JobSucceeded
	_ = r.repo.UpdateJob(ctx, job)
}

func (r *blockingRunner) releaseAll() {
	close(r.release)
}

// TestSubmit_PendingCapRejectsAfterLimit exercises S4: once
// MaxRunningPerWorkflow jobs are running and MaxPendingPerWorkflow are
// queued, the next Submit is rejected with QueueFull regardless of how
// many jobs are Running (admission only ever checks Pending, spec
// §4.6).
func TestSubmit_PendingCapRejectsAfterLimit(t *testing.T) {
	store := memtest.New()
	wf := &domain.Workflow{Name: "wf"}
	ctx := context.Background()
	if err := store.CreateWorkflow(ctx, wf); err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}

	runner := newBlockingRunner(store)
	sched := &Scheduler{Repo: store, Runner: runner}

	// Two long-running jobs occupy both Running slots.
	for i := 0; i < MaxRunningPerWorkflow; i++ {
		if _, err := sched.Submit(ctx, wf.ID); err != nil {
			t.Fatalf("Submit running job %d: %v", i, err)
		}
	}
	waitForStarted(t, runner, MaxRunningPerWorkflow)

	// MaxPendingPerWorkflow more jobs queue up behind them.
	for i := 0; i < MaxPendingPerWorkflow; i++ {
		if _, err := sched.Submit(ctx, wf.ID); err != nil {
			t.Fatalf("Submit pending job %d: %v", i, err)
		}
	}

	// The next submission must be rejected: Pending is already full.
	_, err := sched.Submit(ctx, wf.ID)
	if err == nil {
		t.Fatal("expected QueueFull, got nil error")
	}
	if domainerr.KindOf(err) != domainerr.QueueFull {
		t.Fatalf("error kind = %v, want QueueFull", domainerr.KindOf(err))
	}

	runner.releaseAll()
}

// TestSubmit_PromotesNextPendingOnCompletion exercises invariant 3: a
// completed Running job frees its slot so the oldest Pending job is
// promoted.
func TestSubmit_PromotesNextPendingOnCompletion(t *testing.T) {
	store := memtest.New()
	wf := &domain.Workflow{Name: "wf"}
	ctx := context.Background()
	if err := store.CreateWorkflow(ctx, wf); err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}

	runner := newBlockingRunner(store)
	sched := &Scheduler{Repo: store, Runner: runner}

	for i := 0; i < MaxRunningPerWorkflow; i++ {
		if _, err := sched.Submit(ctx, wf.ID); err != nil {
			t.Fatalf("Submit running job %d: %v", i, err)
		}
	}
	waitForStarted(t, runner, MaxRunningPerWorkflow)

	pendingJob, err := sched.Submit(ctx, wf.ID)
	if err != nil {
		t.Fatalf("Submit pending job: %v", err)
	}
	if got, err := store.GetJob(ctx, pendingJob.ID); err != nil || got.Status != domain.JobPending {
		t.Fatalf("pending job status = %v, err = %v, want Pending", got, err)
	}

	runner.releaseAll()

	if !waitForStatus(t, store, pendingJob.ID, domain.JobRunning, time.Second) {
		t.Fatal("pending job was never promoted to Running after a slot freed up")
	}
}

func waitForStarted(t *testing.T, runner *blockingRunner, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-runner.started:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %d jobs to start, got %d", n, i)
		}
	}
}

func waitForStatus(t *testing.T, store *memtest.Store, jobID uuid.UUID, want domain.JobStatus, timeout time.Duration) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		if err == nil && job.Status == want {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}
