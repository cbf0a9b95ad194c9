package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MatiasPrietoHernan/Retriever/internal/domain"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain/task"
	"github.com/MatiasPrietoHernan/Retriever/internal/logger"
)

var errJobsClosed = fmt.Errorf("job runner closed: %w", context.Canceled)

// runner is what Jobs needs from Service.
type runner interface {
	Run(ctx context.Context, req Request) (Report, error)
}

// Jobs runs ingestions in the background and tracks them as tasks.
type Jobs struct {
	svc    runner
	tasks  TaskRepository
	logger *zap.Logger
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu orders wg.Add in Submit before wg.Wait in Close.
	mu     sync.Mutex
	closed bool
}

// NewJobs creates a background runner. Close cancels and drains running jobs.
func NewJobs(svc runner, tasks TaskRepository, logger *zap.Logger) *Jobs {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Jobs{svc: svc, tasks: tasks, logger: logger, now: time.Now, ctx: ctx, cancel: cancel}
}

// Submit validates req, records a pending task and starts the run. The run
// outlives the caller's context.
func (j *Jobs) Submit(ctx context.Context, req Request) (task.Task, error) {
	if err := req.Validate(); err != nil {
		return task.Task{}, err
	}
	if j.isClosed() {
		return task.Task{}, errJobsClosed
	}

	t := task.New(req.Tenant, j.now())
	if err := j.tasks.Save(ctx, t); err != nil {
		return task.Task{}, fmt.Errorf("save task: %w", err)
	}

	log := logger.FromContext(ctx).With(zap.String("task_id", t.ID))
	runCtx := logger.ContextWithLogger(j.ctx, log)

	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		t.Status = task.StatusFailed
		t.Error = errJobsClosed.Error()
		t.UpdatedAt = j.now()
		j.save(ctx, t)
		return task.Task{}, errJobsClosed
	}
	j.wg.Add(1)
	j.mu.Unlock()

	go func() {
		defer j.wg.Done()
		j.run(runCtx, t, req)
	}()
	return t, nil
}

func (j *Jobs) isClosed() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.closed
}

// Get returns the task or domain.ErrNotFound.
func (j *Jobs) Get(ctx context.Context, id string) (task.Task, error) {
	if !task.ValidID(id) {
		return task.Task{}, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	return j.tasks.Get(ctx, id) //nolint:wrapcheck // repository errors carry context
}

// Close stops accepting work, cancels running jobs and waits for them.
func (j *Jobs) Close() {
	j.mu.Lock()
	j.closed = true
	j.mu.Unlock()

	j.cancel()
	j.wg.Wait()
}

func (j *Jobs) run(ctx context.Context, t task.Task, req Request) {
	t.Status = task.StatusRunning
	t.UpdatedAt = j.now()
	j.save(ctx, t)

	rep, err := j.svc.Run(ctx, req)

	t.Stage = string(rep.Stage)
	t.Message = rep.Message
	t.Kind = string(rep.Kind)
	t.Records = rep.Records
	t.Upserted = rep.Upserted
	t.Failed = len(rep.Failed)
	t.Count = rep.Count
	t.UpdatedAt = j.now()
	if err != nil {
		t.Status = task.StatusFailed
		t.Error = err.Error()
	} else {
		t.Status = task.StatusCompleted
	}
	j.save(ctx, t)
}

// save persists a task transition. It ignores cancellation so the final
// state is recorded during shutdown.
func (j *Jobs) save(ctx context.Context, t task.Task) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := j.tasks.Save(sctx, t); err != nil {
		j.logger.Error("Failed to save task", zap.String("task_id", t.ID), zap.String("status", string(t.Status)), zap.Error(err))
	}
}
