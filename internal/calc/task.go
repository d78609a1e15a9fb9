package calc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stockdbv1/internal/logger"
	"stockdbv1/internal/metrics"

	"github.com/google/uuid"
)

// Task states.
const (
	TaskPending    = "PENDING"
	TaskProcessing = "PROCESSING"
	TaskCompleted  = "COMPLETED"
	TaskFailed     = "FAILED"
	TaskCancelled  = "CANCELLED"
)

// Task is one asynchronous calculation. Callers poll State or block in
// Wait; a cancelled task never exposes a result even if the underlying
// computation finished.
type Task struct {
	ID      string
	Request Request

	mu        sync.Mutex
	state     string
	cancelled bool
	result    *Result
	err       error

	cancelCtx context.CancelFunc
	done      chan struct{}
}

// State returns the task's current state.
func (t *Task) State() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Result returns the outcome of a terminal task. Non-terminal and
// cancelled tasks have no result.
func (t *Task) Result() (*Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.err
}

// Cancel requests cancellation. Before processing starts the task moves
// straight to CANCELLED; after that the computation is not interrupted
// forcibly, but its result is discarded. Returns false once the task is
// already terminal.
func (t *Task) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case TaskPending:
		t.state = TaskCancelled
		t.cancelled = true
		t.err = fmt.Errorf("task %s cancelled", t.ID)
		close(t.done)
		return true
	case TaskProcessing:
		t.cancelled = true
		if t.cancelCtx != nil {
			t.cancelCtx()
		}
		return true
	}
	return false
}

// Done returns a channel closed when the task reaches a terminal state.
func (t *Task) Done() <-chan struct{} { return t.done }

// TaskRunner owns asynchronous tasks around a shared orchestrator.
type TaskRunner struct {
	orch    *Orchestrator
	metrics *metrics.Metrics

	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewTaskRunner creates a runner. Metrics may be nil.
func NewTaskRunner(orch *Orchestrator, m *metrics.Metrics) *TaskRunner {
	return &TaskRunner{
		orch:    orch,
		metrics: m,
		tasks:   make(map[string]*Task),
	}
}

// Submit starts a calculation in the background and returns its task.
// Every task's context carries a trace ID so its log lines correlate.
func (r *TaskRunner) Submit(ctx context.Context, req Request) *Task {
	runCtx, cancel := context.WithCancel(logger.WithTraceID(ctx, logger.GenerateTraceID(req.Symbol, time.Now())))
	t := &Task{
		ID:        uuid.NewString(),
		Request:   req,
		state:     TaskPending,
		cancelCtx: cancel,
		done:      make(chan struct{}),
	}

	r.mu.Lock()
	r.tasks[t.ID] = t
	r.mu.Unlock()

	go r.run(runCtx, t)
	return t
}

func (r *TaskRunner) run(ctx context.Context, t *Task) {
	defer t.cancelCtx()

	t.mu.Lock()
	if t.state != TaskPending {
		// Cancelled before we got scheduled.
		t.mu.Unlock()
		r.countTerminal(TaskCancelled)
		return
	}
	t.state = TaskProcessing
	t.mu.Unlock()

	result, err := r.orch.Calculate(ctx, t.Request)

	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.cancelled:
		t.state = TaskCancelled
		t.err = fmt.Errorf("task %s cancelled", t.ID)
	case err != nil:
		t.state = TaskFailed
		t.err = err
	default:
		t.state = TaskCompleted
		t.result = result
	}
	close(t.done)
	r.countTerminal(t.state)
}

func (r *TaskRunner) countTerminal(state string) {
	if r.metrics != nil {
		r.metrics.TasksTotal.WithLabelValues(state).Inc()
	}
}

// Get looks up a task by ID.
func (r *TaskRunner) Get(id string) (*Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	return t, ok
}

// Wait blocks until the task terminates or ctx runs out. The context
// bounds the wait only; an abandoned task keeps running.
func (r *TaskRunner) Wait(ctx context.Context, id string) (*Result, error) {
	t, ok := r.Get(id)
	if !ok {
		return nil, fmt.Errorf("unknown task %s", id)
	}
	select {
	case <-t.done:
		return t.Result()
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for task %s: %w", id, ctx.Err())
	}
}

// Forget removes a terminal task from the runner's index.
func (r *TaskRunner) Forget(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[id]; ok {
		switch t.State() {
		case TaskCompleted, TaskFailed, TaskCancelled:
			delete(r.tasks, id)
		}
	}
}
