package kernel

import (
	"context"
	"runtime"
	"sync"
)

// Scheduler is the run-queue collaborator. Callers must not hold any process
// lock across Yield or Suspend.
type Scheduler interface {
	// Add makes t runnable.
	Add(t *Task)

	// Yield gives up the processor and returns once the caller runs again.
	Yield(ctx context.Context) error

	// Suspend parks the caller until wake fires or ctx is done.
	Suspend(ctx context.Context, wake <-chan struct{}) error
}

// RunQueue is a FIFO of runnable tasks. Tasks execute as goroutines, so
// yielding defers to the Go runtime.
type RunQueue struct {
	mu    sync.Mutex
	ready []*Task

	added chan struct{}
}

func NewRunQueue() *RunQueue {
	return &RunQueue{
		added: make(chan struct{}, 1),
	}
}

func (q *RunQueue) Add(t *Task) {
	q.mu.Lock()
	q.ready = append(q.ready, t)
	q.mu.Unlock()

	select {
	case q.added <- struct{}{}:
	default:
	}
}

// Added fires after Add. Drain with Fetch until it reports nothing.
func (q *RunQueue) Added() <-chan struct{} {
	return q.added
}

// Fetch pops the next task whose process has not exited.
func (q *RunQueue) Fetch() (*Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.ready) > 0 {
		t := q.ready[0]
		q.ready = q.ready[1:]

		if !t.IsZombie() {
			return t, true
		}
	}

	return nil, false
}

func (q *RunQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.ready)
}

func (q *RunQueue) Yield(ctx context.Context) error {
	runtime.Gosched()
	return ctx.Err()
}

func (q *RunQueue) Suspend(ctx context.Context, wake <-chan struct{}) error {
	select {
	case <-wake:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
