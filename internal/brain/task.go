package brain

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// Task wraps one supervised generation as an independently cancellable unit.
// The owning session holds the only reference; Cancel is safe to call any
// number of times, including after the task has completed.
type Task struct {
	cancel  context.CancelFunc
	done    chan struct{}
	cancels atomic.Int32
	once    sync.Once

	result Result
	err    error
}

// Start launches a generation in its own goroutine and returns its handle.
func (s *Supervisor) Start(ctx context.Context, req Request, onChunk func(seq int, delta string) error) *Task {
	taskCtx, cancel := context.WithCancel(ctx)
	t := &Task{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer cancel()
		t.result, t.err = s.Generate(taskCtx, req, onChunk)
		close(t.done)
	}()
	return t
}

// Cancel requests cooperative cancellation. Idempotent; a no-op once the
// task has already finished.
func (t *Task) Cancel() {
	t.once.Do(func() {
		t.cancels.Add(1)
		t.cancel()
	})
}

// Done is closed when the task's outcome is available.
func (t *Task) Done() <-chan struct{} { return t.done }

// Outcome blocks until the task finishes and returns its result. A cancelled
// task reports context.Canceled, distinct from the error path.
func (t *Task) Outcome() (Result, error) {
	<-t.done
	return t.result, t.err
}

// Cancelled reports whether the finished task ended by cancellation.
func (t *Task) Cancelled() bool {
	select {
	case <-t.done:
		return errors.Is(t.err, context.Canceled)
	default:
		return false
	}
}

// CancelCount reports how many Cancel calls took effect. At most one.
func (t *Task) CancelCount() int { return int(t.cancels.Load()) }
