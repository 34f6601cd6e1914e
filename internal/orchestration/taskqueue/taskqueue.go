// Package taskqueue defines the FIFO-of-tasks contract consumed by the
// orchestration core and provides an in-memory implementation. The
// production queue (backed by a real broker) is an external collaborator
// and out of scope for this repository; the in-memory implementation here
// exists to exercise the contract in tests and in single-process
// deployments.
package taskqueue

import (
	"sync"

	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/task"
)

// TaskQueue is the minimal surface the orchestration core depends on.
// Delivery semantics are at-least-once; the queue holds tasks until an
// executor acknowledges them (acknowledgement itself is an executor
// concern, not modeled here).
type TaskQueue interface {
	Enqueue(t task.Task)
	ContainsTaskID(id string) bool
}

// InMemory is a mutex-guarded FIFO keyed by task id, sufficient for tests
// and for an embedded single-process deployment.
type InMemory struct {
	mu    sync.Mutex
	order []task.Task
	byID  map[string]task.Task
}

// NewInMemory constructs an empty in-memory task queue.
func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[string]task.Task)}
}

// Enqueue appends t to the queue. Re-enqueuing an id already present
// replaces the stored task but keeps its original position.
func (q *InMemory) Enqueue(t task.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := t.ID()
	if _, exists := q.byID[id]; exists {
		for i, queued := range q.order {
			if queued.ID() == id {
				q.order[i] = t
				break
			}
		}
	} else {
		q.order = append(q.order, t)
	}
	q.byID[id] = t
}

// ContainsTaskID reports whether a task with the given id is currently
// queued.
func (q *InMemory) ContainsTaskID(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	_, ok := q.byID[id]
	return ok
}

// Drain removes and returns all tasks in enqueue order, for use by
// executors and by tests standing in for them.
func (q *InMemory) Drain() []task.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	drained := q.order
	q.order = nil
	q.byID = make(map[string]task.Task)
	return drained
}

// Remove drops a task id without draining the rest of the queue; used by
// executors that acknowledge a CancelNodeTask by removing its target
// ExecNodeTask.
func (q *InMemory) Remove(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.byID, id)
	filtered := q.order[:0]
	for _, t := range q.order {
		if t.ID() != id {
			filtered = append(filtered, t)
		}
	}
	q.order = filtered
}

// Len reports the number of distinct queued task ids.
func (q *InMemory) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.byID)
}
