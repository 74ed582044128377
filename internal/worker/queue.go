package worker

import (
	"context"

	apperrors "github.com/701789262a/backend-dailychat/errors"
)

// DefaultQueueCapacity bounds the jobs waiting on one node.
const DefaultQueueCapacity = 64

// Queue is a bounded FIFO. Enqueue never blocks.
type Queue struct {
	jobs chan Job
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{jobs: make(chan Job, capacity)}
}

// Enqueue adds job or fails with NO_CAPACITY when the queue is full.
func (q *Queue) Enqueue(job Job) error {
	select {
	case q.jobs <- job:
		return nil
	default:
		return apperrors.NoCapacity("node queue full").WithDetail("capacity", cap(q.jobs))
	}
}

// Dequeue blocks until a job is available or ctx is done.
func (q *Queue) Dequeue(ctx context.Context) (Job, bool) {
	select {
	case job := <-q.jobs:
		return job, true
	case <-ctx.Done():
		return Job{}, false
	}
}

func (q *Queue) Len() int { return len(q.jobs) }
func (q *Queue) Cap() int { return cap(q.jobs) }
