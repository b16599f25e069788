package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/courseloop/autograder/internal/model"
)

// MemoryQueue is a channel-backed queue for single-process deployments and
// tests. It keeps broker semantics: a nacked job with requeue=true goes
// back to the buffer.
type MemoryQueue struct {
	jobs    chan model.GradingJob
	closed  chan struct{}
	closeMu sync.Once
}

func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &MemoryQueue{
		jobs:   make(chan model.GradingJob, capacity),
		closed: make(chan struct{}),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job model.GradingJob) error {
	select {
	case <-q.closed:
		return errors.New("queue closed")
	case <-ctx.Done():
		return ctx.Err()
	case q.jobs <- job:
		return nil
	}
}

func (q *MemoryQueue) Consume(ctx context.Context) (<-chan Delivery, error) {
	output := make(chan Delivery)
	go func() {
		defer close(output)
		for {
			select {
			case <-ctx.Done():
				return
			case <-q.closed:
				return
			case job := <-q.jobs:
				delivery := Delivery{
					Job: job,
					Ack: func() error { return nil },
					Nack: func(requeue bool) error {
						if !requeue {
							return nil
						}
						select {
						case q.jobs <- job:
							return nil
						default:
							return errors.New("queue full, job lost")
						}
					},
				}
				select {
				case output <- delivery:
				case <-ctx.Done():
					_ = delivery.Nack(true)
					return
				}
			}
		}
	}()
	return output, nil
}

func (q *MemoryQueue) Close() error {
	q.closeMu.Do(func() {
		close(q.closed)
	})
	return nil
}
