package queue

import (
	"context"

	"github.com/courseloop/autograder/internal/model"
)

// Delivery is one leased grading job. The consumer must finish it with
// exactly one of Ack (done, drop it) or Nack (return it to the queue).
type Delivery struct {
	Job  model.GradingJob
	Ack  func() error
	Nack func(requeue bool) error
}

// TaskQueue hands grading jobs from the ingestion path to the workers.
type TaskQueue interface {
	Enqueue(ctx context.Context, job model.GradingJob) error
	Consume(ctx context.Context) (<-chan Delivery, error)
	Close() error
}
