package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/courseloop/autograder/internal/model"
)

func TestMemoryQueue_DeliversEnqueuedJobs(t *testing.T) {
	q := NewMemoryQueue(8)
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, q.Enqueue(ctx, model.GradingJob{SubmissionID: "sub-1"}))
	require.NoError(t, q.Enqueue(ctx, model.GradingJob{SubmissionID: "sub-2"}))

	deliveries, err := q.Consume(ctx)
	require.NoError(t, err)

	first := <-deliveries
	require.Equal(t, "sub-1", first.Job.SubmissionID)
	require.NoError(t, first.Ack())

	second := <-deliveries
	require.Equal(t, "sub-2", second.Job.SubmissionID)
	require.NoError(t, second.Ack())
}

func TestMemoryQueue_NackRequeuesJob(t *testing.T) {
	q := NewMemoryQueue(8)
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, q.Enqueue(ctx, model.GradingJob{SubmissionID: "sub-1"}))

	deliveries, err := q.Consume(ctx)
	require.NoError(t, err)

	d := <-deliveries
	require.NoError(t, d.Nack(true))

	redelivered := <-deliveries
	require.Equal(t, "sub-1", redelivered.Job.SubmissionID)
	require.NoError(t, redelivered.Ack())
}

func TestMemoryQueue_EnqueueAfterCloseFails(t *testing.T) {
	q := NewMemoryQueue(1)
	require.NoError(t, q.Close())
	err := q.Enqueue(context.Background(), model.GradingJob{SubmissionID: "sub-1"})
	require.Error(t, err)
}
