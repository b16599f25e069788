package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/courseloop/autograder/internal/model"
	"github.com/courseloop/autograder/internal/queue"
)

type stuckSubmissionStore interface {
	RequeueStuck(ctx context.Context, cutoff int64) ([]string, error)
	ListStaleQueued(ctx context.Context, cutoff int64) ([]string, error)
}

// RequeueStuckJob sweeps submissions that have sat in grading past the
// lease, resets them to queued and puts them back on the queue. It also
// re-enqueues queued submissions older than the lease, which recovers
// jobs whose queue delivery was lost. Duplicate deliveries are harmless:
// the claim transition drops them.
type RequeueStuckJob struct {
	store stuckSubmissionStore
	queue queue.TaskQueue
	lease time.Duration
}

func NewRequeueStuckJob(store stuckSubmissionStore, q queue.TaskQueue, lease time.Duration) *RequeueStuckJob {
	return &RequeueStuckJob{store: store, queue: q, lease: lease}
}

func (j *RequeueStuckJob) Name() string {
	return "requeue_stuck_submissions"
}

func (j *RequeueStuckJob) Run(ctx context.Context) error {
	if j.store == nil || j.queue == nil {
		return nil
	}
	lease := j.lease
	if lease <= 0 {
		lease = 5 * time.Minute
	}
	cutoff := time.Now().Add(-lease).Unix()

	stuck, err := j.store.RequeueStuck(ctx, cutoff)
	if err != nil {
		return err
	}
	stale, err := j.store.ListStaleQueued(ctx, cutoff)
	if err != nil {
		return err
	}
	total := len(stuck) + len(stale)
	if total == 0 {
		return nil
	}

	logger := logutil.GetLogger(ctx)
	logger.Warn("recovering lost grading jobs",
		zap.Int("stuck_in_grading", len(stuck)),
		zap.Int("stale_queued", len(stale)),
	)
	for _, id := range append(stuck, stale...) {
		if err := j.queue.Enqueue(ctx, model.GradingJob{SubmissionID: id}); err != nil {
			// Rows are already back in queued; the next sweep sees them as
			// stale and retries the enqueue.
			logger.Error("re-enqueue failed", zap.String("submission_id", id), zap.Error(err))
			return err
		}
	}
	return nil
}
