package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/courseloop/autograder/internal/grading"
	"github.com/courseloop/autograder/internal/model"
	apperr "github.com/courseloop/autograder/internal/pkg/errors"
	"github.com/courseloop/autograder/internal/queue"
)

// queryPrefixChars bounds how much of the submission seeds the retrieval
// query.
const queryPrefixChars = 500

type SubmissionStore interface {
	Get(ctx context.Context, id string) (*model.Submission, error)
	Claim(ctx context.Context, id string, now int64) (bool, error)
	MarkError(ctx context.Context, id string, reason string) error
}

type AssignmentStore interface {
	Get(ctx context.Context, id string) (*model.Assignment, error)
}

type GradeStore interface {
	CreateWithStatus(ctx context.Context, grade *model.Grade) error
}

type Retriever interface {
	Retrieve(ctx context.Context, assignmentID, queryText string, topK int) ([]model.ScoredChunk, error)
}

type Grader interface {
	Grade(ctx context.Context, req *grading.GradingRequest) (*model.GradeResult, error)
}

type Config struct {
	Workers int
	TopK    int
}

// Worker drains the grading queue. Each job runs retrieve -> assemble ->
// grade to completion and reports its outcome through the submission's
// status; the only shared mutable state between workers is the persisted
// status row.
type Worker struct {
	queue       queue.TaskQueue
	submissions SubmissionStore
	assignments AssignmentStore
	grades      GradeStore
	retriever   Retriever
	assembler   *grading.Assembler
	grader      Grader
	cfg         Config
	wg          sync.WaitGroup
}

func New(
	q queue.TaskQueue,
	submissions SubmissionStore,
	assignments AssignmentStore,
	grades GradeStore,
	retriever Retriever,
	assembler *grading.Assembler,
	grader Grader,
	cfg Config,
) *Worker {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	return &Worker{
		queue:       q,
		submissions: submissions,
		assignments: assignments,
		grades:      grades,
		retriever:   retriever,
		assembler:   assembler,
		grader:      grader,
		cfg:         cfg,
	}
}

func (w *Worker) Start(ctx context.Context) error {
	deliveries, err := w.queue.Consume(ctx)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	for i := 0; i < w.cfg.Workers; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			for delivery := range deliveries {
				w.handle(ctx, delivery)
			}
		}()
	}
	logutil.GetLogger(ctx).Info("grading workers started", zap.Int("workers", w.cfg.Workers))
	return nil
}

// Wait blocks until all worker goroutines have drained. Call after the
// consume context is cancelled.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) handle(ctx context.Context, delivery queue.Delivery) {
	submissionID := delivery.Job.SubmissionID
	logger := logutil.GetLogger(ctx).With(zap.String("submission_id", submissionID))

	claimed, err := w.submissions.Claim(ctx, submissionID, time.Now().Unix())
	if err != nil {
		logger.Error("claim failed, requeueing job", zap.Error(err))
		if err := delivery.Nack(true); err != nil {
			logger.Error("nack failed", zap.Error(err))
		}
		return
	}
	if !claimed {
		// Another worker owns this submission, or it already finished.
		logger.Debug("claim lost, skipping job")
		if err := delivery.Ack(); err != nil {
			logger.Error("ack failed", zap.Error(err))
		}
		return
	}

	start := time.Now()
	if err := w.gradeSubmission(ctx, submissionID); err != nil {
		reason := reasonFor(err)
		logger.Error("grading failed",
			zap.String("reason", reason),
			zap.Duration("duration", time.Since(start)),
		)
		if markErr := w.submissions.MarkError(ctx, submissionID, reason); markErr != nil {
			logger.Error("record error status failed, requeueing for recovery", zap.Error(markErr))
			if err := delivery.Nack(true); err != nil {
				logger.Error("nack failed", zap.Error(err))
			}
			return
		}
	} else {
		logger.Info("grading finished", zap.Duration("duration", time.Since(start)))
	}
	if err := delivery.Ack(); err != nil {
		logger.Error("ack failed", zap.Error(err))
	}
}

func (w *Worker) gradeSubmission(ctx context.Context, submissionID string) error {
	sub, err := w.submissions.Get(ctx, submissionID)
	if err != nil {
		return fmt.Errorf("load submission: %w", err)
	}
	asg, err := w.assignments.Get(ctx, sub.AssignmentID)
	if err != nil {
		return fmt.Errorf("load assignment %s: %w", sub.AssignmentID, err)
	}

	query := sub.Text
	if len(query) > queryPrefixChars {
		query = query[:queryPrefixChars]
	}
	chunks, err := w.retriever.Retrieve(ctx, sub.AssignmentID, query, w.cfg.TopK)
	if err != nil {
		return fmt.Errorf("retrieve context: %w", err)
	}

	req := w.assembler.Assemble(ctx, asg.Rubric, sub.Text, chunks)
	result, err := w.grader.Grade(ctx, req)
	if err != nil {
		return err
	}

	grade := &model.Grade{
		ID:           uuid.NewString(),
		SubmissionID: sub.ID,
		Score:        result.Score,
		Breakdown:    result.Breakdown,
		Feedback:     result.Feedback,
		Citations:    result.Citations,
		Ctime:        time.Now().Unix(),
	}
	if err := w.grades.CreateWithStatus(ctx, grade); err != nil {
		return fmt.Errorf("persist grade: %w", err)
	}
	return nil
}

// reasonFor maps a pipeline error to the recorded, human-readable error
// kind that the API reports for failed submissions.
func reasonFor(err error) string {
	switch {
	case apperr.IsGradingContract(err):
		return fmt.Sprintf("GradingContractViolation: %v", err)
	case apperr.IsModelUnavailable(err):
		return fmt.Sprintf("ModelUnavailable: %v", err)
	default:
		return fmt.Sprintf("InternalError: %v", err)
	}
}
