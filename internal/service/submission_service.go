package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/courseloop/autograder/internal/filestore"
	"github.com/courseloop/autograder/internal/ingest"
	"github.com/courseloop/autograder/internal/model"
	apperr "github.com/courseloop/autograder/internal/pkg/errors"
	"github.com/courseloop/autograder/internal/queue"
)

type SubmissionStore interface {
	Create(ctx context.Context, sub *model.Submission) error
	Get(ctx context.Context, id string) (*model.Submission, error)
	ListByAssignment(ctx context.Context, assignmentID string) ([]model.Submission, error)
}

type GradeReader interface {
	GetBySubmission(ctx context.Context, submissionID string) (*model.Grade, error)
}

type SubmissionService struct {
	submissions SubmissionStore
	grades      GradeReader
	assignments AssignmentStore
	store       filestore.Store
	extractor   ingest.Extractor
	queue       queue.TaskQueue
}

func NewSubmissionService(
	submissions SubmissionStore,
	grades GradeReader,
	assignments AssignmentStore,
	store filestore.Store,
	extractor ingest.Extractor,
	q queue.TaskQueue,
) *SubmissionService {
	return &SubmissionService{
		submissions: submissions,
		grades:      grades,
		assignments: assignments,
		store:       store,
		extractor:   extractor,
		queue:       q,
	}
}

// Create accepts an uploaded submission, archives the raw file, extracts
// its text and enqueues a grading job. The submission starts in queued; a
// lost enqueue is recovered by the periodic sweep, so the caller still
// gets a valid submission back.
func (s *SubmissionService) Create(ctx context.Context, assignmentID, filename string, data []byte) (*model.Submission, error) {
	if _, err := s.assignments.Get(ctx, assignmentID); err != nil {
		return nil, err
	}
	if filename == "" || len(data) == 0 {
		return nil, fmt.Errorf("%w: a non-empty file is required", apperr.ErrInvalid)
	}

	text, err := s.extractor.Extract(filename, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: submission contains no extractable text", apperr.ErrInvalid)
	}

	key := newFileKey(filename)
	if err := s.store.Save(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
		return nil, fmt.Errorf("archive submission file: %w", err)
	}

	sub := &model.Submission{
		ID:           newID(),
		AssignmentID: assignmentID,
		Filename:     filename,
		FileKey:      key,
		Text:         text,
		Status:       model.SubmissionStatusQueued,
		Ctime:        time.Now().Unix(),
	}
	if err := s.submissions.Create(ctx, sub); err != nil {
		return nil, err
	}

	logger := logutil.GetLogger(ctx).With(
		zap.String("submission_id", sub.ID),
		zap.String("assignment_id", assignmentID),
	)
	if err := s.queue.Enqueue(ctx, model.GradingJob{SubmissionID: sub.ID}); err != nil {
		logger.Warn("enqueue failed, submission left for recovery sweep", zap.Error(err))
	} else {
		logger.Info("submission queued for grading", zap.Int("text_chars", len(text)))
	}
	return sub, nil
}

// Get returns the submission and, once it is done, its grade.
func (s *SubmissionService) Get(ctx context.Context, id string) (*model.Submission, *model.Grade, error) {
	sub, err := s.submissions.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if sub.Status != model.SubmissionStatusDone {
		return sub, nil, nil
	}
	grade, err := s.grades.GetBySubmission(ctx, id)
	if err != nil {
		if apperr.IsNotFound(err) {
			// done without a grade should be impossible, the two are
			// written in one transaction
			return nil, nil, apperr.ErrInternal
		}
		return nil, nil, err
	}
	return sub, grade, nil
}

func (s *SubmissionService) ListByAssignment(ctx context.Context, assignmentID string) ([]model.Submission, error) {
	if _, err := s.assignments.Get(ctx, assignmentID); err != nil {
		return nil, err
	}
	return s.submissions.ListByAssignment(ctx, assignmentID)
}
