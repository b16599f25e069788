package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/courseloop/autograder/internal/filestore"
	"github.com/courseloop/autograder/internal/ingest"
	"github.com/courseloop/autograder/internal/model"
	apperr "github.com/courseloop/autograder/internal/pkg/errors"
)

type AssignmentStore interface {
	Create(ctx context.Context, asg *model.Assignment) error
	Get(ctx context.Context, id string) (*model.Assignment, error)
	List(ctx context.Context) ([]model.Assignment, error)
}

type ChunkCounter interface {
	CountByAssignment(ctx context.Context, assignmentID string) (int, error)
}

type AssignmentCreateInput struct {
	Title  string
	Rubric model.Rubric
}

type AssignmentService struct {
	assignments AssignmentStore
	chunkCount  ChunkCounter
	store       filestore.Store
	extractor   ingest.Extractor
	indexer     *ingest.Indexer
	chunking    ingest.ChunkConfig
}

func NewAssignmentService(
	assignments AssignmentStore,
	chunkCount ChunkCounter,
	store filestore.Store,
	extractor ingest.Extractor,
	indexer *ingest.Indexer,
	chunking ingest.ChunkConfig,
) *AssignmentService {
	return &AssignmentService{
		assignments: assignments,
		chunkCount:  chunkCount,
		store:       store,
		extractor:   extractor,
		indexer:     indexer,
		chunking:    chunking,
	}
}

func (s *AssignmentService) Create(ctx context.Context, input AssignmentCreateInput) (*model.Assignment, error) {
	if input.Title == "" {
		return nil, fmt.Errorf("%w: title is required", apperr.ErrInvalid)
	}
	if len(input.Rubric) == 0 {
		return nil, fmt.Errorf("%w: rubric must have at least one criterion", apperr.ErrInvalid)
	}
	for name, criterion := range input.Rubric {
		if name == "" {
			return nil, fmt.Errorf("%w: rubric criterion name must not be empty", apperr.ErrInvalid)
		}
		if criterion.MaxPoints <= 0 {
			return nil, fmt.Errorf("%w: criterion %q max_points must be positive", apperr.ErrInvalid, name)
		}
	}
	asg := &model.Assignment{
		ID:     newID(),
		Title:  input.Title,
		Rubric: input.Rubric,
		Ctime:  time.Now().Unix(),
	}
	if err := s.assignments.Create(ctx, asg); err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("assignment created",
		zap.String("assignment_id", asg.ID),
		zap.Int("criteria", len(asg.Rubric)),
		zap.Int("max_score", asg.Rubric.MaxScore()),
	)
	return asg, nil
}

func (s *AssignmentService) Get(ctx context.Context, id string) (*model.Assignment, error) {
	return s.assignments.Get(ctx, id)
}

func (s *AssignmentService) List(ctx context.Context) ([]model.Assignment, error) {
	return s.assignments.List(ctx)
}

func (s *AssignmentService) ChunkCount(ctx context.Context, assignmentID string) (int, error) {
	if s.chunkCount == nil {
		return 0, nil
	}
	return s.chunkCount.CountByAssignment(ctx, assignmentID)
}

// IngestReference archives an uploaded reference document, extracts its
// text, chunks it and indexes the chunks into the assignment's vector
// namespace. Re-uploading the same filename replaces the previous version
// chunk by chunk.
func (s *AssignmentService) IngestReference(ctx context.Context, assignmentID, filename string, data []byte) (ingest.IndexReport, error) {
	if _, err := s.assignments.Get(ctx, assignmentID); err != nil {
		return ingest.IndexReport{}, err
	}
	if filename == "" || len(data) == 0 {
		return ingest.IndexReport{}, fmt.Errorf("%w: a non-empty file is required", apperr.ErrInvalid)
	}

	key := newFileKey(filename)
	if err := s.store.Save(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
		return ingest.IndexReport{}, fmt.Errorf("archive reference file: %w", err)
	}

	text, err := s.extractor.Extract(filename, data)
	if err != nil {
		return ingest.IndexReport{}, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	chunks, err := ingest.Chunk(text, s.chunking)
	if err != nil {
		return ingest.IndexReport{}, err
	}
	if len(chunks) == 0 {
		return ingest.IndexReport{}, fmt.Errorf("%w: document contains no extractable text", apperr.ErrInvalid)
	}

	report, err := s.indexer.Index(ctx, assignmentID, filename, chunks)
	if err != nil {
		return report, err
	}
	logutil.GetLogger(ctx).Info("reference document ingested",
		zap.String("assignment_id", assignmentID),
		zap.String("doc_id", filename),
		zap.String("file_key", key),
		zap.Int("indexed", report.Indexed),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}
