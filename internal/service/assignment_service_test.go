package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/courseloop/autograder/internal/ingest"
	"github.com/courseloop/autograder/internal/model"
	apperr "github.com/courseloop/autograder/internal/pkg/errors"
)

type fakeAssignmentStore struct {
	mu   sync.Mutex
	rows map[string]*model.Assignment
}

func newFakeAssignmentStore() *fakeAssignmentStore {
	return &fakeAssignmentStore{rows: make(map[string]*model.Assignment)}
}

func (f *fakeAssignmentStore) Create(ctx context.Context, asg *model.Assignment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[asg.ID] = asg
	return nil
}

func (f *fakeAssignmentStore) Get(ctx context.Context, id string) (*model.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	asg, ok := f.rows[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return asg, nil
}

func (f *fakeAssignmentStore) List(ctx context.Context) ([]model.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Assignment
	for _, asg := range f.rows {
		out = append(out, *asg)
	}
	return out, nil
}

type fakeChunkStore struct {
	mu     sync.Mutex
	chunks map[string]*model.ReferenceChunk
}

func newFakeChunkStore() *fakeChunkStore {
	return &fakeChunkStore{chunks: make(map[string]*model.ReferenceChunk)}
}

func (f *fakeChunkStore) key(assignmentID, docID string, ordinal int) string {
	return fmt.Sprintf("%s|%s|%d", assignmentID, docID, ordinal)
}

func (f *fakeChunkStore) Upsert(ctx context.Context, chunk *model.ReferenceChunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks[f.key(chunk.AssignmentID, chunk.DocID, chunk.Ordinal)] = chunk
	return nil
}

func (f *fakeChunkStore) DeleteFromOrdinal(ctx context.Context, assignmentID, docID string, fromOrdinal int) (int64, error) {
	return 0, nil
}

func (f *fakeChunkStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.chunks)
}

type fixedEmbedder struct{}

func (fixedEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (fixedEmbedder) ModelName() string { return "test-embed" }

type memFileStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemFileStore() *memFileStore {
	return &memFileStore{files: make(map[string][]byte)}
}

func (f *memFileStore) Save(ctx context.Context, key string, r io.ReadSeeker, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[key] = data
	return nil
}

func (f *memFileStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, apperr.ErrNotFound
}

func (f *memFileStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.files)
}

func newTestAssignmentService(store *fakeAssignmentStore, chunks *fakeChunkStore, files *memFileStore) *AssignmentService {
	indexer := ingest.NewIndexer(fixedEmbedder{}, chunks, time.Second)
	return NewAssignmentService(store, nil, files, ingest.NewExtractor(), indexer, ingest.ChunkConfig{Size: 4, Overlap: 1})
}

func TestAssignmentService_CreateValidatesRubric(t *testing.T) {
	svc := newTestAssignmentService(newFakeAssignmentStore(), newFakeChunkStore(), newMemFileStore())
	ctx := context.Background()

	_, err := svc.Create(ctx, AssignmentCreateInput{Title: "", Rubric: model.Rubric{"a": {MaxPoints: 10}}})
	require.ErrorIs(t, err, apperr.ErrInvalid)

	_, err = svc.Create(ctx, AssignmentCreateInput{Title: "Essay", Rubric: model.Rubric{}})
	require.ErrorIs(t, err, apperr.ErrInvalid)

	_, err = svc.Create(ctx, AssignmentCreateInput{Title: "Essay", Rubric: model.Rubric{"a": {MaxPoints: 0}}})
	require.ErrorIs(t, err, apperr.ErrInvalid)

	asg, err := svc.Create(ctx, AssignmentCreateInput{
		Title:  "Essay",
		Rubric: model.Rubric{"correctness": {Description: "is it right", MaxPoints: 60}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, asg.ID)
	require.Equal(t, 60, asg.Rubric.MaxScore())
}

func TestAssignmentService_IngestReference(t *testing.T) {
	store := newFakeAssignmentStore()
	chunks := newFakeChunkStore()
	files := newMemFileStore()
	svc := newTestAssignmentService(store, chunks, files)
	ctx := context.Background()

	asg, err := svc.Create(ctx, AssignmentCreateInput{
		Title:  "Essay",
		Rubric: model.Rubric{"correctness": {MaxPoints: 100}},
	})
	require.NoError(t, err)

	report, err := svc.IngestReference(ctx, asg.ID, "notes.txt", []byte("one two three four five six seven"))
	require.NoError(t, err)
	require.Equal(t, 2, report.Indexed)
	require.Zero(t, report.Failed)
	require.Equal(t, 2, chunks.count())
	require.Equal(t, 1, files.count())
}

func TestAssignmentService_IngestReferenceUnknownAssignment(t *testing.T) {
	svc := newTestAssignmentService(newFakeAssignmentStore(), newFakeChunkStore(), newMemFileStore())
	_, err := svc.IngestReference(context.Background(), "missing", "notes.txt", []byte("some text"))
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAssignmentService_IngestReferenceRejectsBinary(t *testing.T) {
	store := newFakeAssignmentStore()
	svc := newTestAssignmentService(store, newFakeChunkStore(), newMemFileStore())
	ctx := context.Background()

	asg, err := svc.Create(ctx, AssignmentCreateInput{
		Title:  "Essay",
		Rubric: model.Rubric{"correctness": {MaxPoints: 100}},
	})
	require.NoError(t, err)

	_, err = svc.IngestReference(ctx, asg.ID, "paper.pdf", []byte{0x25, 0x50, 0x44, 0x46})
	require.ErrorIs(t, err, apperr.ErrInvalid)
}
