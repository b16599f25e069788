package grading

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/courseloop/autograder/internal/model"
	apperr "github.com/courseloop/autograder/internal/pkg/errors"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return []float32{0.5, 0.5}, nil
}

func (stubEmbedder) ModelName() string { return "stub-embed" }

type stubSearcher struct {
	results  []model.ScoredChunk
	gotTopK  int
	gotAsgID string
}

func (s *stubSearcher) Search(ctx context.Context, assignmentID string, vector []float32, topK int) ([]model.ScoredChunk, error) {
	s.gotAsgID = assignmentID
	s.gotTopK = topK
	if len(s.results) > topK {
		return s.results[:topK], nil
	}
	return s.results, nil
}

func TestRetrieve_RejectsNonPositiveTopK(t *testing.T) {
	r := NewRetriever(stubEmbedder{}, &stubSearcher{}, time.Second)
	for _, topK := range []int{0, -1} {
		_, err := r.Retrieve(context.Background(), "asg-1", "query", topK)
		require.ErrorIs(t, err, apperr.ErrInvalidConfiguration)
	}
}

func TestRetrieve_EmptyIndexYieldsEmptyResult(t *testing.T) {
	r := NewRetriever(stubEmbedder{}, &stubSearcher{}, time.Second)
	chunks, err := r.Retrieve(context.Background(), "asg-1", "query", 5)
	require.NoError(t, err)
	require.Empty(t, chunks)
}

func TestRetrieve_ResultsSortedAndBounded(t *testing.T) {
	searcher := &stubSearcher{results: []model.ScoredChunk{
		scored("doc-a", 0, "best", 0.95),
		scored("doc-a", 1, "good", 0.80),
		scored("doc-b", 0, "fair", 0.55),
	}}
	r := NewRetriever(stubEmbedder{}, searcher, time.Second)

	chunks, err := r.Retrieve(context.Background(), "asg-1", "query", 2)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	require.Equal(t, "asg-1", searcher.gotAsgID)
	require.Equal(t, 2, searcher.gotTopK)
	for i := 1; i < len(chunks); i++ {
		require.GreaterOrEqual(t, chunks[i-1].Similarity, chunks[i].Similarity)
	}
}
