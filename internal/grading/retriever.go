package grading

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/courseloop/autograder/internal/model"
	apperr "github.com/courseloop/autograder/internal/pkg/errors"
)

const embedTaskQuery = "RETRIEVAL_QUERY"

// ChunkSearcher runs the vector similarity lookup. The store orders results
// by descending similarity with ties broken by (doc_id, ordinal) ascending.
type ChunkSearcher interface {
	Search(ctx context.Context, assignmentID string, vector []float32, topK int) ([]model.ScoredChunk, error)
}

// Embedder vectorizes the query text, satisfied by ai.IEmbedder.
type Embedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
	ModelName() string
}

type Retriever struct {
	embedder Embedder
	searcher ChunkSearcher
	timeout  time.Duration
}

func NewRetriever(embedder Embedder, searcher ChunkSearcher, timeout time.Duration) *Retriever {
	return &Retriever{
		embedder: embedder,
		searcher: searcher,
		timeout:  timeout,
	}
}

// Retrieve returns up to topK reference chunks for the assignment, most
// similar first. An assignment with nothing indexed yields an empty result,
// not an error; grading tolerates zero retrieved context.
func (r *Retriever) Retrieve(ctx context.Context, assignmentID, queryText string, topK int) ([]model.ScoredChunk, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", apperr.ErrInvalidConfiguration, topK)
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	vector, err := r.embedder.Embed(ctx, queryText, embedTaskQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	chunks, err := r.searcher.Search(ctx, assignmentID, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	logutil.GetLogger(ctx).Debug("retrieved reference chunks",
		zap.String("assignment_id", assignmentID),
		zap.Int("top_k", topK),
		zap.Int("hits", len(chunks)),
	)
	return chunks, nil
}
