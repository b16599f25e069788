package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/courseloop/autograder/internal/model"
)

const embedTaskDocument = "RETRIEVAL_DOCUMENT"

// ChunkStore persists reference chunks. Upsert must overwrite on the
// (assignment, doc, ordinal) key so re-ingesting a document never
// duplicates chunks.
type ChunkStore interface {
	Upsert(ctx context.Context, chunk *model.ReferenceChunk) error
	DeleteFromOrdinal(ctx context.Context, assignmentID, docID string, fromOrdinal int) (int64, error)
}

// Embedder is the vectorization dependency, satisfied by ai.IEmbedder.
type Embedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
	ModelName() string
}

// IndexReport describes a (possibly partial) indexing run.
type IndexReport struct {
	Indexed int `json:"indexed"`
	Failed  int `json:"failed"`
	Pruned  int `json:"pruned"`
}

type Indexer struct {
	embedder Embedder
	store    ChunkStore
	cache    *expirable.LRU[string, []float32]
	timeout  time.Duration
}

func NewIndexer(embedder Embedder, store ChunkStore, timeout time.Duration) *Indexer {
	cache := expirable.NewLRU[string, []float32](4096, nil, 2*time.Hour)
	return &Indexer{
		embedder: embedder,
		store:    store,
		cache:    cache,
		timeout:  timeout,
	}
}

// Index vectorizes and persists the chunks of one reference document.
// Chunks that fail to vectorize are counted and skipped; successes are kept
// regardless, since each upsert is independently idempotent. After a fully
// successful run, ordinals past the new chunk count are pruned so a shrunk
// re-upload does not leave stale windows behind.
func (ix *Indexer) Index(ctx context.Context, assignmentID, docID string, chunks []string) (IndexReport, error) {
	logger := logutil.GetLogger(ctx).With(
		zap.String("assignment_id", assignmentID),
		zap.String("doc_id", docID),
		zap.Int("chunks", len(chunks)),
	)
	report := IndexReport{}
	if len(chunks) == 0 {
		return report, nil
	}

	now := time.Now().Unix()
	var firstErr error
	for ordinal, content := range chunks {
		vector, err := ix.embed(ctx, content)
		if err != nil {
			logger.Warn("chunk vectorization failed", zap.Int("ordinal", ordinal), zap.Error(err))
			report.Failed++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		chunk := &model.ReferenceChunk{
			ID:           uuid.NewString(),
			AssignmentID: assignmentID,
			DocID:        docID,
			Ordinal:      ordinal,
			Content:      content,
			Embedding:    vector,
			Ctime:        now,
		}
		if err := ix.store.Upsert(ctx, chunk); err != nil {
			logger.Warn("chunk upsert failed", zap.Int("ordinal", ordinal), zap.Error(err))
			report.Failed++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		report.Indexed++
	}

	if report.Failed == 0 {
		pruned, err := ix.store.DeleteFromOrdinal(ctx, assignmentID, docID, len(chunks))
		if err != nil {
			logger.Warn("stale chunk prune failed", zap.Error(err))
		} else {
			report.Pruned = int(pruned)
		}
	}

	logger.Info("reference document indexed",
		zap.Int("indexed", report.Indexed),
		zap.Int("failed", report.Failed),
		zap.Int("pruned", report.Pruned),
	)
	if report.Indexed == 0 {
		return report, fmt.Errorf("index document %s: no chunk could be indexed: %w", docID, firstErr)
	}
	return report, nil
}

func (ix *Indexer) embed(ctx context.Context, content string) ([]float32, error) {
	key := ix.cacheKey(content)
	if vector, ok := ix.cache.Get(key); ok {
		return vector, nil
	}
	if ix.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ix.timeout)
		defer cancel()
	}
	vector, err := ix.embedder.Embed(ctx, content, embedTaskDocument)
	if err != nil {
		return nil, err
	}
	ix.cache.Add(key, vector)
	return vector, nil
}

func (ix *Indexer) cacheKey(content string) string {
	hash := sha256.Sum256([]byte(ix.embedder.ModelName() + "\x00" + embedTaskDocument + "\x00" + content))
	return hex.EncodeToString(hash[:])
}
