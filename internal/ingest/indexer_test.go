package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/courseloop/autograder/internal/model"
)

type fakeEmbedder struct {
	calls   int
	failOn  map[string]bool
	vectors map[string][]float32
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	f.calls++
	if f.failOn[text] {
		return nil, errors.New("embed backend down")
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) ModelName() string { return "fake-embed" }

type fakeChunkStore struct {
	upserts    []*model.ReferenceChunk
	prunedFrom int
	upsertErr  error
}

func (f *fakeChunkStore) Upsert(ctx context.Context, chunk *model.ReferenceChunk) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, chunk)
	return nil
}

func (f *fakeChunkStore) DeleteFromOrdinal(ctx context.Context, assignmentID, docID string, fromOrdinal int) (int64, error) {
	f.prunedFrom = fromOrdinal
	return 2, nil
}

func TestIndexer_IndexesAllChunks(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeChunkStore{}
	ix := NewIndexer(embedder, store, time.Second)

	report, err := ix.Index(context.Background(), "asg-1", "doc-1", []string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	require.Equal(t, 3, report.Indexed)
	require.Equal(t, 0, report.Failed)
	require.Len(t, store.upserts, 3)
	for i, chunk := range store.upserts {
		require.Equal(t, "asg-1", chunk.AssignmentID)
		require.Equal(t, "doc-1", chunk.DocID)
		require.Equal(t, i, chunk.Ordinal)
		require.NotEmpty(t, chunk.ID)
	}
	require.Equal(t, 3, store.prunedFrom)
	require.Equal(t, 2, report.Pruned)
}

func TestIndexer_PartialFailureKeepsSuccesses(t *testing.T) {
	embedder := &fakeEmbedder{failOn: map[string]bool{"beta": true}}
	store := &fakeChunkStore{}
	ix := NewIndexer(embedder, store, time.Second)

	report, err := ix.Index(context.Background(), "asg-1", "doc-1", []string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	require.Equal(t, 2, report.Indexed)
	require.Equal(t, 1, report.Failed)
	require.Len(t, store.upserts, 2)
	// Failed runs must not prune: the old windows may still be the best data.
	require.Equal(t, 0, store.prunedFrom)
}

func TestIndexer_AllFailedReturnsError(t *testing.T) {
	embedder := &fakeEmbedder{failOn: map[string]bool{"alpha": true, "beta": true}}
	store := &fakeChunkStore{}
	ix := NewIndexer(embedder, store, time.Second)

	report, err := ix.Index(context.Background(), "asg-1", "doc-1", []string{"alpha", "beta"})
	require.Error(t, err)
	require.Equal(t, 0, report.Indexed)
	require.Equal(t, 2, report.Failed)
}

func TestIndexer_EmptyInputIsNoop(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeChunkStore{}
	ix := NewIndexer(embedder, store, time.Second)

	report, err := ix.Index(context.Background(), "asg-1", "doc-1", nil)
	require.NoError(t, err)
	require.Zero(t, report.Indexed)
	require.Zero(t, report.Failed)
	require.Empty(t, store.upserts)
}

func TestIndexer_ReusesCachedVectors(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeChunkStore{}
	ix := NewIndexer(embedder, store, time.Second)

	chunks := []string{"same text", "same text"}
	_, err := ix.Index(context.Background(), "asg-1", "doc-1", chunks)
	require.NoError(t, err)
	require.Equal(t, 1, embedder.calls)
	require.Len(t, store.upserts, 2)
}

func TestExtract_PlainAndMarkdown(t *testing.T) {
	ex := NewExtractor()

	text, err := ex.Extract("essay.txt", []byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, "hello world", text)

	md := "# Title\n\nSome *emphasized* prose.\n\n```go\nfmt.Println(1)\n```\n"
	text, err = ex.Extract("notes.md", []byte(md))
	require.NoError(t, err)
	require.Contains(t, text, "Title")
	require.Contains(t, text, "emphasized")
	require.Contains(t, text, "fmt.Println(1)")
	require.NotContains(t, text, "#")
	require.NotContains(t, text, "```")

	_, err = ex.Extract("scan.pdf", []byte{0x25, 0x50})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported file type")
}

func TestExtract_RejectsBinaryGarbage(t *testing.T) {
	ex := NewExtractor()
	_, err := ex.Extract("weird.txt", []byte{0xff, 0xfe, 0x00, 0x80})
	require.Error(t, err)
}

func ExampleChunk() {
	chunks, _ := Chunk("one two three four five six", ChunkConfig{Size: 4, Overlap: 1})
	fmt.Println(len(chunks))
	// Output: 2
}
