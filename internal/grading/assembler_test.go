package grading

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/courseloop/autograder/internal/model"
)

func testRubric() model.Rubric {
	return model.Rubric{
		"accuracy": {Description: "factual correctness", MaxPoints: 50},
		"clarity":  {Description: "clear writing", MaxPoints: 50},
	}
}

func scored(docID string, ordinal int, text string, sim float32) model.ScoredChunk {
	return model.ScoredChunk{
		Chunk: model.ReferenceChunk{
			AssignmentID: "asg-1",
			DocID:        docID,
			Ordinal:      ordinal,
			Content:      text,
		},
		Similarity: sim,
	}
}

func TestAssemble_TagsChunksInRankOrder(t *testing.T) {
	chunks := []model.ScoredChunk{
		scored("doc-a", 0, "first chunk", 0.91),
		scored("doc-a", 3, "second chunk", 0.85),
		scored("doc-b", 1, "third chunk", 0.62),
	}
	req := NewAssembler(0).Assemble(context.Background(), testRubric(), "essay text", chunks)

	require.False(t, req.Truncated)
	require.Len(t, req.Retrieved, 3)
	require.Equal(t, "ref_1", req.Retrieved[0].RefID)
	require.Equal(t, "ref_2", req.Retrieved[1].RefID)
	require.Equal(t, "ref_3", req.Retrieved[2].RefID)
	require.Equal(t, "doc-b", req.Retrieved[2].Source)
	require.Equal(t, 1, req.Retrieved[2].Ordinal)
	require.Equal(t, "essay text", req.SubmissionText)
}

func TestAssemble_DropsLowestRankedChunksFirst(t *testing.T) {
	chunks := []model.ScoredChunk{
		scored("doc-a", 0, strings.Repeat("a", 40), 0.9),
		scored("doc-a", 1, strings.Repeat("b", 40), 0.8),
		scored("doc-a", 2, strings.Repeat("c", 40), 0.3),
	}
	// 20 chars of submission + 120 of context against an 100-char ceiling:
	// the weakest chunk goes, the submission stays whole.
	req := NewAssembler(100).Assemble(context.Background(), testRubric(), strings.Repeat("s", 20), chunks)

	require.True(t, req.Truncated)
	require.Len(t, req.Retrieved, 2)
	require.Equal(t, "ref_1", req.Retrieved[0].RefID)
	require.Equal(t, "ref_2", req.Retrieved[1].RefID)
	require.Len(t, req.SubmissionText, 20)
}

func TestAssemble_TruncatesSubmissionAfterChunksExhausted(t *testing.T) {
	req := NewAssembler(50).Assemble(context.Background(), testRubric(), strings.Repeat("s", 200), nil)

	require.True(t, req.Truncated)
	require.Empty(t, req.Retrieved)
	require.Len(t, req.SubmissionText, 50)
}

func TestAssemble_Deterministic(t *testing.T) {
	chunks := []model.ScoredChunk{
		scored("doc-a", 0, strings.Repeat("x", 30), 0.9),
		scored("doc-a", 1, strings.Repeat("y", 30), 0.5),
	}
	first := NewAssembler(70).Assemble(context.Background(), testRubric(), strings.Repeat("s", 25), chunks)
	for i := 0; i < 3; i++ {
		again := NewAssembler(70).Assemble(context.Background(), testRubric(), strings.Repeat("s", 25), chunks)
		require.Equal(t, first, again)
	}
}

func TestBuildPrompt_ContainsRubricReferencesAndSubmission(t *testing.T) {
	chunks := []model.ScoredChunk{scored("doc-a", 2, "newton's second law", 0.88)}
	req := NewAssembler(0).Assemble(context.Background(), testRubric(), "F equals m times a", chunks)

	prompt := BuildPrompt(req)
	require.Contains(t, prompt, `"accuracy"`)
	require.Contains(t, prompt, `"max_points": 50`)
	require.Contains(t, prompt, "[ref_1] (source=doc-a ordinal=2)")
	require.Contains(t, prompt, "newton's second law")
	require.Contains(t, prompt, "F equals m times a")
}

func TestBuildPrompt_NoContextStillGrades(t *testing.T) {
	req := NewAssembler(0).Assemble(context.Background(), testRubric(), "essay", nil)
	prompt := BuildPrompt(req)
	require.Contains(t, prompt, "no reference material was retrieved")
}
