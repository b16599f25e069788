package grading

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/courseloop/autograder/internal/model"
)

// RetrievedRef is a reference chunk tagged with the stable identifier the
// model must use in citations.
type RetrievedRef struct {
	RefID      string  `json:"ref_id"`
	Source     string  `json:"source"`
	Ordinal    int     `json:"ordinal"`
	Text       string  `json:"text"`
	Similarity float32 `json:"-"`
}

// GradingRequest carries everything one grading call needs: the rubric
// verbatim, the (possibly truncated) submission text, and the retrieved
// chunks in rank order.
type GradingRequest struct {
	Rubric         model.Rubric   `json:"rubric"`
	SubmissionText string         `json:"submission_text"`
	Retrieved      []RetrievedRef `json:"retrieved"`
	Truncated      bool           `json:"truncated"`
}

func (req *GradingRequest) refIDSet() map[string]bool {
	ids := make(map[string]bool, len(req.Retrieved))
	for _, ref := range req.Retrieved {
		ids[ref.RefID] = true
	}
	return ids
}

type Assembler struct {
	maxChars int
}

func NewAssembler(maxChars int) *Assembler {
	return &Assembler{maxChars: maxChars}
}

// Assemble builds the grading request. When the submission plus retrieved
// context would exceed the size ceiling, lowest-similarity chunks are
// dropped first and the submission text is cut last; the request records
// that its context was degraded. The outcome is deterministic for a fixed
// input.
func (a *Assembler) Assemble(ctx context.Context, rubric model.Rubric, submissionText string, chunks []model.ScoredChunk) *GradingRequest {
	refs := make([]RetrievedRef, 0, len(chunks))
	for i, sc := range chunks {
		refs = append(refs, RetrievedRef{
			RefID:      fmt.Sprintf("ref_%d", i+1),
			Source:     sc.Chunk.DocID,
			Ordinal:    sc.Chunk.Ordinal,
			Text:       sc.Chunk.Content,
			Similarity: sc.Similarity,
		})
	}

	req := &GradingRequest{
		Rubric:         rubric,
		SubmissionText: submissionText,
		Retrieved:      refs,
	}
	if a.maxChars <= 0 {
		return req
	}

	contextChars := 0
	for _, ref := range req.Retrieved {
		contextChars += len(ref.Text)
	}
	dropped := 0
	for len(req.SubmissionText)+contextChars > a.maxChars && len(req.Retrieved) > 0 {
		last := req.Retrieved[len(req.Retrieved)-1]
		contextChars -= len(last.Text)
		req.Retrieved = req.Retrieved[:len(req.Retrieved)-1]
		dropped++
		req.Truncated = true
	}
	if len(req.SubmissionText)+contextChars > a.maxChars {
		keep := a.maxChars - contextChars
		if keep < 0 {
			keep = 0
		}
		req.SubmissionText = req.SubmissionText[:keep]
		req.Truncated = true
	}
	if req.Truncated {
		logutil.GetLogger(ctx).Warn("grading context degraded to fit size ceiling",
			zap.Int("max_chars", a.maxChars),
			zap.Int("dropped_chunks", dropped),
			zap.Int("submission_chars", len(req.SubmissionText)),
			zap.Int("original_submission_chars", len(submissionText)),
		)
	}
	return req
}

// BuildPrompt renders the strict-JSON grading prompt. The model must reply
// with a single JSON object and cite only the supplied ref IDs.
func BuildPrompt(req *GradingRequest) string {
	rubricJSON, _ := json.MarshalIndent(req.Rubric, "", "  ")

	var refs strings.Builder
	if len(req.Retrieved) == 0 {
		refs.WriteString("(no reference material was retrieved; grade on the rubric alone)\n")
	}
	for _, ref := range req.Retrieved {
		fmt.Fprintf(&refs, "[%s] (source=%s ordinal=%d)\n%s\n\n", ref.RefID, ref.Source, ref.Ordinal, ref.Text)
	}

	return fmt.Sprintf(`You are an expert grading assistant for academic submissions.

Grade the submission STRICTLY on the rubric below and the retrieved
reference context. Deduct points conservatively: prefer undergrading to
overgrading, never award points for claims the submission does not support,
and never invent criteria that are not in the rubric.

You MUST return ONLY a single valid JSON object with this exact structure:
{
  "score": <integer total>,
  "breakdown": {<criterion name>: <integer points awarded>, ...},
  "feedback": "<overall feedback>",
  "citations": ["<ref id of each reference actually used>", ...]
}
The breakdown keys must be exactly the rubric's criterion names. Each value
must be an integer between 0 and that criterion's max_points. Citations may
only use the reference ids listed below. Do not use markdown code blocks.
Do not add any text before or after the JSON.

RUBRIC:
%s

REFERENCE CONTEXT:
%s
SUBMISSION TO GRADE:
%s`, string(rubricJSON), refs.String(), req.SubmissionText)
}
