package grading

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/courseloop/autograder/internal/model"
	apperr "github.com/courseloop/autograder/internal/pkg/errors"
)

type scriptedGenerator struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (g *scriptedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	i := g.calls
	g.calls++
	g.prompts = append(g.prompts, prompt)
	if i < len(g.errs) && g.errs[i] != nil {
		return "", g.errs[i]
	}
	if i < len(g.responses) {
		return g.responses[i], nil
	}
	return "", errors.New("no scripted response")
}

func fastClientConfig() ClientConfig {
	return ClientConfig{
		MaxContractAttempts:  3,
		MaxTransportAttempts: 3,
		Backoff:              time.Millisecond,
		Timeout:              time.Second,
	}
}

func validResponse() string {
	return `{"score": 80, "breakdown": {"accuracy": 40, "clarity": 40}, "feedback": "ok", "citations": ["ref_1"]}`
}

func testRequest() *GradingRequest {
	chunks := []model.ScoredChunk{scored("doc-a", 0, "reference text", 0.9)}
	return NewAssembler(0).Assemble(context.Background(), testRubric(), "essay", chunks)
}

func TestClientGrade_AcceptsFirstValidResponse(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{validResponse()}}
	client := NewClient(gen, fastClientConfig())

	result, err := client.Grade(context.Background(), testRequest())
	require.NoError(t, err)
	require.Equal(t, 80, result.Score)
	require.Equal(t, 1, gen.calls)
}

func TestClientGrade_RetriesWithCorrectiveInstruction(t *testing.T) {
	missingClarity := `{"score": 40, "breakdown": {"accuracy": 40}, "feedback": "ok", "citations": []}`
	gen := &scriptedGenerator{responses: []string{missingClarity, validResponse()}}
	client := NewClient(gen, fastClientConfig())

	result, err := client.Grade(context.Background(), testRequest())
	require.NoError(t, err)
	require.Equal(t, 80, result.Score)
	require.Equal(t, 2, gen.calls)
	require.Contains(t, gen.prompts[1], "previous response was rejected")
	require.Contains(t, gen.prompts[1], `missing rubric criterion "clarity"`)
}

func TestClientGrade_ContractExhaustionFailsWithViolation(t *testing.T) {
	bad := `{"score": 40, "breakdown": {"accuracy": 40}, "feedback": "ok", "citations": []}`
	gen := &scriptedGenerator{responses: []string{bad, bad, bad}}
	client := NewClient(gen, fastClientConfig())

	result, err := client.Grade(context.Background(), testRequest())
	require.Nil(t, result)
	require.ErrorIs(t, err, apperr.ErrGradingContract)
	require.NotErrorIs(t, err, apperr.ErrModelUnavailable)
	require.Equal(t, 3, gen.calls)

	var violation *ContractViolationError
	require.ErrorAs(t, err, &violation)
	require.Equal(t, bad, violation.LastResponse)
	require.Equal(t, 3, violation.Attempts)
}

func TestClientGrade_TransientFailureRecovers(t *testing.T) {
	gen := &scriptedGenerator{
		errs:      []error{errors.New("timeout"), nil},
		responses: []string{"", validResponse()},
	}
	client := NewClient(gen, fastClientConfig())

	result, err := client.Grade(context.Background(), testRequest())
	require.NoError(t, err)
	require.Equal(t, 80, result.Score)
	require.Equal(t, 2, gen.calls)
}

func TestClientGrade_TransportExhaustionFailsUnavailable(t *testing.T) {
	boom := errors.New("rate limited")
	gen := &scriptedGenerator{errs: []error{boom, boom, boom}}
	client := NewClient(gen, fastClientConfig())

	result, err := client.Grade(context.Background(), testRequest())
	require.Nil(t, result)
	require.ErrorIs(t, err, apperr.ErrModelUnavailable)
	require.NotErrorIs(t, err, apperr.ErrGradingContract)
	require.Equal(t, 3, gen.calls)
}
