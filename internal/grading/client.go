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

// Generator is the model invocation dependency, satisfied by ai.IGenerator.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type ClientConfig struct {
	// MaxContractAttempts bounds re-prompts after malformed or
	// contract-violating output.
	MaxContractAttempts int
	// MaxTransportAttempts bounds retries of transient transport failures
	// within one contract attempt.
	MaxTransportAttempts int
	Backoff              time.Duration
	Timeout              time.Duration
}

func (c *ClientConfig) fillDefaults() {
	if c.MaxContractAttempts <= 0 {
		c.MaxContractAttempts = 3
	}
	if c.MaxTransportAttempts <= 0 {
		c.MaxTransportAttempts = 3
	}
	if c.Backoff <= 0 {
		c.Backoff = 500 * time.Millisecond
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
}

type Client struct {
	gen Generator
	cfg ClientConfig
}

func NewClient(gen Generator, cfg ClientConfig) *Client {
	cfg.fillDefaults()
	return &Client{gen: gen, cfg: cfg}
}

// ContractViolationError keeps the last raw model response for diagnostics.
type ContractViolationError struct {
	Attempts     int
	Reason       string
	LastResponse string
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("grading contract violation after %d attempts: %s", e.Attempts, e.Reason)
}

func (e *ContractViolationError) Unwrap() error {
	return apperr.ErrGradingContract
}

// Grade invokes the model and enforces the output contract. Malformed or
// contract-violating output is re-prompted with a corrective instruction up
// to the contract bound; transient transport failures are retried with
// exponential backoff up to a separate bound. The two exhaustion outcomes
// are distinguishable via errors.Is against ErrGradingContract and
// ErrModelUnavailable.
func (c *Client) Grade(ctx context.Context, req *GradingRequest) (*model.GradeResult, error) {
	logger := logutil.GetLogger(ctx)
	refIDs := req.refIDSet()
	basePrompt := BuildPrompt(req)

	prompt := basePrompt
	var lastRaw, lastReason string
	for attempt := 1; attempt <= c.cfg.MaxContractAttempts; attempt++ {
		raw, err := c.complete(ctx, prompt)
		if err != nil {
			return nil, err
		}
		result, reason := checkGradeResponse(req.Rubric, refIDs, raw)
		if reason == "" {
			logger.Info("grading response accepted", zap.Int("attempt", attempt), zap.Int("score", result.Score))
			return result, nil
		}
		logger.Warn("grading response rejected",
			zap.Int("attempt", attempt),
			zap.String("reason", reason),
		)
		lastRaw = raw
		lastReason = reason
		prompt = basePrompt + fmt.Sprintf(
			"\n\nYour previous response was rejected: %s.\nReturn the corrected JSON object and nothing else.", reason)
	}
	return nil, &ContractViolationError{
		Attempts:     c.cfg.MaxContractAttempts,
		Reason:       lastReason,
		LastResponse: lastRaw,
	}
}

// complete runs one model call with bounded transport retries.
func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	logger := logutil.GetLogger(ctx)
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxTransportAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		raw, err := c.gen.Generate(attemptCtx, prompt)
		cancel()
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if attempt == c.cfg.MaxTransportAttempts {
			break
		}
		delay := c.cfg.Backoff << (attempt - 1)
		logger.Warn("model call failed, backing off",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", apperr.ErrModelUnavailable, ctx.Err())
		}
	}
	return "", fmt.Errorf("%w: %v", apperr.ErrModelUnavailable, lastErr)
}
