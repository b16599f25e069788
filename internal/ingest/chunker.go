package ingest

import (
	"fmt"
	"strings"

	apperr "github.com/courseloop/autograder/internal/pkg/errors"
)

// ChunkConfig controls the sliding word window. Overlap words from the end
// of one chunk are repeated at the start of the next.
type ChunkConfig struct {
	Size    int
	Overlap int
}

func (c ChunkConfig) validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", apperr.ErrInvalidConfiguration, c.Size)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: overlap must not be negative, got %d", apperr.ErrInvalidConfiguration, c.Overlap)
	}
	if c.Overlap >= c.Size {
		return fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", apperr.ErrInvalidConfiguration, c.Overlap, c.Size)
	}
	return nil
}

// Chunk splits text into overlapping word windows. Windows step by
// Size-Overlap words, the last window may be short, and blank windows are
// skipped. Empty input yields no chunks. Output is deterministic for a
// fixed input and config.
func Chunk(text string, cfg ChunkConfig) ([]string, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}
	step := cfg.Size - cfg.Overlap
	chunks := make([]string, 0, (len(words)+step-1)/step)
	for i := 0; i < len(words); i += step {
		end := i + cfg.Size
		if end > len(words) {
			end = len(words)
		}
		chunk := strings.Join(words[i:end], " ")
		if strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(words) {
			break
		}
	}
	return chunks, nil
}
