package ingest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	apperr "github.com/courseloop/autograder/internal/pkg/errors"
)

func TestChunk_RejectsInvalidConfig(t *testing.T) {
	cases := []ChunkConfig{
		{Size: 0, Overlap: 0},
		{Size: -5, Overlap: 0},
		{Size: 10, Overlap: -1},
		{Size: 10, Overlap: 10},
		{Size: 10, Overlap: 15},
	}
	for _, cfg := range cases {
		_, err := Chunk("some text", cfg)
		require.ErrorIs(t, err, apperr.ErrInvalidConfiguration, "config %+v", cfg)
	}
}

func TestChunk_EmptyInputYieldsNoChunks(t *testing.T) {
	chunks, err := Chunk("", ChunkConfig{Size: 10, Overlap: 2})
	require.NoError(t, err)
	require.Empty(t, chunks)

	chunks, err = Chunk("   \n\t  ", ChunkConfig{Size: 10, Overlap: 2})
	require.NoError(t, err)
	require.Empty(t, chunks)
}

func TestChunk_WindowsOverlapAndCoverInput(t *testing.T) {
	words := make([]string, 23)
	for i := range words {
		words[i] = fmt.Sprintf("w%02d", i)
	}
	text := strings.Join(words, " ")

	chunks, err := Chunk(text, ChunkConfig{Size: 10, Overlap: 3})
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	// Each chunk starts with the last 3 words of the previous one.
	for i := 1; i < len(chunks); i++ {
		prev := strings.Fields(chunks[i-1])
		cur := strings.Fields(chunks[i])
		require.Equal(t, prev[len(prev)-3:], cur[:3])
	}

	// Dropping each chunk's overlap prefix reconstructs the word stream.
	rebuilt := strings.Fields(chunks[0])
	for i := 1; i < len(chunks); i++ {
		cur := strings.Fields(chunks[i])
		rebuilt = append(rebuilt, cur[3:]...)
	}
	require.Equal(t, words, rebuilt)
}

func TestChunk_LastWindowMayBeShort(t *testing.T) {
	chunks, err := Chunk("a b c d e f g", ChunkConfig{Size: 5, Overlap: 1})
	require.NoError(t, err)
	require.Equal(t, []string{"a b c d e", "e f g"}, chunks)
}

func TestChunk_SingleWindowWhenInputFits(t *testing.T) {
	chunks, err := Chunk("a b c", ChunkConfig{Size: 10, Overlap: 2})
	require.NoError(t, err)
	require.Equal(t, []string{"a b c"}, chunks)
}

func TestChunk_Deterministic(t *testing.T) {
	text := strings.Repeat("lorem ipsum dolor sit amet ", 40)
	cfg := ChunkConfig{Size: 12, Overlap: 4}
	first, err := Chunk(text, cfg)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Chunk(text, cfg)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}
