package retrieval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkText_Empty(t *testing.T) {
	t.Parallel()
	assert.Empty(t, ChunkText("", 100, 20))
	assert.Empty(t, ChunkText("   \n  ", 100, 20))
}

func TestChunkText_ShortTextIsOneChunk(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"hello world"}, ChunkText("  hello world \n", 100, 20))
}

func TestChunkText_BreaksOnNewline(t *testing.T) {
	t.Parallel()

	para := strings.Repeat("a", 60)
	text := para + "\n" + para + "\n" + para
	chunks := ChunkText(text, 100, 10)

	require.NotEmpty(t, chunks)
	assert.Equal(t, para, chunks[0])
	assert.True(t, strings.HasSuffix(chunks[len(chunks)-1], para))
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 100)
	}
}

func TestChunkText_BreaksOnSpace(t *testing.T) {
	t.Parallel()

	words := strings.Repeat("word ", 50)
	chunks := ChunkText(words, 32, 8)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.True(t, strings.HasSuffix(c, "word"), "chunk %q ends mid-word", c)
		assert.LessOrEqual(t, len(c), 32)
	}
}

func TestChunkText_Overlap(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("x", 250)
	chunks := ChunkText(text, 100, 20)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 100)
	assert.Len(t, chunks[1], 100)
	assert.Len(t, chunks[2], 90)
}

func TestChunkText_MultibyteRunes(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("ü", 150)
	chunks := ChunkText(text, 100, 0)
	require.Len(t, chunks, 2)
	assert.Equal(t, 100, len([]rune(chunks[0])))
	assert.Equal(t, 50, len([]rune(chunks[1])))
}
