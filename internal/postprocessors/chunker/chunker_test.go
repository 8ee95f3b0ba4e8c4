package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunker_Split_EmptyContent(t *testing.T) {
	c := New()

	assert.Nil(t, c.Split("doc-1", ""))
	assert.Nil(t, c.Split("doc-1", "   \n\t  "))
}

func TestChunker_Split_ShortContentSingleChunk(t *testing.T) {
	c := New()
	content := "A short contract clause."

	chunks := c.Split("doc-1", content)
	require.Len(t, chunks, 1)
	assert.Equal(t, content, chunks[0].Content)
	assert.Equal(t, "doc-1", chunks[0].DocumentID)
	assert.Zero(t, chunks[0].Position)
	assert.Equal(t, 0, chunks[0].Offset.Start)
	assert.Equal(t, len(content), chunks[0].Offset.End)
}

func TestChunker_Split_OffsetsAnchorContent(t *testing.T) {
	c := New(WithChunkSize(120), WithOverlap(20))
	content := strings.Repeat("The Contractor shall maintain the equipment. ", 12)

	chunks := c.Split("doc-1", content)
	require.Greater(t, len(chunks), 1)

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Position)
		// The chunk content is the trimmed slice of its offset range.
		raw := content[chunk.Offset.Start:chunk.Offset.End]
		assert.Equal(t, strings.TrimSpace(raw), chunk.Content)
		assert.NotEmpty(t, chunk.ID)
	}
}

func TestChunker_Split_ConsecutiveChunksOverlap(t *testing.T) {
	c := New(WithChunkSize(120), WithOverlap(20))
	content := strings.Repeat("The Contractor shall maintain the equipment. ", 12)

	chunks := c.Split("doc-1", content)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].Offset.End-20, chunks[i].Offset.Start)
	}
}

func TestChunker_Split_BreaksAtSentenceBoundary(t *testing.T) {
	c := New(WithChunkSize(100), WithOverlap(0))
	content := "First sentence runs for a while to fill the window nicely, yes. Second sentence continues the text beyond the window size."

	chunks := c.Split("doc-1", content)
	require.Greater(t, len(chunks), 1)
	// The window end moves back to the sentence terminator instead of
	// cutting mid-word.
	assert.True(t, strings.HasSuffix(chunks[0].Content, "."))
}

func TestChunker_Split_PrefersParagraphBreaks(t *testing.T) {
	para1 := strings.Repeat("Clause text in the first paragraph here ", 2)
	content := para1 + "\n\n" + "Second paragraph begins with new obligations and continues for some length to overflow."
	c := New(WithChunkSize(100), WithOverlap(0))

	chunks := c.Split("doc-1", content)
	require.Greater(t, len(chunks), 1)
	assert.Equal(t, strings.TrimSpace(para1), chunks[0].Content)
}

func TestChunker_Split_CoversWholeDocument(t *testing.T) {
	c := New(WithChunkSize(150), WithOverlap(30))
	content := strings.Repeat("Obligations and payment clauses fill this agreement. ", 20)

	chunks := c.Split("doc-1", content)
	require.NotEmpty(t, chunks)
	assert.Equal(t, 0, chunks[0].Offset.Start)
	assert.Equal(t, len(content), chunks[len(chunks)-1].Offset.End)
}

func TestNew_SanitisesOverlap(t *testing.T) {
	// Overlap at or above the window would never advance; it collapses
	// to a quarter window.
	c := New(WithChunkSize(100), WithOverlap(100))
	assert.Equal(t, 25, c.overlap)

	c = New(WithChunkSize(0), WithOverlap(-5))
	assert.Equal(t, DefaultChunkSize, c.chunkSize)
	assert.Equal(t, DefaultOverlap, c.overlap)
}
