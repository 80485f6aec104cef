package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func genWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = "word"
	}
	return strings.Join(words, " ")
}

func TestChunk_FitsInSingleChunk(t *testing.T) {
	text := genWords(100)
	chunks := Chunk(text, Options{MaxTokens: 512})
	require.Len(t, chunks, 1)
	require.Equal(t, text, chunks[0].Text)
}

func TestChunk_OversizeSplitsOnParagraphsWithOverlap(t *testing.T) {
	// Emulates spec.md §8 end-to-end scenario 3: 1800 words, MAX=512, OVERLAP=50.
	var paras []string
	for i := 0; i < 6; i++ {
		paras = append(paras, genWords(300))
	}
	text := strings.Join(paras, "\n\n")
	chunks := Chunk(text, Options{MaxTokens: 512, Overlap: 50})
	require.GreaterOrEqual(t, len(chunks), 4)

	for i := 1; i < len(chunks); i++ {
		prevFields := strings.Fields(chunks[i-1].Text)
		curFields := strings.Fields(chunks[i].Text)
		wantOverlap := prevFields[len(prevFields)-50:]
		require.Equal(t, wantOverlap, curFields[:50])
	}
}

func TestChunk_OversizedSentenceNeverTruncated(t *testing.T) {
	hugeSentence := genWords(1000) + "."
	chunks := Chunk(hugeSentence, Options{MaxTokens: 100, Overlap: 10})
	found := false
	for _, c := range chunks {
		if c.Text == hugeSentence {
			found = true
		}
	}
	require.True(t, found, "oversized sentence must survive intact in its own chunk")
}

func TestChunk_SingleParagraphFallsBackToSentences(t *testing.T) {
	var sentences []string
	for i := 0; i < 30; i++ {
		sentences = append(sentences, genWords(30)+".")
	}
	text := strings.Join(sentences, " ")
	chunks := Chunk(text, Options{MaxTokens: 100})
	require.Greater(t, len(chunks), 1)
}

func TestChunk_RoundTripModuloOverlapAndWhitespace(t *testing.T) {
	var paras []string
	for i := 0; i < 4; i++ {
		paras = append(paras, genWords(200))
	}
	text := strings.Join(paras, "\n\n")
	chunks := Chunk(text, Options{MaxTokens: 512, Overlap: 50})

	var rebuilt []string
	for i, c := range chunks {
		fields := strings.Fields(c.Text)
		if i > 0 {
			fields = fields[50:]
		}
		rebuilt = append(rebuilt, fields...)
	}
	require.Equal(t, strings.Fields(text), rebuilt)
}
