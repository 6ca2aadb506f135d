package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	apperr "github.com/openparl/hansardsearch/server/internal/errors"
)

func TestChunkShortTextYieldsSinglePassage(t *testing.T) {
	policy := ChunkPolicy{MaxChars: 100, OverlapChars: 20}

	chunks, err := Chunk("a short speech", policy)
	require.NoError(t, err)
	require.Equal(t, []string{"a short speech"}, chunks)

	// Exactly MaxChars is still a single passage.
	exact := strings.Repeat("x", 100)
	chunks, err = Chunk(exact, policy)
	require.NoError(t, err)
	require.Equal(t, []string{exact}, chunks)
}

func TestChunkRejectsBadPolicy(t *testing.T) {
	_, err := Chunk("text", ChunkPolicy{MaxChars: 50, OverlapChars: 50})
	require.Error(t, err)
	require.True(t, apperr.IsCode(err, apperr.ErrCodeInvalidArgument))

	_, err = Chunk("text", ChunkPolicy{MaxChars: 0, OverlapChars: 0})
	require.Error(t, err)

	_, err = Chunk("text", ChunkPolicy{MaxChars: 50, OverlapChars: -1})
	require.Error(t, err)
}

func TestChunkWindowAndOverlap(t *testing.T) {
	policy := ChunkPolicy{MaxChars: 10, OverlapChars: 3}
	text := "abcdefghijklmnopqrstuvwxyz"

	chunks, err := Chunk(text, policy)
	require.NoError(t, err)
	require.Equal(t, []string{"abcdefghij", "hijklmnopq", "opqrstuvwx", "vwxyz"}, chunks)

	// Every non-final passage is exactly MaxChars long and shares its tail
	// with the next passage's head.
	for i := 0; i < len(chunks)-1; i++ {
		require.Len(t, []rune(chunks[i]), policy.MaxChars)
		tail := chunks[i][len(chunks[i])-policy.OverlapChars:]
		head := chunks[i+1][:policy.OverlapChars]
		require.Equal(t, tail, head)
	}
}

func TestChunkReassembleReconstructsInput(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		policy ChunkPolicy
	}{
		{"ascii", strings.Repeat("the member for Grayndler rose to speak. ", 40), ChunkPolicy{MaxChars: 120, OverlapChars: 25}},
		{"no overlap", strings.Repeat("division called ", 30), ChunkPolicy{MaxChars: 64, OverlapChars: 0}},
		{"multibyte", strings.Repeat("négociation ", 50), ChunkPolicy{MaxChars: 37, OverlapChars: 9}},
		{"trailing partial kept", strings.Repeat("y", 105), ChunkPolicy{MaxChars: 50, OverlapChars: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := Chunk(tt.text, tt.policy)
			require.NoError(t, err)
			require.NotEmpty(t, chunks)
			require.Equal(t, tt.text, Reassemble(chunks, tt.policy))
		})
	}
}

func TestNormalizeText(t *testing.T) {
	in := "  The SPEAKER\t (Hon. Milton  Dick)\r\ntook the chair.\r\n\r\n\r\nMembers rose. \n"
	want := "The SPEAKER (Hon. Milton Dick)\ntook the chair.\n\nMembers rose."
	require.Equal(t, want, NormalizeText(in))

	// Normalization is idempotent.
	require.Equal(t, want, NormalizeText(want))
}

func TestWordCount(t *testing.T) {
	require.Equal(t, 0, WordCount(""))
	require.Equal(t, 4, WordCount("order, order! members will"))
}
