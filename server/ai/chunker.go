package ai

import (
	"strings"

	apperr "github.com/openparl/hansardsearch/server/internal/errors"
)

const (
	// DefaultChunkSize is the maximum character count per passage.
	DefaultChunkSize = 500
	// DefaultChunkOverlap is the character count shared between consecutive passages.
	DefaultChunkOverlap = 50
)

// ChunkPolicy bounds the size and overlap of produced passages. Sizes are in
// characters (runes), not bytes, so multi-byte text never splits mid-rune.
type ChunkPolicy struct {
	MaxChars     int
	OverlapChars int
}

// DefaultChunkPolicy returns the default chunking policy.
func DefaultChunkPolicy() ChunkPolicy {
	return ChunkPolicy{MaxChars: DefaultChunkSize, OverlapChars: DefaultChunkOverlap}
}

// Validate rejects policies that cannot make progress.
func (p ChunkPolicy) Validate() error {
	if p.MaxChars <= 0 {
		return apperr.InvalidArgument("max_chars", "must be positive")
	}
	if p.OverlapChars < 0 {
		return apperr.InvalidArgument("overlap_chars", "must not be negative")
	}
	if p.OverlapChars >= p.MaxChars {
		return apperr.InvalidArgument("overlap_chars", "must be strictly less than max_chars")
	}
	return nil
}

// Chunk splits text into an ordered sequence of overlapping passages.
//
// Passages are cut on an exact sliding window: passage i starts at
// i*(MaxChars-OverlapChars). Concatenating passage 0 with every later passage
// minus its first OverlapChars characters reconstructs the input exactly. The
// trailing partial passage is kept, never dropped. Text no longer than
// MaxChars yields exactly one passage.
func Chunk(text string, policy ChunkPolicy) ([]string, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	runes := []rune(text)
	if len(runes) <= policy.MaxChars {
		return []string{text}, nil
	}

	step := policy.MaxChars - policy.OverlapChars
	chunks := []string{}
	for start := 0; ; start += step {
		end := start + policy.MaxChars
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks, nil
}

// Reassemble inverts Chunk: it concatenates passages in order, trimming the
// leading overlap from every passage after the first.
func Reassemble(chunks []string, policy ChunkPolicy) string {
	var b strings.Builder
	for i, chunk := range chunks {
		if i == 0 {
			b.WriteString(chunk)
			continue
		}
		runes := []rune(chunk)
		if len(runes) > policy.OverlapChars {
			b.WriteString(string(runes[policy.OverlapChars:]))
		}
	}
	return b.String()
}

// NormalizeText canonicalizes document text for hashing and chunking: line
// endings become \n, runs of spaces and tabs collapse to one space, each line
// is trimmed, and runs of blank lines collapse to a single blank line.
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	normalized := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(normalized) > 0 {
				normalized = append(normalized, "")
			}
			blank = true
			continue
		}
		blank = false
		normalized = append(normalized, line)
	}
	// Drop a trailing blank line left by the loop.
	for len(normalized) > 0 && normalized[len(normalized)-1] == "" {
		normalized = normalized[:len(normalized)-1]
	}
	return strings.Join(normalized, "\n")
}

// WordCount counts whitespace-separated words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
