package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	dim   int
	calls int
	texts []string
}

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.calls++
	c.texts = append(c.texts, texts...)
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, c.dim)
		v[len(text)%c.dim] = 1
		vectors[i] = v
	}
	return vectors, nil
}

func (c *countingEmbedder) Dimension() int {
	return c.dim
}

func TestCachedEmbedderServesHitsWithoutCalling(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{dim: 8}
	cached := NewCachedEmbedder(inner)

	first, err := cached.Embed(ctx, []string{"water policy", "housing"})
	require.NoError(t, err)
	require.Equal(t, 1, inner.calls)

	second, err := cached.Embed(ctx, []string{"water policy", "housing"})
	require.NoError(t, err)
	require.Equal(t, 1, inner.calls)
	require.Equal(t, first, second)
}

func TestCachedEmbedderFetchesOnlyMisses(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{dim: 8}
	cached := NewCachedEmbedder(inner)

	_, err := cached.Embed(ctx, []string{"alpha", "beta"})
	require.NoError(t, err)

	vectors, err := cached.Embed(ctx, []string{"alpha", "gamma", "beta"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	require.Equal(t, 2, inner.calls)
	require.Equal(t, []string{"alpha", "beta", "gamma"}, inner.texts)

	for _, v := range vectors {
		require.Len(t, v, 8)
	}
}

func TestCachedEmbedderDimension(t *testing.T) {
	cached := NewCachedEmbedder(&countingEmbedder{dim: 768})
	require.Equal(t, 768, cached.Dimension())
}
