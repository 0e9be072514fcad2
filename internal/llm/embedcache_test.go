package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls int
}

func (c *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	c.calls++
	return []float32{float32(len(text)), float32(c.calls)}, nil
}

func TestCachingEmbedderReturnsIdenticalVectors(t *testing.T) {
	inner := &countingEmbedder{}
	cached := NewCachingEmbedder(inner, 8)

	first, err := cached.Embed(context.Background(), "hello sunshine")
	require.NoError(t, err)
	second, err := cached.Embed(context.Background(), "hello sunshine")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
}

func TestCachingEmbedderEvictsOldestEntry(t *testing.T) {
	inner := &countingEmbedder{}
	cached := NewCachingEmbedder(inner, 2)

	_, err := cached.Embed(context.Background(), "a")
	require.NoError(t, err)
	_, err = cached.Embed(context.Background(), "b")
	require.NoError(t, err)
	_, err = cached.Embed(context.Background(), "c")
	require.NoError(t, err)

	// "a" was evicted, so it costs another upstream call.
	_, err = cached.Embed(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 4, inner.calls)

	// "c" is still resident.
	_, err = cached.Embed(context.Background(), "c")
	require.NoError(t, err)
	assert.Equal(t, 4, inner.calls)
}
