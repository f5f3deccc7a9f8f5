package mock

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbed_Deterministic(t *testing.T) {
	svc := NewEmbeddingService(8)
	ctx := context.Background()

	a, err := svc.Embed(ctx, "hello")
	require.NoError(t, err)
	b, err := svc.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := svc.Embed(ctx, "world")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestEmbedBatch_IndexAligned(t *testing.T) {
	svc := NewEmbeddingService(8)
	ctx := context.Background()

	batch, err := svc.EmbedBatch(ctx, []string{"a", "b", "a"})
	require.NoError(t, err)
	require.Len(t, batch, 3)
	assert.Equal(t, batch[0], batch[2], "duplicate inputs must embed identically")
	assert.NotEqual(t, batch[0], batch[1])

	single, err := svc.Embed(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, single, batch[0])
}

func TestEmbed_UnitLength(t *testing.T) {
	svc := NewEmbeddingService(16)

	vec, err := svc.Embed(context.Background(), "some text")
	require.NoError(t, err)
	require.Len(t, vec, 16)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestNewEmbeddingService_DefaultDimensions(t *testing.T) {
	assert.Equal(t, DefaultDimensions, NewEmbeddingService(0).Dimensions())
	assert.Equal(t, 42, NewEmbeddingService(42).Dimensions())
}
