package workingmem

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/animahq/anima/internal/core/model"
	"github.com/animahq/anima/internal/testutil"
)

func newBuffer(capacity int) *Buffer {
	b := NewBuffer(capacity, 0.9, &testutil.HashEmbedder{}, zap.NewNop())
	i := 0
	b.UUIDGenerator = func() string {
		i++
		return fmt.Sprintf("item-%d", i)
	}
	return b
}

func TestAdmitEvictsLowestSalience(t *testing.T) {
	b := newBuffer(3)
	ctx := context.Background()

	b.Admit(ctx, "strong", 0.9, "")
	b.Admit(ctx, "weak", 0.1, "")
	b.Admit(ctx, "medium", 0.5, "")
	b.Admit(ctx, "newcomer", 0.7, "")

	assert.Equal(t, 3, b.Size())
	for _, item := range b.Focus(0) {
		assert.NotEqual(t, "weak", item.Content)
	}
}

func TestAdmitNeverEvictsCurrentTurn(t *testing.T) {
	b := newBuffer(2)
	ctx := context.Background()

	b.Admit(ctx, "the turn in flight", 0.05, model.TagCurrentTurn)
	b.Admit(ctx, "other a", 0.5, "")
	b.Admit(ctx, "other b", 0.6, "")

	contents := []string{}
	for _, item := range b.Focus(0) {
		contents = append(contents, item.Content)
	}
	assert.Contains(t, contents, "the turn in flight")
	assert.Equal(t, 2, b.Size())
}

func TestHardCapNine(t *testing.T) {
	b := NewBuffer(9, 0.9, nil, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		b.Admit(ctx, fmt.Sprintf("item %d", i), 0.5, "")
	}
	assert.LessOrEqual(t, b.Size(), 9)
}

func TestDecayAndPrune(t *testing.T) {
	b := newBuffer(7)
	ctx := context.Background()

	item := b.Admit(ctx, "fading", 0.5, "")
	b.Decay()
	assert.InDelta(t, 0.45, item.Salience, 1e-9)

	// Decay far enough and the item disappears.
	for i := 0; i < 60; i++ {
		b.Decay()
	}
	assert.Equal(t, 0, b.Size())
}

func TestFocusOrdersBySalience(t *testing.T) {
	b := newBuffer(7)
	ctx := context.Background()

	b.Admit(ctx, "low", 0.2, "")
	b.Admit(ctx, "high", 0.9, "")
	b.Admit(ctx, "mid", 0.5, "")

	focus := b.Focus(2)
	require.Len(t, focus, 2)
	assert.Equal(t, "high", focus[0].Content)
	assert.Equal(t, "mid", focus[1].Content)
}

func TestClearTag(t *testing.T) {
	b := newBuffer(7)
	ctx := context.Background()

	b.Admit(ctx, "turn item", 0.5, model.TagCurrentTurn)
	b.ClearTag(model.TagCurrentTurn)

	for _, item := range b.Focus(0) {
		assert.Empty(t, item.Tag)
	}
}

func TestProposeThoughtContinuation(t *testing.T) {
	embedder := &testutil.HashEmbedder{}
	b := NewBuffer(7, 0.9, embedder, zap.NewNop())
	ctx := context.Background()

	b.Admit(ctx, "the garden we planted", 0.8, "")

	vec, err := embedder.Embed(ctx, "the garden we planted")
	require.NoError(t, err)

	th, err := b.ProposeThought(ctx, &model.Input{Text: "the garden we planted", Embedding: vec})
	require.NoError(t, err)
	require.NotNil(t, th)
	assert.Equal(t, model.SourceWorking, th.Source)
	assert.Contains(t, th.Content, "the garden we planted")
	assert.InDelta(t, 0.8, th.Salience, 1e-6)
}

func TestProposeThoughtSilentWhenUnrelated(t *testing.T) {
	b := newBuffer(7)
	ctx := context.Background()

	item := b.Admit(ctx, "something", 0.8, "")
	item.Embedding = []float32{0, 1, 0}

	th, err := b.ProposeThought(ctx, &model.Input{Text: "other", Embedding: []float32{1, 0, 0.1}})
	require.NoError(t, err)
	assert.Nil(t, th)
}

func TestOnBroadcastAdmitsConsciousThought(t *testing.T) {
	b := newBuffer(7)

	th := model.NewThought(model.SourceEmotion, "this makes me feel joy", 0.9, 0.9, "joy")
	require.NoError(t, b.OnBroadcast(context.Background(), th))

	focus := b.Focus(1)
	require.Len(t, focus, 1)
	assert.Equal(t, "this makes me feel joy", focus[0].Content)
	assert.Equal(t, "conscious", focus[0].Tag)
	assert.InDelta(t, 0.72, focus[0].Salience, 1e-6)
}

func TestAdmitTimestamps(t *testing.T) {
	b := newBuffer(7)
	fixed := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	b.Clock = func() time.Time { return fixed }

	item := b.Admit(context.Background(), "x", 0.5, "")
	assert.Equal(t, fixed, item.InsertedAt)
}
