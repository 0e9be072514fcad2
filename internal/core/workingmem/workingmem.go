// Package workingmem is the bounded short-term buffer. Seven items give or
// take two, decaying every turn, with the lowest-salience item evicted when
// the buffer overflows.
package workingmem

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/animahq/anima/internal/core/common"
	"github.com/animahq/anima/internal/core/model"
	"github.com/animahq/anima/internal/llm"
)

const (
	hardCap    = 9
	pruneFloor = 0.01
)

type Buffer struct {
	Capacity    int
	DecayFactor float64
	Embedder    llm.EmbedderClient

	UUIDGenerator func() string
	Clock         func() time.Time

	logger *zap.Logger

	mu    sync.Mutex
	items []*model.WorkingItem
}

func NewBuffer(capacity int, decayFactor float64, embedder llm.EmbedderClient, logger *zap.Logger) *Buffer {
	if capacity <= 0 || capacity > hardCap {
		capacity = 7
	}
	if decayFactor <= 0 || decayFactor >= 1 {
		decayFactor = 0.9
	}
	return &Buffer{
		Capacity:      capacity,
		DecayFactor:   decayFactor,
		Embedder:      embedder,
		UUIDGenerator: func() string { return uuid.New().String() },
		Clock:         func() time.Time { return time.Now().UTC() },
		logger:        logger,
	}
}

// Admit inserts an item and evicts the weakest items while over capacity.
// Items tagged current_turn are never evicted.
func (b *Buffer) Admit(ctx context.Context, content string, salience float64, tag string) *model.WorkingItem {
	item := &model.WorkingItem{
		ID:         b.UUIDGenerator(),
		Content:    content,
		Salience:   common.Clamp01(salience),
		Tag:        tag,
		InsertedAt: b.Clock(),
	}
	if b.Embedder != nil {
		if vec, err := b.Embedder.Embed(ctx, content); err == nil {
			item.Embedding = vec
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.items = append(b.items, item)

	limit := b.Capacity
	if limit > hardCap {
		limit = hardCap
	}
	for len(b.items) > limit {
		if !b.evictWeakestLocked() {
			break
		}
	}
	return item
}

// evictWeakestLocked drops the lowest-salience evictable item. Older items
// lose ties.
func (b *Buffer) evictWeakestLocked() bool {
	weakest := -1
	for i, item := range b.items {
		if item.Tag == model.TagCurrentTurn {
			continue
		}
		if weakest == -1 || item.Salience < b.items[weakest].Salience ||
			(item.Salience == b.items[weakest].Salience && item.InsertedAt.Before(b.items[weakest].InsertedAt)) {
			weakest = i
		}
	}
	if weakest == -1 {
		return false
	}

	b.logger.Debug("working memory eviction",
		zap.String("content", b.items[weakest].Content),
		zap.Float64("salience", b.items[weakest].Salience))
	b.items = append(b.items[:weakest], b.items[weakest+1:]...)
	return true
}

// Decay multiplies every item's salience by the decay factor and prunes items
// that have faded out entirely.
func (b *Buffer) Decay() {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.items[:0]
	for _, item := range b.items {
		item.Salience *= b.DecayFactor
		if item.Salience > pruneFloor {
			kept = append(kept, item)
		}
	}
	b.items = kept
}

// Focus returns the top-n items by salience.
func (b *Buffer) Focus(n int) []*model.WorkingItem {
	b.mu.Lock()
	defer b.mu.Unlock()

	sorted := make([]*model.WorkingItem, len(b.items))
	copy(sorted, b.items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Salience > sorted[j].Salience
	})
	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// ClearTag removes the tag from any item carrying it, making it evictable
// again once the turn completes.
func (b *Buffer) ClearTag(tag string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, item := range b.items {
		if item.Tag == tag {
			item.Tag = ""
		}
	}
}

func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

func (b *Buffer) Name() string { return model.SourceWorking }

// ProposeThought emits a continuation when the input relates to something
// already in focus.
func (b *Buffer) ProposeThought(ctx context.Context, in *model.Input) (*model.Thought, error) {
	focus := b.Focus(3)
	if len(focus) == 0 || len(in.Embedding) == 0 {
		return nil, nil
	}

	var best *model.WorkingItem
	bestSim := 0.0
	for _, item := range focus {
		if item.Tag == model.TagCurrentTurn {
			continue
		}
		sim := common.Cosine(in.Embedding, item.Embedding)
		if sim > bestSim {
			best, bestSim = item, sim
		}
	}
	if best == nil || bestSim < 0.5 {
		return nil, nil
	}

	content := "we were just getting into " + best.Content
	return model.NewThought(model.SourceWorking, content, bestSim*best.Salience, 0.6, ""), nil
}

// OnBroadcast keeps the conscious thought in the buffer so the next turns can
// continue from it.
func (b *Buffer) OnBroadcast(ctx context.Context, t *model.Thought) error {
	b.Admit(ctx, t.Content, t.Salience*0.8, "conscious")
	return nil
}
