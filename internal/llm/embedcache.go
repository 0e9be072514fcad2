package llm

import (
	"context"
	"sync"
)

// CachingEmbedder memoizes embeddings by exact text, so the same words always
// map to the same vector within a process lifetime regardless of provider
// jitter. FIFO eviction keeps the cache bounded.
type CachingEmbedder struct {
	Inner EmbedderClient

	max   int
	mu    sync.Mutex
	cache map[string][]float32
	order []string
}

func NewCachingEmbedder(inner EmbedderClient, max int) *CachingEmbedder {
	if max <= 0 {
		max = 4096
	}
	return &CachingEmbedder{
		Inner: inner,
		max:   max,
		cache: make(map[string][]float32, max),
	}
}

func (c *CachingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.mu.Lock()
	if vec, ok := c.cache[text]; ok {
		c.mu.Unlock()
		return vec, nil
	}
	c.mu.Unlock()

	vec, err := c.Inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if _, ok := c.cache[text]; !ok {
		if len(c.order) >= c.max {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.cache, oldest)
		}
		c.cache[text] = vec
		c.order = append(c.order, text)
	}
	c.mu.Unlock()
	return vec, nil
}
