package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"ragqa/internal/domain"
)

// WithCache wraps an embedder with an in-process LRU keyed by model and text.
// A size <= 0 disables caching and returns next unchanged.
func WithCache(next domain.Embedder, size int) domain.Embedder {
	if next == nil || size <= 0 {
		return next
	}
	cache, err := lru.New[string, []float64](size)
	if err != nil {
		return next
	}
	return &cachedEmbedder{next: next, cache: cache}
}

type cachedEmbedder struct {
	next  domain.Embedder
	cache *lru.Cache[string, []float64]
}

func (c *cachedEmbedder) Name() string { return c.next.Name() }

// Embed serves hits from the cache and sends only the misses downstream,
// keeping the output aligned with texts.
func (c *cachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	keys := make([]string, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		keys[i] = c.key(text)
		if v, ok := c.cache.Get(keys[i]); ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return out, nil
	}
	vectors, err := c.next.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, fmt.Errorf("embedder %s returned %d vectors for %d texts", c.next.Name(), len(vectors), len(missTexts))
	}
	for j, i := range missIdx {
		out[i] = vectors[j]
		c.cache.Add(keys[i], vectors[j])
	}
	return out, nil
}

func (c *cachedEmbedder) key(text string) string {
	h := sha256.Sum256([]byte(c.next.Name() + "\x00" + text))
	return hex.EncodeToString(h[:])
}
