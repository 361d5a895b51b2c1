package gateway

import (
	"context"
	"log/slog"
	"time"

	"costledger/internal/cache"
	"costledger/internal/core"
	applog "costledger/internal/log"
)

const vocabularyKey = "validation"

// Cached wraps a Gateway and caches the validation vocabulary, which changes
// rarely and is read on every refresh. Everything else passes through.
type Cached struct {
	Gateway
	vocab *cache.LRUCache[core.Vocabulary]
}

func NewCached(gw Gateway, ttl time.Duration) *Cached {
	return &Cached{
		Gateway: gw,
		vocab:   cache.NewLRUCache[core.Vocabulary](1, ttl),
	}
}

func (c *Cached) GetValidation(ctx context.Context) (core.Vocabulary, error) {
	if v, ok := c.vocab.Get(vocabularyKey); ok {
		return v.Clone(), nil
	}
	v, err := c.Gateway.GetValidation(ctx)
	if err != nil {
		return core.Vocabulary{}, err
	}
	c.vocab.Set(vocabularyKey, v.Clone())
	slog.DebugContext(ctx, "Cached validation vocabulary", applog.FieldComponent, applog.ComponentGateway, "heads", len(v.Heads))
	return v, nil
}

// Invalidate drops the cached vocabulary.
func (c *Cached) Invalidate() {
	c.vocab.Delete(vocabularyKey)
}

// Cleaner exposes the underlying cache for a cache.Manager.
func (c *Cached) Cleaner() cache.Cleaner {
	return c.vocab
}

var _ Gateway = (*Cached)(nil)
