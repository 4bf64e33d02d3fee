package dialogue

import (
	"context"
	"sync"
)

// CachedRepository fronts a durable Repository with an in-process map to
// skip a database read on every turn. The cache is an optimization, never
// the source of truth: misses fall through to the store, and every Save
// writes through before the cache is updated, so an acknowledged save is
// always durable.
type CachedRepository struct {
	store Repository

	mu    sync.RWMutex
	cache map[string]*ConversationContext
}

// NewCachedRepository wraps store with an in-process cache.
func NewCachedRepository(store Repository) *CachedRepository {
	return &CachedRepository{
		store: store,
		cache: map[string]*ConversationContext{},
	}
}

func (r *CachedRepository) Load(ctx context.Context, conversationID string) (*ConversationContext, error) {
	r.mu.RLock()
	cached, ok := r.cache[conversationID]
	r.mu.RUnlock()
	if ok {
		return cached.clone(), nil
	}

	c, err := r.store.Load(ctx, conversationID)
	if err != nil {
		// ErrNotFound included: absence is not cached, a later Save
		// creates the entry.
		return nil, err
	}

	r.mu.Lock()
	r.cache[conversationID] = c.clone()
	r.mu.Unlock()
	return c, nil
}

func (r *CachedRepository) Save(ctx context.Context, c *ConversationContext) error {
	if err := r.store.Save(ctx, c); err != nil {
		return err
	}
	r.mu.Lock()
	r.cache[c.ConversationID] = c.clone()
	r.mu.Unlock()
	return nil
}

// clone copies the context so cache entries are never aliased by callers
// mid-mutation.
func (c *ConversationContext) clone() *ConversationContext {
	dup := *c
	dup.Slots = make(map[string]string, len(c.Slots))
	for k, v := range c.Slots {
		dup.Slots[k] = v
	}
	return &dup
}
