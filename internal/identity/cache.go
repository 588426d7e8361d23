package identity

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/maypok86/otter"
)

// CachingLoader memoises loaded resolvers by path, so every worker in a
// process that names the same resolver shares one instance instead of
// compiling or opening it again.
//
// Resolvers handed out by a CachingLoader are owned by the loader: closing
// them is the loader's job (see Close), not the caller's.
type CachingLoader struct {
	inner Loader
	cache otter.Cache[string, Resolver]
	mu    sync.Mutex
	owned map[string]Resolver
}

// minCacheCapacity is the smallest capacity otter admits entries at; below
// it Set silently drops everything.
const minCacheCapacity = 16

// NewCachingLoader wraps inner with a cache of capacity resolvers (at least
// minCacheCapacity).
func NewCachingLoader(inner Loader, capacity int) (*CachingLoader, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("resolver cache capacity must be positive, got %d", capacity)
	}

	cache, err := otter.MustBuilder[string, Resolver](max(capacity, minCacheCapacity)).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build resolver cache: %w", err)
	}

	return &CachingLoader{inner: inner, cache: cache, owned: make(map[string]Resolver)}, nil
}

// Load returns the cached resolver for path or loads it through the inner loader.
func (c *CachingLoader) Load(ctx context.Context, path string) (Resolver, error) {
	key := filepath.Clean(path)
	if r, ok := c.cache.Get(key); ok {
		return r, nil
	}

	// Loads are rare and expensive; serialise them so two workers asking for
	// the same path at once do not both compile it.
	c.mu.Lock()
	defer c.mu.Unlock()

	if r, ok := c.cache.Get(key); ok {
		return r, nil
	}

	// Evicted resolvers stay open until Close, so reuse them instead of loading again.
	if loaded, ok := c.owned[key]; ok {
		shared := sharedResolver{Resolver: loaded}
		_ = c.cache.Set(key, shared)
		return shared, nil
	}

	loaded, err := c.inner.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	c.owned[key] = loaded

	shared := sharedResolver{Resolver: loaded}
	// A rejected Set only loses the lock-free lookup; owned still serves key.
	_ = c.cache.Set(key, shared)
	return shared, nil
}

// Close releases every resolver this loader has loaded and drops the cache.
func (c *CachingLoader) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, r := range c.owned {
		if closer, ok := r.(Closer); ok {
			if err := closer.Close(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	clear(c.owned)
	c.cache.Clear()
	return errors.Join(errs...)
}

// sharedResolver hides the Close method of a cached resolver from its users.
type sharedResolver struct {
	Resolver
}
