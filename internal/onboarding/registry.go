package onboarding

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/decoderlabs/decoder-gateway/internal/credential"
)

// Registry defaults.
const (
	DefaultCacheSize = 1024
	DefaultCacheTTL  = 10 * time.Minute
)

// StoreFactory builds the store for a credential.
type StoreFactory func(cred *credential.Credential) *Store

// Registry hands out one Store per credential so concurrent requests from the
// same user coalesce. Entries expire after the TTL and are evicted
// least recently used beyond size. Tokens are only held as SHA-256 keys.
type Registry struct {
	mu      sync.Mutex
	cache   *expirable.LRU[string, *Store]
	factory StoreFactory
}

// NewRegistry creates a registry. Non-positive size or ttl fall back to the
// defaults.
func NewRegistry(size int, ttl time.Duration, factory StoreFactory) *Registry {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Registry{
		cache:   expirable.NewLRU[string, *Store](size, nil, ttl),
		factory: factory,
	}
}

// For returns the store for cred, creating it on first use.
func (r *Registry) For(cred *credential.Credential) *Store {
	key := cacheKey(cred.Token)

	r.mu.Lock()
	defer r.mu.Unlock()

	if store, ok := r.cache.Get(key); ok {
		return store
	}
	store := r.factory(cred)
	r.cache.Add(key, store)
	return store
}

// Len returns the number of live stores.
func (r *Registry) Len() int {
	return r.cache.Len()
}

// Forget drops the store for cred, if any.
func (r *Registry) Forget(cred *credential.Credential) {
	if cred == nil {
		return
	}
	r.cache.Remove(cacheKey(cred.Token))
}

func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
