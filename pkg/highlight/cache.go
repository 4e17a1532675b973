package highlight

import (
	"fmt"
	"sync"

	"github.com/aretw0/scribe/pkg/domain"
	"github.com/aretw0/scribe/pkg/observability"
	lru "github.com/hashicorp/golang-lru/v2/simplelru"
)

// TokenCost is the accounted size of one token in the cache byte budget.
const TokenCost = 24

// Cache is an LRU of token lists bounded by entry count and by bytes.
// Entries are stored and returned as private copies.
type Cache struct {
	mu       sync.Mutex
	lru      *lru.LRU[string, []domain.Token]
	maxBytes int
	bytes    int
	metrics  *observability.Metrics
}

// NewCache creates a cache holding at most maxEntries lists and roughly
// maxBytes of keys and tokens. maxBytes <= 0 disables the byte budget.
func NewCache(maxEntries, maxBytes int) (*Cache, error) {
	c := &Cache{maxBytes: maxBytes}
	l, err := lru.NewLRU[string, []domain.Token](maxEntries, func(key string, tokens []domain.Token) {
		c.bytes -= entrySize(key, tokens)
	})
	if err != nil {
		return nil, fmt.Errorf("highlight cache: %w", err)
	}
	c.lru = l
	return c, nil
}

func entrySize(key string, tokens []domain.Token) int {
	return len(key) + TokenCost*len(tokens)
}

// Get returns a copy of the tokens stored for key.
func (c *Cache) Get(key string) ([]domain.Token, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tokens, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return cloneTokens(tokens), true
}

// Put stores a copy of tokens for key. Entries larger than the whole byte
// budget are not stored.
func (c *Cache) Put(key string, tokens []domain.Token) {
	size := entrySize(key, tokens)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.maxBytes > 0 && size > c.maxBytes {
		return
	}
	if old, ok := c.lru.Peek(key); ok {
		c.bytes -= entrySize(key, old)
	}
	c.lru.Add(key, cloneTokens(tokens))
	c.bytes += size
	for c.maxBytes > 0 && c.bytes > c.maxBytes {
		if _, _, ok := c.lru.RemoveOldest(); !ok {
			break
		}
	}
	c.metrics.SetCacheSize(c.lru.Len(), c.bytes)
}

// Remove drops key.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
	c.metrics.SetCacheSize(c.lru.Len(), c.bytes)
}

// Len returns the number of cached lists.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Bytes returns the accounted size of the cache.
func (c *Cache) Bytes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

// Purge empties the cache.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	c.bytes = 0
	c.metrics.SetCacheSize(0, 0)
}

func (c *Cache) setMetrics(m *observability.Metrics) {
	c.mu.Lock()
	c.metrics = m
	c.mu.Unlock()
}

func cloneTokens(tokens []domain.Token) []domain.Token {
	if tokens == nil {
		return []domain.Token{}
	}
	out := make([]domain.Token, len(tokens))
	copy(out, tokens)
	return out
}
