package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"iter"
	"slices"
	"sync"
	"time"

	"chunk/internal/domain"
	"chunk/internal/port"
)

// ParseCache is an LRU cache of chunk trees keyed by tagged sentence. Entries
// expire after ttl and are dropped by Invalidate, e.g. when a model is
// reloaded.
type ParseCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	order   []string
	maxSize int
	ttl     time.Duration
	gen     uint64

	hits, misses uint64
}

type cacheEntry struct {
	tree      domain.Tree
	timestamp time.Time
	gen       uint64
}

func NewParseCache(maxSize int, ttl time.Duration) *ParseCache {
	if maxSize <= 0 {
		maxSize = 1024
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ParseCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

func cacheKey(sentence []domain.TaggedToken) string {
	h := sha256.New()
	for _, tok := range sentence {
		h.Write([]byte(tok.Text))
		h.Write([]byte{0x1f})
		h.Write([]byte(tok.POS))
		h.Write([]byte{0x1e})
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

func (c *ParseCache) Get(sentence []domain.TaggedToken) (domain.Tree, bool) {
	key := cacheKey(sentence)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		c.misses++
		return domain.Tree{}, false
	}
	if time.Since(entry.timestamp) > c.ttl || entry.gen != c.gen {
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.misses++
		return domain.Tree{}, false
	}

	c.moveToEnd(key)
	c.hits++
	return cloneTree(entry.tree), true
}

func (c *ParseCache) Put(sentence []domain.TaggedToken, tree domain.Tree) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(sentence)
	entry := &cacheEntry{
		tree:      cloneTree(tree),
		timestamp: time.Now(),
		gen:       c.gen,
	}

	if _, exists := c.entries[key]; exists {
		c.entries[key] = entry
		c.moveToEnd(key)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	c.entries[key] = entry
	c.order = append(c.order, key)
}

func (c *ParseCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
	c.gen++
}

func (c *ParseCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns the hit and miss counts since creation.
func (c *ParseCache) Stats() (hits, misses uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

func (c *ParseCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *ParseCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *ParseCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func cloneTree(t domain.Tree) domain.Tree {
	children := make([]domain.Node, len(t.Children))
	for i, child := range t.Children {
		child.Tokens = slices.Clone(child.Tokens)
		children[i] = child
	}
	return domain.Tree{Label: t.Label, Children: children}
}

// CachedChunker serves repeated sentences from a ParseCache. Errors are not
// cached.
type CachedChunker struct {
	chunker port.Chunker
	cache   *ParseCache
}

var _ port.StreamChunker = (*CachedChunker)(nil)

func NewCachedChunker(chunker port.Chunker, cache *ParseCache) *CachedChunker {
	return &CachedChunker{
		chunker: chunker,
		cache:   cache,
	}
}

func (c *CachedChunker) Parse(sentence []domain.TaggedToken) (domain.Tree, error) {
	if tree, hit := c.cache.Get(sentence); hit {
		return tree, nil
	}

	tree, err := c.chunker.Parse(sentence)
	if err != nil {
		return domain.Tree{}, err
	}

	c.cache.Put(sentence, tree)
	return tree, nil
}

// ParseMany parses one sentence per pull and stops after the first error.
func (c *CachedChunker) ParseMany(sentences iter.Seq[[]domain.TaggedToken]) iter.Seq2[domain.Tree, error] {
	return func(yield func(domain.Tree, error) bool) {
		for s := range sentences {
			tree, err := c.Parse(s)
			if !yield(tree, err) || err != nil {
				return
			}
		}
	}
}
