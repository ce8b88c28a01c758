// Package cache keeps the most recently used completed scans in memory.
package cache

import (
	"fmt"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sadopc/diskly/internal/model"
	"go.uber.org/zap"
)

// DefaultCapacity is the number of completed scans kept.
const DefaultCapacity = 3

// Entry is a completed scan.
type Entry struct {
	Key          string
	Root         model.Node
	TotalScanned uint64
	StoredAt     time.Time
}

// Cache is a fixed-capacity LRU of completed scans. There is no expiry: an
// entry stays valid for as long as its key matches, even if the directory
// it describes has since been removed.
type Cache struct {
	entries  *lru.Cache[string, Entry]
	capacity int
	log      *zap.Logger
	onEvict  func(key string)
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger logs evictions.
func WithLogger(log *zap.Logger) Option {
	return func(c *Cache) { c.log = log }
}

// WithEvictHook is called with the key of every entry evicted by capacity
// pressure.
func WithEvictHook(fn func(key string)) Option {
	return func(c *Cache) { c.onEvict = fn }
}

// New creates a cache holding at most capacity entries.
func New(capacity int, opts ...Option) (*Cache, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("cache capacity must be at least 1, got %d", capacity)
	}
	c := &Cache{capacity: capacity, log: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}

	entries, err := lru.NewWithEvict[string, Entry](capacity, func(key string, _ Entry) {
		c.log.Debug("scan cache eviction", zap.String("key", key))
		if c.onEvict != nil {
			c.onEvict(key)
		}
	})
	if err != nil {
		return nil, err
	}
	c.entries = entries
	return c, nil
}

// Key builds the lookup key for a canonical root path and the directory's
// modification time truncated to whole seconds.
func Key(root string, mtime time.Time) string {
	return root + "@" + strconv.FormatInt(mtime.Unix(), 10)
}

// Get returns the entry stored under exactly key and marks it most recently
// used. The returned tree is shared and must not be modified.
func (c *Cache) Get(key string) (Entry, bool) {
	return c.entries.Get(key)
}

// Put stores a deep copy of e under key, evicting the least recently used
// entry when a new key would exceed capacity.
func (c *Cache) Put(key string, e Entry) {
	e.Key = key
	e.Root = e.Root.Clone()
	if e.StoredAt.IsZero() {
		e.StoredAt = time.Now()
	}
	c.entries.Add(key, e)
}

// Len returns the number of stored entries.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Capacity returns the maximum number of entries.
func (c *Cache) Capacity() int {
	return c.capacity
}

// Keys returns the stored keys from least to most recently used.
func (c *Cache) Keys() []string {
	return c.entries.Keys()
}
