package cache

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/glesvk/internal/logging"
)

const (
	// ShardCount is the number of shards. Must be a power of 2.
	ShardCount = 16

	// DefaultMaxBytes is the default total blob budget of a Memory cache.
	DefaultMaxBytes = 64 << 20

	shardMask = ShardCount - 1
)

// Memory is a thread-safe, sharded LRU cache bounded by the total size
// of the stored blobs. Each shard holds 1/ShardCount of the budget and
// evicts its least recently used entries when over it.
type Memory struct {
	shards   [ShardCount]*memoryShard
	maxBytes int64

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type memoryShard struct {
	mu      sync.RWMutex
	entries map[Key]*memoryEntry
	lru     *lruList
	bytes   int64
	limit   int64
}

type memoryEntry struct {
	blob []byte
	node *lruNode
}

// NewMemory creates a cache holding up to maxBytes of blobs. If
// maxBytes <= 0, DefaultMaxBytes is used.
func NewMemory(maxBytes int64) *Memory {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	c := &Memory{maxBytes: maxBytes}
	limit := max(maxBytes/ShardCount, 1)
	for i := range c.shards {
		c.shards[i] = &memoryShard{
			entries: make(map[Key]*memoryEntry),
			lru:     newLRUList(),
			limit:   limit,
		}
	}
	return c
}

// shard selects a shard from the leading key bytes. Keys are digests,
// so their bytes are already uniformly distributed.
func (c *Memory) shard(key Key) *memoryShard {
	return c.shards[binary.LittleEndian.Uint64(key[:8])&shardMask]
}

// Get returns a copy of the blob stored under key.
func (c *Memory) Get(key Key) ([]byte, bool) {
	s := c.shard(key)

	// Fast path: read lock to check existence
	s.mu.RLock()
	_, exists := s.entries[key]
	s.mu.RUnlock()
	if !exists {
		c.misses.Add(1)
		return nil, false
	}

	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		c.misses.Add(1)
		return nil, false
	}
	s.lru.MoveToFront(e.node)
	out := append([]byte(nil), e.blob...)
	s.mu.Unlock()

	c.hits.Add(1)
	return out, true
}

// Put stores a copy of blob under key. A blob larger than a shard's
// budget is not stored and fails with ErrTooLarge.
func (c *Memory) Put(key Key, blob []byte) error {
	s := c.shard(key)
	size := int64(len(blob))
	if size > s.limit {
		logging.Logger().Debug("glesvk: cache blob exceeds shard budget", "key", key.String(), "size", size)
		return fmt.Errorf("%w: %d bytes, shard budget %d", ErrTooLarge, size, s.limit)
	}
	stored := append([]byte(nil), blob...)

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		s.bytes += size - int64(len(e.blob))
		e.blob = stored
		s.lru.MoveToFront(e.node)
	} else {
		s.entries[key] = &memoryEntry{blob: stored, node: s.lru.PushFront(key)}
		s.bytes += size
	}

	for s.bytes > s.limit {
		oldest, ok := s.lru.RemoveOldest()
		if !ok {
			break
		}
		s.bytes -= int64(len(s.entries[oldest].blob))
		delete(s.entries, oldest)
		c.evictions.Add(1)
	}
	return nil
}

// Delete removes key. It reports whether an entry was removed.
func (c *Memory) Delete(key Key) bool {
	s := c.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return false
	}
	s.lru.Remove(e.node)
	s.bytes -= int64(len(e.blob))
	delete(s.entries, key)
	return true
}

// Clear removes all entries.
func (c *Memory) Clear() {
	for _, s := range c.shards {
		s.mu.Lock()
		s.entries = make(map[Key]*memoryEntry)
		s.lru.Clear()
		s.bytes = 0
		s.mu.Unlock()
	}
}

// Len returns the number of entries across all shards.
func (c *Memory) Len() int {
	total := 0
	for _, s := range c.shards {
		s.mu.RLock()
		total += len(s.entries)
		s.mu.RUnlock()
	}
	return total
}

// Bytes returns the total size of the stored blobs.
func (c *Memory) Bytes() int64 {
	var total int64
	for _, s := range c.shards {
		s.mu.RLock()
		total += s.bytes
		s.mu.RUnlock()
	}
	return total
}

// Stats returns current cache statistics.
func (c *Memory) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	return Stats{
		Len:       c.Len(),
		Bytes:     c.Bytes(),
		MaxBytes:  c.maxBytes,
		Hits:      hits,
		Misses:    misses,
		HitRate:   hitRate(hits, misses),
		Evictions: c.evictions.Load(),
	}
}

// ResetStats resets the statistics counters.
func (c *Memory) ResetStats() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
}
