// Package cache stores serialized program binaries by content key.
//
// All implementations are safe for concurrent use. Blobs are copied on
// the way in and out, so callers may reuse their buffers.
//
// Available caches:
//   - Memory: sharded in-process LRU bounded by total blob size
//   - Disk: one msgpack file per key under a directory
//   - Layered: a Memory in front of a Disk
package cache

import (
	"encoding/hex"
	"errors"
)

// KeySize is the size of a cache key in bytes.
const KeySize = 32

// Key identifies a cached blob. Program keys are SHA-256 digests.
type Key [KeySize]byte

// String returns the key in hex.
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// IsZero reports whether k is the zero key.
func (k Key) IsZero() bool {
	return k == Key{}
}

// ParseKey decodes a hex key.
func ParseKey(s string) (Key, error) {
	var k Key
	b, err := hex.DecodeString(s)
	if err != nil {
		return k, err
	}
	if len(b) != KeySize {
		return k, ErrKeySize
	}
	copy(k[:], b)
	return k, nil
}

var (
	// ErrKeySize is returned by ParseKey for keys of the wrong length.
	ErrKeySize = errors.New("cache: key must be 32 bytes")
	// ErrTooLarge is returned by Put for a blob the cache cannot hold.
	ErrTooLarge = errors.New("cache: blob too large")
)

// BlobCache is a key-value store for program binaries. Get reports a
// miss with ok=false; Put failures are not fatal to callers.
type BlobCache interface {
	Get(key Key) ([]byte, bool)
	Put(key Key, blob []byte) error
}

// Stats holds cache statistics.
type Stats struct {
	Len       int
	Bytes     int64
	MaxBytes  int64
	Hits      uint64
	Misses    uint64
	HitRate   float64
	Evictions uint64
}

func hitRate(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
