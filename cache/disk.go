package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/gogpu/glesvk/internal/logging"
)

// diskSchemaVersion is bumped whenever diskEntry changes shape.
const diskSchemaVersion uint16 = 1

// diskEntry is the on-disk envelope of one blob.
type diskEntry struct {
	Schema uint16
	Key    Key
	Blob   []byte
	Stored time.Time
}

// Disk stores one msgpack file per key under a directory. Writes go to
// a temporary file that is renamed into place, so readers never see a
// partial entry. Entries that fail to decode are removed and reported
// as misses.
type Disk struct {
	mu  sync.RWMutex
	dir string

	hits   atomic.Uint64
	misses atomic.Uint64
}

// OpenDisk opens or creates a disk cache rooted at dir.
func OpenDisk(dir string) (*Disk, error) {
	if dir == "" {
		return nil, errors.New("cache: empty directory")
	}
	if err := os.MkdirAll(filepath.Join(dir, "programs"), 0o755); err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	return &Disk{dir: dir}, nil
}

// DefaultDir returns the per-user cache directory for app, honoring
// XDG_CACHE_HOME.
func DefaultDir(app string) (string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, app), nil
}

// Dir returns the cache root.
func (c *Disk) Dir() string {
	return c.dir
}

func (c *Disk) pathFor(key Key) string {
	return filepath.Join(c.dir, "programs", key.String()+".mp")
}

// Get reads the blob stored under key.
func (c *Disk) Get(key Key) ([]byte, bool) {
	c.mu.RLock()
	entry, err := c.read(key)
	c.mu.RUnlock()

	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.Logger().Warn("glesvk: dropping unreadable cache entry", "key", key.String(), "err", err)
			c.remove(key)
		}
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return entry.Blob, true
}

func (c *Disk) read(key Key) (*diskEntry, error) {
	f, err := os.Open(c.pathFor(key))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entry diskEntry
	if err := msgpack.NewDecoder(f).Decode(&entry); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if entry.Schema != diskSchemaVersion {
		return nil, fmt.Errorf("schema %d, want %d", entry.Schema, diskSchemaVersion)
	}
	if entry.Key != key {
		return nil, fmt.Errorf("entry holds key %s", entry.Key)
	}
	return &entry, nil
}

func (c *Disk) remove(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.Remove(c.pathFor(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Logger().Warn("glesvk: failed to remove cache entry", "key", key.String(), "err", err)
	}
}

// Put writes blob under key, replacing any previous entry.
func (c *Disk) Put(key Key, blob []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	tmp := f.Name()
	defer func() {
		if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.Logger().Warn("glesvk: failed to remove temp file", "path", tmp, "err", err)
		}
	}()

	entry := diskEntry{Schema: diskSchemaVersion, Key: key, Blob: blob, Stored: time.Now().UTC()}
	if err := msgpack.NewEncoder(f).Encode(&entry); err != nil {
		_ = f.Close()
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}

// Delete removes the entry for key, if any.
func (c *Disk) Delete(key Key) {
	c.remove(key)
}

// DropAll removes every entry.
func (c *Disk) DropAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	programs := filepath.Join(c.dir, "programs")
	old := programs + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(programs, old); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := os.MkdirAll(programs, 0o755); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return os.RemoveAll(old)
}

// Stats returns hit and miss counts. Len and Bytes are not tracked.
func (c *Disk) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	return Stats{Hits: hits, Misses: misses, HitRate: hitRate(hits, misses)}
}
