package cache

// Layered serves reads from Front and falls back to Back, promoting
// back hits into the front. Writes go to both.
type Layered struct {
	Front BlobCache
	Back  BlobCache
}

// NewLayered returns a cache with front in front of back.
func NewLayered(front, back BlobCache) *Layered {
	return &Layered{Front: front, Back: back}
}

// Get looks up key in the front cache, then the back cache.
func (c *Layered) Get(key Key) ([]byte, bool) {
	if blob, ok := c.Front.Get(key); ok {
		return blob, true
	}
	blob, ok := c.Back.Get(key)
	if !ok {
		return nil, false
	}
	_ = c.Front.Put(key, blob)
	return blob, true
}

// Put stores blob in both caches. The back cache error, if any, is
// returned.
func (c *Layered) Put(key Key, blob []byte) error {
	_ = c.Front.Put(key, blob)
	return c.Back.Put(key, blob)
}
