package cache

import (
	"bytes"
	"errors"
	"os"
	"sync"
	"testing"
)

// keyIn returns a distinct key that lands in shard.
func keyIn(shard, n byte) Key {
	var k Key
	k[0] = shard
	k[8] = n
	k[31] = 0xff
	return k
}

func TestKeyString(t *testing.T) {
	k := keyIn(1, 2)
	parsed, err := ParseKey(k.String())
	if err != nil || parsed != k {
		t.Errorf("ParseKey(String()) = %v, %v, want %v", parsed, err, k)
	}
	if _, err := ParseKey("abcd"); err != ErrKeySize {
		t.Errorf("ParseKey(short) error = %v, want ErrKeySize", err)
	}
	if !(Key{}).IsZero() || k.IsZero() {
		t.Error("IsZero() misreports")
	}
}

// ===== Memory Tests =====

func TestMemoryGetPut(t *testing.T) {
	c := NewMemory(0)
	k := keyIn(3, 1)

	if _, ok := c.Get(k); ok {
		t.Error("expected miss on empty cache")
	}
	blob := []byte("program")
	if err := c.Put(k, blob); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	blob[0] = 'X'

	got, ok := c.Get(k)
	if !ok || string(got) != "program" {
		t.Errorf("Get() = %q, %v, want %q, true", got, ok, "program")
	}
	got[1] = 'Y'
	again, _ := c.Get(k)
	if string(again) != "program" {
		t.Errorf("Get() returned shared storage: %q", again)
	}
}

func TestMemoryEviction(t *testing.T) {
	c := NewMemory(ShardCount * 10)
	a, b, d := keyIn(0, 1), keyIn(0, 2), keyIn(0, 3)

	_ = c.Put(a, []byte("aaaa"))
	_ = c.Put(b, []byte("bbbb"))
	c.Get(a)
	_ = c.Put(d, []byte("dddd"))

	if _, ok := c.Get(b); ok {
		t.Error("expected least recently used entry to be evicted")
	}
	if _, ok := c.Get(a); !ok {
		t.Error("expected recently used entry to survive")
	}
	if got := c.Stats().Evictions; got != 1 {
		t.Errorf("Evictions = %d, want 1", got)
	}
	if got := c.Bytes(); got != 8 {
		t.Errorf("Bytes() = %d, want 8", got)
	}
}

func TestMemoryOversizedBlob(t *testing.T) {
	c := NewMemory(ShardCount * 4)
	k := keyIn(0, 1)
	if err := c.Put(k, []byte("too large")); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("Put() error = %v, want ErrTooLarge", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestMemoryReplace(t *testing.T) {
	c := NewMemory(0)
	k := keyIn(5, 1)
	_ = c.Put(k, []byte("short"))
	_ = c.Put(k, []byte("much longer"))
	if got := c.Bytes(); got != int64(len("much longer")) {
		t.Errorf("Bytes() = %d after replace", got)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
	if !c.Delete(k) || c.Delete(k) {
		t.Error("Delete() should succeed once")
	}
	if c.Bytes() != 0 {
		t.Errorf("Bytes() = %d after delete, want 0", c.Bytes())
	}
}

func TestMemoryStats(t *testing.T) {
	c := NewMemory(0)
	k := keyIn(2, 2)
	_ = c.Put(k, []byte{1})
	c.Get(k)
	c.Get(keyIn(2, 3))

	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.HitRate != 0.5 {
		t.Errorf("Stats() = %+v, want 1 hit 1 miss", s)
	}
	c.ResetStats()
	if s := c.Stats(); s.Hits != 0 || s.Misses != 0 {
		t.Errorf("Stats() after reset = %+v", s)
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d", c.Len())
	}
}

func TestMemoryConcurrent(t *testing.T) {
	c := NewMemory(0)
	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := range 200 {
				k := keyIn(byte(i), byte(g))
				_ = c.Put(k, []byte{byte(i)})
				if got, ok := c.Get(k); ok && got[0] != byte(i) {
					t.Errorf("Get() = %v, want %d", got, i)
				}
			}
		}(g)
	}
	wg.Wait()
}

// ===== LRU List Tests =====

func TestLRUList(t *testing.T) {
	l := newLRUList()
	a := l.PushFront(keyIn(0, 1))
	l.PushFront(keyIn(0, 2))
	l.MoveToFront(a)

	oldest, ok := l.RemoveOldest()
	if !ok || oldest != keyIn(0, 2) {
		t.Errorf("RemoveOldest() = %v, %v, want key 2", oldest, ok)
	}
	l.Remove(a)
	l.Remove(a)
	if l.Len() != 0 {
		t.Errorf("Len() = %d, want 0", l.Len())
	}
	if _, ok := l.RemoveOldest(); ok {
		t.Error("RemoveOldest() on empty list reported ok")
	}
}

// ===== Disk Tests =====

func TestDiskRoundTrip(t *testing.T) {
	c, err := OpenDisk(t.TempDir())
	if err != nil {
		t.Fatalf("OpenDisk() error = %v", err)
	}
	k := keyIn(7, 7)
	if _, ok := c.Get(k); ok {
		t.Error("expected miss on empty cache")
	}
	blob := []byte{0, 1, 2, 3, 250}
	if err := c.Put(k, blob); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, ok := c.Get(k)
	if !ok || !bytes.Equal(got, blob) {
		t.Errorf("Get() = %v, %v, want %v", got, ok, blob)
	}
	if s := c.Stats(); s.Hits != 1 || s.Misses != 1 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestDiskCorruptEntry(t *testing.T) {
	c, err := OpenDisk(t.TempDir())
	if err != nil {
		t.Fatalf("OpenDisk() error = %v", err)
	}
	k := keyIn(1, 1)
	if err := os.WriteFile(c.pathFor(k), []byte{0xc1, 0x00}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(k); ok {
		t.Error("corrupt entry reported as hit")
	}
	if _, err := os.Stat(c.pathFor(k)); !os.IsNotExist(err) {
		t.Errorf("corrupt entry not removed: %v", err)
	}
}

func TestDiskKeyMismatch(t *testing.T) {
	c, err := OpenDisk(t.TempDir())
	if err != nil {
		t.Fatalf("OpenDisk() error = %v", err)
	}
	a, b := keyIn(1, 1), keyIn(1, 2)
	if err := c.Put(a, []byte("a")); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(c.pathFor(a), c.pathFor(b)); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(b); ok {
		t.Error("entry stored under another key reported as hit")
	}
}

func TestDiskDropAll(t *testing.T) {
	c, err := OpenDisk(t.TempDir())
	if err != nil {
		t.Fatalf("OpenDisk() error = %v", err)
	}
	k := keyIn(4, 4)
	_ = c.Put(k, []byte("x"))
	if err := c.DropAll(); err != nil {
		t.Fatalf("DropAll() error = %v", err)
	}
	if _, ok := c.Get(k); ok {
		t.Error("entry survived DropAll")
	}
	if err := c.Put(k, []byte("y")); err != nil {
		t.Errorf("Put() after DropAll error = %v", err)
	}
}

func TestOpenDiskEmptyDir(t *testing.T) {
	if _, err := OpenDisk(""); err == nil {
		t.Error("OpenDisk(\"\") succeeded")
	}
}

// ===== Layered Tests =====

func TestLayeredPromotes(t *testing.T) {
	front := NewMemory(0)
	back, err := OpenDisk(t.TempDir())
	if err != nil {
		t.Fatalf("OpenDisk() error = %v", err)
	}
	c := NewLayered(front, back)
	k := keyIn(9, 9)

	if err := back.Put(k, []byte("from disk")); err != nil {
		t.Fatal(err)
	}
	got, ok := c.Get(k)
	if !ok || string(got) != "from disk" {
		t.Errorf("Get() = %q, %v", got, ok)
	}
	if _, ok := front.Get(k); !ok {
		t.Error("back hit not promoted to front")
	}

	k2 := keyIn(9, 10)
	if err := c.Put(k2, []byte("both")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, ok := back.Get(k2); !ok {
		t.Error("Put() did not reach the back cache")
	}

	small := NewLayered(NewMemory(ShardCount), back)
	k3 := keyIn(9, 11)
	if err := small.Put(k3, []byte("too large for the front")); err != nil {
		t.Errorf("Put() error = %v, want the back cache to hold the blob", err)
	}
	if _, ok := back.Get(k3); !ok {
		t.Error("blob too large for the front did not reach the back cache")
	}
}

var _ BlobCache = (*Memory)(nil)
var _ BlobCache = (*Disk)(nil)
var _ BlobCache = (*Layered)(nil)
