package cache

// lruNode is a node of the intrusive recency list.
type lruNode struct {
	key        Key
	prev, next *lruNode
}

// lruList is a doubly linked list ordered from most to least recently
// used, with a sentinel root.
type lruList struct {
	root lruNode
	len  int
}

func newLRUList() *lruList {
	l := &lruList{}
	l.root.prev = &l.root
	l.root.next = &l.root
	return l
}

func (l *lruList) Len() int { return l.len }

func (l *lruList) insertFront(n *lruNode) {
	n.prev = &l.root
	n.next = l.root.next
	l.root.next.prev = n
	l.root.next = n
	l.len++
}

func (l *lruList) unlink(n *lruNode) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev, n.next = nil, nil
	l.len--
}

// PushFront adds key as the most recently used entry.
func (l *lruList) PushFront(key Key) *lruNode {
	n := &lruNode{key: key}
	l.insertFront(n)
	return n
}

// MoveToFront marks n as the most recently used entry.
func (l *lruList) MoveToFront(n *lruNode) {
	if l.root.next == n {
		return
	}
	l.unlink(n)
	l.insertFront(n)
}

// Remove drops n from the list.
func (l *lruList) Remove(n *lruNode) {
	if n.next == nil {
		return
	}
	l.unlink(n)
}

// RemoveOldest drops and returns the least recently used key.
func (l *lruList) RemoveOldest() (Key, bool) {
	if l.len == 0 {
		return Key{}, false
	}
	n := l.root.prev
	l.unlink(n)
	return n.key, true
}

// Clear empties the list.
func (l *lruList) Clear() {
	l.root.prev = &l.root
	l.root.next = &l.root
	l.len = 0
}
