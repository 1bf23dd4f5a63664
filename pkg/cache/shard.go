package cache

import (
	"sync"
	"time"
)

// node is an entry on a shard's recency ring.
type node[K comparable, V any] struct {
	key        K
	val        V
	expires    time.Time // zero: never
	prev, next *node[K, V]
}

// shard is one mutex-guarded LRU. root is a sentinel: root.next is the most
// recently used entry and root.prev the eviction candidate.
type shard[K comparable, V any] struct {
	mu    sync.Mutex
	limit int
	index map[K]*node[K, V]
	root  node[K, V]
	now   func() time.Time
}

func newShard[K comparable, V any](limit int, now func() time.Time) *shard[K, V] {
	s := &shard[K, V]{limit: limit, index: make(map[K]*node[K, V]), now: now}
	s.root.prev, s.root.next = &s.root, &s.root
	return s
}

func (s *shard[K, V]) unlink(n *node[K, V]) {
	n.prev.next, n.next.prev = n.next, n.prev
	n.prev, n.next = nil, nil
}

func (s *shard[K, V]) pushFront(n *node[K, V]) {
	n.prev, n.next = &s.root, s.root.next
	s.root.next.prev = n
	s.root.next = n
}

func (s *shard[K, V]) drop(n *node[K, V]) {
	s.unlink(n)
	delete(s.index, n.key)
}

func (s *shard[K, V]) get(key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.index[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !n.expires.IsZero() && !s.now().Before(n.expires) {
		s.drop(n)
		var zero V
		return zero, false
	}
	s.unlink(n)
	s.pushFront(n)
	return n.val, true
}

func (s *shard[K, V]) set(key K, val V, ttl time.Duration) {
	var exp time.Time
	if ttl > 0 {
		exp = s.now().Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.index[key]; ok {
		n.val, n.expires = val, exp
		s.unlink(n)
		s.pushFront(n)
		return
	}
	n := &node[K, V]{key: key, val: val, expires: exp}
	s.index[key] = n
	s.pushFront(n)
	if len(s.index) > s.limit {
		s.drop(s.root.prev)
	}
}

func (s *shard[K, V]) remove(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.index[key]
	if ok {
		s.drop(n)
	}
	return ok
}

func (s *shard[K, V]) removeFunc(fn func(K, V) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for n := s.root.next; n != &s.root; {
		next := n.next
		if fn(n.key, n.val) {
			s.drop(n)
			removed++
		}
		n = next
	}
	return removed
}

func (s *shard[K, V]) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}

func (s *shard[K, V]) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.index)
	s.root.prev, s.root.next = &s.root, &s.root
}
