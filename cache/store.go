package cache

import (
	"container/list"
	"sync"
	"time"
)

// DefaultMaxEntries bounds a Store when no explicit limit is configured.
const DefaultMaxEntries = 1024

// Entry is a single cached value together with the time it was written and
// the TTL it was written with. Entries are replaced, never mutated.
type Entry[V any] struct {
	Value    V
	StoredAt time.Time
	TTL      time.Duration
}

// Valid reports whether the entry is still fresh at now. The comparison is
// strict: an entry stored at t with ttl d is stale from t+d onwards.
func (e Entry[V]) Valid(now time.Time) bool {
	return now.Sub(e.StoredAt) < e.TTL
}

// EntryInfo describes a stored entry without exposing its value.
type EntryInfo struct {
	Key      string
	StoredAt time.Time
	TTL      time.Duration
	Age      time.Duration
	Valid    bool
}

type storeConfig struct {
	maxEntries int
	now        func() time.Time
	onEvict    func(key string)
}

// StoreOption configures a Store.
type StoreOption func(*storeConfig)

// WithMaxEntries bounds the number of keys held. Values below one fall back
// to DefaultMaxEntries.
func WithMaxEntries(n int) StoreOption {
	return func(c *storeConfig) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithClock replaces time.Now as the store's notion of the current time.
func WithClock(now func() time.Time) StoreOption {
	return func(c *storeConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithEvictHook registers fn to be called, with the store lock held, for
// every key dropped to honour the size bound.
func WithEvictHook(fn func(key string)) StoreOption {
	return func(c *storeConfig) {
		c.onEvict = fn
	}
}

// Store is a bounded, in-memory TTL map. Expired entries are not removed on
// read; they stay until overwritten or pushed out by the size bound, which
// always drops the entry with the oldest write first.
type Store[V any] struct {
	cfg storeConfig

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front is the oldest write
}

type storeItem[V any] struct {
	key   string
	entry Entry[V]
}

// NewStore creates an empty Store.
func NewStore[V any](opts ...StoreOption) *Store[V] {
	cfg := storeConfig{
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
	}
	for _, o := range opts {
		o(&cfg)
	}
	return &Store[V]{
		cfg:     cfg,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Get returns the value stored under key if it is still valid.
func (s *Store[V]) Get(key string) (V, bool) {
	var zero V
	now := s.cfg.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if !ok {
		return zero, false
	}
	it := el.Value.(*storeItem[V])
	if !it.entry.Valid(now) {
		return zero, false
	}
	return it.entry.Value, true
}

// Set writes value under key, replacing any previous entry. A rewrite counts
// as the newest write for eviction purposes.
func (s *Store[V]) Set(key string, value V, ttl time.Duration) {
	e := Entry[V]{Value: value, StoredAt: s.cfg.now(), TTL: ttl}

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[key]; ok {
		s.order.Remove(el)
	}
	s.entries[key] = s.order.PushBack(&storeItem[V]{key: key, entry: e})

	for s.order.Len() > s.cfg.maxEntries {
		oldest := s.order.Front()
		it := s.order.Remove(oldest).(*storeItem[V])
		delete(s.entries, it.key)
		if s.cfg.onEvict != nil {
			s.cfg.onEvict(it.key)
		}
	}
}

// Len returns the number of stored entries, fresh or not.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// Snapshot lists every stored entry from oldest to newest write.
func (s *Store[V]) Snapshot() []EntryInfo {
	now := s.cfg.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]EntryInfo, 0, s.order.Len())
	for el := s.order.Front(); el != nil; el = el.Next() {
		it := el.Value.(*storeItem[V])
		out = append(out, EntryInfo{
			Key:      it.key,
			StoredAt: it.entry.StoredAt,
			TTL:      it.entry.TTL,
			Age:      now.Sub(it.entry.StoredAt),
			Valid:    it.entry.Valid(now),
		})
	}
	return out
}

// Lookup returns the raw entry under key regardless of freshness.
func (s *Store[V]) Lookup(key string) (Entry[V], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if !ok {
		return Entry[V]{}, false
	}
	return el.Value.(*storeItem[V]).entry, true
}
