package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// DefaultMaxEntries bounds a backend created with maxEntries <= 0.
const DefaultMaxEntries = 100

type memoryItem struct {
	key       string
	entry     Entry
	expiresAt time.Time // zero means no expiry
}

// MemoryBackend is an in-process Backend with TTL expiry and LRU eviction.
type MemoryBackend struct {
	mu         sync.Mutex
	items      map[string]*list.Element
	order      *list.List // front is most recently used
	maxEntries int
	now        func() time.Time
}

// NewMemoryBackend creates a MemoryBackend holding at most maxEntries.
func NewMemoryBackend(maxEntries int) *MemoryBackend {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryBackend{
		items:      make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get implements Backend.
func (m *MemoryBackend) Get(_ context.Context, key string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key]
	if !ok {
		return Entry{}, ErrMiss
	}
	it := el.Value.(*memoryItem) //nolint:errcheck // only *memoryItem is stored
	if m.expired(it) {
		m.remove(el)
		return Entry{}, ErrMiss
	}
	it.entry.Hits++
	m.order.MoveToFront(el)
	return it.entry, nil
}

// Set implements Backend.
func (m *MemoryBackend) Set(_ context.Context, key string, e Entry, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = m.now().Add(ttl)
	}

	if el, ok := m.items[key]; ok {
		it := el.Value.(*memoryItem) //nolint:errcheck // only *memoryItem is stored
		it.entry = e
		it.expiresAt = expiresAt
		m.order.MoveToFront(el)
		return nil
	}

	m.items[key] = m.order.PushFront(&memoryItem{key: key, entry: e, expiresAt: expiresAt})
	for m.order.Len() > m.maxEntries {
		m.remove(m.order.Back())
	}
	return nil
}

// Clear implements Backend.
func (m *MemoryBackend) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]*list.Element)
	m.order.Init()
	return nil
}

// Len implements Backend. Expired entries are purged first.
func (m *MemoryBackend) Len(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for el := m.order.Front(); el != nil; {
		next := el.Next()
		if m.expired(el.Value.(*memoryItem)) { //nolint:errcheck // only *memoryItem is stored
			m.remove(el)
		}
		el = next
	}
	return m.order.Len(), nil
}

func (m *MemoryBackend) expired(it *memoryItem) bool {
	return !it.expiresAt.IsZero() && !m.now().Before(it.expiresAt)
}

func (m *MemoryBackend) remove(el *list.Element) {
	it := m.order.Remove(el).(*memoryItem) //nolint:errcheck // only *memoryItem is stored
	delete(m.items, it.key)
}
