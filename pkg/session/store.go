package session

import (
	"container/list"
	"context"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("session not found")

// Store is the key-value boundary for session state. Implementations hold no
// orchestration logic.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	Len(ctx context.Context) (int, error)
	// Oldest returns up to n session ids, least recently updated first.
	Oldest(ctx context.Context, n int) ([]string, error)
}

// MemoryStore is an LRU-ordered in-process store. Put moves a session to the
// front; eviction is left to the Sweeper.
type MemoryStore struct {
	mu    sync.Mutex
	order *list.List
	items map[string]*list.Element
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		order: list.New(),
		items: make(map[string]*list.Element),
	}
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return el.Value.(*Session).Clone(), nil
}

func (m *MemoryStore) Put(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.items[s.SessionID]; ok {
		el.Value = s.Clone()
		m.order.MoveToFront(el)
		return nil
	}
	m.items[s.SessionID] = m.order.PushFront(s.Clone())
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.items[id]; ok {
		m.order.Remove(el)
		delete(m.items, id)
	}
	return nil
}

func (m *MemoryStore) Len(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items), nil
}

func (m *MemoryStore) Oldest(ctx context.Context, n int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, n)
	for el := m.order.Back(); el != nil && len(out) < n; el = el.Prev() {
		out = append(out, el.Value.(*Session).SessionID)
	}
	return out, nil
}
