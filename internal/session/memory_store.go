package session

import (
	"context"
	"sync"
	"time"

	"github.com/BatmanBruc/convert-bot/types"
)

var ErrNotFound = types.ErrNotFound

const DefaultTTL = 24 * time.Hour

type memoryEntry struct {
	session  types.Session
	lastSeen time.Time
}

// MemoryStore keeps sessions in process memory and forgets the ones idle longer than ttl.
type MemoryStore struct {
	mu    sync.Mutex
	items map[int64]memoryEntry
	ttl   time.Duration
	now   func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		items: make(map[int64]memoryEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, userID int64) (*types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.items[userID]
	if !ok {
		return nil, ErrNotFound
	}
	if m.expired(e) {
		delete(m.items, userID)
		return nil, ErrNotFound
	}
	s := e.session
	return &s, nil
}

func (m *MemoryStore) Save(_ context.Context, s *types.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[s.UserID] = memoryEntry{session: *s, lastSeen: m.now()}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, userID)
	return nil
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Sweep drops every expired session and reports how many were removed.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, e := range m.items {
		if m.expired(e) {
			delete(m.items, id)
			n++
		}
	}
	return n
}

// Run sweeps periodically until ctx is done.
func (m *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = m.ttl / 4
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

func (m *MemoryStore) expired(e memoryEntry) bool {
	return m.now().Sub(e.lastSeen) > m.ttl
}
