package session

import (
	"context"
	"errors"
	"fmt"
	"hash/maphash"
	"sync"
	"time"

	"github.com/BatmanBruc/convert-bot/types"
)

const lockStripes = 64

// Manager serializes all reads and writes of one user's session. Users are mapped onto a
// fixed set of mutexes, so memory does not grow with the number of users.
type Manager struct {
	store types.SessionStore
	seed  maphash.Seed
	locks [lockStripes]sync.Mutex
	now   func() time.Time
}

func NewManager(store types.SessionStore) *Manager {
	return &Manager{
		store: store,
		seed:  maphash.MakeSeed(),
		now:   time.Now,
	}
}

func (m *Manager) lockFor(userID int64) *sync.Mutex {
	var h maphash.Hash
	h.SetSeed(m.seed)
	var b [8]byte
	for i := range b {
		b[i] = byte(userID >> (8 * i))
	}
	_, _ = h.Write(b[:])
	return &m.locks[h.Sum64()%lockStripes]
}

// Get returns a copy of the user's session, or a fresh one in awaiting_category.
func (m *Manager) Get(ctx context.Context, userID int64) (*types.Session, error) {
	mu := m.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()
	return m.load(ctx, userID)
}

// Update applies fn to the user's session under the user's lock and saves the result.
// When fn fails nothing is saved and the unchanged session is returned with the error.
func (m *Manager) Update(ctx context.Context, userID int64, fn func(*types.Session) error) (*types.Session, error) {
	mu := m.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	s, err := m.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	before := *s
	if err := fn(s); err != nil {
		return &before, err
	}
	s.UpdatedAt = m.now()
	if err := m.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("save session %d: %w", userID, err)
	}
	out := *s
	return &out, nil
}

// Reset forgets the user's session.
func (m *Manager) Reset(ctx context.Context, userID int64) error {
	mu := m.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()
	return m.store.Delete(ctx, userID)
}

func (m *Manager) load(ctx context.Context, userID int64) (*types.Session, error) {
	s, err := m.store.Get(ctx, userID)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("load session %d: %w", userID, err)
	}
	now := m.now()
	return &types.Session{
		UserID:    userID,
		Step:      types.StepAwaitingCategory,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
