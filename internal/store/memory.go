package store

import (
	"context"
	"sync"

	"github.com/kmacleod/hockey-draft-backend/internal/draft"
)

// MemoryStore is the default Store. States are deep-copied on the way in and
// out so callers can never mutate stored state directly.
type MemoryStore struct {
	mu     sync.RWMutex
	drafts map[string]*memEntry
}

type memEntry struct {
	state   draft.State
	version int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{drafts: make(map[string]*memEntry)}
}

func (m *MemoryStore) CreateDraft(_ context.Context, d draft.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.drafts[d.ID]; ok {
		return ErrExists
	}
	m.drafts[d.ID] = &memEntry{state: d.Clone(), version: 1}
	return nil
}

func (m *MemoryStore) GetDraft(_ context.Context, id string) (draft.State, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.drafts[id]
	if !ok {
		return draft.State{}, 0, ErrNotFound
	}
	return e.state.Clone(), e.version, nil
}

func (m *MemoryStore) GetDraftByLeague(_ context.Context, leagueID string) (draft.State, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.drafts {
		if e.state.LeagueID == leagueID {
			return e.state.Clone(), e.version, nil
		}
	}
	return draft.State{}, 0, ErrNotFound
}

func (m *MemoryStore) SaveDraft(_ context.Context, d draft.State, version int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.drafts[d.ID]
	if !ok {
		return 0, ErrNotFound
	}
	if e.version != version {
		return 0, ErrStaleState
	}
	e.state = d.Clone()
	e.version++
	return e.version, nil
}

func (m *MemoryStore) DeleteDraft(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.drafts[id]; !ok {
		return ErrNotFound
	}
	delete(m.drafts, id)
	return nil
}
