package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/coursewright/coursewright/internal/domain"
)

// MemoryStore is an in-memory SessionStore implementation, used for tests
// and ephemeral runs where durability is not needed. Snapshots already own
// copies of their nested data, so storing them by value is safe.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[string]domain.Snapshot
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[string]domain.Snapshot)}
}

func (m *MemoryStore) Upsert(_ context.Context, snap domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[snap.SessionID] = snap
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (domain.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.snaps[id]
	if !ok {
		return domain.Snapshot{}, ErrNotFound
	}
	return snap, nil
}

func (m *MemoryStore) ListByUser(_ context.Context, userID int64, contextType string) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Summary
	for _, snap := range m.snaps {
		if snap.UserID != userID {
			continue
		}
		if contextType != "" && snap.ContextType != contextType {
			continue
		}
		out = append(out, Summary{
			SessionID:    snap.SessionID,
			UserID:       snap.UserID,
			ContextType:  snap.ContextType,
			Title:        snap.Title,
			CurrentState: snap.CurrentState,
			Progress:     snap.Progress,
			Active:       snap.Active,
			CreatedAt:    snap.CreatedAt,
			LastUpdated:  snap.LastUpdated,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastUpdated.After(out[j].LastUpdated)
	})
	return out, nil
}

func (m *MemoryStore) ListExpired(_ context.Context, cutoff time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, snap := range m.snaps {
		if !snap.LastUpdated.After(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, id)
	return nil
}

func (m *MemoryStore) Count(_ context.Context, userID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, snap := range m.snaps {
		if snap.UserID == userID {
			n++
		}
	}
	return n, nil
}
