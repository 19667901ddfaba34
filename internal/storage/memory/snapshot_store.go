package memory

import (
	"context"
	"sort"
	"sync"

	"raydium-pool-watch/internal/domain"
	"raydium-pool-watch/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore in memory.
type SnapshotStore struct {
	mu        sync.RWMutex
	nextID    int64
	snapshots map[string][]*domain.PoolSnapshot
}

// NewSnapshotStore creates a new in-memory SnapshotStore.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snapshots: make(map[string][]*domain.PoolSnapshot)}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

func (s *SnapshotStore) Insert(ctx context.Context, snap *domain.PoolSnapshot) error {
	if snap == nil || snap.PoolID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(snap)
	return nil
}

func (s *SnapshotStore) InsertBulk(ctx context.Context, snapshots []*domain.PoolSnapshot) error {
	for _, snap := range snapshots {
		if snap == nil || snap.PoolID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, snap := range snapshots {
		s.insertLocked(snap)
	}
	return nil
}

func (s *SnapshotStore) insertLocked(snap *domain.PoolSnapshot) {
	// Writes are idempotent on (pool_id, timestamp_ms).
	for _, existing := range s.snapshots[snap.PoolID] {
		if existing.TimestampMs == snap.TimestampMs {
			return
		}
	}

	s.nextID++
	cp := *snap
	cp.ID = s.nextID
	list := s.snapshots[snap.PoolID]
	list = append(list, &cp)
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].TimestampMs < list[j].TimestampMs
	})
	s.snapshots[snap.PoolID] = list
}

func (s *SnapshotStore) GetByPoolID(ctx context.Context, poolID string) ([]*domain.PoolSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.PoolSnapshot
	for _, snap := range s.snapshots[poolID] {
		cp := *snap
		out = append(out, &cp)
	}
	return out, nil
}

func (s *SnapshotStore) GetByTimeRange(ctx context.Context, poolID string, start, end int64) ([]*domain.PoolSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.PoolSnapshot
	for _, snap := range s.snapshots[poolID] {
		if snap.TimestampMs >= start && snap.TimestampMs < end {
			cp := *snap
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *SnapshotStore) Latest(ctx context.Context, poolID string) (*domain.PoolSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.snapshots[poolID]
	if len(list) == 0 {
		return nil, storage.ErrNotFound
	}
	cp := *list[len(list)-1]
	return &cp, nil
}
