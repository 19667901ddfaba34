// Package memory provides in-memory store implementations used in
// tests and for runs without a database.
package memory

import (
	"context"
	"sync"

	"raydium-pool-watch/internal/domain"
	"raydium-pool-watch/internal/storage"
)

// PoolStore implements storage.PoolStore in memory.
type PoolStore struct {
	mu    sync.RWMutex
	pools map[string]*domain.PoolRecord
}

// NewPoolStore creates a new in-memory PoolStore.
func NewPoolStore() *PoolStore {
	return &PoolStore{pools: make(map[string]*domain.PoolRecord)}
}

// Compile-time interface check.
var _ storage.PoolStore = (*PoolStore)(nil)

func (s *PoolStore) Insert(ctx context.Context, p *domain.PoolRecord) error {
	if p == nil || p.PoolID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.pools[p.PoolID]; exists {
		return storage.ErrDuplicateKey
	}
	cp := *p
	s.pools[p.PoolID] = &cp
	return nil
}

func (s *PoolStore) GetByID(ctx context.Context, poolID string) (*domain.PoolRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pools[poolID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *PoolStore) UpdateStage(ctx context.Context, poolID, stage string, timeToStatusSixMs *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pools[poolID]
	if !ok {
		return storage.ErrNotFound
	}
	p.Stage = stage
	if timeToStatusSixMs != nil {
		v := *timeToStatusSixMs
		p.TimeToStatusSixMs = &v
	}
	return nil
}

func (s *PoolStore) GetByStage(ctx context.Context, stage string) ([]*domain.PoolRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.PoolRecord
	for _, p := range s.pools {
		if p.Stage == stage {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}
