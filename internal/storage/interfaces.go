package storage

import (
	"context"

	"raydium-pool-watch/internal/domain"
)

// PoolStore provides access to tracked-pool records.
type PoolStore interface {
	// Insert adds a new pool. Returns ErrDuplicateKey if pool_id exists.
	Insert(ctx context.Context, p *domain.PoolRecord) error

	// GetByID retrieves a pool by address. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, poolID string) (*domain.PoolRecord, error)

	// UpdateStage records a lifecycle stage change and, on the
	// transition to monitoring, the tee-up outcome.
	UpdateStage(ctx context.Context, poolID, stage string, timeToStatusSixMs *int64) error

	// GetByStage retrieves all pools currently in a stage.
	GetByStage(ctx context.Context, stage string) ([]*domain.PoolRecord, error)
}

// SnapshotStore provides access to pool_snapshots storage.
type SnapshotStore interface {
	// Insert adds one snapshot.
	Insert(ctx context.Context, s *domain.PoolSnapshot) error

	// InsertBulk adds multiple snapshots. Fails the entire batch on
	// any error.
	InsertBulk(ctx context.Context, snapshots []*domain.PoolSnapshot) error

	// GetByPoolID retrieves all snapshots for a pool, ordered by
	// timestamp ASC.
	GetByPoolID(ctx context.Context, poolID string) ([]*domain.PoolSnapshot, error)

	// GetByTimeRange retrieves snapshots for a pool within
	// [start, end) in milliseconds.
	GetByTimeRange(ctx context.Context, poolID string, start, end int64) ([]*domain.PoolSnapshot, error)

	// Latest retrieves the most recent snapshot for a pool. Returns
	// ErrNotFound when the pool has none.
	Latest(ctx context.Context, poolID string) (*domain.PoolSnapshot, error)
}
