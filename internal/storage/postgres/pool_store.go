package postgres

import (
	"context"
	"fmt"

	"raydium-pool-watch/internal/domain"
	"raydium-pool-watch/internal/storage"
)

// PoolStore implements storage.PoolStore using PostgreSQL.
type PoolStore struct {
	pool *Pool
}

// NewPoolStore creates a new PoolStore.
func NewPoolStore(pool *Pool) *PoolStore {
	return &PoolStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PoolStore = (*PoolStore)(nil)

// Insert adds a new pool. Returns ErrDuplicateKey if pool_id exists.
func (s *PoolStore) Insert(ctx context.Context, p *domain.PoolRecord) error {
	if p == nil || p.PoolID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO pools (
			pool_id, base_mint, quote_mint, base_vault, quote_vault,
			lp_mint, pool_open_time, detected_at, stage, missed_tee_up,
			time_to_status_six_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		p.PoolID,
		p.BaseMint,
		p.QuoteMint,
		p.BaseVault,
		p.QuoteVault,
		p.LPMint,
		p.PoolOpenTime,
		p.DetectedAtMs,
		p.Stage,
		p.MissedTeeUp,
		p.TimeToStatusSixMs,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert pool: %w", err)
	}
	return nil
}

// GetByID retrieves a pool by address. Returns ErrNotFound if not exists.
func (s *PoolStore) GetByID(ctx context.Context, poolID string) (*domain.PoolRecord, error) {
	query := `
		SELECT pool_id, base_mint, quote_mint, base_vault, quote_vault,
		       lp_mint, pool_open_time, detected_at, stage, missed_tee_up,
		       time_to_status_six_ms, created_at
		FROM pools
		WHERE pool_id = $1
	`

	var p domain.PoolRecord
	err := s.pool.QueryRow(ctx, query, poolID).Scan(
		&p.PoolID,
		&p.BaseMint,
		&p.QuoteMint,
		&p.BaseVault,
		&p.QuoteVault,
		&p.LPMint,
		&p.PoolOpenTime,
		&p.DetectedAtMs,
		&p.Stage,
		&p.MissedTeeUp,
		&p.TimeToStatusSixMs,
		&p.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get pool by id: %w", err)
	}
	return &p, nil
}

// UpdateStage records a lifecycle stage change.
func (s *PoolStore) UpdateStage(ctx context.Context, poolID, stage string, timeToStatusSixMs *int64) error {
	query := `
		UPDATE pools
		SET stage = $2,
		    time_to_status_six_ms = COALESCE($3, time_to_status_six_ms)
		WHERE pool_id = $1
	`

	tag, err := s.pool.Exec(ctx, query, poolID, stage, timeToStatusSixMs)
	if err != nil {
		return fmt.Errorf("update pool stage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByStage retrieves all pools currently in a stage.
func (s *PoolStore) GetByStage(ctx context.Context, stage string) ([]*domain.PoolRecord, error) {
	query := `
		SELECT pool_id, base_mint, quote_mint, base_vault, quote_vault,
		       lp_mint, pool_open_time, detected_at, stage, missed_tee_up,
		       time_to_status_six_ms, created_at
		FROM pools
		WHERE stage = $1
		ORDER BY detected_at ASC
	`

	rows, err := s.pool.Query(ctx, query, stage)
	if err != nil {
		return nil, fmt.Errorf("get pools by stage: %w", err)
	}
	defer rows.Close()

	var out []*domain.PoolRecord
	for rows.Next() {
		var p domain.PoolRecord
		if err := rows.Scan(
			&p.PoolID,
			&p.BaseMint,
			&p.QuoteMint,
			&p.BaseVault,
			&p.QuoteVault,
			&p.LPMint,
			&p.PoolOpenTime,
			&p.DetectedAtMs,
			&p.Stage,
			&p.MissedTeeUp,
			&p.TimeToStatusSixMs,
			&p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan pool: %w", err)
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pools: %w", err)
	}
	return out, nil
}
