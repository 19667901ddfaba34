package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"raydium-pool-watch/internal/domain"
	"raydium-pool-watch/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *Pool
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

const snapshotColumns = `
	pool_id, timestamp_ms, base_mint, quote_mint, base_symbol,
	quote_symbol, base_reserve, quote_reserve, price, tvl,
	buy_pressure, sell_pressure
`

// Replayed observations carry the same (pool_id, timestamp_ms) key and
// are ignored rather than duplicated.
const insertSnapshotQuery = `
	INSERT INTO pool_snapshots (` + snapshotColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (pool_id, timestamp_ms) DO NOTHING
`

// Insert adds one snapshot.
func (s *SnapshotStore) Insert(ctx context.Context, snap *domain.PoolSnapshot) error {
	if snap == nil || snap.PoolID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertSnapshotQuery, snapshotArgs(snap)...)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// InsertBulk adds multiple snapshots atomically.
func (s *SnapshotStore) InsertBulk(ctx context.Context, snapshots []*domain.PoolSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	for _, snap := range snapshots {
		if snap == nil || snap.PoolID == "" {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, snap := range snapshots {
		if _, err := tx.Exec(ctx, insertSnapshotQuery, snapshotArgs(snap)...); err != nil {
			return fmt.Errorf("insert snapshot in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func snapshotArgs(snap *domain.PoolSnapshot) []interface{} {
	return []interface{}{
		snap.PoolID,
		snap.TimestampMs,
		snap.BaseMint,
		snap.QuoteMint,
		snap.BaseSymbol,
		snap.QuoteSymbol,
		snap.BaseReserve,
		snap.QuoteReserve,
		snap.Price,
		snap.TVL,
		snap.BuyPressure,
		snap.SellPressure,
	}
}

// GetByPoolID retrieves all snapshots for a pool, ordered by timestamp ASC.
func (s *SnapshotStore) GetByPoolID(ctx context.Context, poolID string) ([]*domain.PoolSnapshot, error) {
	query := `
		SELECT id, ` + snapshotColumns + `, created_at
		FROM pool_snapshots
		WHERE pool_id = $1
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.pool.Query(ctx, query, poolID)
	if err != nil {
		return nil, fmt.Errorf("get snapshots by pool: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// GetByTimeRange retrieves snapshots for a pool within [start, end).
func (s *SnapshotStore) GetByTimeRange(ctx context.Context, poolID string, start, end int64) ([]*domain.PoolSnapshot, error) {
	query := `
		SELECT id, ` + snapshotColumns + `, created_at
		FROM pool_snapshots
		WHERE pool_id = $1 AND timestamp_ms >= $2 AND timestamp_ms < $3
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.pool.Query(ctx, query, poolID, start, end)
	if err != nil {
		return nil, fmt.Errorf("get snapshots by time range: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// Latest retrieves the most recent snapshot for a pool.
func (s *SnapshotStore) Latest(ctx context.Context, poolID string) (*domain.PoolSnapshot, error) {
	query := `
		SELECT id, ` + snapshotColumns + `, created_at
		FROM pool_snapshots
		WHERE pool_id = $1
		ORDER BY timestamp_ms DESC
		LIMIT 1
	`

	var snap domain.PoolSnapshot
	err := s.pool.QueryRow(ctx, query, poolID).Scan(snapshotDest(&snap)...)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}
	return &snap, nil
}

func snapshotDest(snap *domain.PoolSnapshot) []interface{} {
	return []interface{}{
		&snap.ID,
		&snap.PoolID,
		&snap.TimestampMs,
		&snap.BaseMint,
		&snap.QuoteMint,
		&snap.BaseSymbol,
		&snap.QuoteSymbol,
		&snap.BaseReserve,
		&snap.QuoteReserve,
		&snap.Price,
		&snap.TVL,
		&snap.BuyPressure,
		&snap.SellPressure,
		&snap.CreatedAt,
	}
}

func scanSnapshots(rows pgx.Rows) ([]*domain.PoolSnapshot, error) {
	var out []*domain.PoolSnapshot
	for rows.Next() {
		var snap domain.PoolSnapshot
		if err := rows.Scan(snapshotDest(&snap)...); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}
