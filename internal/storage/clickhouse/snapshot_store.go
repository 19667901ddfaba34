package clickhouse

import (
	"context"
	"fmt"

	"raydium-pool-watch/internal/domain"
	"raydium-pool-watch/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using ClickHouse.
type SnapshotStore struct {
	conn *Conn
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(conn *Conn) *SnapshotStore {
	return &SnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Insert adds one snapshot.
func (s *SnapshotStore) Insert(ctx context.Context, snap *domain.PoolSnapshot) error {
	if snap == nil || snap.PoolID == "" {
		return storage.ErrInvalidInput
	}
	return s.InsertBulk(ctx, []*domain.PoolSnapshot{snap})
}

// InsertBulk adds multiple snapshots in one batch.
func (s *SnapshotStore) InsertBulk(ctx context.Context, snapshots []*domain.PoolSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	for _, snap := range snapshots {
		if snap == nil || snap.PoolID == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO pool_snapshots (
			pool_id, timestamp_ms, base_mint, quote_mint, base_symbol,
			quote_symbol, base_reserve, quote_reserve, price, tvl,
			buy_pressure, sell_pressure
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, snap := range snapshots {
		err = batch.Append(
			snap.PoolID, uint64(snap.TimestampMs),
			snap.BaseMint, snap.QuoteMint,
			snap.BaseSymbol, snap.QuoteSymbol,
			snap.BaseReserve, snap.QuoteReserve,
			snap.Price, snap.TVL,
			snap.BuyPressure, snap.SellPressure,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

const selectSnapshotColumns = `
	pool_id, timestamp_ms, base_mint, quote_mint, base_symbol,
	quote_symbol, base_reserve, quote_reserve, price, tvl,
	buy_pressure, sell_pressure
`

// GetByPoolID retrieves all snapshots for a pool, ordered by timestamp ASC.
func (s *SnapshotStore) GetByPoolID(ctx context.Context, poolID string) ([]*domain.PoolSnapshot, error) {
	query := `
		SELECT ` + selectSnapshotColumns + `
		FROM pool_snapshots
		WHERE pool_id = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, poolID)
	if err != nil {
		return nil, fmt.Errorf("get snapshots by pool: %w", err)
	}
	defer rows.Close()

	return s.scanRows(rows)
}

// GetByTimeRange retrieves snapshots for a pool within [start, end).
func (s *SnapshotStore) GetByTimeRange(ctx context.Context, poolID string, start, end int64) ([]*domain.PoolSnapshot, error) {
	query := `
		SELECT ` + selectSnapshotColumns + `
		FROM pool_snapshots
		WHERE pool_id = ? AND timestamp_ms >= ? AND timestamp_ms < ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, poolID, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("get snapshots by time range: %w", err)
	}
	defer rows.Close()

	return s.scanRows(rows)
}

// Latest retrieves the most recent snapshot for a pool.
func (s *SnapshotStore) Latest(ctx context.Context, poolID string) (*domain.PoolSnapshot, error) {
	query := `
		SELECT ` + selectSnapshotColumns + `
		FROM pool_snapshots
		WHERE pool_id = ?
		ORDER BY timestamp_ms DESC
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query, poolID)
	if err != nil {
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}
	defer rows.Close()

	out, err := s.scanRows(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, storage.ErrNotFound
	}
	return out[0], nil
}

// scanRows reads snapshot rows into domain records.
func (s *SnapshotStore) scanRows(rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}) ([]*domain.PoolSnapshot, error) {
	var out []*domain.PoolSnapshot
	for rows.Next() {
		var (
			snap        domain.PoolSnapshot
			timestampMs uint64
		)
		err := rows.Scan(
			&snap.PoolID, &timestampMs,
			&snap.BaseMint, &snap.QuoteMint,
			&snap.BaseSymbol, &snap.QuoteSymbol,
			&snap.BaseReserve, &snap.QuoteReserve,
			&snap.Price, &snap.TVL,
			&snap.BuyPressure, &snap.SellPressure,
		)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.TimestampMs = int64(timestampMs)
		out = append(out, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}
