package reserves

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"raydium-pool-watch/internal/delta"
	"raydium-pool-watch/internal/domain"
	"raydium-pool-watch/internal/lifecycle"
	"raydium-pool-watch/internal/observability"
	"raydium-pool-watch/internal/raydium"
	"raydium-pool-watch/internal/solana"
	"raydium-pool-watch/internal/storage"
)

// Monitor polls reserves for every pool the tracker is monitoring and
// persists a snapshot whenever price or liquidity moved past the
// configured threshold.
type Monitor struct {
	tracker *lifecycle.Tracker
	reader  *Reader
	rpc     solana.RPCClient
	store   storage.SnapshotStore
	logger  *zap.Logger
	now     func() time.Time

	// threshold is the relative change that makes an observation worth
	// recording.
	threshold decimal.Decimal

	// pollMu serializes Poll runs; a poll delayed by vault warm-up
	// retries can outlive its tick.
	pollMu sync.Mutex

	// price and tvl baselines, keyed by pool, re-baselined to the last
	// recorded value.
	price map[string]*delta.Tracker
	tvl   map[string]*delta.Tracker
}

// MonitorOptions configures a Monitor.
type MonitorOptions struct {
	Tracker   *lifecycle.Tracker
	Reader    *Reader
	RPC       solana.RPCClient
	Store     storage.SnapshotStore
	Logger    *zap.Logger
	Threshold decimal.Decimal // e.g. 0.005 for half a percent
	Now       func() time.Time
}

// NewMonitor creates a reserve monitor.
func NewMonitor(opts MonitorOptions) *Monitor {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	threshold := opts.Threshold
	if threshold.IsZero() {
		threshold = decimal.NewFromFloat(0.005)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		tracker:   opts.Tracker,
		reader:    opts.Reader,
		rpc:       opts.RPC,
		store:     opts.Store,
		logger:    logger.Named("monitor"),
		now:       now,
		threshold: threshold,
		price:     make(map[string]*delta.Tracker),
		tvl:       make(map[string]*delta.Tracker),
	}
}

// Poll observes every monitored pool once. Failures are per pool; one
// broken pool never blocks the rest.
func (m *Monitor) Poll(ctx context.Context) {
	m.pollMu.Lock()
	defer m.pollMu.Unlock()

	pools := m.tracker.MonitoredPools()

	// Forget baselines for pools no longer monitored.
	active := make(map[string]struct{}, len(pools))
	for _, p := range pools {
		active[p.PoolID] = struct{}{}
	}
	for id := range m.price {
		if _, ok := active[id]; !ok {
			delete(m.price, id)
			delete(m.tvl, id)
		}
	}

	for _, p := range pools {
		if err := m.observe(ctx, p); err != nil {
			if errors.Is(err, ErrVaultUnavailable) {
				m.tracker.Fail(p.PoolID, err.Error())
				continue
			}
			m.logger.Warn("observation failed",
				zap.String("pool", p.PoolID), zap.Error(err))
		}
	}
}

// observe reads one pool's reserves and records a snapshot if the
// change filter passes.
func (m *Monitor) observe(ctx context.Context, p lifecycle.TrackedPool) error {
	baseReserve, err := m.reader.Balance(ctx, p.BaseVault)
	if err != nil {
		return err
	}
	quoteReserve, err := m.reader.Balance(ctx, p.QuoteVault)
	if err != nil {
		return err
	}

	if baseReserve.IsZero() {
		m.logger.Debug("empty base vault", zap.String("pool", p.PoolID))
		return nil
	}

	price := quoteReserve.Div(baseReserve)
	// Both sides of a balanced AMM pool hold equal value.
	tvl := quoteReserve.Mul(decimal.NewFromInt(2))

	changed := m.changed(p.PoolID, price, tvl)
	if !changed {
		observability.RecordSuppressed()
		return nil
	}

	snap := &domain.PoolSnapshot{
		PoolID:       p.PoolID,
		TimestampMs:  m.now().UnixMilli(),
		BaseMint:     p.BaseMint,
		QuoteMint:    p.QuoteMint,
		BaseSymbol:   p.BaseToken.Symbol,
		QuoteSymbol:  p.QuoteToken.Symbol,
		BaseReserve:  baseReserve.InexactFloat64(),
		QuoteReserve: quoteReserve.InexactFloat64(),
		Price:        price.InexactFloat64(),
		TVL:          tvl.InexactFloat64(),
	}
	m.fillPressure(ctx, p, snap)

	if err := m.store.Insert(ctx, snap); err != nil {
		return err
	}
	observability.RecordSnapshot()
	m.logger.Info("snapshot recorded",
		zap.String("pool", p.PoolID),
		zap.Float64("price", snap.Price),
		zap.Float64("tvl", snap.TVL))
	return nil
}

// changed runs both change filters, establishing baselines on first
// sight. Either moving past the threshold records the observation.
func (m *Monitor) changed(poolID string, price, tvl decimal.Decimal) bool {
	pt, ok := m.price[poolID]
	if !ok {
		// First observation is always recorded.
		m.price[poolID] = delta.NewTracker(price, m.threshold)
		m.tvl[poolID] = delta.NewTracker(tvl, m.threshold)
		return true
	}
	tt := m.tvl[poolID]

	priceMoved := pt.Observe(price)
	tvlMoved := tt.Observe(tvl)
	return priceMoved || tvlMoved
}

// fillPressure reads the pool account's cumulative swap counters. Best
// effort: a failed read leaves the pressure fields at zero.
func (m *Monitor) fillPressure(ctx context.Context, p lifecycle.TrackedPool, snap *domain.PoolSnapshot) {
	info, err := m.rpc.GetAccountInfo(ctx, p.PoolID)
	if err != nil || info == nil {
		return
	}
	st, err := raydium.Decode(info.Data)
	if err != nil {
		return
	}
	if st.Layout != raydium.LayoutV4 {
		return // counters only exist in the full layout
	}
	buy := st.SwapQuoteOut.Decimal().Shift(int32(-p.QuoteToken.Decimals))
	sell := st.SwapBaseIn.Decimal().Shift(int32(-p.BaseToken.Decimals))
	snap.BuyPressure = buy.InexactFloat64()
	snap.SellPressure = sell.InexactFloat64()
}
