// Package lifecycle owns the pool state machine: it admits newly
// observed pools, applies transition and staleness rules, enforces
// capacity bounds, and emits lifecycle events.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"raydium-pool-watch/internal/domain"
	"raydium-pool-watch/internal/event"
	"raydium-pool-watch/internal/observability"
	"raydium-pool-watch/internal/raydium"
)

// Stage is a tracked pool's position in its lifecycle.
type Stage int

const (
	StagePending Stage = iota
	StageTeedUp
	StageStatusSix
	StageMonitoring
	StageCompleted
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StagePending:
		return "pending"
	case StageTeedUp:
		return "teed_up"
	case StageStatusSix:
		return "status_six"
	case StageMonitoring:
		return "monitoring"
	case StageCompleted:
		return "completed"
	case StageFailed:
		return "failed"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Config bounds the tracker's memory and the windows inside which a
// pool still counts as new. Defaults mirror observed chain behavior
// but carry no authority; tune per deployment.
type Config struct {
	// StaleWindow is the maximum age of poolOpenTime for an
	// open-for-trading observation to still count as a new pool.
	StaleWindow time.Duration

	// ProgressTimeout fails pools stuck before monitoring.
	ProgressTimeout time.Duration

	// PendingMaxAge and TeedUpMaxAge bound the periodic sweep.
	PendingMaxAge time.Duration
	TeedUpMaxAge  time.Duration

	// MonitoringMaxAge completes monitoring sessions that never
	// received an explicit stop.
	MonitoringMaxAge time.Duration

	// MaxPending bounds the pending set; the oldest record by
	// detection time is evicted under pressure.
	MaxPending int
}

// DefaultConfig returns the standard tracker configuration.
func DefaultConfig() Config {
	return Config{
		StaleWindow:      time.Hour,
		ProgressTimeout:  30 * time.Minute,
		PendingMaxAge:    time.Hour,
		TeedUpMaxAge:     30 * time.Minute,
		MonitoringMaxAge: time.Hour,
		MaxPending:       100,
	}
}

// TokenResolver resolves a mint address to token info.
type TokenResolver interface {
	Resolve(ctx context.Context, mint string) (domain.TokenInfo, error)
}

// TrackedPool is the tracker's mutable per-pool record. The tracker
// owns it exclusively; collaborators only ever see event payloads.
type TrackedPool struct {
	PoolID       string
	Stage        Stage
	BaseMint     string
	QuoteMint    string
	BaseVault    string
	QuoteVault   string
	BaseToken    domain.TokenInfo
	QuoteToken   domain.TokenInfo
	PoolOpenTime int64 // Unix seconds, 0 for legacy pools
	DetectedAt   time.Time
	TeedUpAt     time.Time
	StatusSixAt  time.Time
	MonitoredAt  time.Time
	MissedTeeUp  bool

	// deferredStatusSix holds an open-for-trading observation that
	// arrived while token resolution was still in flight.
	deferredStatusSix *time.Time
}

// Tracker is the pool lifecycle state machine. All state is process
// local and rebuilt from zero on restart.
type Tracker struct {
	cfg      Config
	program  string
	resolver TokenResolver
	emitter  event.Emitter
	logger   *zap.Logger
	now      func() time.Time

	// sem serializes all state transitions. A channel rather than a
	// mutex so resolution can release and reacquire around RPC waits
	// while honoring context cancellation.
	sem chan struct{}

	// resolving tracks the in-flight per-pool resolution goroutines.
	resolving sync.WaitGroup

	pools map[string]*TrackedPool
}

// Options configures a Tracker.
type Options struct {
	Config   Config
	Program  string // AMM program ID updates must be owned by
	Resolver TokenResolver
	Emitter  event.Emitter
	Logger   *zap.Logger
	Now      func() time.Time
}

// New creates a Tracker.
func New(opts Options) *Tracker {
	cfg := opts.Config
	if cfg.MaxPending <= 0 {
		cfg = DefaultConfig()
	}
	program := opts.Program
	if program == "" {
		program = raydium.AMMV4Program
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	emitter := opts.Emitter
	if emitter == nil {
		emitter = event.EmitterFunc(func(event.PoolEvent) {})
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	t := &Tracker{
		cfg:      cfg,
		program:  program,
		resolver: opts.Resolver,
		emitter:  emitter,
		logger:   logger.Named("lifecycle"),
		now:      now,
		sem:      make(chan struct{}, 1),
		pools:    make(map[string]*TrackedPool),
	}
	return t
}

func (t *Tracker) lock()   { t.sem <- struct{}{} }
func (t *Tracker) unlock() { <-t.sem }

// Len returns the number of tracked pools.
func (t *Tracker) Len() int {
	t.lock()
	defer t.unlock()
	return len(t.pools)
}

// Lookup returns a copy of the tracked record for a pool.
func (t *Tracker) Lookup(poolID string) (TrackedPool, bool) {
	t.lock()
	defer t.unlock()
	p, ok := t.pools[poolID]
	if !ok {
		return TrackedPool{}, false
	}
	return *p, true
}

// HandleInitialized admits a pool first seen in the initialized state.
// Token resolution runs without holding the tracker's state and the
// outcome is merged afterward, so a slow node never stalls other pools.
func (t *Tracker) HandleInitialized(ctx context.Context, poolID, owner string, st *raydium.PoolState) {
	if owner != t.program {
		t.logger.Warn("update from unexpected owner",
			zap.String("pool", poolID), zap.String("owner", owner))
		return
	}

	t.lock()
	if _, exists := t.pools[poolID]; exists {
		t.unlock()
		return
	}
	t.admitLocked(&TrackedPool{
		PoolID:       poolID,
		Stage:        StagePending,
		BaseMint:     st.BaseMint.String(),
		QuoteMint:    st.QuoteMint.String(),
		BaseVault:    st.BaseVault.String(),
		QuoteVault:   st.QuoteVault.String(),
		PoolOpenTime: int64(st.PoolOpenTime),
		DetectedAt:   t.now(),
	})
	t.unlock()

	t.spawnResolve(ctx, poolID)
}

// Add admits a pool from an out-of-band creation hint, with mints
// already known.
func (t *Tracker) Add(ctx context.Context, poolID, baseMint, quoteMint string) {
	t.lock()
	if _, exists := t.pools[poolID]; exists {
		t.unlock()
		return
	}
	t.admitLocked(&TrackedPool{
		PoolID:     poolID,
		Stage:      StagePending,
		BaseMint:   baseMint,
		QuoteMint:  quoteMint,
		DetectedAt: t.now(),
	})
	t.unlock()

	t.spawnResolve(ctx, poolID)
}

// spawnResolve runs token resolution for a freshly admitted pool on its
// own goroutine so one slow mint never stalls the subscription stream.
func (t *Tracker) spawnResolve(ctx context.Context, poolID string) {
	t.resolving.Add(1)
	go func() {
		defer t.resolving.Done()
		t.resolveAndTeeUp(ctx, poolID)
	}()
}

// Wait blocks until all in-flight token resolutions have finished.
func (t *Tracker) Wait() {
	t.resolving.Wait()
}

// admitLocked inserts a pending record, evicting the oldest pending
// pool when the set is at capacity.
func (t *Tracker) admitLocked(p *TrackedPool) {
	pending := 0
	var oldest *TrackedPool
	for _, existing := range t.pools {
		if existing.Stage != StagePending {
			continue
		}
		pending++
		if oldest == nil || existing.DetectedAt.Before(oldest.DetectedAt) {
			oldest = existing
		}
	}
	if pending >= t.cfg.MaxPending && oldest != nil {
		delete(t.pools, oldest.PoolID)
		observability.RecordEviction()
		t.logger.Info("evicted pending pool at capacity",
			zap.String("evicted", oldest.PoolID),
			zap.String("admitted", p.PoolID))
	}
	t.pools[p.PoolID] = p
	t.logger.Debug("pool admitted",
		zap.String("pool", p.PoolID),
		zap.Int64("pool_open_time", p.PoolOpenTime))
}

// resolveAndTeeUp resolves both mints and advances the pool to teed up,
// or fails it. Runs on a per-pool goroutine; only the final merge takes
// the tracker state.
func (t *Tracker) resolveAndTeeUp(ctx context.Context, poolID string) {
	t.lock()
	p, ok := t.pools[poolID]
	if !ok || p.Stage != StagePending {
		t.unlock()
		return
	}
	baseMint, quoteMint := p.BaseMint, p.QuoteMint
	t.unlock()

	base, err := t.resolver.Resolve(ctx, baseMint)
	if err != nil {
		t.failPool(poolID, fmt.Sprintf("resolve base token: %v", err))
		return
	}
	quote, err := t.resolver.Resolve(ctx, quoteMint)
	if err != nil {
		t.failPool(poolID, fmt.Sprintf("resolve quote token: %v", err))
		return
	}

	t.lock()
	defer t.unlock()
	p, ok = t.pools[poolID]
	if !ok || p.Stage != StagePending {
		// Evicted or advanced while resolving.
		return
	}
	p.BaseToken = base
	p.QuoteToken = quote
	p.Stage = StageTeedUp
	p.TeedUpAt = t.now()

	t.emitter.Emit(event.New(event.TypeTeedUp, poolID, p.TeedUpAt, event.EventData{
		BaseToken:    base.Symbol,
		QuoteToken:   quote.Symbol,
		PoolOpenTime: p.PoolOpenTime,
	}))

	if p.deferredStatusSix != nil {
		at := *p.deferredStatusSix
		p.deferredStatusSix = nil
		t.advanceToMonitoringLocked(p, at)
	}
}

// HandleStatusSix processes an open-for-trading observation. Untracked
// pools take the degraded missed-tee-up path and are still reported.
func (t *Tracker) HandleStatusSix(ctx context.Context, poolID, owner string, st *raydium.PoolState) {
	if owner != t.program {
		t.logger.Warn("update from unexpected owner",
			zap.String("pool", poolID), zap.String("owner", owner))
		return
	}

	now := t.now()
	if !t.openAndFresh(poolID, st, now) {
		return
	}

	t.lock()
	p, tracked := t.pools[poolID]
	if tracked {
		if p.PoolOpenTime == 0 {
			// Out-of-band admissions carry no open time until now.
			p.PoolOpenTime = int64(st.PoolOpenTime)
		}
		switch p.Stage {
		case StagePending:
			// Resolution still in flight; replay once teed up.
			at := now
			p.deferredStatusSix = &at
			t.unlock()
			return
		case StageTeedUp:
			t.advanceToMonitoringLocked(p, now)
			t.unlock()
			return
		default:
			// Duplicate observation for an already advanced pool.
			t.unlock()
			return
		}
	}
	t.unlock()

	// Missed the tee-up: creation signal never arrived or was evicted.
	t.resolving.Add(1)
	go func() {
		defer t.resolving.Done()
		t.handleMissedTeeUp(ctx, poolID, st, now)
	}()
}

// openAndFresh applies the uniform gating every open-for-trading
// observation must pass.
func (t *Tracker) openAndFresh(poolID string, st *raydium.PoolState, now time.Time) bool {
	if st.IsLegacy() {
		t.logger.Debug("ignoring legacy pool", zap.String("pool", poolID))
		return false
	}
	openTime := time.Unix(int64(st.PoolOpenTime), 0)
	if now.Before(openTime) {
		t.logger.Debug("pool not yet open",
			zap.String("pool", poolID),
			zap.Time("open_time", openTime))
		return false
	}
	if now.Sub(openTime) > t.cfg.StaleWindow {
		t.logger.Debug("discarding stale pool",
			zap.String("pool", poolID),
			zap.Duration("age", now.Sub(openTime)))
		t.lock()
		delete(t.pools, poolID)
		t.unlock()
		return false
	}
	return true
}

// advanceToMonitoringLocked emits status_six and ready, then enters
// monitoring. Caller holds the tracker state.
func (t *Tracker) advanceToMonitoringLocked(p *TrackedPool, at time.Time) {
	p.Stage = StageStatusSix
	p.StatusSixAt = at

	data := event.EventData{
		BaseToken:    p.BaseToken.Symbol,
		QuoteToken:   p.QuoteToken.Symbol,
		PoolOpenTime: p.PoolOpenTime,
		MissedTeeUp:  p.MissedTeeUp,
	}
	if !p.MissedTeeUp && !p.TeedUpAt.IsZero() {
		data.TimeToStatusSixMs = at.Sub(p.TeedUpAt).Milliseconds()
	}

	t.emitter.Emit(event.New(event.TypeStatusSix, p.PoolID, at, data))

	p.Stage = StageMonitoring
	p.MonitoredAt = at
	t.emitter.Emit(event.New(event.TypeReady, p.PoolID, at, data))

	t.logger.Info("pool ready",
		zap.String("pool", p.PoolID),
		zap.String("base", p.BaseToken.Symbol),
		zap.String("quote", p.QuoteToken.Symbol),
		zap.Bool("missed_tee_up", p.MissedTeeUp),
		zap.Int64("time_to_status_six_ms", data.TimeToStatusSixMs))
}

// handleMissedTeeUp reports a pool first observed already tradable.
func (t *Tracker) handleMissedTeeUp(ctx context.Context, poolID string, st *raydium.PoolState, now time.Time) {
	base, err := t.resolver.Resolve(ctx, st.BaseMint.String())
	if err != nil {
		t.emitError(poolID, fmt.Sprintf("resolve base token: %v", err))
		return
	}
	quote, err := t.resolver.Resolve(ctx, st.QuoteMint.String())
	if err != nil {
		t.emitError(poolID, fmt.Sprintf("resolve quote token: %v", err))
		return
	}

	t.lock()
	defer t.unlock()
	if _, exists := t.pools[poolID]; exists {
		// A concurrent path admitted it meanwhile.
		return
	}
	p := &TrackedPool{
		PoolID:       poolID,
		Stage:        StageTeedUp,
		BaseMint:     st.BaseMint.String(),
		QuoteMint:    st.QuoteMint.String(),
		BaseVault:    st.BaseVault.String(),
		QuoteVault:   st.QuoteVault.String(),
		BaseToken:    base,
		QuoteToken:   quote,
		PoolOpenTime: int64(st.PoolOpenTime),
		DetectedAt:   now,
		MissedTeeUp:  true,
	}
	t.pools[poolID] = p
	t.advanceToMonitoringLocked(p, now)
}

// Complete ends a pool's monitoring session and removes the record.
func (t *Tracker) Complete(poolID string) {
	t.lock()
	defer t.unlock()
	p, ok := t.pools[poolID]
	if !ok {
		return
	}
	p.Stage = StageCompleted
	delete(t.pools, poolID)
	t.logger.Info("pool completed", zap.String("pool", poolID))
}

// Fail terminates a pool with an error event and removes the record.
func (t *Tracker) Fail(poolID, reason string) {
	t.failPool(poolID, reason)
}

func (t *Tracker) failPool(poolID, reason string) {
	t.lock()
	p, ok := t.pools[poolID]
	if ok {
		p.Stage = StageFailed
		delete(t.pools, poolID)
	}
	t.unlock()
	if ok {
		t.emitError(poolID, reason)
	}
}

func (t *Tracker) emitError(poolID, reason string) {
	t.emitter.Emit(event.New(event.TypeError, poolID, t.now(), event.EventData{
		Reason: reason,
	}))
	t.logger.Warn("pool failed",
		zap.String("pool", poolID),
		zap.String("reason", reason))
}

// Sweep removes records that stopped progressing. Pools stuck before
// monitoring past the progress timeout fail with an error event; the
// age-based removals below run independently as a second safety net.
func (t *Tracker) Sweep() {
	now := t.now()

	t.lock()
	var timedOut []string
	var aged []string
	var finished []string
	for id, p := range t.pools {
		age := now.Sub(p.DetectedAt)
		switch p.Stage {
		case StagePending:
			if age > t.cfg.ProgressTimeout {
				timedOut = append(timedOut, id)
			} else if age > t.cfg.PendingMaxAge {
				aged = append(aged, id)
			}
		case StageTeedUp:
			if now.Sub(p.TeedUpAt) > t.cfg.ProgressTimeout {
				timedOut = append(timedOut, id)
			} else if now.Sub(p.TeedUpAt) > t.cfg.TeedUpMaxAge {
				aged = append(aged, id)
			}
		case StageMonitoring:
			if t.cfg.MonitoringMaxAge > 0 && now.Sub(p.MonitoredAt) > t.cfg.MonitoringMaxAge {
				finished = append(finished, id)
			}
		}
	}
	for _, id := range timedOut {
		t.pools[id].Stage = StageFailed
		delete(t.pools, id)
	}
	for _, id := range aged {
		delete(t.pools, id)
		t.logger.Debug("swept aged pool", zap.String("pool", id))
	}
	t.unlock()

	for _, id := range timedOut {
		t.emitError(id, "timed out before becoming tradable")
	}
	for _, id := range finished {
		t.Complete(id)
	}
}

// MonitoredPools returns the pools currently in the monitoring stage.
func (t *Tracker) MonitoredPools() []TrackedPool {
	t.lock()
	defer t.unlock()
	var out []TrackedPool
	for _, p := range t.pools {
		if p.Stage == StageMonitoring {
			out = append(out, *p)
		}
	}
	return out
}
