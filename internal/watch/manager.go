// Package watch manages the live account-change subscriptions: it
// installs server-side filters for the two lifecycle triggers, decodes
// incoming account bytes, and routes updates to the lifecycle tracker.
package watch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"raydium-pool-watch/internal/raydium"
	"raydium-pool-watch/internal/solana"
)

// Sink receives decoded pool updates. Implemented by the lifecycle
// tracker.
type Sink interface {
	HandleInitialized(ctx context.Context, poolID, owner string, st *raydium.PoolState)
	HandleStatusSix(ctx context.Context, poolID, owner string, st *raydium.PoolState)
}

// Metrics counts manager activity. Implementations must be safe for
// concurrent use.
type Metrics interface {
	UpdateReceived(status string)
	DecodeFailed(kind string)
}

type nopMetrics struct{}

func (nopMetrics) UpdateReceived(string) {}
func (nopMetrics) DecodeFailed(string)   {}

// Manager owns the program subscriptions for one AMM program.
type Manager struct {
	ws      solana.WSClient
	sink    Sink
	program string
	logger  *zap.Logger
	metrics Metrics

	mu   sync.Mutex
	subs []*solana.Subscription

	wg sync.WaitGroup

	failed chan error
	once   sync.Once
}

// Options configures a Manager.
type Options struct {
	WS      solana.WSClient
	Sink    Sink
	Program string // defaults to the Raydium AMM v4 program
	Logger  *zap.Logger
	Metrics Metrics
}

// New creates a subscription manager.
func New(opts Options) *Manager {
	program := opts.Program
	if program == "" {
		program = raydium.AMMV4Program
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Manager{
		ws:      opts.WS,
		sink:    opts.Sink,
		program: program,
		logger:  logger.Named("watch"),
		metrics: metrics,
		failed:  make(chan error, 1),
	}
}

// Start installs both lifecycle filters and begins routing updates.
// The two triggers cannot share one filter: a server-side memcmp
// matches one byte pattern, and initialized and open pools differ at
// the status field.
func (m *Manager) Start(ctx context.Context) error {
	layout := raydium.PrimaryLayout()

	for _, status := range []uint64{raydium.StatusInitialized, raydium.StatusOpen} {
		filter := solana.ProgramFilter{
			ProgramID: m.program,
			DataSize:  layout.Size,
			Memcmp: &solana.Memcmp{
				Offset: layout.Status,
				Bytes:  raydium.StatusPattern(status),
			},
		}

		sub, err := m.ws.SubscribeProgram(ctx, filter)
		if err != nil {
			m.stopSubsLocked()
			return fmt.Errorf("subscribe status %d: %w", status, err)
		}

		m.mu.Lock()
		m.subs = append(m.subs, sub)
		m.mu.Unlock()

		m.wg.Add(1)
		go m.route(ctx, status, sub)

		m.logger.Info("subscription installed",
			zap.Uint64("status", status),
			zap.Int64("subscription", sub.ID))
	}

	go m.watchTransport()

	return nil
}

// Failed yields the transport failure, if any. The manager never
// reconnects on its own; the caller decides whether and how to resume,
// so stale data is never delivered silently.
func (m *Manager) Failed() <-chan error {
	return m.failed
}

// Stop releases all subscriptions and waits for routing to drain.
func (m *Manager) Stop(ctx context.Context) {
	m.mu.Lock()
	subs := m.subs
	m.subs = nil
	m.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Unsubscribe(ctx); err != nil {
			m.logger.Warn("unsubscribe failed",
				zap.Int64("subscription", sub.ID), zap.Error(err))
		}
	}
	m.wg.Wait()
}

func (m *Manager) stopSubsLocked() {
	m.mu.Lock()
	subs := m.subs
	m.subs = nil
	m.mu.Unlock()
	for _, sub := range subs {
		_ = sub.Unsubscribe(context.Background())
	}
}

// route decodes and dispatches updates from one subscription.
func (m *Manager) route(ctx context.Context, status uint64, sub *solana.Subscription) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-sub.Updates:
			if !ok {
				return
			}
			m.handleUpdate(ctx, status, update)
		}
	}
}

func (m *Manager) handleUpdate(ctx context.Context, status uint64, update solana.AccountUpdate) {
	st, err := raydium.Decode(update.Data)
	if err != nil {
		switch {
		case errors.Is(err, raydium.ErrIncomplete):
			// Partial data happens mid-write; the next update carries
			// the full account.
			m.metrics.DecodeFailed("incomplete")
			m.logger.Debug("incomplete account data",
				zap.String("pool", update.Pubkey),
				zap.Int("bytes", len(update.Data)))
		default:
			m.metrics.DecodeFailed("invalid")
			m.logger.Warn("undecodable account data",
				zap.String("pool", update.Pubkey),
				zap.Error(err))
		}
		return
	}

	// The server-side filter already matched the status pattern, but
	// the decoded value is authoritative.
	if st.Status != status {
		m.logger.Debug("status mismatch, dropping",
			zap.String("pool", update.Pubkey),
			zap.Uint64("expected", status),
			zap.Uint64("actual", st.Status))
		return
	}

	switch status {
	case raydium.StatusInitialized:
		m.metrics.UpdateReceived("initialized")
		m.sink.HandleInitialized(ctx, update.Pubkey, update.Owner, st)
	case raydium.StatusOpen:
		m.metrics.UpdateReceived("open")
		m.sink.HandleStatusSix(ctx, update.Pubkey, update.Owner, st)
	}
}

// watchTransport surfaces a lost connection through Failed. Exits when
// the transport's Done channel closes, including orderly Close.
func (m *Manager) watchTransport() {
	<-m.ws.Done()
	err := m.ws.Err()
	if err == nil {
		return // orderly shutdown
	}

	m.logger.Warn("transport lost", zap.Error(err))
	m.once.Do(func() {
		m.failed <- err
	})
}
