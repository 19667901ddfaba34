package watch

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"raydium-pool-watch/internal/raydium"
	"raydium-pool-watch/internal/solana"
)

// fakeWS hands out scripted subscriptions keyed by memcmp pattern.
type fakeWS struct {
	mu      sync.Mutex
	filters []solana.ProgramFilter
	chans   map[uint64]chan solana.AccountUpdate
	unsubs  []int64
	done    chan struct{}
	err     error
	nextID  int64
}

func newFakeWS() *fakeWS {
	return &fakeWS{
		chans: make(map[uint64]chan solana.AccountUpdate),
		done:  make(chan struct{}),
	}
}

func (f *fakeWS) SubscribeProgram(ctx context.Context, filter solana.ProgramFilter) (*solana.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.filters = append(f.filters, filter)
	status := binary.LittleEndian.Uint64(filter.Memcmp.Bytes)
	ch := make(chan solana.AccountUpdate, 16)
	f.chans[status] = ch
	f.nextID++
	id := f.nextID

	return solana.NewSubscription(id, ch, func(ctx context.Context) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.unsubs = append(f.unsubs, id)
		close(ch)
		return nil
	}), nil
}

func (f *fakeWS) Done() <-chan struct{} { return f.done }

func (f *fakeWS) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeWS) Close() error { return nil }

func (f *fakeWS) failTransport(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
	close(f.done)
}

func (f *fakeWS) push(status uint64, update solana.AccountUpdate) {
	f.mu.Lock()
	ch := f.chans[status]
	f.mu.Unlock()
	ch <- update
}

// recordingSink captures routed updates.
type recordingSink struct {
	mu          sync.Mutex
	initialized []string
	open        []string
	seen        chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{seen: make(chan struct{}, 16)}
}

func (s *recordingSink) HandleInitialized(ctx context.Context, poolID, owner string, st *raydium.PoolState) {
	s.mu.Lock()
	s.initialized = append(s.initialized, poolID)
	s.mu.Unlock()
	s.seen <- struct{}{}
}

func (s *recordingSink) HandleStatusSix(ctx context.Context, poolID, owner string, st *raydium.PoolState) {
	s.mu.Lock()
	s.open = append(s.open, poolID)
	s.mu.Unlock()
	s.seen <- struct{}{}
}

func (s *recordingSink) wait(t *testing.T) {
	t.Helper()
	select {
	case <-s.seen:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for routed update")
	}
}

// encodeOpenPool builds a valid 752-byte account image with the given
// status and open time.
func encodeOpenPool(status uint64, openTime int64) []byte {
	buf := make([]byte, raydium.V4Size)
	layout := raydium.PrimaryLayout()
	binary.LittleEndian.PutUint64(buf[layout.Status:], status)
	binary.LittleEndian.PutUint64(buf[layout.PoolOpenTime:], uint64(openTime))
	binary.LittleEndian.PutUint64(buf[layout.TradeFeeDenominator:], 10000)
	binary.LittleEndian.PutUint64(buf[layout.SwapFeeDenominator:], 10000)
	for i := 0; i < 32; i++ {
		buf[layout.BaseVault+i] = 3
		buf[layout.QuoteVault+i] = 4
		buf[layout.BaseMint+i] = 1
		buf[layout.QuoteMint+i] = 2
		buf[layout.LPMint+i] = 5
	}
	return buf
}

func startManager(t *testing.T, ws solana.WSClient, sink Sink) *Manager {
	t.Helper()
	m := New(Options{WS: ws, Sink: sink})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return m
}

func TestManager_InstallsBothFilters(t *testing.T) {
	ws := newFakeWS()
	m := startManager(t, ws, newRecordingSink())
	defer m.Stop(context.Background())

	ws.mu.Lock()
	defer ws.mu.Unlock()
	if len(ws.filters) != 2 {
		t.Fatalf("expected 2 filters, got %d", len(ws.filters))
	}
	for _, f := range ws.filters {
		if f.DataSize != raydium.V4Size {
			t.Errorf("expected dataSize %d, got %d", raydium.V4Size, f.DataSize)
		}
		if f.Memcmp == nil || f.Memcmp.Offset != 0 {
			t.Errorf("expected memcmp at offset 0, got %+v", f.Memcmp)
		}
		if f.ProgramID != raydium.AMMV4Program {
			t.Errorf("unexpected program: %s", f.ProgramID)
		}
	}
	s0 := binary.LittleEndian.Uint64(ws.filters[0].Memcmp.Bytes)
	s1 := binary.LittleEndian.Uint64(ws.filters[1].Memcmp.Bytes)
	if s0 != raydium.StatusInitialized || s1 != raydium.StatusOpen {
		t.Errorf("expected status patterns 1 and 6, got %d and %d", s0, s1)
	}
}

func TestManager_RoutesByStatus(t *testing.T) {
	ws := newFakeWS()
	sink := newRecordingSink()
	m := startManager(t, ws, sink)
	defer m.Stop(context.Background())

	now := time.Now().Unix()
	ws.push(raydium.StatusInitialized, solana.AccountUpdate{
		Pubkey: "poolA",
		Owner:  raydium.AMMV4Program,
		Data:   encodeOpenPool(raydium.StatusInitialized, now),
	})
	sink.wait(t)

	ws.push(raydium.StatusOpen, solana.AccountUpdate{
		Pubkey: "poolB",
		Owner:  raydium.AMMV4Program,
		Data:   encodeOpenPool(raydium.StatusOpen, now),
	})
	sink.wait(t)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.initialized) != 1 || sink.initialized[0] != "poolA" {
		t.Errorf("expected initialized [poolA], got %v", sink.initialized)
	}
	if len(sink.open) != 1 || sink.open[0] != "poolB" {
		t.Errorf("expected open [poolB], got %v", sink.open)
	}
}

func TestManager_SkipsUndecodableData(t *testing.T) {
	ws := newFakeWS()
	sink := newRecordingSink()
	m := startManager(t, ws, sink)
	defer m.Stop(context.Background())

	// Truncated account image, then a valid one
	ws.push(raydium.StatusOpen, solana.AccountUpdate{
		Pubkey: "short",
		Owner:  raydium.AMMV4Program,
		Data:   make([]byte, 100),
	})
	ws.push(raydium.StatusOpen, solana.AccountUpdate{
		Pubkey: "good",
		Owner:  raydium.AMMV4Program,
		Data:   encodeOpenPool(raydium.StatusOpen, time.Now().Unix()),
	})
	sink.wait(t)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.open) != 1 || sink.open[0] != "good" {
		t.Errorf("expected only the valid update routed, got %v", sink.open)
	}
}

func TestManager_DropsStatusMismatch(t *testing.T) {
	ws := newFakeWS()
	sink := newRecordingSink()
	m := startManager(t, ws, sink)
	defer m.Stop(context.Background())

	// Arrives on the initialized filter but decodes as open
	ws.push(raydium.StatusInitialized, solana.AccountUpdate{
		Pubkey: "flipped",
		Owner:  raydium.AMMV4Program,
		Data:   encodeOpenPool(raydium.StatusOpen, time.Now().Unix()),
	})
	ws.push(raydium.StatusInitialized, solana.AccountUpdate{
		Pubkey: "ok",
		Owner:  raydium.AMMV4Program,
		Data:   encodeOpenPool(raydium.StatusInitialized, time.Now().Unix()),
	})
	sink.wait(t)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.initialized) != 1 || sink.initialized[0] != "ok" {
		t.Errorf("expected mismatched update dropped, got %v", sink.initialized)
	}
}

func TestManager_SurfacesTransportFailure(t *testing.T) {
	ws := newFakeWS()
	m := startManager(t, ws, newRecordingSink())

	ws.failTransport(errors.New("connection reset"))

	select {
	case err := <-m.Failed():
		if err == nil {
			t.Error("expected a failure cause")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for transport failure")
	}
}

func TestManager_StopReleasesSubscriptions(t *testing.T) {
	ws := newFakeWS()
	m := startManager(t, ws, newRecordingSink())

	m.Stop(context.Background())

	ws.mu.Lock()
	defer ws.mu.Unlock()
	if len(ws.unsubs) != 2 {
		t.Errorf("expected 2 unsubscribes, got %d", len(ws.unsubs))
	}
}
