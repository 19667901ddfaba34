package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"raydium-pool-watch/internal/event"
)

func TestUpdateReceived_StampsLastUpdate(t *testing.T) {
	m := NewMetrics("obstest_updates")

	m.UpdateReceived("open")
	m.UpdateReceived("open")
	m.UpdateReceived("initialized")

	if got := testutil.ToFloat64(m.UpdatesReceived.WithLabelValues("open")); got != 2 {
		t.Errorf("expected 2 open updates, got %f", got)
	}
	if got := testutil.ToFloat64(m.LastUpdateTimestamp); got <= 0 {
		t.Errorf("expected last update timestamp to be stamped, got %f", got)
	}
}

func TestHelpers_FeedDefaultMetrics(t *testing.T) {
	evicted := testutil.ToFloat64(DefaultMetrics.PoolsEvicted)
	suppressed := testutil.ToFloat64(DefaultMetrics.ObservationsSuppressed)
	retries := testutil.ToFloat64(DefaultMetrics.VaultReadRetries)
	snapshots := testutil.ToFloat64(DefaultMetrics.SnapshotsRecorded)
	uptime := testutil.ToFloat64(DefaultMetrics.UptimeSeconds)

	RecordEviction()
	RecordSuppressed()
	RecordVaultRetry()
	RecordSnapshot()
	TickUptime(time.Second)

	if got := testutil.ToFloat64(DefaultMetrics.PoolsEvicted); got != evicted+1 {
		t.Errorf("eviction not counted: %f", got)
	}
	if got := testutil.ToFloat64(DefaultMetrics.ObservationsSuppressed); got != suppressed+1 {
		t.Errorf("suppression not counted: %f", got)
	}
	if got := testutil.ToFloat64(DefaultMetrics.VaultReadRetries); got != retries+1 {
		t.Errorf("vault retry not counted: %f", got)
	}
	if got := testutil.ToFloat64(DefaultMetrics.SnapshotsRecorded); got != snapshots+1 {
		t.Errorf("snapshot not counted: %f", got)
	}
	if got := testutil.ToFloat64(DefaultMetrics.UptimeSeconds); got != uptime+1 {
		t.Errorf("uptime not advanced: %f", got)
	}
}

func TestObserveRPCCall_CountsErrorsOnly(t *testing.T) {
	errsBefore := testutil.ToFloat64(DefaultMetrics.RPCCallErrors.WithLabelValues("getSlot"))

	ObserveRPCCall("getSlot", 5*time.Millisecond, nil)
	ObserveRPCCall("getSlot", 5*time.Millisecond, errors.New("boom"))

	if got := testutil.ToFloat64(DefaultMetrics.RPCCallErrors.WithLabelValues("getSlot")); got != errsBefore+1 {
		t.Errorf("expected one counted error, got delta %f", got-errsBefore)
	}
}

func TestCountingEmitter_CountsByType(t *testing.T) {
	m := NewMetrics("obstest_emitter")
	var forwarded []event.PoolEvent
	ce := NewCountingEmitter(event.EmitterFunc(func(ev event.PoolEvent) {
		forwarded = append(forwarded, ev)
	}), m)

	at := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	ce.Emit(event.New(event.TypeTeedUp, "pool1", at, event.EventData{}))
	ce.Emit(event.New(event.TypeReady, "pool1", at, event.EventData{TimeToStatusSixMs: 4000}))
	ce.Emit(event.New(event.TypeError, "pool2", at, event.EventData{Reason: "resolve failed"}))

	if len(forwarded) != 3 {
		t.Fatalf("expected 3 forwarded events, got %d", len(forwarded))
	}
	if got := testutil.ToFloat64(m.EventsEmitted.WithLabelValues(event.TypeReady)); got != 1 {
		t.Errorf("expected 1 ready event counted, got %f", got)
	}
	if got := testutil.ToFloat64(m.PoolsFailed); got != 1 {
		t.Errorf("expected 1 failed pool counted, got %f", got)
	}
}
