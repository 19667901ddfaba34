// Package event defines the pool lifecycle event contract and the
// emitters that deliver events to downstream consumers.
package event

import (
	"time"
)

// Event types emitted over a pool's lifecycle.
const (
	TypeTeedUp    = "teed_up"
	TypeStatusSix = "status_six"
	TypeReady     = "ready"
	TypeError     = "error"
)

// PoolEvent is a single lifecycle notification for one pool.
type PoolEvent struct {
	Type      string    `json:"type"`
	PoolID    string    `json:"pool_id"`
	Timestamp time.Time `json:"-"`

	// TimestampMs carries Timestamp on the wire as Unix milliseconds.
	TimestampMs int64 `json:"timestamp"`

	Data EventData `json:"data"`
}

// EventData carries per-event details. Fields are populated as they
// become known; a teed_up event has no status-six timing yet.
type EventData struct {
	BaseToken  string `json:"base_token,omitempty"`
	QuoteToken string `json:"quote_token,omitempty"`

	// PoolOpenTime is the pool's scheduled open, Unix seconds.
	PoolOpenTime int64 `json:"pool_open_time,omitempty"`

	// MissedTeeUp marks a pool first observed already open for
	// trading, with no prior initialized sighting.
	MissedTeeUp bool `json:"missed_tee_up,omitempty"`

	// TimeToStatusSixMs is the delay between the initialized and
	// open-for-trading observations. Zero when MissedTeeUp is set.
	TimeToStatusSixMs int64 `json:"time_to_status_six_ms,omitempty"`

	// Reason describes the failure on error events.
	Reason string `json:"reason,omitempty"`
}

// New builds an event stamped with the given time.
func New(eventType, poolID string, at time.Time, data EventData) PoolEvent {
	return PoolEvent{
		Type:        eventType,
		PoolID:      poolID,
		Timestamp:   at,
		TimestampMs: at.UnixMilli(),
		Data:        data,
	}
}

// Emitter delivers pool lifecycle events.
type Emitter interface {
	Emit(ev PoolEvent)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(ev PoolEvent)

func (f EmitterFunc) Emit(ev PoolEvent) {
	f(ev)
}
